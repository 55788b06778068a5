package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"team-pulse/internal/model"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// friday is Friday 2026-10-16, 18:00 UTC.
var friday = time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

type stubScorer struct{ score float64 }

func (s stubScorer) ScoreSentiment(context.Context, string) float64 { return s.score }

func addMember(t *testing.T, db *gorm.DB, name, workspace string) model.Member {
	t.Helper()
	m := model.Member{Username: strings.ToLower(name), Name: name, Workspace: workspace, Active: true, CreatedAt: friday}
	require.NoError(t, db.Create(&m).Error)
	return m
}

// entryOn builds a three-task report for the given date, submitted at
// hh:mm UTC.
func entryOn(m model.Member, date string, hh, mm int) model.Entry {
	d, _ := time.Parse(model.DateLayout, date)
	return model.Entry{
		MemberID:          m.ID,
		Workspace:         m.Workspace,
		MemberName:        m.Name,
		DailyDate:         date,
		Yesterday:         "- fixed login bug\n- reviewed PR",
		Today:             "- write release notes",
		Blockers:          "none",
		SentimentEligible: true,
		Source:            "web",
		SubmittedAt:       time.Date(d.Year(), d.Month(), d.Day(), hh, mm, 0, 0, time.UTC),
	}
}

func saveEntries(t *testing.T, daily *DailyService, entries ...model.Entry) {
	t.Helper()
	for i := range entries {
		require.NoError(t, daily.Save(context.Background(), &entries[i]))
	}
}

// daysBack returns the date n days before friday.
func daysBack(n int) string {
	return friday.AddDate(0, 0, -n).Format(model.DateLayout)
}
