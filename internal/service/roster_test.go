package service

import (
	"context"
	"testing"
	"time"

	"team-pulse/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type movableClock struct{ t time.Time }

func (c *movableClock) Now() time.Time { return c.t }

func TestRosterCacheTTL(t *testing.T) {
	db := newTestDB(t)
	addMember(t, db, "Vic", "core")
	clock := &movableClock{friday}
	roster := NewRosterCache(db, clock, 10*time.Minute)
	ctx := context.Background()

	members, err := roster.ActiveMembers(ctx, "core")
	require.NoError(t, err)
	assert.Len(t, members, 1)

	addMember(t, db, "Wes", "core")
	members, err = roster.ActiveMembers(ctx, "core")
	require.NoError(t, err)
	assert.Len(t, members, 1, "served from cache")

	clock.t = clock.t.Add(11 * time.Minute)
	members, err = roster.ActiveMembers(ctx, "core")
	require.NoError(t, err)
	assert.Len(t, members, 2)

	require.NoError(t, db.Model(&model.Member{}).Where("name = ?", "Wes").Update("active", false).Error)
	roster.Invalidate("core")
	members, err = roster.ActiveMembers(ctx, "core")
	require.NoError(t, err)
	assert.Len(t, members, 1)

	_, err = roster.Member(ctx, "core", 999)
	assert.Error(t, err)
}

func TestJobsRejectUnknown(t *testing.T) {
	jobs := NewJobs(nil, nil, nil)
	runID, err := jobs.Run(context.Background(), "reindex", "core", model.PeriodWeek)
	assert.Error(t, err)
	assert.NotEmpty(t, runID)

	_, err = jobs.Run(context.Background(), JobMetrics, "core", "year")
	assert.Error(t, err)
}

func TestJobsRunAll(t *testing.T) {
	db := newTestDB(t)
	daily := NewDailyService(db)
	m := addMember(t, db, "Xan", "core")
	for i := 6; i >= 0; i-- {
		saveEntries(t, daily, entryOn(m, daysBack(i), 9, 30))
	}
	clock := FixedClock{friday}
	roster := NewRosterCache(db, clock, time.Minute)
	calc := newCalculator(daily, 0.5)
	jobs := NewJobs(
		NewTeamService(db, calc, roster, 2),
		NewAlertEngine(db, clock, DefaultDetectors(DetectorDeps{Entries: daily, Sentiment: stubScorer{0.5}, Roster: roster, Location: time.UTC})...),
		NewAchievementEngine(db, daily, BulletTaskExtractor{}, roster, clock, time.UTC, 2),
	)

	_, err := jobs.Run(context.Background(), JobAll, "core", model.PeriodWeek)
	require.NoError(t, err)

	var metrics, badges int64
	require.NoError(t, db.Model(&model.MetricsRecord{}).Count(&metrics).Error)
	require.NoError(t, db.Model(&model.AchievementRecord{}).Count(&badges).Error)
	assert.EqualValues(t, 1, metrics)
	assert.EqualValues(t, 1, badges)
}
