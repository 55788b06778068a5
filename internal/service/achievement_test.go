package service

import (
	"context"
	"testing"
	"time"

	"team-pulse/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newAchievementEngine(db *gorm.DB, daily *DailyService) *AchievementEngine {
	clock := FixedClock{friday}
	return NewAchievementEngine(db, daily, BulletTaskExtractor{}, NewRosterCache(db, clock, time.Minute), clock, time.UTC, 2)
}

func TestSevenDayStreakAwardedOnce(t *testing.T) {
	db := newTestDB(t)
	daily := NewDailyService(db)
	m := addMember(t, db, "Ned", "core")
	for i := 6; i >= 0; i-- {
		saveEntries(t, daily, entryOn(m, daysBack(i), 10, 0))
	}
	engine := newAchievementEngine(db, daily)
	ctx := context.Background()

	earned, err := engine.CheckAllAchievements(ctx, m.ID, "core")
	require.NoError(t, err)
	require.Len(t, earned, 1)
	assert.Equal(t, model.AchievementStreak, earned[0].Type)
	assert.Equal(t, model.LevelBronze, earned[0].Level)
	assert.Equal(t, "Ned", earned[0].MemberName)

	earned, err = engine.CheckAllAchievements(ctx, m.ID, "core")
	require.NoError(t, err)
	assert.Empty(t, earned)

	held, err := engine.ListAchievements(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, held, 1)
}

func TestAchievementLadders(t *testing.T) {
	db := newTestDB(t)
	daily := NewDailyService(db)
	m := addMember(t, db, "Oli", "core")
	for i := 21; i >= 0; i-- {
		saveEntries(t, daily, entryOn(m, daysBack(i), 8, 15))
	}
	engine := newAchievementEngine(db, daily)

	earned, err := engine.CheckAllAchievements(context.Background(), m.ID, "core")
	require.NoError(t, err)

	got := map[model.AchievementType][]model.AchievementLevel{}
	for _, a := range earned {
		got[a.Type] = append(got[a.Type], a.Level)
	}
	assert.Equal(t, []model.AchievementLevel{model.LevelBronze}, got[model.AchievementStreak])
	assert.Equal(t, []model.AchievementLevel{model.LevelBronze}, got[model.AchievementVelocity])
	assert.Equal(t, []model.AchievementLevel{model.LevelBronze, model.LevelSilver, model.LevelGold}, got[model.AchievementEarlyBird])
	assert.Equal(t, []model.AchievementLevel{model.LevelBronze, model.LevelSilver, model.LevelGold}, got[model.AchievementConsistency])
}

func TestCheckWorkspaceSkipsInactive(t *testing.T) {
	db := newTestDB(t)
	daily := NewDailyService(db)
	active := addMember(t, db, "Pat", "core")
	inactive := addMember(t, db, "Quin", "core")
	require.NoError(t, db.Model(&inactive).Update("active", false).Error)
	for i := 6; i >= 0; i-- {
		saveEntries(t, daily, entryOn(active, daysBack(i), 10, 0), entryOn(inactive, daysBack(i), 10, 0))
	}

	n, err := newAchievementEngine(db, daily).CheckWorkspace(context.Background(), "core")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCurrentStreak(t *testing.T) {
	today := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name  string
		dates []string
		want  int
	}{
		{"empty", nil, 0},
		{"today only", []string{"2026-10-16"}, 1},
		{"anchored yesterday", []string{"2026-10-15", "2026-10-14"}, 2},
		{"gap breaks", []string{"2026-10-16", "2026-10-15", "2026-10-13"}, 2},
		{"stale", []string{"2026-10-14", "2026-10-13"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, currentStreak(tc.dates, today))
		})
	}
}
