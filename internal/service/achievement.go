package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"team-pulse/internal/logger"
	"team-pulse/internal/model"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	achievementWindowDays = 30
	streakLookbackDays    = 366

	velocityMinSubmissions    = 20
	earlyBirdMinSubmissions   = 15
	consistencyMinSubmissions = 20
	earlyBirdBeforeHour       = 9
)

type badge struct {
	Level       model.AchievementLevel
	Threshold   float64
	Name        string
	Icon        string
	Description string
}

// Badge ladders, lowest level first.
var badges = map[model.AchievementType][]badge{
	model.AchievementStreak: {
		{model.LevelBronze, 7, "Week Warrior", "🔥", "Reported 7 days in a row"},
		{model.LevelSilver, 30, "Monthly Master", "🔥", "Reported 30 days in a row"},
		{model.LevelGold, 90, "Quarterly Champion", "🔥", "Reported 90 days in a row"},
		{model.LevelPlatinum, 180, "Half-Year Hero", "🔥", "Reported 180 days in a row"},
	},
	model.AchievementVelocity: {
		{model.LevelBronze, 3, "Steady Shipper", "⚡", "Averaged 3 tasks per report over 30 days"},
		{model.LevelSilver, 5, "Task Crusher", "⚡", "Averaged 5 tasks per report over 30 days"},
		{model.LevelGold, 8, "Velocity Legend", "⚡", "Averaged 8 tasks per report over 30 days"},
	},
	model.AchievementEarlyBird: {
		{model.LevelBronze, 50, "Early Riser", "🌅", "Half of the last 30 days' reports came in before 09:00"},
		{model.LevelSilver, 75, "Dawn Patrol", "🌅", "Three quarters of the last 30 days' reports came in before 09:00"},
		{model.LevelGold, 90, "First Light", "🌅", "Nine in ten of the last 30 days' reports came in before 09:00"},
	},
	model.AchievementConsistency: {
		{model.LevelBronze, 80, "Reliable", "📅", "Filed 80% of expected reports over 30 days"},
		{model.LevelSilver, 90, "Dependable", "📅", "Filed 90% of expected reports over 30 days"},
		{model.LevelGold, 95, "Clockwork", "📅", "Filed 95% of expected reports over 30 days"},
	},
}

var achievementOrder = []model.AchievementType{
	model.AchievementStreak,
	model.AchievementVelocity,
	model.AchievementEarlyBird,
	model.AchievementConsistency,
}

// reached returns every rung of the ladder at or below value.
func reached(t model.AchievementType, value float64) []badge {
	var out []badge
	for _, b := range badges[t] {
		if value >= b.Threshold {
			out = append(out, b)
		}
	}
	return out
}

type AchievementEngine struct {
	db      *gorm.DB
	entries EntryStore
	tasks   TaskExtractor
	roster  *RosterCache
	clock   Clock
	loc     *time.Location
	workers int
}

func NewAchievementEngine(db *gorm.DB, entries EntryStore, tasks TaskExtractor, roster *RosterCache, clock Clock, loc *time.Location, workers int) *AchievementEngine {
	if loc == nil {
		loc = time.Local
	}
	if workers <= 0 {
		workers = 4
	}
	return &AchievementEngine{db: db, entries: entries, tasks: tasks, roster: roster, clock: clock, loc: loc, workers: workers}
}

// CheckAllAchievements evaluates every badge family for the member and
// stores the ones not held yet. It returns the newly earned badges.
func (a *AchievementEngine) CheckAllAchievements(ctx context.Context, memberID int, workspace string) ([]model.AchievementRecord, error) {
	now := a.clock.Now()
	today := startOfDay(now, a.loc)
	recent, err := a.entries.ListByMember(ctx, memberID, dateDaysAgo(now, a.loc, achievementWindowDays-1), today.Format(model.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("load entries for member %d: %w", memberID, err)
	}

	// Each family writes only its own slot.
	found := make([][]badge, len(achievementOrder))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dates, err := a.entries.SubmissionDates(gctx, memberID, dateDaysAgo(now, a.loc, streakLookbackDays))
		if err != nil {
			return err
		}
		found[0] = reached(model.AchievementStreak, float64(currentStreak(dates, today)))
		return nil
	})
	g.Go(func() error {
		found[1] = reached(model.AchievementVelocity, velocityValue(a.tasks, recent))
		return nil
	})
	g.Go(func() error {
		found[2] = reached(model.AchievementEarlyBird, a.earlyBirdValue(recent))
		return nil
	})
	g.Go(func() error {
		found[3] = reached(model.AchievementConsistency, consistencyValue(recent))
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("evaluate achievements for member %d: %w", memberID, err)
	}

	held, err := a.held(ctx, memberID)
	if err != nil {
		return nil, err
	}

	name := ""
	if n := len(recent); n > 0 {
		name = recent[n-1].MemberName
	}
	var earned []model.AchievementRecord
	for i, t := range achievementOrder {
		for _, b := range found[i] {
			if held[badgeKey(t, b.Level)] {
				continue
			}
			rec := model.AchievementRecord{
				MemberID:    memberID,
				MemberName:  name,
				Workspace:   workspace,
				Type:        t,
				Level:       b.Level,
				BadgeName:   b.Name,
				BadgeIcon:   b.Icon,
				Description: b.Description,
				Threshold:   b.Threshold,
				EarnedAt:    now,
				Active:      true,
			}
			res := a.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
			if res.Error != nil {
				return earned, fmt.Errorf("insert achievement %s/%s: %w", t, b.Level, res.Error)
			}
			if res.RowsAffected == 0 {
				continue
			}
			earned = append(earned, rec)
			logger.Ctx(ctx).Info("achievement.earned", "member_id", memberID, "type", t, "level", b.Level, "badge", b.Name)
		}
	}
	return earned, nil
}

// CheckWorkspace runs the check for every active member. A failing member
// is logged and skipped.
func (a *AchievementEngine) CheckWorkspace(ctx context.Context, workspace string) (int, error) {
	members, err := a.roster.ActiveMembers(ctx, workspace)
	if err != nil {
		return 0, err
	}
	var (
		mu    sync.Mutex
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for _, m := range members {
		g.Go(func() error {
			earned, err := a.CheckAllAchievements(gctx, m.ID, workspace)
			if err != nil {
				logger.Ctx(ctx).Error("achievement.member_failed", "workspace", workspace, "member_id", m.ID, "err", err)
			}
			mu.Lock()
			total += len(earned)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	logger.Ctx(ctx).Info("achievement.workspace_done", "workspace", workspace, "members", len(members), "earned", total)
	return total, nil
}

func (a *AchievementEngine) ListAchievements(ctx context.Context, memberID int) ([]model.AchievementRecord, error) {
	var out []model.AchievementRecord
	err := a.db.WithContext(ctx).Where("member_id = ? AND active = ?", memberID, true).
		Order("earned_at, id").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("query achievements: %w", err)
	}
	return out, nil
}

func (a *AchievementEngine) held(ctx context.Context, memberID int) (map[string]bool, error) {
	var rows []model.AchievementRecord
	err := a.db.WithContext(ctx).Select("type", "level").Where("member_id = ?", memberID).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query held achievements: %w", err)
	}
	out := make(map[string]bool, len(rows))
	for _, r := range rows {
		out[badgeKey(r.Type, r.Level)] = true
	}
	return out, nil
}

func badgeKey(t model.AchievementType, l model.AchievementLevel) string {
	return string(t) + "/" + string(l)
}

// currentStreak counts consecutive report days ending today, or yesterday
// when today has no report yet. dates must be distinct.
func currentStreak(dates []string, today time.Time) int {
	set := make(map[string]bool, len(dates))
	for _, d := range dates {
		set[d] = true
	}
	anchor := today
	if !set[anchor.Format(model.DateLayout)] {
		anchor = anchor.AddDate(0, 0, -1)
	}
	n := 0
	for d := anchor; set[d.Format(model.DateLayout)]; d = d.AddDate(0, 0, -1) {
		n++
	}
	return n
}

func velocityValue(tasks TaskExtractor, entries []model.Entry) float64 {
	if len(entries) < velocityMinSubmissions {
		return 0
	}
	total := 0
	for _, e := range entries {
		total += countTasks(tasks, e.Yesterday) + countTasks(tasks, e.Today)
	}
	return float64(total) / float64(len(entries))
}

func (a *AchievementEngine) earlyBirdValue(entries []model.Entry) float64 {
	if len(entries) < earlyBirdMinSubmissions {
		return 0
	}
	early := 0
	for _, e := range entries {
		if !e.SubmittedAt.IsZero() && e.SubmittedAt.In(a.loc).Hour() < earlyBirdBeforeHour {
			early++
		}
	}
	return 100 * float64(early) / float64(len(entries))
}

func consistencyValue(entries []model.Entry) float64 {
	if len(entries) < consistencyMinSubmissions {
		return 0
	}
	return 100 * float64(len(entries)) / ExpectedMonth
}
