package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"team-pulse/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateTeam(t *testing.T) {
	recs := []*model.MetricsRecord{
		{MemberID: 1, OverallScore: 80},
		{MemberID: 2, OverallScore: 90},
		{MemberID: 3, OverallScore: 80},
		{MemberID: 4, OverallScore: 70},
	}
	avg := AggregateTeam(recs)
	assert.Equal(t, 80.0, avg)

	got := map[int]int{}
	for _, r := range recs {
		assert.Equal(t, 80.0, r.TeamAverage)
		assert.Greater(t, r.Percentile, 0)
		assert.LessOrEqual(t, r.Percentile, 100)
		got[r.MemberID] = r.Percentile
	}
	assert.Equal(t, map[int]int{2: 100, 1: 75, 3: 50, 4: 25}, got)
}

func TestAggregateTeamSingleAndEmpty(t *testing.T) {
	assert.Equal(t, 0.0, AggregateTeam(nil))
	one := []*model.MetricsRecord{{OverallScore: 42}}
	assert.Equal(t, 42.0, AggregateTeam(one))
	assert.Equal(t, 100, one[0].Percentile)
}

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]model.MetricsRecord
}

func (p *recordingPublisher) PublishMetrics(_ context.Context, recs []model.MetricsRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, recs)
}

func TestComputeTeamMetricsIdempotent(t *testing.T) {
	db := newTestDB(t)
	daily := NewDailyService(db)
	alice := addMember(t, db, "Alice", "core")
	bob := addMember(t, db, "Bob", "core")
	idle := addMember(t, db, "Idle", "core")
	gone := addMember(t, db, "Gone", "core")
	require.NoError(t, db.Model(&gone).Update("active", false).Error)
	other := addMember(t, db, "Other", "infra")

	for i := 4; i >= 0; i-- {
		saveEntries(t, daily, entryOn(alice, daysBack(i), 9, 30), entryOn(other, daysBack(i), 9, 30))
	}
	saveEntries(t, daily, entryOn(bob, daysBack(0), 14, 0), entryOn(gone, daysBack(0), 9, 0))
	_ = idle

	calc := newCalculator(daily, 0.5)
	team := NewTeamService(db, calc, NewRosterCache(db, FixedClock{friday}, time.Minute), 2)
	pub := &recordingPublisher{}
	team.SetPublisher(pub)

	ctx := context.Background()
	require.NoError(t, team.ComputeTeamMetrics(ctx, "core", model.PeriodWeek))
	first, err := team.ListMetrics(ctx, "core", model.PeriodWeek, "2026-10-12")
	require.NoError(t, err)
	require.NoError(t, team.ComputeTeamMetrics(ctx, "core", model.PeriodWeek))
	second, err := team.ListMetrics(ctx, "core", model.PeriodWeek, "2026-10-12")
	require.NoError(t, err)

	var n int64
	require.NoError(t, db.Model(&model.MetricsRecord{}).Count(&n).Error)
	assert.EqualValues(t, 2, n)

	require.Len(t, second, 2)
	assert.Equal(t, alice.ID, second[0].MemberID)
	assert.Equal(t, 100, second[0].Percentile)
	assert.Equal(t, 50, second[1].Percentile)
	for i := range first {
		assert.Equal(t, first[i].MemberID, second[i].MemberID)
		assert.Equal(t, first[i].OverallScore, second[i].OverallScore)
		assert.Equal(t, first[i].TeamAverage, second[i].TeamAverage)
	}
	assert.Len(t, pub.batches, 2)
}

type failingStore struct {
	*DailyService
	failID int
}

func (f failingStore) ListByMember(ctx context.Context, memberID int, from, to string) ([]model.Entry, error) {
	if memberID == f.failID {
		return nil, errors.New("connection reset")
	}
	return f.DailyService.ListByMember(ctx, memberID, from, to)
}

func TestComputeTeamMetricsIsolatesFailures(t *testing.T) {
	db := newTestDB(t)
	daily := NewDailyService(db)
	ok1 := addMember(t, db, "Ada", "core")
	broken := addMember(t, db, "Ben", "core")
	ok2 := addMember(t, db, "Cyd", "core")
	for _, m := range []model.Member{ok1, broken, ok2} {
		saveEntries(t, daily, entryOn(m, daysBack(0), 9, 0))
	}

	calc := NewMetricsCalculator(failingStore{daily, broken.ID}, BulletTaskExtractor{}, stubScorer{0.5}, FixedClock{friday}, MetricsOptions{
		Location:  time.UTC,
		WeekStart: time.Monday,
	})
	team := NewTeamService(db, calc, NewRosterCache(db, FixedClock{friday}, time.Minute), 2)
	require.NoError(t, team.ComputeTeamMetrics(context.Background(), "core", model.PeriodWeek))

	got, err := team.ListMetrics(context.Background(), "core", model.PeriodWeek, "2026-10-12")
	require.NoError(t, err)
	require.Len(t, got, 2)
	ids := []int{got[0].MemberID, got[1].MemberID}
	assert.ElementsMatch(t, []int{ok1.ID, ok2.ID}, ids)
}

type tickingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(time.Minute)
	return now
}

func TestComputeTeamMetricsUsesOnePeriod(t *testing.T) {
	db := newTestDB(t)
	daily := NewDailyService(db)
	var members []model.Member
	for _, name := range []string{"Dov", "Eda", "Fox"} {
		m := addMember(t, db, name, "core")
		saveEntries(t, daily, entryOn(m, daysBack(0), 9, 0))
		members = append(members, m)
	}

	// two minutes before the week rolls over; every read advances a minute
	clock := &tickingClock{t: time.Date(2026, 10, 18, 23, 58, 0, 0, time.UTC)}
	calc := NewMetricsCalculator(daily, BulletTaskExtractor{}, stubScorer{0.5}, clock, MetricsOptions{
		Location:  time.UTC,
		WeekStart: time.Monday,
	})
	team := NewTeamService(db, calc, NewRosterCache(db, clock, time.Minute), 1)
	require.NoError(t, team.ComputeTeamMetrics(context.Background(), "core", model.PeriodWeek))

	var recs []model.MetricsRecord
	require.NoError(t, db.Find(&recs).Error)
	require.Len(t, recs, len(members))
	for _, r := range recs {
		assert.Equal(t, "2026-10-12", r.PeriodStart)
	}
}
