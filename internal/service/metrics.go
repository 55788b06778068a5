package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"team-pulse/internal/logger"
	"team-pulse/internal/model"
)

const (
	TrendIncreasing = "increasing"
	TrendStable     = "stable"
	TrendDecreasing = "decreasing"

	SentimentImproving = "improving"
	SentimentStable    = "stable"
	SentimentDeclining = "declining"
)

// Scoring constants. Changing any of these changes persisted scores.
const (
	velocityTrendMinEntries = 10
	velocityTrendDelta      = 0.15

	recurringKeywordMinDocs = 3
	recurringKeywordLimit   = 5

	lateAfterMinutes = 12 * 60

	sentimentTrendDelta    = 0.2
	DefaultSentimentSample = 5
	minSentimentSample     = 5
	maxSentimentSample     = 10

	engagementConsistencyMax = 40.0
	engagementSentimentMax   = 30.0
	engagementLowBlockers    = 20
	engagementHighBlockers   = 10
	engagementOnTime         = 10
	engagementLate           = 5
	engagementBlockerCutoff  = 30
	engagementLateCutoff     = 0.3

	overallConsistencyWeight = 0.30
	overallEngagementWeight  = 0.25
)

var velocityBand = map[string]int{TrendIncreasing: 20, TrendStable: 15, TrendDecreasing: 5}

var riskBand = map[string]int{RiskLow: 25, RiskMedium: 15, RiskHigh: 5}

type MetricsCalculator struct {
	entries         EntryStore
	tasks           TaskExtractor
	sentiment       SentimentScorer
	keywords        KeywordStrategy
	risk            *RiskAssessor
	clock           Clock
	loc             *time.Location
	weekStart       time.Weekday
	sentimentSample int
	riskWindowDays  int
}

type MetricsOptions struct {
	Location        *time.Location
	WeekStart       time.Weekday
	SentimentSample int
	RiskWindowDays  int
	Keywords        KeywordStrategy
}

func NewMetricsCalculator(entries EntryStore, tasks TaskExtractor, sentiment SentimentScorer, clock Clock, opts MetricsOptions) *MetricsCalculator {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	sample := opts.SentimentSample
	if sample == 0 {
		sample = DefaultSentimentSample
	}
	sample = min(max(sample, minSentimentSample), maxSentimentSample)
	keywords := opts.Keywords
	if keywords == nil {
		keywords = FrequencyKeywords{}
	}
	window := opts.RiskWindowDays
	if window <= 0 {
		window = DefaultRiskWindowDays
	}
	return &MetricsCalculator{
		entries:         entries,
		tasks:           tasks,
		sentiment:       sentiment,
		keywords:        keywords,
		risk:            NewRiskAssessor(entries, sentiment, clock, loc),
		clock:           clock,
		loc:             loc,
		weekStart:       opts.WeekStart,
		sentimentSample: sample,
		riskWindowDays:  window,
	}
}

// Risk exposes the assessor sharing this calculator's clock and scorer.
func (c *MetricsCalculator) Risk() *RiskAssessor { return c.risk }

// Compute builds the member's record for the period containing now. It
// returns nil when the member has no entries in the period.
func (c *MetricsCalculator) Compute(ctx context.Context, memberID int, period model.PeriodType, workspace string) (*model.MetricsRecord, error) {
	return c.ComputeAt(ctx, memberID, period, workspace, c.clock.Now())
}

// ComputeAt is Compute for a caller-fixed now, so a batch ranks one period.
func (c *MetricsCalculator) ComputeAt(ctx context.Context, memberID int, period model.PeriodType, workspace string, now time.Time) (*model.MetricsRecord, error) {
	p, err := PeriodFor(period, now, c.loc, c.weekStart)
	if err != nil {
		return nil, err
	}

	// One fetch covers both the period and the risk window.
	riskFrom := dateDaysAgo(now, c.loc, c.riskWindowDays-1)
	from := p.StartDate()
	if riskFrom < from {
		from = riskFrom
	}
	to := p.LastDate()
	if today := dateDaysAgo(now, c.loc, 0); today > to {
		to = today
	}
	all, err := c.entries.ListByMember(ctx, memberID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load entries for member %d: %w", memberID, err)
	}

	joined, err := c.entries.JoinedAt(ctx, memberID)
	if err != nil {
		return nil, err
	}

	rec := c.Build(ctx, all, p, now, joined)
	if rec == nil {
		return nil, nil
	}
	rec.MemberID = memberID
	rec.Workspace = workspace
	logger.Debug("metrics.computed", "member_id", memberID, "period", period, "start", rec.PeriodStart, "overall", rec.OverallScore)
	return rec, nil
}

// Build derives a record from a member's entries. Entries outside the period
// only feed the risk assessment.
func (c *MetricsCalculator) Build(ctx context.Context, all []model.Entry, p Period, now, joined time.Time) *model.MetricsRecord {
	all = append([]model.Entry(nil), all...)
	sortEntries(all)
	var entries []model.Entry
	for _, e := range all {
		if p.Contains(e.DailyDate) {
			entries = append(entries, e)
		}
	}
	if len(entries) == 0 {
		return nil
	}
	n := len(entries)
	memo := newSentimentMemo(c.sentiment)

	rec := &model.MetricsRecord{
		MemberName:      entries[n-1].MemberName,
		Workspace:       entries[n-1].Workspace,
		MemberID:        entries[n-1].MemberID,
		PeriodType:      p.Type,
		PeriodStart:     p.StartDate(),
		PeriodEnd:       p.LastDate(),
		Submissions:     n,
		ExpectedSubmits: p.Expected,
		ComputedAt:      now,
	}
	rec.ConsistencyScore = consistencyScore(n, p.Expected)

	perEntry := make([]int, n)
	for i, e := range entries {
		perEntry[i] = countTasks(c.tasks, e.Yesterday) + countTasks(c.tasks, e.Today)
		rec.TotalTasks += perEntry[i]
	}
	rec.AvgTasksPerDay = round2(float64(rec.TotalTasks) / float64(n))
	rec.VelocityTrend = velocityTrend(perEntry)

	var blockerTexts []string
	for _, e := range entries {
		if HasBlocker(e.Blockers) {
			blockerTexts = append(blockerTexts, e.Blockers)
		}
	}
	rec.BlockerCount = len(blockerTexts)
	rec.BlockerFrequency = int(math.Round(100 * float64(rec.BlockerCount) / float64(n)))
	keywords := c.keywords.Recurring(blockerTexts, recurringKeywordMinDocs, recurringKeywordLimit)
	rec.BlockerKeywords = append([]string{}, keywords...)

	rec.AvgSubmitTime, rec.LateSubmissions = c.timing(entries)

	rec.AvgSentiment = round2(mean(memo.scoreAll(ctx, mostRecent(entries, c.sentimentSample))))
	rec.SentimentTrend = sentimentTrend(rec.AvgSentiment)

	risk := c.risk.evaluate(ctx, all, c.riskWindowDays, now, joined, memo)
	rec.RiskLevel = risk.Level
	rec.RiskFactors = append([]string{}, risk.Factors...)
	rec.RiskScore = risk.Score

	rec.EngagementScore = engagementScore(rec.ConsistencyScore, rec.AvgSentiment, rec.BlockerFrequency, float64(rec.LateSubmissions)/float64(n))
	rec.OverallScore = overallScore(rec.ConsistencyScore, rec.EngagementScore, rec.VelocityTrend, rec.RiskLevel)
	return rec
}

func (c *MetricsCalculator) timing(entries []model.Entry) (string, int) {
	total, late, counted := 0, 0, 0
	for _, e := range entries {
		if e.SubmittedAt.IsZero() {
			continue
		}
		t := e.SubmittedAt.In(c.loc)
		mins := t.Hour()*60 + t.Minute()
		total += mins
		counted++
		if mins > lateAfterMinutes {
			late++
		}
	}
	if counted == 0 {
		return "", 0
	}
	avg := int(math.Round(float64(total) / float64(counted)))
	return fmt.Sprintf("%02d:%02d", avg/60, avg%60), late
}

func consistencyScore(actual, expected int) int {
	if expected <= 0 {
		return 0
	}
	return min(int(math.Round(100*float64(actual)/float64(expected))), 100)
}

// velocityTrend compares the later half of the period with the earlier one.
func velocityTrend(tasks []int) string {
	if len(tasks) < velocityTrendMinEntries {
		return TrendStable
	}
	mid := len(tasks) / 2
	earlier, later := avgInts(tasks[:mid]), avgInts(tasks[mid:])
	if earlier == 0 {
		if later > 0 {
			return TrendIncreasing
		}
		return TrendStable
	}
	change := (later - earlier) / earlier
	switch {
	case change > velocityTrendDelta:
		return TrendIncreasing
	case change < -velocityTrendDelta:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func sentimentTrend(avg float64) string {
	switch {
	case avg > sentimentTrendDelta:
		return SentimentImproving
	case avg < -sentimentTrendDelta:
		return SentimentDeclining
	default:
		return SentimentStable
	}
}

func engagementScore(consistency int, sentiment float64, blockerFreq int, lateRatio float64) int {
	score := math.Min(engagementConsistencyMax, float64(consistency)*engagementConsistencyMax/100)
	score += clamp((sentiment+1)*15, 0, engagementSentimentMax)
	if blockerFreq < engagementBlockerCutoff {
		score += engagementLowBlockers
	} else {
		score += engagementHighBlockers
	}
	if lateRatio < engagementLateCutoff {
		score += engagementOnTime
	} else {
		score += engagementLate
	}
	return int(math.Round(score))
}

func overallScore(consistency, engagement int, velocity, risk string) int {
	score := overallConsistencyWeight*float64(consistency) +
		overallEngagementWeight*float64(engagement) +
		float64(velocityBand[velocity]) +
		float64(riskBand[risk])
	return min(int(math.Round(score)), 100)
}

func avgInts(vals []int) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return float64(sum) / float64(len(vals))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// sortEntries orders entries by date, then id, in place.
func sortEntries(entries []model.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].DailyDate != entries[j].DailyDate {
			return entries[i].DailyDate < entries[j].DailyDate
		}
		return entries[i].ID < entries[j].ID
	})
}
