package service

import (
	"context"
	"time"

	"team-pulse/internal/model"
)

const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"

	DefaultRiskWindowDays = 30

	riskHighAt   = 50
	riskMediumAt = 25
	riskScoreCap = 100

	riskSentimentSample = 5
	riskWorkloadSample  = 7
	riskWorkloadHours   = 70.0
)

const (
	FactorLowSubmission      = "low submission rate"
	FactorInconsistent       = "inconsistent submissions"
	FactorFrequentBlockers   = "frequent blockers"
	FactorRegularBlockers    = "regular blockers"
	FactorDecliningFrequency = "declining submission frequency"
	FactorNegativeSentiment  = "negative sentiment"
	FactorLowEngagement      = "low engagement signals"
	FactorHighWorkload       = "high workload"
)

type RiskAssessment struct {
	Level   string   `json:"level"`
	Factors []string `json:"factors"`
	Score   int      `json:"score"`
}

type RiskAssessor struct {
	entries   EntryStore
	sentiment SentimentScorer
	clock     Clock
	loc       *time.Location
}

func NewRiskAssessor(entries EntryStore, sentiment SentimentScorer, clock Clock, loc *time.Location) *RiskAssessor {
	if loc == nil {
		loc = time.Local
	}
	return &RiskAssessor{entries: entries, sentiment: sentiment, clock: clock, loc: loc}
}

// Assess loads the member's trailing window and scores it.
func (r *RiskAssessor) Assess(ctx context.Context, memberID, windowDays int) (RiskAssessment, error) {
	if windowDays <= 0 {
		windowDays = DefaultRiskWindowDays
	}
	now := r.clock.Now()
	entries, err := r.entries.ListByMember(ctx, memberID, dateDaysAgo(now, r.loc, windowDays-1), dateDaysAgo(now, r.loc, 0))
	if err != nil {
		return RiskAssessment{}, err
	}
	joined, err := r.entries.JoinedAt(ctx, memberID)
	if err != nil {
		return RiskAssessment{}, err
	}
	return r.evaluate(ctx, entries, windowDays, now, joined, newSentimentMemo(r.sentiment)), nil
}

// Evaluate scores an already fetched, date-ascending slice of entries.
// Entries outside the window are ignored. joined is when the member joined
// the team; zero means unknown and the whole window is expected.
func (r *RiskAssessor) Evaluate(ctx context.Context, entries []model.Entry, windowDays int, now, joined time.Time) RiskAssessment {
	return r.evaluate(ctx, entries, windowDays, now, joined, newSentimentMemo(r.sentiment))
}

func (r *RiskAssessor) evaluate(ctx context.Context, entries []model.Entry, windowDays int, now, joined time.Time, memo *sentimentMemo) RiskAssessment {
	if windowDays <= 0 {
		windowDays = DefaultRiskWindowDays
	}
	today := startOfDay(now, r.loc)
	windowStart := today.AddDate(0, 0, -(windowDays - 1))

	var in []model.Entry
	for _, e := range entries {
		d, err := time.ParseInLocation(model.DateLayout, e.DailyDate, r.loc)
		if err != nil || d.Before(windowStart) || d.After(today) {
			continue
		}
		in = append(in, e)
	}
	if len(in) == 0 {
		return RiskAssessment{Level: RiskLow, Factors: []string{}}
	}

	points := 0
	factors := []string{}
	add := func(p int, factor string) {
		points += p
		factors = append(factors, factor)
	}

	rate := ratio(len(in), weekdaysBetween(r.expectedFrom(in, windowStart, joined), today))
	switch {
	case rate < 0.5:
		add(30, FactorLowSubmission)
	case rate < 0.7:
		add(15, FactorInconsistent)
	}

	blockers := 0
	for _, e := range in {
		if HasBlocker(e.Blockers) {
			blockers++
		}
	}
	switch freq := ratio(blockers, len(in)); {
	case freq > 0.5:
		add(25, FactorFrequentBlockers)
	case freq >= 0.3:
		add(10, FactorRegularBlockers)
	}

	if r.declining(in, today) {
		add(20, FactorDecliningFrequency)
	}

	sentiment := mean(memo.scoreAll(ctx, mostRecent(in, riskSentimentSample)))
	switch {
	case sentiment < -0.3:
		add(25, FactorNegativeSentiment)
	case sentiment < 0:
		add(10, FactorLowEngagement)
	}

	hours := 0.0
	for _, e := range mostRecent(in, riskWorkloadSample) {
		if h, ok := e.Hours(); ok {
			hours += h
		}
	}
	if hours > riskWorkloadHours {
		add(15, FactorHighWorkload)
	}

	return RiskAssessment{Level: riskLevel(points), Factors: factors, Score: min(points, riskScoreCap)}
}

// expectedFrom is the first day a report was expected: the window start, or
// the join day for a member who joined mid-window. Reports backfilled from
// before the member row existed move the join day back.
func (r *RiskAssessor) expectedFrom(in []model.Entry, windowStart, joined time.Time) time.Time {
	if joined.IsZero() {
		return windowStart
	}
	from := startOfDay(joined, r.loc)
	if first, err := time.ParseInLocation(model.DateLayout, in[0].DailyDate, r.loc); err == nil && first.Before(from) {
		from = first
	}
	if from.Before(windowStart) {
		return windowStart
	}
	return from
}

// declining compares the per-weekday submission rate of the newer half of
// the entries against the older half. The newer half runs up to today so a
// member who went quiet shows a falling rate.
func (r *RiskAssessor) declining(in []model.Entry, today time.Time) bool {
	if len(in) < 2 {
		return false
	}
	mid := len(in) / 2
	older, recent := in[:mid], in[mid:]
	olderStart, _ := time.ParseInLocation(model.DateLayout, older[0].DailyDate, r.loc)
	recentStart, _ := time.ParseInLocation(model.DateLayout, recent[0].DailyDate, r.loc)

	olderDays := max(weekdaysBetween(olderStart, recentStart.AddDate(0, 0, -1)), 1)
	recentDays := max(weekdaysBetween(recentStart, today), 1)
	olderRate := float64(len(older)) / float64(olderDays)
	recentRate := float64(len(recent)) / float64(recentDays)
	return recentRate < 0.7*olderRate
}

func riskLevel(points int) string {
	switch {
	case points >= riskHighAt:
		return RiskHigh
	case points >= riskMediumAt:
		return RiskMedium
	default:
		return RiskLow
	}
}

// ratio returns n/d, or 1 when nothing was expected.
func ratio(n, d int) float64 {
	if d <= 0 {
		return 1
	}
	return float64(n) / float64(d)
}
