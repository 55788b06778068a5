package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"team-pulse/internal/model"
)

const (
	recentWindowDays  = 7
	blockerWindowDays = 14

	declinePreviousMin = 4
	declineRecentMax   = 2
	noRecentDays       = 7
	noRecentThreshold  = 3

	blockerAlertMin      = 3
	blockerKeywordMin    = 3
	blockerKeywordLimit  = 5
	sentimentAlertMin    = 3
	sentimentAlertSample = 5
	sentimentAvgFloor    = -0.4
	sentimentNegative    = -0.3
	sentimentNegativeMin = 3

	overworkHours        = 50.0
	overworkMinEstimates = 3
	underworkHours       = 20.0
	underworkMinEstimate = 4
)

// DetectorDeps are the collaborators shared by the built-in detectors.
type DetectorDeps struct {
	Entries   EntryStore
	Sentiment SentimentScorer
	Keywords  KeywordStrategy
	Roster    *RosterCache
	Location  *time.Location
}

// DefaultDetectors returns the built-in detectors in run order.
func DefaultDetectors(deps DetectorDeps) []Detector {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Keywords == nil {
		deps.Keywords = FrequencyKeywords{}
	}
	return []Detector{
		&DecliningDetector{deps},
		&BlockerDetector{deps},
		&SentimentDetector{deps},
		&OverworkDetector{deps},
		&UnderutilizationDetector{deps},
	}
}

type memberWindow struct {
	id      int
	name    string
	entries []model.Entry
}

// window loads the last n days of the workspace, grouped per member in id
// order. With a roster, inactive members are dropped and current names used.
func (d DetectorDeps) window(ctx context.Context, workspace string, now time.Time, n int) ([]memberWindow, error) {
	rows, err := d.Entries.ListByWorkspace(ctx, workspace, dateDaysAgo(now, d.Location, n-1), dateDaysAgo(now, d.Location, 0))
	if err != nil {
		return nil, err
	}
	byMember := map[int]*memberWindow{}
	for _, e := range rows {
		w := byMember[e.MemberID]
		if w == nil {
			w = &memberWindow{id: e.MemberID, name: e.MemberName}
			byMember[e.MemberID] = w
		}
		w.entries = append(w.entries, e)
	}

	if d.Roster != nil {
		active, err := d.Roster.ActiveMembers(ctx, workspace)
		if err != nil {
			return nil, err
		}
		keep := map[int]string{}
		for _, m := range active {
			keep[m.ID] = m.Name
		}
		for id, w := range byMember {
			name, ok := keep[id]
			if !ok {
				delete(byMember, id)
				continue
			}
			if name != "" {
				w.name = name
			}
		}
	}

	out := make([]memberWindow, 0, len(byMember))
	for _, w := range byMember {
		sortEntries(w.entries)
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out, nil
}

func entryIDs(entries []model.Entry) []int {
	ids := make([]int, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}

func ptr(v float64) *float64 { return &v }

// DecliningDetector compares the last 7 days with the 7 days before.
type DecliningDetector struct{ DetectorDeps }

func (d *DecliningDetector) Name() string { return "declining_performance" }

func (d *DecliningDetector) Types() []string {
	return []string{AlertDecliningPerformance, AlertNoRecentSubmissions}
}

func (d *DecliningDetector) Detect(ctx context.Context, workspace string, now time.Time) ([]model.AlertRecord, error) {
	members, err := d.window(ctx, workspace, now, 2*recentWindowDays)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	recentFrom := dateDaysAgo(now, d.Location, recentWindowDays-1)

	var out []model.AlertRecord
	for _, m := range members {
		var recent, previous []model.Entry
		for _, e := range m.entries {
			if e.DailyDate >= recentFrom {
				recent = append(recent, e)
			} else {
				previous = append(previous, e)
			}
		}

		switch {
		case len(recent) == 0 && len(previous) > 0:
			out = append(out, model.AlertRecord{
				Type:       AlertNoRecentSubmissions,
				MemberID:   m.id,
				MemberName: m.name,
				Severity:   model.SeverityCritical,
				Title:      "No Recent Submissions",
				Description: fmt.Sprintf("%s has not submitted a report in the last %d days, after %d reports in the %d days before.",
					m.name, noRecentDays, len(previous), recentWindowDays),
				MetricName:      "days_without_submission",
				CurrentValue:    ptr(noRecentDays),
				Threshold:       ptr(noRecentThreshold),
				RelatedEntryIDs: entryIDs(previous),
				SuggestedActions: []string{
					"Check in with the member directly",
					"Confirm whether they are on leave or reassigned",
				},
			})
		case len(previous) >= declinePreviousMin && len(recent) <= declineRecentMax:
			drop := 100 * float64(len(previous)-len(recent)) / float64(len(previous))
			out = append(out, model.AlertRecord{
				Type:       AlertDecliningPerformance,
				MemberID:   m.id,
				MemberName: m.name,
				Severity:   model.SeverityWarning,
				Title:      "Declining Submission Rate",
				Description: fmt.Sprintf("%s submitted %d reports in the last %d days, down from %d in the previous %d days (%.0f%% drop).",
					m.name, len(recent), recentWindowDays, len(previous), recentWindowDays, drop),
				MetricName:      "weekly_submissions",
				CurrentValue:    ptr(float64(len(recent))),
				Threshold:       ptr(declineRecentMax),
				RelatedEntryIDs: entryIDs(recent),
				SuggestedActions: []string{
					"Schedule a one-on-one",
					"Review current workload and priorities",
				},
			})
		}
	}
	return out, nil
}

// BlockerDetector flags members who keep reporting blockers about the same
// things.
type BlockerDetector struct{ DetectorDeps }

func (d *BlockerDetector) Name() string    { return "repeated_blockers" }
func (d *BlockerDetector) Types() []string { return []string{AlertRepeatedBlockers} }

func (d *BlockerDetector) Detect(ctx context.Context, workspace string, now time.Time) ([]model.AlertRecord, error) {
	members, err := d.window(ctx, workspace, now, blockerWindowDays)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}

	var out []model.AlertRecord
	for _, m := range members {
		var blocked []model.Entry
		var texts []string
		for _, e := range m.entries {
			if HasBlocker(e.Blockers) {
				blocked = append(blocked, e)
				texts = append(texts, e.Blockers)
			}
		}
		if len(blocked) < blockerAlertMin {
			continue
		}
		keywords := d.Keywords.Recurring(texts, blockerKeywordMin, blockerKeywordLimit)
		if len(keywords) == 0 {
			continue
		}
		pct := int(math.Round(100 * float64(len(blocked)) / float64(len(m.entries))))
		out = append(out, model.AlertRecord{
			Type:       AlertRepeatedBlockers,
			MemberID:   m.id,
			MemberName: m.name,
			Severity:   model.SeverityWarning,
			Title:      "Recurring Blockers",
			Description: fmt.Sprintf("%s reported blockers in %d of %d reports over the last %d days (%d%%). Recurring terms: %s.",
				m.name, len(blocked), len(m.entries), blockerWindowDays, pct, strings.Join(keywords, ", ")),
			MetricName:      "blocker_count",
			CurrentValue:    ptr(float64(len(blocked))),
			Threshold:       ptr(blockerAlertMin),
			RelatedEntryIDs: entryIDs(blocked),
			SuggestedActions: []string{
				"Escalate the recurring blocker to the owning team",
				"Pair the member with someone who knows the area",
			},
		})
	}
	return out, nil
}

// SentimentDetector flags a run of clearly negative reports.
type SentimentDetector struct{ DetectorDeps }

func (d *SentimentDetector) Name() string    { return "sentiment_risk" }
func (d *SentimentDetector) Types() []string { return []string{AlertSentimentRisk} }

func (d *SentimentDetector) Detect(ctx context.Context, workspace string, now time.Time) ([]model.AlertRecord, error) {
	members, err := d.window(ctx, workspace, now, recentWindowDays)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	memo := newSentimentMemo(d.Sentiment)

	var out []model.AlertRecord
	for _, m := range members {
		if len(m.entries) < sentimentAlertMin {
			continue
		}
		sample := mostRecent(m.entries, sentimentAlertSample)
		scores := memo.scoreAll(ctx, sample)
		avg := mean(scores)
		negative := 0
		for _, s := range scores {
			if s < sentimentNegative {
				negative++
			}
		}
		if avg >= sentimentAvgFloor && negative < sentimentNegativeMin {
			continue
		}
		out = append(out, model.AlertRecord{
			Type:       AlertSentimentRisk,
			MemberID:   m.id,
			MemberName: m.name,
			Severity:   model.SeverityCritical,
			Title:      "Negative Sentiment Trend",
			Description: fmt.Sprintf("Average sentiment of %s's last %d reports is %.2f; %d of them scored below %.1f.",
				m.name, len(sample), avg, negative, sentimentNegative),
			MetricName:      "avg_sentiment",
			CurrentValue:    ptr(round2(avg)),
			Threshold:       ptr(sentimentAvgFloor),
			RelatedEntryIDs: entryIDs(sample),
			SuggestedActions: []string{
				"Have a private conversation about how things are going",
				"Look for team or project friction behind the reports",
			},
		})
	}
	return out, nil
}

// estimatedHours sums the hour estimates of the window and counts how many
// entries carried one.
func estimatedHours(entries []model.Entry) (float64, int, []int) {
	sum, n := 0.0, 0
	var ids []int
	for _, e := range entries {
		if h, ok := e.Hours(); ok {
			sum += h
			n++
			ids = append(ids, e.ID)
		}
	}
	return sum, n, ids
}

// OverworkDetector flags a week of estimated hours above the ceiling. The
// minimum-report gate counts reports that carry an hour estimate, not every
// submission.
type OverworkDetector struct{ DetectorDeps }

func (d *OverworkDetector) Name() string    { return "overwork" }
func (d *OverworkDetector) Types() []string { return []string{AlertOverwork} }

func (d *OverworkDetector) Detect(ctx context.Context, workspace string, now time.Time) ([]model.AlertRecord, error) {
	members, err := d.window(ctx, workspace, now, recentWindowDays)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	var out []model.AlertRecord
	for _, m := range members {
		hours, n, ids := estimatedHours(m.entries)
		if n < overworkMinEstimates || hours <= overworkHours {
			continue
		}
		out = append(out, model.AlertRecord{
			Type:       AlertOverwork,
			MemberID:   m.id,
			MemberName: m.name,
			Severity:   model.SeverityWarning,
			Title:      "Possible Overwork",
			Description: fmt.Sprintf("%s logged an estimated %.1f hours across %d reports in the last %d days (threshold %.0f).",
				m.name, hours, n, recentWindowDays, overworkHours),
			MetricName:      "weekly_hours",
			CurrentValue:    ptr(round2(hours)),
			Threshold:       ptr(overworkHours),
			RelatedEntryIDs: ids,
			SuggestedActions: []string{
				"Review deadlines and redistribute work",
				"Encourage time off after the current push",
			},
		})
	}
	return out, nil
}

// UnderutilizationDetector flags a week of estimated hours below the floor.
// Like OverworkDetector it only counts reports that carry an hour estimate,
// so reports the estimator skipped never read as idle time.
type UnderutilizationDetector struct{ DetectorDeps }

func (d *UnderutilizationDetector) Name() string    { return "underutilization" }
func (d *UnderutilizationDetector) Types() []string { return []string{AlertUnderutilization} }

func (d *UnderutilizationDetector) Detect(ctx context.Context, workspace string, now time.Time) ([]model.AlertRecord, error) {
	members, err := d.window(ctx, workspace, now, recentWindowDays)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	var out []model.AlertRecord
	for _, m := range members {
		hours, n, ids := estimatedHours(m.entries)
		if n < underworkMinEstimate || hours >= underworkHours {
			continue
		}
		out = append(out, model.AlertRecord{
			Type:       AlertUnderutilization,
			MemberID:   m.id,
			MemberName: m.name,
			Severity:   model.SeverityInfo,
			Title:      "Possible Underutilization",
			Description: fmt.Sprintf("%s logged an estimated %.1f hours across %d reports in the last %d days (threshold %.0f).",
				m.name, hours, n, recentWindowDays, underworkHours),
			MetricName:      "weekly_hours",
			CurrentValue:    ptr(round2(hours)),
			Threshold:       ptr(underworkHours),
			RelatedEntryIDs: ids,
			SuggestedActions: []string{
				"Check whether the member is waiting on work",
				"Offer a stretch task or pairing opportunity",
			},
		})
	}
	return out, nil
}
