package service

import (
	"fmt"
	"time"

	"team-pulse/internal/model"
)

// Expected submissions per period, used for the consistency score.
const (
	ExpectedWeek    = 5
	ExpectedMonth   = 22
	ExpectedQuarter = 65

	quarterDays = 90
)

// Period is a half-open [Start, End) range of local calendar days.
type Period struct {
	Type     model.PeriodType
	Start    time.Time
	End      time.Time
	Expected int
}

func (p Period) StartDate() string { return p.Start.Format(model.DateLayout) }

// LastDate is the final day inside the period.
func (p Period) LastDate() string { return p.End.AddDate(0, 0, -1).Format(model.DateLayout) }

func (p Period) Contains(date string) bool {
	return date >= p.StartDate() && date <= p.LastDate()
}

// PeriodFor returns the canonical window of the given type containing now.
func PeriodFor(t model.PeriodType, now time.Time, loc *time.Location, weekStart time.Weekday) (Period, error) {
	today := startOfDay(now, loc)
	switch t {
	case model.PeriodWeek:
		offset := (int(today.Weekday()) - int(weekStart) + 7) % 7
		start := today.AddDate(0, 0, -offset)
		return Period{Type: t, Start: start, End: start.AddDate(0, 0, 7), Expected: ExpectedWeek}, nil
	case model.PeriodMonth:
		start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
		return Period{Type: t, Start: start, End: start.AddDate(0, 1, 0), Expected: ExpectedMonth}, nil
	case model.PeriodQuarter:
		end := today.AddDate(0, 0, 1)
		return Period{Type: t, Start: end.AddDate(0, 0, -quarterDays), End: end, Expected: ExpectedQuarter}, nil
	}
	return Period{}, fmt.Errorf("unknown period type %q", t)
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// dateDaysAgo formats the local date n days before now.
func dateDaysAgo(now time.Time, loc *time.Location, n int) string {
	return startOfDay(now, loc).AddDate(0, 0, -n).Format(model.DateLayout)
}

// weekdaysBetween counts Monday–Friday dates in [from, to], both inclusive.
func weekdaysBetween(from, to time.Time) int {
	n := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
	}
	return n
}
