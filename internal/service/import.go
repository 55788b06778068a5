package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"team-pulse/internal/logger"
	"team-pulse/internal/model"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

var importDateLayouts = []string{model.DateLayout, "2006/01/02", "2006/1/2", "01-02-06", "1/2/2006"}

type ImportResult struct {
	Total          int      `json:"total"`
	Imported       int      `json:"imported"`
	Skipped        int      `json:"skipped"`
	SkippedMembers []string `json:"skipped_members"`
}

// ImportService backfills entries from a spreadsheet whose first row names
// the columns: date, name, yesterday, today, blockers, notes and optionally
// time (HH:MM) and hours.
type ImportService struct {
	db    *gorm.DB
	daily *DailyService
	loc   *time.Location
}

func NewImportService(db *gorm.DB, daily *DailyService, loc *time.Location) *ImportService {
	if loc == nil {
		loc = time.Local
	}
	return &ImportService{db: db, daily: daily, loc: loc}
}

func (s *ImportService) ImportXLSX(ctx context.Context, r io.Reader, workspace string, now time.Time) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return &ImportResult{SkippedMembers: []string{}}, nil
	}

	cols := map[string]int{}
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, need := range []string{"date", "name"} {
		if _, ok := cols[need]; !ok {
			return nil, fmt.Errorf("missing %q column", need)
		}
	}
	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var members []model.Member
	if err := s.db.WithContext(ctx).Where("workspace = ?", workspace).Find(&members).Error; err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}

	res := &ImportResult{SkippedMembers: []string{}}
	seen := map[string]bool{}
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		res.Total++
		e := model.Entry{
			Workspace:         workspace,
			Yesterday:         cell(row, "yesterday"),
			Today:             cell(row, "today"),
			Blockers:          cell(row, "blockers"),
			Notes:             cell(row, "notes"),
			SentimentEligible: true,
			Source:            "import",
		}
		if e.Yesterday == "" && e.Today == "" {
			res.Skipped++
			continue
		}
		date, ok := s.parseDate(cell(row, "date"))
		if !ok {
			res.Skipped++
			continue
		}
		name := cell(row, "name")
		m := matchMember(name, members)
		if m == nil {
			if !seen[name] {
				seen[name] = true
				res.SkippedMembers = append(res.SkippedMembers, name)
			}
			res.Skipped++
			continue
		}
		e.MemberID, e.MemberName = m.ID, m.Name
		e.DailyDate = date.Format(model.DateLayout)
		e.SubmittedAt = s.submittedAt(date, cell(row, "time"), now)
		if h, err := strconv.ParseFloat(cell(row, "hours"), 64); err == nil {
			e.HoursYesterday = sanitizeHours(&h)
		}

		if err := s.daily.Save(ctx, &e); err != nil {
			return res, err
		}
		res.Imported++
	}

	logger.Ctx(ctx).Info("import.done", "workspace", workspace, "total", res.Total,
		"imported", res.Imported, "skipped", res.Skipped, "unmatched", len(res.SkippedMembers))
	return res, nil
}

func (s *ImportService) parseDate(v string) (time.Time, bool) {
	for _, layout := range importDateLayouts {
		if t, err := time.ParseInLocation(layout, v, s.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// submittedAt places the row on its report date. Rows without a time take
// the import moment.
func (s *ImportService) submittedAt(date time.Time, clock string, now time.Time) time.Time {
	if t, err := time.Parse("15:04", clock); err == nil {
		return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, s.loc)
	}
	return now
}

// matchMember prefers an exact display-name or username match, then a
// containment match.
func matchMember(name string, members []model.Member) *model.Member {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	for i, m := range members {
		if m.Name == name || m.Username == name {
			return &members[i]
		}
	}
	for i, m := range members {
		if m.Name != "" && (strings.Contains(m.Name, name) || strings.Contains(name, m.Name)) {
			return &members[i]
		}
	}
	return nil
}
