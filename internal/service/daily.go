package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"team-pulse/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidEntry marks a submission rejected before it reaches the store.
var ErrInvalidEntry = errors.New("invalid entry")

// EntryStore is the read side of the daily entries the analytics consume.
type EntryStore interface {
	ListByMember(ctx context.Context, memberID int, from, to string) ([]model.Entry, error)
	ListByWorkspace(ctx context.Context, workspace, from, to string) ([]model.Entry, error)
	SubmissionDates(ctx context.Context, memberID int, from string) ([]string, error)
	JoinedAt(ctx context.Context, memberID int) (time.Time, error)
}

type DailyService struct {
	db *gorm.DB
}

func NewDailyService(db *gorm.DB) *DailyService { return &DailyService{db: db} }

// Save writes one entry, replacing the member's report for the same date.
func (s *DailyService) Save(ctx context.Context, e *model.Entry) error {
	if e.DailyDate == "" {
		e.DailyDate = e.SubmittedAt.Format(model.DateLayout)
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "member_id"}, {Name: "daily_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"yesterday", "today", "blockers", "notes",
			"hours_yesterday", "hours_today", "sentiment_eligible",
			"source", "submitted_at", "updated_at",
		}),
	}).Create(e).Error
	if err != nil {
		return fmt.Errorf("upsert entry: %w", err)
	}
	return nil
}

// Submit builds an entry from a member's form and saves it. Hour estimates
// are optional.
func (s *DailyService) Submit(ctx context.Context, m model.Member, req model.SubmitEntryRequest, hoursY, hoursT *float64, now time.Time) (*model.Entry, error) {
	date := strings.TrimSpace(req.Date)
	if date == "" {
		date = now.Format(model.DateLayout)
	} else if _, err := time.Parse(model.DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: date %q", ErrInvalidEntry, req.Date)
	}
	if strings.TrimSpace(req.Yesterday) == "" && strings.TrimSpace(req.Today) == "" {
		return nil, fmt.Errorf("%w: report is empty", ErrInvalidEntry)
	}

	e := &model.Entry{
		MemberID:          m.ID,
		Workspace:         m.Workspace,
		MemberName:        m.Name,
		DailyDate:         date,
		Yesterday:         req.Yesterday,
		Today:             req.Today,
		Blockers:          req.Blockers,
		Notes:             req.Notes,
		HoursYesterday:    hoursY,
		HoursToday:        hoursT,
		SentimentEligible: true,
		Source:            "web",
		SubmittedAt:       now,
	}
	if err := s.Save(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *DailyService) ListByMember(ctx context.Context, memberID int, from, to string) ([]model.Entry, error) {
	var entries []model.Entry
	err := s.db.WithContext(ctx).
		Where("member_id = ? AND daily_date >= ? AND daily_date <= ?", memberID, from, to).
		Order("daily_date").Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("query member entries: %w", err)
	}
	return entries, nil
}

func (s *DailyService) ListByWorkspace(ctx context.Context, workspace, from, to string) ([]model.Entry, error) {
	var entries []model.Entry
	err := s.db.WithContext(ctx).
		Where("workspace = ? AND daily_date >= ? AND daily_date <= ?", workspace, from, to).
		Order("member_id, daily_date").Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("query workspace entries: %w", err)
	}
	return entries, nil
}

// SubmissionDates returns the distinct report dates since from, newest first.
func (s *DailyService) SubmissionDates(ctx context.Context, memberID int, from string) ([]string, error) {
	var dates []string
	err := s.db.WithContext(ctx).Model(&model.Entry{}).
		Where("member_id = ? AND daily_date >= ?", memberID, from).
		Distinct("daily_date").Order("daily_date DESC").Pluck("daily_date", &dates).Error
	if err != nil {
		return nil, fmt.Errorf("query submission dates: %w", err)
	}
	return dates, nil
}

// JoinedAt returns when the member row was created, or the zero time for an
// unknown member.
func (s *DailyService) JoinedAt(ctx context.Context, memberID int) (time.Time, error) {
	var m model.Member
	err := s.db.WithContext(ctx).Select("id", "created_at").First(&m, memberID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("query member %d: %w", memberID, err)
	}
	return m.CreatedAt, nil
}

// CountSubmitted counts workspace reports filed on date.
func (s *DailyService) CountSubmitted(ctx context.Context, workspace, date string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.Entry{}).
		Where("workspace = ? AND daily_date = ?", workspace, date).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return n, nil
}
