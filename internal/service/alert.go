package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"team-pulse/internal/logger"
	"team-pulse/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	AlertDecliningPerformance = "declining_performance"
	AlertNoRecentSubmissions  = "no_recent_submissions"
	AlertRepeatedBlockers     = "repeated_blockers"
	AlertSentimentRisk        = "sentiment_risk"
	AlertOverwork             = "overwork"
	AlertUnderutilization     = "underutilization"

	AlertDedupWindow = 7 * 24 * time.Hour
	AlertRetention   = 30 * 24 * time.Hour

	ExpiredResolutionNote = "Automatically dismissed: retention window elapsed"
)

// Detector scans a bounded recent window of a workspace and reports the
// alerts it would raise. Detectors never write; the engine owns persistence.
type Detector interface {
	Name() string
	Types() []string
	Detect(ctx context.Context, workspace string, now time.Time) ([]model.AlertRecord, error)
}

// AlertPublisher receives the alerts created or bumped by one run.
type AlertPublisher interface {
	PublishAlerts(ctx context.Context, alerts []model.AlertRecord)
}

type AlertEngine struct {
	db        *gorm.DB
	clock     Clock
	detectors []Detector
	publisher AlertPublisher
}

func NewAlertEngine(db *gorm.DB, clock Clock, detectors ...Detector) *AlertEngine {
	return &AlertEngine{db: db, clock: clock, detectors: detectors}
}

func (e *AlertEngine) SetPublisher(p AlertPublisher) { e.publisher = p }

// RunAlertChecks runs every detector, then the expiry sweep. A failing
// detector is logged and the remaining ones still run.
func (e *AlertEngine) RunAlertChecks(ctx context.Context, workspace string) error {
	now := e.clock.Now()
	log := logger.Ctx(ctx)
	var touched []model.AlertRecord
	for _, d := range e.detectors {
		touched = append(touched, e.runDetector(ctx, d, workspace, now)...)
	}
	n, err := e.ExpireAlerts(ctx, now)
	if err != nil {
		return err
	}
	if e.publisher != nil && len(touched) > 0 {
		e.publisher.PublishAlerts(ctx, touched)
	}
	log.Info("alert.checks_done", "workspace", workspace, "detectors", len(e.detectors), "alerts", len(touched), "expired", n)
	return nil
}

func (e *AlertEngine) runDetector(ctx context.Context, d Detector, workspace string, now time.Time) (touched []model.AlertRecord) {
	log := logger.Ctx(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error("alert.detector_panic", "detector", d.Name(), "workspace", workspace, "panic", r)
		}
	}()

	found, err := d.Detect(ctx, workspace, now)
	if err != nil {
		log.Error("alert.detector_failed", "detector", d.Name(), "workspace", workspace, "err", err)
		return nil
	}

	fired := map[string]bool{}
	for _, a := range found {
		a.Workspace = workspace
		saved, created, err := e.UpsertAlert(ctx, a, now)
		if err != nil {
			log.Error("alert.upsert_failed", "detector", d.Name(), "type", a.Type, "member_id", a.MemberID, "err", err)
			continue
		}
		fired[alertKey(a.Type, a.MemberID)] = true
		touched = append(touched, *saved)
		if created {
			log.Info("alert.created", "id", saved.ID, "type", saved.Type, "severity", saved.Severity, "member_id", saved.MemberID)
		} else {
			log.Info("alert.recurred", "id", saved.ID, "type", saved.Type, "member_id", saved.MemberID, "occurrences", saved.OccurrenceCount)
		}
	}
	e.logStillActive(ctx, d, workspace, fired)
	return touched
}

// logStillActive reports active alerts whose condition did not fire this run.
// They stay active until they expire: there is no "resolved" transition.
func (e *AlertEngine) logStillActive(ctx context.Context, d Detector, workspace string, fired map[string]bool) {
	var active []model.AlertRecord
	err := e.db.WithContext(ctx).
		Where("workspace = ? AND type IN ? AND status = ?", workspace, d.Types(), model.AlertActive).
		Find(&active).Error
	if err != nil {
		logger.Ctx(ctx).Warn("alert.active_lookup_failed", "detector", d.Name(), "workspace", workspace, "err", err)
		return
	}
	for _, a := range active {
		if !fired[alertKey(a.Type, a.MemberID)] {
			logger.Ctx(ctx).Debug("alert.condition_cleared_left_active", "id", a.ID, "type", a.Type, "member_id", a.MemberID, "expires_at", a.ExpiresAt)
		}
	}
}

// UpsertAlert records one detection. An active alert of the same type for
// the same member created within the dedup window is bumped in place;
// otherwise a new alert is created.
func (e *AlertEngine) UpsertAlert(ctx context.Context, a model.AlertRecord, now time.Time) (*model.AlertRecord, bool, error) {
	var out model.AlertRecord
	created := false
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.AlertRecord
		err := dedupLookup(tx, a, now).First(&existing).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			a.ID = 0
			a.Status = model.AlertActive
			a.OccurrenceCount = 1
			a.Recurring = false
			a.Priority = a.Severity.Priority()
			a.RelatedEntryIDs = unionInts(nil, a.RelatedEntryIDs)
			a.CreatedAt = now
			a.LastOccurredAt = now
			a.ExpiresAt = now.Add(AlertRetention)
			if err := tx.Create(&a).Error; err != nil {
				return fmt.Errorf("insert alert: %w", err)
			}
			out, created = a, true
			return nil
		}
		if err != nil {
			return fmt.Errorf("find active alert: %w", err)
		}

		err = tx.Model(&existing).Updates(map[string]interface{}{
			"occurrence_count":  gorm.Expr("occurrence_count + ?", 1),
			"recurring":         existing.OccurrenceCount+1 >= 2,
			"last_occurred_at":  now,
			"related_entry_ids": datatypes.JSONSlice[int](unionInts(existing.RelatedEntryIDs, a.RelatedEntryIDs)),
			"description":       a.Description,
			"current_value":     a.CurrentValue,
		}).Error
		if err != nil {
			return fmt.Errorf("bump alert %d: %w", existing.ID, err)
		}
		return tx.First(&out, existing.ID).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &out, created, nil
}

// dedupLookup selects the active alert a would bump. The row (or the gap
// where it would go) stays locked until the transaction ends, so overlapping
// runs cannot both insert.
func dedupLookup(tx *gorm.DB, a model.AlertRecord, now time.Time) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("workspace = ? AND type = ? AND member_id = ? AND status = ? AND created_at >= ?",
			a.Workspace, a.Type, a.MemberID, model.AlertActive, now.Add(-AlertDedupWindow)).
		Order("created_at DESC")
}

// ExpireAlerts dismisses every active alert whose expiry has passed.
func (e *AlertEngine) ExpireAlerts(ctx context.Context, now time.Time) (int64, error) {
	res := e.db.WithContext(ctx).Model(&model.AlertRecord{}).
		Where("status = ? AND expires_at <= ?", model.AlertActive, now).
		Updates(map[string]interface{}{
			"status":          model.AlertDismissed,
			"dismissed_at":    now,
			"resolution_note": ExpiredResolutionNote,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("expire alerts: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ListAlerts returns workspace alerts, most urgent first. An empty status
// lists every alert.
func (e *AlertEngine) ListAlerts(ctx context.Context, workspace, status string) ([]model.AlertRecord, error) {
	q := e.db.WithContext(ctx).Where("workspace = ?", workspace)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []model.AlertRecord
	if err := q.Order("priority DESC, last_occurred_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	return out, nil
}

func alertKey(typ string, memberID int) string { return fmt.Sprintf("%s/%d", typ, memberID) }

func unionInts(a, b []int) []int {
	seen := map[int]bool{}
	out := []int{}
	for _, s := range [][]int{a, b} {
		for _, v := range s {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sort.Ints(out)
	return out
}
