package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"team-pulse/internal/logger"
	"team-pulse/internal/model"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MetricsPublisher receives every freshly aggregated batch, e.g. to mirror
// it into the data catalog.
type MetricsPublisher interface {
	PublishMetrics(ctx context.Context, records []model.MetricsRecord)
}

// AggregateTeam fills TeamAverage and Percentile on every record and returns
// the team average. Records are ranked by overall score, highest first; the
// top record gets percentile 100.
func AggregateTeam(records []*model.MetricsRecord) float64 {
	n := len(records)
	if n == 0 {
		return 0
	}
	sum := 0
	for _, r := range records {
		sum += r.OverallScore
	}
	avg := round2(float64(sum) / float64(n))

	ranked := append([]*model.MetricsRecord(nil), records...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].OverallScore > ranked[j].OverallScore })
	for i, r := range ranked {
		r.TeamAverage = avg
		r.Percentile = int(math.Round(float64(n-i) / float64(n) * 100))
	}
	return avg
}

type TeamService struct {
	db        *gorm.DB
	calc      *MetricsCalculator
	roster    *RosterCache
	workers   int
	publisher MetricsPublisher
}

func NewTeamService(db *gorm.DB, calc *MetricsCalculator, roster *RosterCache, workers int) *TeamService {
	if workers <= 0 {
		workers = 4
	}
	return &TeamService{db: db, calc: calc, roster: roster, workers: workers}
}

func (s *TeamService) SetPublisher(p MetricsPublisher) { s.publisher = p }

// ComputeTeamMetrics recomputes the current period for every active member of
// the workspace, ranks the batch and stores it. A member whose computation
// fails is logged and left out of the batch.
func (s *TeamService) ComputeTeamMetrics(ctx context.Context, workspace string, period model.PeriodType) error {
	log := logger.Ctx(ctx)
	members, err := s.roster.ActiveMembers(ctx, workspace)
	if err != nil {
		return err
	}

	now := s.calc.clock.Now()
	var (
		mu      sync.Mutex
		records []*model.MetricsRecord
		failed  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, m := range members {
		g.Go(func() error {
			rec, err := s.calc.ComputeAt(gctx, m.ID, period, workspace, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				log.Error("metrics.member_failed", "workspace", workspace, "member_id", m.ID, "period", period, "err", err)
				return nil
			}
			if rec == nil {
				log.Debug("metrics.no_data", "workspace", workspace, "member_id", m.ID, "period", period)
				return nil
			}
			rec.MemberName = m.Name
			records = append(records, rec)
			return nil
		})
	}
	g.Wait()

	sort.Slice(records, func(i, j int) bool { return records[i].MemberID < records[j].MemberID })
	avg := AggregateTeam(records)

	if err := s.SaveMetrics(ctx, records); err != nil {
		return err
	}
	if s.publisher != nil && len(records) > 0 {
		out := make([]model.MetricsRecord, len(records))
		for i, r := range records {
			out[i] = *r
		}
		s.publisher.PublishMetrics(ctx, out)
	}
	log.Info("metrics.team_done", "workspace", workspace, "period", period,
		"members", len(members), "records", len(records), "failed", failed, "team_average", avg)
	return nil
}

// SaveMetrics upserts records on (member, period type, period start).
func (s *TeamService) SaveMetrics(ctx context.Context, records []*model.MetricsRecord) error {
	for _, r := range records {
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "member_id"}, {Name: "period_type"}, {Name: "period_start"}},
			UpdateAll: true,
		}).Create(r).Error
		if err != nil {
			return fmt.Errorf("upsert metrics for member %d: %w", r.MemberID, err)
		}
	}
	return nil
}

// ListMetrics returns a stored period batch ordered by percentile.
func (s *TeamService) ListMetrics(ctx context.Context, workspace string, period model.PeriodType, start string) ([]model.MetricsRecord, error) {
	var out []model.MetricsRecord
	err := s.db.WithContext(ctx).
		Where("workspace = ? AND period_type = ? AND period_start = ?", workspace, period, start).
		Order("percentile DESC, member_id").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	return out, nil
}

// CurrentPeriod exposes the calculator's window for the given type.
func (s *TeamService) CurrentPeriod(period model.PeriodType) (Period, error) {
	return PeriodFor(period, s.calc.clock.Now(), s.calc.loc, s.calc.weekStart)
}
