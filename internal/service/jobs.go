package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"team-pulse/internal/logger"
	"team-pulse/internal/model"

	"github.com/google/uuid"
)

const (
	JobMetrics      = "metrics"
	JobAlerts       = "alerts"
	JobAchievements = "achievements"
	JobAll          = "all"
)

func ValidJob(job string) bool {
	switch job {
	case JobMetrics, JobAlerts, JobAchievements, JobAll:
		return true
	}
	return false
}

// Jobs drives the batch passes for one workspace. The server's admin
// trigger and cmd/pulse share it.
type Jobs struct {
	team         *TeamService
	alerts       *AlertEngine
	achievements *AchievementEngine
}

func NewJobs(team *TeamService, alerts *AlertEngine, achievements *AchievementEngine) *Jobs {
	return &Jobs{team: team, alerts: alerts, achievements: achievements}
}

// Run executes job under a fresh run id and returns that id.
func (j *Jobs) Run(ctx context.Context, job, workspace string, period model.PeriodType) (string, error) {
	runID := uuid.NewString()
	if !ValidJob(job) {
		return runID, fmt.Errorf("unknown job %q", job)
	}
	if (job == JobMetrics || job == JobAll) && !period.Valid() {
		return runID, fmt.Errorf("unknown period type %q", period)
	}
	ctx = logger.WithRun(ctx, runID)
	log := logger.Ctx(ctx)
	log.Info("job.start", "job", job, "workspace", workspace, "period", period)
	start := time.Now()

	var errs []error
	if job == JobMetrics || job == JobAll {
		errs = append(errs, j.team.ComputeTeamMetrics(ctx, workspace, period))
	}
	if job == JobAlerts || job == JobAll {
		errs = append(errs, j.alerts.RunAlertChecks(ctx, workspace))
	}
	if job == JobAchievements || job == JobAll {
		_, err := j.achievements.CheckWorkspace(ctx, workspace)
		errs = append(errs, err)
	}
	err := errors.Join(errs...)

	if err != nil {
		log.Error("job.failed", "job", job, "workspace", workspace, "elapsed_ms", time.Since(start).Milliseconds(), "err", err)
		return runID, err
	}
	log.Info("job.done", "job", job, "workspace", workspace, "elapsed_ms", time.Since(start).Milliseconds())
	return runID, nil
}
