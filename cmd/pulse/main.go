// Command pulse runs one batch pass (metrics, alerts, achievements or all)
// and exits. Schedule it with cron or any external scheduler.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"team-pulse/internal/app"
	"team-pulse/internal/config"
	"team-pulse/internal/logger"
	"team-pulse/internal/model"
	"team-pulse/internal/service"
)

func main() {
	configFile := flag.String("config", "", "config file path")
	job := flag.String("job", service.JobAll, "metrics | alerts | achievements | all")
	workspace := flag.String("workspace", "", "workspace to process; defaults to analytics.workspaces")
	period := flag.String("period", string(model.PeriodWeek), "week | month | quarter")
	flag.Parse()

	cfg := config.Load(*configFile)
	closeLog := logger.Init(cfg.Log)
	os.Exit(run(cfg, *job, *workspace, model.PeriodType(*period), closeLog))
}

func run(cfg *config.Config, job, workspace string, period model.PeriodType, closeLog func()) int {
	defer closeLog()

	workspaces := cfg.Analytics.Workspaces
	if workspace != "" {
		workspaces = []string{workspace}
	}
	if len(workspaces) == 0 {
		logger.Error("pulse.no_workspace", "hint", "pass -workspace or set analytics.workspaces")
		return 2
	}

	db, err := cfg.OpenGormDB()
	if err != nil {
		logger.Error("db.connect_failed", "err", err)
		return 1
	}
	if err := app.Migrate(db); err != nil {
		logger.Error("db.migrate_failed", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg, db, service.SystemClock{})
	failed := 0
	for _, ws := range workspaces {
		if _, err := a.Jobs.Run(ctx, job, ws, period); err != nil {
			failed++
		}
	}
	if failed > 0 {
		logger.Error("pulse.finished_with_errors", "failed", failed, "workspaces", len(workspaces))
		return 1
	}
	return 0
}
