// Package app wires the services shared by the HTTP server and the batch
// driver.
package app

import (
	"time"

	"team-pulse/internal/config"
	"team-pulse/internal/logger"
	"team-pulse/internal/model"
	"team-pulse/internal/service"

	"gorm.io/gorm"
)

type App struct {
	Clock    service.Clock
	Location *time.Location

	Auth         *service.AuthService
	Daily        *service.DailyService
	AI           *service.AIService
	Roster       *service.RosterCache
	Metrics      *service.MetricsCalculator
	Team         *service.TeamService
	Alerts       *service.AlertEngine
	Achievements *service.AchievementEngine
	Imports      *service.ImportService
	Jobs         *service.Jobs
}

// New builds the service graph. Catalog mirroring is attached only when it
// is enabled and the SDK client can be created.
func New(cfg *config.Config, db *gorm.DB, clock service.Clock) *App {
	loc := cfg.Location()
	a := &App{Clock: clock, Location: loc}

	a.Auth = service.NewAuthService(db)
	a.Daily = service.NewDailyService(db)
	a.AI = service.NewAIService(cfg.MOI.BaseURL, cfg.MOI.APIKey, cfg.MOI.Model)
	a.Roster = service.NewRosterCache(db, clock, cfg.RosterTTL())

	keywords := service.FrequencyKeywords{}
	a.Metrics = service.NewMetricsCalculator(a.Daily, service.BulletTaskExtractor{}, a.AI, clock, service.MetricsOptions{
		Location:        loc,
		WeekStart:       cfg.WeekStart(),
		SentimentSample: cfg.Analytics.SentimentSample,
		RiskWindowDays:  cfg.Analytics.RiskWindowDays,
		Keywords:        keywords,
	})
	a.Team = service.NewTeamService(db, a.Metrics, a.Roster, cfg.Analytics.Workers)
	a.Alerts = service.NewAlertEngine(db, clock, service.DefaultDetectors(service.DetectorDeps{
		Entries:   a.Daily,
		Sentiment: a.AI,
		Keywords:  keywords,
		Roster:    a.Roster,
		Location:  loc,
	})...)
	a.Achievements = service.NewAchievementEngine(db, a.Daily, service.BulletTaskExtractor{}, a.Roster, clock, loc, cfg.Analytics.Workers)
	a.Imports = service.NewImportService(db, a.Daily, loc)
	a.Jobs = service.NewJobs(a.Team, a.Alerts, a.Achievements)

	if cfg.Catalog.Enabled {
		raw, err := cfg.NewRawClient()
		if err != nil {
			logger.Warn("catalog.client_init_failed", "err", err)
		} else {
			mirror := service.NewCatalogSync(raw, cfg.Catalog.DatabaseID, cfg.Catalog.MetricsTableID, cfg.Catalog.AlertsTableID)
			a.Team.SetPublisher(mirror)
			a.Alerts.SetPublisher(mirror)
			logger.Info("catalog.sync_enabled", "database_id", cfg.Catalog.DatabaseID)
		}
	}
	return a
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(model.All()...)
}
