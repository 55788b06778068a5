package main

import (
	"flag"
	"os"

	"team-pulse/internal/app"
	"team-pulse/internal/config"
	"team-pulse/internal/handler"
	"team-pulse/internal/logger"
	"team-pulse/internal/middleware"
	"team-pulse/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	configFile := flag.String("config", "", "config file path (e.g. etc/config-dev.yaml)")
	flag.Parse()

	cfg := config.Load(*configFile)
	defer logger.Init(cfg.Log)()

	db, err := cfg.OpenGormDB()
	if err != nil {
		logger.Error("db.connect_failed", "err", err)
		os.Exit(1)
	}
	if err := app.Migrate(db); err != nil {
		logger.Error("db.migrate_failed", "err", err)
		os.Exit(1)
	}

	a := app.New(cfg, db, service.SystemClock{})
	signer := middleware.NewSigner(cfg.Auth.JWTSecret, cfg.TokenTTL())

	authH := handler.NewAuthHandler(a.Auth, signer)
	entryH := handler.NewEntryHandler(a.Daily, a.Auth, a.AI, a.Achievements, a.Clock, a.Location)
	dashH := handler.NewDashboardHandler(a.Roster, a.Metrics, a.Team, a.Alerts, a.Achievements, a.Jobs)
	importH := handler.NewImportHandler(a.Imports, a.Clock, a.Location)

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-New-Token"},
		AllowCredentials: true,
	}))

	r.POST("/api/login", authH.Login)
	api := r.Group("/api", signer.JWTAuth())
	api.POST("/entries", entryH.Submit)
	api.GET("/entries", entryH.List)
	api.GET("/members/:id/metrics", dashH.MemberMetrics)
	api.GET("/members/:id/risk", dashH.MemberRisk)
	api.GET("/members/:id/achievements", dashH.MemberAchievements)
	api.GET("/metrics", dashH.TeamMetrics)
	api.GET("/alerts", dashH.Alerts)

	admin := api.Group("/admin", middleware.AdminOnly())
	admin.POST("/jobs/:job", dashH.RunJob)
	admin.POST("/import", importH.Upload)

	logger.Info("server.starting", "addr", cfg.Addr())
	if err := r.Run(cfg.Addr()); err != nil {
		logger.Error("server.failed", "err", err)
	}
}
