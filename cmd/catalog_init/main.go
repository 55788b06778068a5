package main

import (
	"context"
	"flag"
	"log"

	"team-pulse/internal/config"
	"team-pulse/internal/logger"

	sdk "github.com/matrixorigin/moi-go-sdk"
)

func main() {
	configFile := flag.String("config", "etc/config-dev.yaml", "config file")
	flag.Parse()

	cfg := config.Load(*configFile)
	defer logger.Init(cfg.Log)()

	client, err := cfg.NewRawClient()
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()
	catalogID := sdk.CatalogID(cfg.Catalog.CatalogID)
	if catalogID == 0 {
		catalogID = 1
	}

	dbID, tables, err := initCatalog(ctx, client, catalogID, cfg.Database.Name)
	if err != nil {
		log.Fatal("catalog init failed: ", err)
	}
	if err := initKnowledge(ctx, client); err != nil {
		log.Fatal("knowledge init failed: ", err)
	}

	logger.Info("catalog_init.done", "database_id", dbID,
		"metrics_table_id", tables["team_metrics"], "alerts_table_id", tables["team_alerts"])
}
