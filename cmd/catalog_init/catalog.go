package main

import (
	"context"
	"fmt"
	"strings"

	"team-pulse/internal/logger"

	sdk "github.com/matrixorigin/moi-go-sdk"
)

type catalogTable struct {
	name    string
	comment string
	columns []sdk.Column
}

// analyticsTables mirror the columns CatalogSync uploads, in file order.
var analyticsTables = []catalogTable{
	{"team_metrics", "Per-member period scores with team rank", []sdk.Column{
		{Name: "member_id", Type: "INT", Comment: "member id"},
		{Name: "member_name", Type: "VARCHAR(64)", Comment: "member display name"},
		{Name: "workspace", Type: "VARCHAR(64)", Comment: "team workspace"},
		{Name: "period_type", Type: "VARCHAR(16)", Comment: "week, month or quarter"},
		{Name: "period_start", Type: "DATE", Comment: "first day of the period"},
		{Name: "period_end", Type: "DATE", Comment: "last day of the period"},
		{Name: "consistency_score", Type: "INT", Comment: "submissions against expected, 0-100"},
		{Name: "avg_tasks_per_day", Type: "DECIMAL(6,2)", Comment: "average tasks per report"},
		{Name: "velocity_trend", Type: "VARCHAR(16)", Comment: "increasing, stable or decreasing"},
		{Name: "blocker_frequency", Type: "INT", Comment: "percent of reports with a blocker"},
		{Name: "avg_sentiment", Type: "DECIMAL(4,2)", Comment: "average sentiment, -1 to 1"},
		{Name: "risk_level", Type: "VARCHAR(16)", Comment: "low, medium or high"},
		{Name: "risk_score", Type: "INT", Comment: "risk points, 0-100"},
		{Name: "engagement_score", Type: "INT", Comment: "engagement, 0-100"},
		{Name: "overall_score", Type: "INT", Comment: "overall performance, 0-100"},
		{Name: "team_average", Type: "DECIMAL(6,2)", Comment: "team average overall score"},
		{Name: "percentile", Type: "INT", Comment: "rank within the team, 100 is best"},
		{Name: "computed_at", Type: "DATETIME", Comment: "computation time"},
	}},
	{"team_alerts", "Alerts raised by the health checks", []sdk.Column{
		{Name: "id", Type: "INT", IsPk: true, Comment: "alert id"},
		{Name: "workspace", Type: "VARCHAR(64)", Comment: "team workspace"},
		{Name: "type", Type: "VARCHAR(32)", Comment: "alert type"},
		{Name: "member_id", Type: "INT", Comment: "member id"},
		{Name: "member_name", Type: "VARCHAR(64)", Comment: "member display name"},
		{Name: "severity", Type: "VARCHAR(16)", Comment: "info, warning or critical"},
		{Name: "title", Type: "VARCHAR(128)", Comment: "short title"},
		{Name: "description", Type: "TEXT", Comment: "description with the triggering numbers"},
		{Name: "status", Type: "VARCHAR(16)", Comment: "active or dismissed"},
		{Name: "occurrence_count", Type: "INT", Comment: "times detected while active"},
		{Name: "created_at", Type: "DATETIME", Comment: "first detection"},
		{Name: "last_occurred_at", Type: "DATETIME", Comment: "latest detection"},
	}},
}

// initCatalog creates the database and tables and returns the ids to put
// in the catalog section of the config.
func initCatalog(ctx context.Context, client *sdk.RawClient, catalogID sdk.CatalogID, dbName string) (sdk.DatabaseID, map[string]sdk.TableID, error) {
	tableIDs := map[string]sdk.TableID{}
	var dbID sdk.DatabaseID
	dbResp, err := client.CreateDatabase(ctx, &sdk.DatabaseCreateRequest{
		CatalogID:    catalogID,
		DatabaseName: dbName,
		Comment:      "team pulse analytics",
	})
	switch {
	case err == nil:
		dbID = dbResp.DatabaseID
		logger.Info("catalog.database_created", "id", dbID)
	case isDuplicate(err):
		logger.Info("catalog.database_exists", "name", dbName)
		if dbID, err = discoverDatabaseID(ctx, client, catalogID, dbName); err != nil {
			return 0, nil, err
		}
	default:
		return 0, nil, fmt.Errorf("create database: %w", err)
	}

	for _, t := range analyticsTables {
		resp, err := client.CreateTable(ctx, &sdk.TableCreateRequest{
			DatabaseID: dbID,
			Name:       t.name,
			Columns:    t.columns,
			Comment:    t.comment,
		})
		if err != nil {
			if isDuplicate(err) {
				logger.Info("catalog.table_exists", "name", t.name)
				continue
			}
			return dbID, tableIDs, fmt.Errorf("create table %s: %w", t.name, err)
		}
		tableIDs[t.name] = resp.TableID
		logger.Info("catalog.table_created", "name", t.name, "id", resp.TableID)
	}
	return dbID, tableIDs, nil
}

func discoverDatabaseID(ctx context.Context, client *sdk.RawClient, catalogID sdk.CatalogID, dbName string) (sdk.DatabaseID, error) {
	resp, err := client.ListDatabases(ctx, &sdk.DatabaseListRequest{CatalogID: catalogID})
	if err != nil {
		return 0, fmt.Errorf("list databases: %w", err)
	}
	for _, db := range resp.List {
		if db.DatabaseName == dbName {
			logger.Info("catalog.database_discovered", "id", db.DatabaseID)
			return db.DatabaseID, nil
		}
	}
	return 0, fmt.Errorf("database %s not found in catalog %d", dbName, catalogID)
}

func isDuplicate(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "duplicate") || strings.Contains(s, "already exist") || strings.Contains(s, "conflict")
}
