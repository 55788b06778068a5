package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"team-pulse/internal/logger"
	"team-pulse/internal/model"

	sdk "github.com/matrixorigin/moi-go-sdk"
)

const catalogTimeLayout = "2006-01-02 15:04:05"

// CatalogSync mirrors computed metrics and alerts into the data catalog so
// they can be queried in natural language. Mirroring is best effort: failures
// are logged and never reach the batch.
type CatalogSync struct {
	raw        *sdk.RawClient
	sdk        *sdk.SDKClient
	databaseID sdk.DatabaseID
	metricsID  sdk.TableID
	alertsID   sdk.TableID
}

func NewCatalogSync(raw *sdk.RawClient, databaseID, metricsTableID, alertsTableID int64) *CatalogSync {
	return &CatalogSync{
		raw:        raw,
		sdk:        sdk.NewSDKClient(raw),
		databaseID: sdk.DatabaseID(databaseID),
		metricsID:  sdk.TableID(metricsTableID),
		alertsID:   sdk.TableID(alertsTableID),
	}
}

var metricsColumns = []string{
	"member_id", "member_name", "workspace", "period_type", "period_start", "period_end",
	"consistency_score", "avg_tasks_per_day", "velocity_trend", "blocker_frequency",
	"avg_sentiment", "risk_level", "risk_score", "engagement_score", "overall_score",
	"team_average", "percentile", "computed_at",
}

var alertColumns = []string{
	"id", "workspace", "type", "member_id", "member_name", "severity", "title",
	"description", "status", "occurrence_count", "created_at", "last_occurred_at",
}

// PublishMetrics appends one batch of period records to the metrics table.
func (s *CatalogSync) PublishMetrics(ctx context.Context, records []model.MetricsRecord) {
	if s.metricsID == 0 || len(records) == 0 {
		return
	}
	var buf bytes.Buffer
	for _, r := range records {
		fmt.Fprintf(&buf, "%d,%s,%s,%s,%s,%s,%d,%.2f,%s,%d,%.2f,%s,%d,%d,%d,%.2f,%d,%s\n",
			r.MemberID, esc(r.MemberName), esc(r.Workspace), r.PeriodType, r.PeriodStart, r.PeriodEnd,
			r.ConsistencyScore, r.AvgTasksPerDay, r.VelocityTrend, r.BlockerFrequency,
			r.AvgSentiment, r.RiskLevel, r.RiskScore, r.EngagementScore, r.OverallScore,
			r.TeamAverage, r.Percentile, r.ComputedAt.Format(catalogTimeLayout))
	}
	name := fmt.Sprintf("metrics_%s_%s_%s.csv", records[0].Workspace, records[0].PeriodType, records[0].PeriodStart)
	s.importCSV(ctx, s.metricsID, buf.String(), name, columnMapping(metricsColumns))
}

// PublishAlerts appends the given alerts to the alerts table.
func (s *CatalogSync) PublishAlerts(ctx context.Context, alerts []model.AlertRecord) {
	if s.alertsID == 0 || len(alerts) == 0 {
		return
	}
	var buf bytes.Buffer
	for _, a := range alerts {
		fmt.Fprintf(&buf, "%d,%s,%s,%d,%s,%s,%s,%s,%s,%d,%s,%s\n",
			a.ID, esc(a.Workspace), a.Type, a.MemberID, esc(a.MemberName), a.Severity,
			esc(a.Title), esc(a.Description), a.Status, a.OccurrenceCount,
			a.CreatedAt.Format(catalogTimeLayout), a.LastOccurredAt.Format(catalogTimeLayout))
	}
	name := fmt.Sprintf("alerts_%s_%s.csv", alerts[0].Workspace, alerts[0].LastOccurredAt.Format("20060102150405"))
	s.importCSV(ctx, s.alertsID, buf.String(), name, columnMapping(alertColumns))
}

func columnMapping(cols []string) []sdk.FileAndTableColumnMapping {
	out := make([]sdk.FileAndTableColumnMapping, len(cols))
	for i, c := range cols {
		out[i] = sdk.FileAndTableColumnMapping{TableColumn: c, Column: c, ColNumInFile: int32(i + 1)}
	}
	return out
}

func (s *CatalogSync) importCSV(ctx context.Context, tableID sdk.TableID, csv, fileName string, mapping []sdk.FileAndTableColumnMapping) {
	log := logger.Ctx(ctx)
	resp, err := s.raw.UploadLocalFile(ctx, bytes.NewReader([]byte(csv)), fileName, []sdk.FileMeta{{Filename: fileName, Path: "/"}})
	if err != nil {
		log.Warn("catalog.upload_failed", "table", tableID, "err", err)
		return
	}
	if len(resp.ConnFileIds) == 0 {
		log.Warn("catalog.no_conn_file_ids", "table", tableID)
		return
	}

	_, err = s.sdk.ImportLocalFileToTable(ctx, &sdk.TableConfig{
		ConnFileIDs:      resp.ConnFileIds,
		NewTable:         false,
		DatabaseID:       s.databaseID,
		TableID:          tableID,
		IsColumnName:     false,
		RowStart:         1,
		Conflict:         1,
		ExistedTable:     mapping,
		ExistedTableOpts: sdk.ExistedTableOptions{Method: sdk.ExistedTableOptionAppend},
	})
	if err != nil {
		log.Warn("catalog.import_failed", "table", tableID, "file", fileName, "err", err)
		return
	}
	log.Info("catalog.synced", "table", tableID, "file", fileName)
}

// esc quotes a CSV field when needed.
func esc(s string) string {
	if strings.ContainsAny(s, ",\"\n\r") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
