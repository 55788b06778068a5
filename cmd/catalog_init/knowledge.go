package main

import (
	"context"

	"team-pulse/internal/logger"

	sdk "github.com/matrixorigin/moi-go-sdk"
)

var knowledge = []sdk.NL2SQLKnowledgeCreateRequest{
	{Type: "glossary", Key: "risk level", Value: []string{"team_metrics.risk_level: low, medium or high, derived from submission rate, blockers, sentiment and workload"}},
	{Type: "glossary", Key: "percentile", Value: []string{"team_metrics.percentile: rank of the member's overall score within the workspace for the period; 100 is the top"}},
	{Type: "glossary", Key: "active alert", Value: []string{"a team_alerts row with status = 'active'"}},

	{Type: "synonyms", Key: "who/person/teammate/engineer", Value: []string{"member display name"}, AssociateTables: []string{"team_metrics,member_name", "team_alerts,member_name"}},
	{Type: "synonyms", Key: "score/performance/rating", Value: []string{"overall performance score"}, AssociateTables: []string{"team_metrics,overall_score"}},
	{Type: "synonyms", Key: "mood/morale/sentiment", Value: []string{"average sentiment"}, AssociateTables: []string{"team_metrics,avg_sentiment"}},

	{Type: "logic", Key: "the latest week means the row with the greatest period_start for period_type = 'week'", Value: []string{"current period lookup"}},
	{Type: "logic", Key: "metrics rows are appended on every run; take the latest computed_at per member and period", Value: []string{"deduplicate mirrored metrics"}},

	{Type: "case_library", Key: "who is at high risk this week", Value: []string{"SELECT member_name, risk_score FROM team_metrics WHERE period_type = 'week' AND risk_level = 'high' AND period_start = (SELECT MAX(period_start) FROM team_metrics WHERE period_type = 'week')"}},
	{Type: "case_library", Key: "which critical alerts are open", Value: []string{"SELECT member_name, title, description FROM team_alerts WHERE status = 'active' AND severity = 'critical' ORDER BY last_occurred_at DESC"}},
}

func initKnowledge(ctx context.Context, client *sdk.RawClient) error {
	for _, k := range knowledge {
		resp, err := client.CreateKnowledge(ctx, &k)
		if err != nil {
			if isDuplicate(err) {
				logger.Info("knowledge.exists", "type", k.Type, "key", k.Key)
				continue
			}
			return err
		}
		logger.Info("knowledge.created", "type", k.Type, "key", k.Key, "id", resp.ID)
	}
	return nil
}
