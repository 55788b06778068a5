package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func llmServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/llm-proxy/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("moi-key"))
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{{"message": map[string]string{"content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScoreSentiment(t *testing.T) {
	srv := llmServer(t, http.StatusOK, "Sure: {\"score\": -0.7}")
	ai := NewAIService(srv.URL, "test-key", "")
	assert.Equal(t, -0.7, ai.ScoreSentiment(context.Background(), "everything is on fire"))
	assert.Equal(t, 0.0, ai.ScoreSentiment(context.Background(), "  "))
}

func TestScoreSentimentClampsAndFallsBack(t *testing.T) {
	srv := llmServer(t, http.StatusOK, `{"score": 4}`)
	assert.Equal(t, 1.0, NewAIService(srv.URL, "test-key", "").ScoreSentiment(context.Background(), "great"))

	down := llmServer(t, http.StatusBadGateway, "")
	assert.Equal(t, 0.0, NewAIService(down.URL, "test-key", "").ScoreSentiment(context.Background(), "great"))
}

func TestEstimateHours(t *testing.T) {
	srv := llmServer(t, http.StatusOK, `{"done_hours": 30, "planned_hours": null}`)
	done, planned, err := NewAIService(srv.URL, "test-key", "").EstimateHours(context.Background(), "- a", "- b")
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.Equal(t, 24.0, *done)
	assert.Nil(t, planned)

	bad := llmServer(t, http.StatusOK, "no json here")
	_, _, err = NewAIService(bad.URL, "test-key", "").EstimateHours(context.Background(), "- a", "- b")
	assert.Error(t, err)
}
