package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"team-pulse/internal/logger"
)

type SentimentScorer interface {
	// ScoreSentiment returns a value in [-1, 1]; 0 for empty text or when
	// the scorer is unavailable. It never fails.
	ScoreSentiment(ctx context.Context, text string) float64
}

type HourEstimator interface {
	EstimateHours(ctx context.Context, yesterday, today string) (*float64, *float64, error)
}

// AIService talks to the OpenAI-compatible chat endpoint of the LLM proxy.
type AIService struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewAIService(baseURL, apiKey, model string) *AIService {
	if model == "" {
		model = "qwen-plus"
	}
	return &AIService{baseURL: baseURL, apiKey: apiKey, model: model, client: &http.Client{}}
}

func (s *AIService) chat(ctx context.Context, system, user string) (string, error) {
	body := map[string]interface{}{
		"model":  s.model,
		"stream": false,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	}
	payload, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/llm-proxy/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("moi-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm call: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm status %d: %s", resp.StatusCode, data)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}
	return result.Choices[0].Message.Content, nil
}

// chatJSON asks for a JSON object and decodes the first {...} span of the
// reply into out.
func (s *AIService) chatJSON(ctx context.Context, system, user string, out interface{}) error {
	result, err := s.chat(ctx, system, user)
	if err != nil {
		return err
	}
	result = strings.TrimSpace(result)
	if i := strings.Index(result, "{"); i >= 0 {
		if j := strings.LastIndex(result, "}"); j > i {
			result = result[i : j+1]
		}
	}
	if err := json.Unmarshal([]byte(result), out); err != nil {
		return fmt.Errorf("parse llm result: %w (raw: %.200s)", err, result)
	}
	return nil
}

func (s *AIService) ScoreSentiment(ctx context.Context, text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	system := `Rate the overall sentiment of this daily status report from -1 (very negative, frustrated, stuck)
to 1 (very positive, energized). Return JSON: {"score": <number>}. Return only JSON.`

	var parsed struct {
		Score float64 `json:"score"`
	}
	if err := s.chatJSON(ctx, system, text, &parsed); err != nil {
		logger.Warn("sentiment.fallback", "err", err)
		return 0
	}
	return clamp(parsed.Score, -1, 1)
}

// EstimateHours asks for the effort behind each section. A section the
// model cannot estimate comes back nil.
func (s *AIService) EstimateHours(ctx context.Context, yesterday, today string) (*float64, *float64, error) {
	system := `Estimate how many working hours the "done" section and the "planned" section of a daily report represent.
Return JSON: {"done_hours": <number|null>, "planned_hours": <number|null>}. Use null when unclear. Return only JSON.`
	prompt := fmt.Sprintf("Done:\n%s\n\nPlanned:\n%s", yesterday, today)

	var parsed struct {
		Done    *float64 `json:"done_hours"`
		Planned *float64 `json:"planned_hours"`
	}
	if err := s.chatJSON(ctx, system, prompt, &parsed); err != nil {
		return nil, nil, fmt.Errorf("estimate hours: %w", err)
	}
	return sanitizeHours(parsed.Done), sanitizeHours(parsed.Planned), nil
}

func sanitizeHours(h *float64) *float64 {
	if h == nil || *h < 0 {
		return nil
	}
	v := clamp(*h, 0, 24)
	return &v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
