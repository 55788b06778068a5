package service

import (
	"context"
	"sync"

	"team-pulse/internal/model"

	"golang.org/x/sync/errgroup"
)

// sentimentMemo caches scores for one computation so the calculator and the
// risk assessor never pay twice for the same entry.
type sentimentMemo struct {
	scorer SentimentScorer
	mu     sync.Mutex
	scores map[int]float64
}

func newSentimentMemo(s SentimentScorer) *sentimentMemo {
	return &sentimentMemo{scorer: s, scores: map[int]float64{}}
}

func (m *sentimentMemo) score(ctx context.Context, e model.Entry) float64 {
	if e.ID != 0 {
		m.mu.Lock()
		v, ok := m.scores[e.ID]
		m.mu.Unlock()
		if ok {
			return v
		}
	}
	v := 0.0
	if e.SentimentEligible {
		v = clamp(m.scorer.ScoreSentiment(ctx, e.Text()), -1, 1)
	}
	if e.ID != 0 {
		m.mu.Lock()
		m.scores[e.ID] = v
		m.mu.Unlock()
	}
	return v
}

// scoreAll scores entries concurrently, keeping input order.
func (m *sentimentMemo) scoreAll(ctx context.Context, entries []model.Entry) []float64 {
	out := make([]float64, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, e := range entries {
		g.Go(func() error {
			out[i] = m.score(gctx, e)
			return nil
		})
	}
	g.Wait()
	return out
}

// mostRecent returns up to n entries with the latest dates, newest first.
// entries must be sorted by date ascending.
func mostRecent(entries []model.Entry, n int) []model.Entry {
	if n > len(entries) {
		n = len(entries)
	}
	out := make([]model.Entry, 0, n)
	for i := len(entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, entries[i])
	}
	return out
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
