package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/saga-labs/saga-core/internal/core/domain"
	"github.com/saga-labs/saga-core/internal/core/ports/driven"
	"github.com/saga-labs/saga-core/internal/core/ports/driving"
	"github.com/saga-labs/saga-core/internal/logger"
)

// Ensure Reranker implements the interface.
var _ driving.RerankStage = (*Reranker)(nil)

// RerankFactory builds a reranker client from a configured slot.
type RerankFactory func(slot domain.ServiceSlot) (driven.RerankService, error)

// Reranker re-orders retrieval candidates using zero, one or two external
// re-ranking services. With two active slots the per-service rank lists
// are mixed by exponential rank decay and the slots' configured weights.
type Reranker struct {
	factory RerankFactory
	decay   float64
	topN    int
	timeout time.Duration
}

// RerankerOption configures the rerank stage.
type RerankerOption func(*Reranker)

// WithDecay sets the exponential decay constant for rank mixing.
// Zero selects the default of len(candidates)/3, minimum 1.
func WithDecay(decay float64) RerankerOption {
	return func(r *Reranker) {
		if decay >= 0 {
			r.decay = decay
		}
	}
}

// WithTopN truncates the final ordering to n candidates. Zero keeps all.
func WithTopN(n int) RerankerOption {
	return func(r *Reranker) {
		if n >= 0 {
			r.topN = n
		}
	}
}

// WithRerankTimeout bounds each reranker service call.
func WithRerankTimeout(d time.Duration) RerankerOption {
	return func(r *Reranker) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewReranker creates a rerank stage that builds service clients from
// slots via the given factory.
func NewReranker(factory RerankFactory, opts ...RerankerOption) *Reranker {
	r := &Reranker{
		factory: factory,
		timeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// slotRanks holds one service's response: candidate index to 1-based rank.
type slotRanks struct {
	slot  domain.ServiceSlot
	ranks map[int]int
	err   error
}

// Rerank applies the active reranker slots to the candidates.
// Zero active slots pass the candidates through unchanged. Service
// failures degrade: two slots fall back to the survivor, one slot falls
// back to pass-through, always with a warning recorded.
func (r *Reranker) Rerank(
	ctx context.Context, query string, candidates []domain.RetrievalCandidate, slots []domain.ServiceSlot,
) (*domain.RerankResult, error) {
	logger.Section("Rerank")

	active := domain.ActiveSlots(slots, domain.ServiceReranker)
	if len(active) > 2 {
		active = active[:2]
	}
	logger.Debug("Candidates: %d, active reranker slots: %d", len(candidates), len(active))

	if len(active) == 0 || len(candidates) == 0 {
		return r.passThrough(candidates, nil), nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Chunk.Content
	}

	results := r.callSlots(ctx, query, texts, active)

	var ranked []slotRanks
	var warnings []domain.Warning
	for _, res := range results {
		if res.err != nil {
			logger.Warn("Reranker %s failed: %v", res.slot.Name, res.err)
			warnings = append(warnings, domain.Warning{
				Kind:    domain.WarnRerankDegraded,
				Source:  res.slot.Name,
				Message: res.err.Error(),
			})
			continue
		}
		ranked = append(ranked, res)
	}

	if len(ranked) == 0 {
		// Every service failed: pass through the fused retrieval order.
		return r.passThrough(candidates, warnings), nil
	}

	out := r.mix(candidates, ranked)
	if r.topN > 0 && len(out) > r.topN {
		out = out[:r.topN]
	}
	for i := range out {
		out[i].Rank = i + 1
	}

	logger.Info("Rerank: %d candidates ordered by %d service(s), %d warnings",
		len(out), len(ranked), len(warnings))
	return &domain.RerankResult{
		Candidates: out,
		Warnings:   warnings,
		Degraded:   len(warnings) > 0,
	}, nil
}

// callSlots queries every active slot concurrently with individual
// timeouts and collects the responses.
func (r *Reranker) callSlots(
	ctx context.Context, query string, texts []string, active []domain.ServiceSlot,
) []slotRanks {
	results := make([]slotRanks, len(active))

	var wg sync.WaitGroup
	for i, slot := range active {
		wg.Add(1)
		go func(i int, slot domain.ServiceSlot) {
			defer wg.Done()
			results[i] = r.callOne(ctx, query, texts, slot)
		}(i, slot)
	}
	wg.Wait()

	return results
}

// callOne builds the slot's client and requests a ranking.
func (r *Reranker) callOne(
	ctx context.Context, query string, texts []string, slot domain.ServiceSlot,
) slotRanks {
	out := slotRanks{slot: slot}

	service, err := r.factory(slot)
	if err != nil {
		out.err = fmt.Errorf("build reranker client: %w", err)
		return out
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	items, err := service.Rerank(callCtx, query, texts)
	if err != nil {
		out.err = err
		return out
	}

	ranks := make(map[int]int, len(items))
	for _, item := range items {
		if item.Index < 0 || item.Index >= len(texts) {
			continue
		}
		ranks[item.Index] = item.Rank
	}
	out.ranks = ranks
	return out
}

// mix computes the weighted positional score for every candidate.
// Each service contributes exp(-rank/decay) for candidates it ranked and
// 0 for the rest; slot weights are normalised to sum to 1. With a single
// surviving service this reduces to that service's ordering.
func (r *Reranker) mix(candidates []domain.RetrievalCandidate, ranked []slotRanks) []domain.RetrievalCandidate {
	decay := r.decay
	if decay <= 0 {
		decay = float64(len(candidates)) / 3
		if decay < 1 {
			decay = 1
		}
	}

	weights := make([]float64, len(ranked))
	total := 0.0
	for i, res := range ranked {
		weights[i] = res.slot.Weight
		total += res.slot.Weight
	}
	if total <= 0 {
		for i := range weights {
			weights[i] = 1.0 / float64(len(weights))
		}
	} else {
		for i := range weights {
			weights[i] /= total
		}
	}

	type scored struct {
		candidate domain.RetrievalCandidate
		mixed     float64
		best      float64
		original  int
	}

	out := make([]scored, len(candidates))
	for i, c := range candidates {
		mixed, best := 0.0, 0.0
		for s, res := range ranked {
			rank, ok := res.ranks[i]
			if !ok {
				continue
			}
			score := math.Exp(-float64(rank) / decay)
			mixed += weights[s] * score
			if score > best {
				best = score
			}
		}
		c.RerankScore = mixed
		out[i] = scored{candidate: c, mixed: mixed, best: best, original: i}
	}

	// Descending mixed score; ties broken by the higher single-service
	// score, then by the pre-rerank fused score.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].mixed != out[j].mixed {
			return out[i].mixed > out[j].mixed
		}
		if out[i].best != out[j].best {
			return out[i].best > out[j].best
		}
		return out[i].candidate.FusedScore > out[j].candidate.FusedScore
	})

	final := make([]domain.RetrievalCandidate, len(out))
	for i, s := range out {
		final[i] = s.candidate
	}
	return final
}

// passThrough keeps the fused retrieval order, re-assigning ranks and
// applying the top-n cut.
func (r *Reranker) passThrough(
	candidates []domain.RetrievalCandidate, warnings []domain.Warning,
) *domain.RerankResult {
	out := make([]domain.RetrievalCandidate, len(candidates))
	copy(out, candidates)

	if r.topN > 0 && len(out) > r.topN {
		out = out[:r.topN]
	}
	for i := range out {
		out[i].Rank = i + 1
	}

	return &domain.RerankResult{
		Candidates: out,
		Warnings:   warnings,
		Degraded:   len(warnings) > 0,
	}
}
