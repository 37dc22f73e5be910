// Package httpapi provides a rerank service adapter for HTTP re-ranking
// APIs following the common query/documents request shape (Jina, Cohere,
// SiliconFlow and compatible endpoints).
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/saga-labs/saga-core/internal/core/domain"
	"github.com/saga-labs/saga-core/internal/core/ports/driven"
	"github.com/saga-labs/saga-core/internal/logger"
)

// Ensure Reranker implements the interface.
var _ driven.RerankService = (*Reranker)(nil)

// Default request shaping for rerank services.
const (
	DefaultTimeout           = 30 * time.Second
	DefaultRequestsPerSecond = 5.0
	DefaultBurstSize         = 5
)

// Reranker calls a remote re-ranking service configured by a ServiceSlot.
type Reranker struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	limiter *rate.Limiter
}

// rerankRequest is the API request format.
type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

// rerankResponse is the API response format.
type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
	Model string `json:"model,omitempty"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewFromSlot creates a rerank client from a reranker service slot.
func NewFromSlot(slot domain.ServiceSlot) (*Reranker, error) {
	if slot.BaseURL == "" {
		return nil, fmt.Errorf("reranker slot %s: base URL is required", slot.Name)
	}
	if slot.Model == "" {
		return nil, fmt.Errorf("reranker slot %s: model is required", slot.Name)
	}
	return &Reranker{
		name:    slot.Name,
		baseURL: slot.BaseURL,
		apiKey:  slot.APIKey,
		model:   slot.Model,
		client:  &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), DefaultBurstSize),
	}, nil
}

// Name identifies the service in logs and warnings.
func (r *Reranker) Name() string {
	return r.name
}

// Rerank submits the query and candidate texts and returns the service's
// ranking, best first. Candidates the service omits are left unranked.
func (r *Reranker) Rerank(ctx context.Context, query string, texts []string) ([]driven.RankedItem, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate limit wait: %w", r.name, err)
	}

	body, err := json.Marshal(rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: texts,
		TopN:      len(texts),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", r.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", r.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", r.name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", r.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %d", r.name, resp.StatusCode)
	}

	var parsed rerankResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", r.name, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%s: service error: %s", r.name, parsed.Error.Message)
	}

	logger.Debug("Reranker %s: %d results, %d tokens", r.name, len(parsed.Results), parsed.Usage.TotalTokens)

	// Rank by descending relevance.
	results := parsed.Results
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})

	items := make([]driven.RankedItem, 0, len(results))
	for rank, res := range results {
		items = append(items, driven.RankedItem{
			Index:     res.Index,
			Rank:      rank + 1,
			Relevance: res.RelevanceScore,
		})
	}
	return items, nil
}
