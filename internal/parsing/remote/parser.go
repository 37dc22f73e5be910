// Package remote provides a document parser adapter for HTTP OCR/parsing
// services. The service receives the document as base64 and returns the
// extracted text.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/saga-labs/saga-core/internal/core/domain"
	"github.com/saga-labs/saga-core/internal/core/ports/driven"
)

// Ensure Parser implements the interface.
var _ driven.DocumentParser = (*Parser)(nil)

// Default request shaping for parsing services.
const (
	DefaultTimeout           = 120 * time.Second
	DefaultRequestsPerSecond = 2.0
	DefaultBurstSize         = 2
)

// Parser calls a remote OCR/parsing service configured by a ServiceSlot.
type Parser struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	limiter *rate.Limiter
}

// parseRequest is the request payload.
type parseRequest struct {
	Model string `json:"model,omitempty"`
	Kind  string `json:"kind"`
	Data  string `json:"data"`
}

// parseResponse is the response payload.
type parseResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// NewFromSlot creates a remote parser from a parser service slot.
func NewFromSlot(slot domain.ServiceSlot) (*Parser, error) {
	if slot.BaseURL == "" {
		return nil, fmt.Errorf("parser slot %s: base URL is required", slot.Name)
	}
	return &Parser{
		name:    slot.Name,
		baseURL: slot.BaseURL,
		apiKey:  slot.APIKey,
		model:   slot.Model,
		client:  &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), DefaultBurstSize),
	}, nil
}

// Name identifies the parser in logs and warnings.
func (p *Parser) Name() string {
	return p.name
}

// Parse sends the document to the service and returns the extracted text.
func (p *Parser) Parse(ctx context.Context, data []byte, kind domain.DocumentKind) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%s: rate limit wait: %w", p.name, err)
	}

	body, err := json.Marshal(parseRequest{
		Model: p.model,
		Kind:  string(kind),
		Data:  base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return "", fmt.Errorf("%s: encode request: %w", p.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: create request: %w", p.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: request failed: %w", p.name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: read response: %w", p.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: status %d: %s", p.name, resp.StatusCode, truncate(respBody, 200))
	}

	var parsed parseResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%s: decode response: %w", p.name, err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("%s: service error: %s", p.name, parsed.Error)
	}

	return parsed.Text, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
