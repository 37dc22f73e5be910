// Package parsing orchestrates text extraction from raw documents across
// up to two prioritised remote services plus a local fallback parser.
// Tiers are tried in order until one succeeds; every failed attempt is
// recorded as a warning surfaced to the caller even on overall success.
package parsing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/saga-labs/saga-core/internal/core/domain"
	"github.com/saga-labs/saga-core/internal/core/ports/driven"
	"github.com/saga-labs/saga-core/internal/core/services"
	"github.com/saga-labs/saga-core/internal/logger"
)

// State names the chain's position while working through the tiers.
type State string

const (
	StateNotStarted          State = "not_started"
	StateTryingPrimary       State = "trying_primary"
	StateTryingSecondary     State = "trying_secondary"
	StateTryingLocalFallback State = "trying_local_fallback"
	StateSucceeded           State = "succeeded"
	StateFailed              State = "failed"
)

// DefaultAttemptTimeout bounds each parsing tier.
const DefaultAttemptTimeout = 60 * time.Second

// Chain is the parsing fallback chain. Primary and secondary are remote
// parsing slots and may be nil when disabled; local is the in-process
// fallback and is always present.
type Chain struct {
	primary   driven.DocumentParser
	secondary driven.DocumentParser
	local     driven.DocumentParser
	timeout   time.Duration
}

// NewChain creates a parsing chain. Disabled remote tiers are passed as
// nil; the chain then skips directly to the next tier.
func NewChain(primary, secondary, local driven.DocumentParser) *Chain {
	return &Chain{
		primary:   primary,
		secondary: secondary,
		local:     local,
		timeout:   DefaultAttemptTimeout,
	}
}

// SetAttemptTimeout bounds each tier's parse call.
func (c *Chain) SetAttemptTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// tierState maps a tier to the state the chain enters when trying it.
var tierState = map[domain.ParseSource]State{
	domain.ParseSourcePrimary:   StateTryingPrimary,
	domain.ParseSourceSecondary: StateTryingSecondary,
	domain.ParseSourceLocal:     StateTryingLocalFallback,
}

// Parse runs the document through the enabled tiers in order. On success
// the result records the winning tier and the warnings collected from
// tiers that failed before it. When every tier fails the returned error
// wraps domain.ErrParsingFailed and the result still carries one warning
// per attempted tier.
func (c *Chain) Parse(ctx context.Context, data []byte, kind domain.DocumentKind) (*domain.ParseResult, error) {
	logger.Section("Parsing Chain")
	state := StateNotStarted

	type tier struct {
		source domain.ParseSource
		parser driven.DocumentParser
	}
	tiers := make([]tier, 0, 3)
	if c.primary != nil {
		tiers = append(tiers, tier{domain.ParseSourcePrimary, c.primary})
	}
	if c.secondary != nil {
		tiers = append(tiers, tier{domain.ParseSourceSecondary, c.secondary})
	}
	tiers = append(tiers, tier{domain.ParseSourceLocal, c.local})

	attempts := make([]services.Attempt[string], 0, len(tiers))
	for _, t := range tiers {
		t := t
		attempts = append(attempts, services.Attempt[string]{
			Name: string(t.source),
			Run: func(ctx context.Context) (string, error) {
				state = tierState[t.source]
				logger.Debug("Parsing chain: %s via %s", state, t.parser.Name())
				text, err := t.parser.Parse(ctx, data, kind)
				if err != nil {
					return "", err
				}
				if strings.TrimSpace(text) == "" {
					return "", fmt.Errorf("%s returned no text", t.parser.Name())
				}
				return text, nil
			},
		})
	}

	text, winner, failures, err := services.RunFallback(ctx, c.timeout, attempts)

	warnings := make([]domain.Warning, 0, len(failures))
	for _, f := range failures {
		warnings = append(warnings, domain.Warning{
			Kind:    domain.WarnParseAttempt,
			Source:  f.Name,
			Message: f.Err.Error(),
		})
	}

	if err != nil {
		state = StateFailed
		logger.Warn("Parsing chain: %s after %d attempts", state, len(failures))
		return &domain.ParseResult{Warnings: warnings},
			fmt.Errorf("%w: all %d tiers exhausted", domain.ErrParsingFailed, len(failures))
	}

	state = StateSucceeded
	logger.Info("Parsing chain: %s via %s (%d warnings)", state, winner, len(warnings))
	return &domain.ParseResult{
		Text:     text,
		Source:   domain.ParseSource(winner),
		Warnings: warnings,
	}, nil
}
