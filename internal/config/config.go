// Package config loads and validates the TOML configuration file that
// declares service slots and retrieval tuning parameters.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/saga-labs/saga-core/internal/core/domain"
)

// Default tuning values applied when the file omits a field.
const (
	DefaultAlpha          = 0.5
	DefaultChunkSize      = 1000
	DefaultOverlapRatio   = 0.15
	DefaultTopK           = 10
	DefaultMinSimilarity  = 0.0
	DefaultRequestTimeout = 30
)

// Slot declares one external service binding in the config file.
type Slot struct {
	Name     string  `toml:"name"`
	Enabled  bool    `toml:"enabled"`
	Priority int     `toml:"priority"`
	Weight   float64 `toml:"weight"`
	Provider string  `toml:"provider"`
	Model    string  `toml:"model"`
	BaseURL  string  `toml:"base_url"`
	APIKey   string  `toml:"api_key"`
}

// Retrieval groups the hybrid retrieval tuning parameters.
type Retrieval struct {
	// Alpha weights the vector signal in score fusion, in [0, 1].
	Alpha float64 `toml:"alpha"`

	// TopK is the default number of results returned per query.
	TopK int `toml:"top_k"`

	// MinSimilarity drops vector hits below this cosine similarity,
	// mapped to [0, 1].
	MinSimilarity float64 `toml:"min_similarity"`

	// RerankDecay is the rank decay constant for dual rerank mixing.
	// Zero means one third of the candidate count.
	RerankDecay float64 `toml:"rerank_decay"`

	// RerankTopN truncates reranked results. Zero keeps all.
	RerankTopN int `toml:"rerank_top_n"`

	// TimeoutSeconds bounds each external retrieval call.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Chunking groups the document splitting parameters.
type Chunking struct {
	// TargetSize is the chunk size ceiling in bytes.
	TargetSize int `toml:"target_size"`

	// OverlapRatio is the desired overlap as a fraction of target size.
	OverlapRatio float64 `toml:"overlap_ratio"`
}

// Config is the full parsed configuration.
type Config struct {
	DataDir   string    `toml:"data_dir"`
	Retrieval Retrieval `toml:"retrieval"`
	Chunking  Chunking  `toml:"chunking"`

	Embedding []Slot `toml:"embedding"`
	Reranker  []Slot `toml:"reranker"`
	Parser    []Slot `toml:"parser"`
}

// Store loads the config file and serves snapshots of it. Reload swaps
// the snapshot atomically so readers never see a half-applied file.
type Store struct {
	mu       sync.RWMutex
	filePath string
	current  Config
}

// NewStore loads configuration from configDir/config.toml. A missing
// file yields defaults. If configDir is empty, ~/.saga is used.
func NewStore(configDir string) (*Store, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		configDir = filepath.Join(home, ".saga")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	s := &Store{
		filePath: filepath.Join(configDir, "config.toml"),
	}

	if err := s.Reload(); err != nil {
		return nil, err
	}

	return s, nil
}

// Path returns the configuration file path.
func (s *Store) Path() string {
	return s.filePath
}

// Current returns the active configuration snapshot.
func (s *Store) Current() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Reload re-reads and re-validates the file. On any error the previous
// snapshot stays active.
func (s *Store) Reload() error {
	cfg := defaults()

	data, err := os.ReadFile(s.filePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = cfg
	s.mu.Unlock()
	return nil
}

// defaults returns a config with every tuning field at its default.
func defaults() Config {
	return Config{
		Retrieval: Retrieval{
			Alpha:          DefaultAlpha,
			TopK:           DefaultTopK,
			MinSimilarity:  DefaultMinSimilarity,
			TimeoutSeconds: DefaultRequestTimeout,
		},
		Chunking: Chunking{
			TargetSize:   DefaultChunkSize,
			OverlapRatio: DefaultOverlapRatio,
		},
	}
}

// applyDefaults fills zero-valued tuning fields after parsing, so a
// partially written file still behaves sensibly.
func applyDefaults(cfg *Config) {
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = DefaultTopK
	}
	if cfg.Retrieval.TimeoutSeconds <= 0 {
		cfg.Retrieval.TimeoutSeconds = DefaultRequestTimeout
	}
	if cfg.Chunking.TargetSize <= 0 {
		cfg.Chunking.TargetSize = DefaultChunkSize
	}
	if cfg.Chunking.OverlapRatio <= 0 {
		cfg.Chunking.OverlapRatio = DefaultOverlapRatio
	}
}

// Validate checks constraints that would otherwise surface as confusing
// runtime behavior.
func Validate(cfg Config) error {
	if cfg.Retrieval.Alpha < 0 || cfg.Retrieval.Alpha > 1 {
		return fmt.Errorf("config: retrieval.alpha must be in [0, 1], got %g", cfg.Retrieval.Alpha)
	}
	if cfg.Chunking.OverlapRatio < 0 || cfg.Chunking.OverlapRatio >= 1 {
		return fmt.Errorf("config: chunking.overlap_ratio must be in [0, 1), got %g", cfg.Chunking.OverlapRatio)
	}

	active := 0
	for _, slot := range cfg.Embedding {
		if slot.Enabled {
			active++
		}
	}
	if active > 1 {
		return fmt.Errorf("config: at most one embedding slot may be enabled, got %d", active)
	}

	for _, slot := range append(append([]Slot{}, cfg.Reranker...), cfg.Parser...) {
		if slot.Enabled && slot.Weight < 0 {
			return fmt.Errorf("config: slot %s: weight must be non-negative", slot.Name)
		}
	}

	return nil
}

// Slots converts the configured slot lists to domain service slots.
func (c Config) Slots() []domain.ServiceSlot {
	var out []domain.ServiceSlot
	out = append(out, toServiceSlots(c.Embedding, domain.ServiceEmbedding)...)
	out = append(out, toServiceSlots(c.Reranker, domain.ServiceReranker)...)
	out = append(out, toServiceSlots(c.Parser, domain.ServiceParser)...)
	return out
}

// ActiveEmbedding returns the enabled embedding slot, if any.
func (c Config) ActiveEmbedding() (domain.ServiceSlot, bool) {
	active := domain.ActiveSlots(c.Slots(), domain.ServiceEmbedding)
	if len(active) == 0 {
		return domain.ServiceSlot{}, false
	}
	return active[0], true
}

func toServiceSlots(slots []Slot, t domain.ServiceType) []domain.ServiceSlot {
	out := make([]domain.ServiceSlot, 0, len(slots))
	for _, s := range slots {
		out = append(out, domain.ServiceSlot{
			Type:     t,
			Name:     s.Name,
			Enabled:  s.Enabled,
			Priority: s.Priority,
			Weight:   s.Weight,
			Provider: s.Provider,
			Model:    s.Model,
			BaseURL:  s.BaseURL,
			APIKey:   s.APIKey,
		})
	}
	return out
}
