package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saga-labs/saga-core/internal/core/domain"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600)
	require.NoError(t, err)
}

func TestNewStore_MissingFileYieldsDefaults(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	cfg := store.Current()
	assert.Equal(t, DefaultAlpha, cfg.Retrieval.Alpha)
	assert.Equal(t, DefaultTopK, cfg.Retrieval.TopK)
	assert.Equal(t, DefaultChunkSize, cfg.Chunking.TargetSize)
	assert.Equal(t, DefaultOverlapRatio, cfg.Chunking.OverlapRatio)
	assert.Empty(t, cfg.Embedding)
}

func TestNewStore_ParsesFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
data_dir = "/tmp/saga-test"

[retrieval]
alpha = 0.7
top_k = 5

[chunking]
target_size = 800
overlap_ratio = 0.1

[[embedding]]
name = "main"
enabled = true
provider = "openai"
model = "text-embedding-3-small"
api_key = "sk-test"

[[reranker]]
name = "fast"
enabled = true
priority = 1
weight = 0.6
provider = "cohere"
model = "rerank-v3"
`)

	store, err := NewStore(dir)
	require.NoError(t, err)

	cfg := store.Current()
	assert.Equal(t, "/tmp/saga-test", cfg.DataDir)
	assert.Equal(t, 0.7, cfg.Retrieval.Alpha)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 800, cfg.Chunking.TargetSize)

	require.Len(t, cfg.Embedding, 1)
	assert.Equal(t, "main", cfg.Embedding[0].Name)
	assert.True(t, cfg.Embedding[0].Enabled)

	require.Len(t, cfg.Reranker, 1)
	assert.Equal(t, 0.6, cfg.Reranker[0].Weight)
}

func TestNewStore_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[retrieval]
alpha = 0.3
`)

	store, err := NewStore(dir)
	require.NoError(t, err)

	cfg := store.Current()
	assert.Equal(t, 0.3, cfg.Retrieval.Alpha)
	assert.Equal(t, DefaultTopK, cfg.Retrieval.TopK)
	assert.Equal(t, DefaultChunkSize, cfg.Chunking.TargetSize)
}

func TestNewStore_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "retrieval = [broken")

	_, err := NewStore(dir)

	require.Error(t, err)
}

func TestStore_Reload_PicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[retrieval]\nalpha = 0.4\n")

	store, err := NewStore(dir)
	require.NoError(t, err)
	assert.Equal(t, 0.4, store.Current().Retrieval.Alpha)

	writeConfig(t, dir, "[retrieval]\nalpha = 0.9\n")
	require.NoError(t, store.Reload())

	assert.Equal(t, 0.9, store.Current().Retrieval.Alpha)
}

func TestStore_Reload_KeepsSnapshotOnBadFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[retrieval]\nalpha = 0.4\n")

	store, err := NewStore(dir)
	require.NoError(t, err)

	writeConfig(t, dir, "[retrieval]\nalpha = 7.0\n")
	err = store.Reload()

	require.Error(t, err)
	assert.Equal(t, 0.4, store.Current().Retrieval.Alpha)
}

func TestValidate(t *testing.T) {
	valid := defaults()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"alpha too high", func(c *Config) { c.Retrieval.Alpha = 1.5 }, true},
		{"alpha negative", func(c *Config) { c.Retrieval.Alpha = -0.1 }, true},
		{"overlap ratio one", func(c *Config) { c.Chunking.OverlapRatio = 1.0 }, true},
		{"two enabled embedding slots", func(c *Config) {
			c.Embedding = []Slot{
				{Name: "a", Enabled: true},
				{Name: "b", Enabled: true},
			}
		}, true},
		{"one enabled plus disabled slots", func(c *Config) {
			c.Embedding = []Slot{
				{Name: "a", Enabled: true},
				{Name: "b", Enabled: false},
			}
		}, false},
		{"negative reranker weight", func(c *Config) {
			c.Reranker = []Slot{{Name: "r", Enabled: true, Weight: -1}}
		}, true},
		{"negative weight on disabled slot", func(c *Config) {
			c.Reranker = []Slot{{Name: "r", Enabled: false, Weight: -1}}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Slots_TagsServiceTypes(t *testing.T) {
	cfg := Config{
		Embedding: []Slot{{Name: "e", Enabled: true}},
		Reranker:  []Slot{{Name: "r1", Enabled: true}, {Name: "r2", Enabled: false}},
		Parser:    []Slot{{Name: "p", Enabled: true}},
	}

	slots := cfg.Slots()

	require.Len(t, slots, 4)
	assert.Equal(t, domain.ServiceEmbedding, slots[0].Type)
	assert.Equal(t, domain.ServiceReranker, slots[1].Type)
	assert.Equal(t, domain.ServiceReranker, slots[2].Type)
	assert.Equal(t, domain.ServiceParser, slots[3].Type)
}

func TestConfig_ActiveEmbedding(t *testing.T) {
	cfg := Config{
		Embedding: []Slot{
			{Name: "off", Enabled: false},
			{Name: "on", Enabled: true, Provider: "openai", Model: "text-embedding-3-small"},
		},
	}

	slot, ok := cfg.ActiveEmbedding()

	require.True(t, ok)
	assert.Equal(t, "on", slot.Name)

	_, ok = Config{}.ActiveEmbedding()
	assert.False(t, ok)
}
