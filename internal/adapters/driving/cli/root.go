// Package cli implements the saga command line interface.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/saga-labs/saga-core/internal/adapters/driven/embedding/openai"
	"github.com/saga-labs/saga-core/internal/adapters/driven/lexical/bm25"
	"github.com/saga-labs/saga-core/internal/adapters/driven/reranker/httpapi"
	"github.com/saga-labs/saga-core/internal/adapters/driven/storage/sqlite"
	vectormem "github.com/saga-labs/saga-core/internal/adapters/driven/vector/memory"
	"github.com/saga-labs/saga-core/internal/chunker"
	"github.com/saga-labs/saga-core/internal/config"
	"github.com/saga-labs/saga-core/internal/core/domain"
	"github.com/saga-labs/saga-core/internal/core/ports/driven"
	"github.com/saga-labs/saga-core/internal/core/ports/driving"
	"github.com/saga-labs/saga-core/internal/core/services"
	"github.com/saga-labs/saga-core/internal/logger"
	"github.com/saga-labs/saga-core/internal/parsing"
	"github.com/saga-labs/saga-core/internal/parsing/local"
	"github.com/saga-labs/saga-core/internal/parsing/remote"
)

// version is set at build time via ldflags.
var version = "dev"

// Persistent flags.
var (
	verbose   bool
	configDir string
)

// Services wired during setup. Tests replace these with mocks.
var (
	configStore      *config.Store
	metaStore        *sqlite.Store
	kbStore          driven.KnowledgeBaseStore
	documentStore    driven.DocumentStore
	vectorStore      driven.VectorStore
	lexicalStore     driven.LexicalStore
	retrievalService driving.RetrievalService
	rerankStage      driving.RerankStage
	ingestService    driving.IngestService
)

var rootCmd = &cobra.Command{
	Use:   "saga",
	Short: "Hybrid retrieval engine for personal knowledge bases",
	Long: `saga manages knowledge bases of parsed, chunked documents and answers
queries with hybrid vector and keyword retrieval plus optional re-ranking.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		if cmd.Name() == "version" {
			return nil
		}
		return setup()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "config directory (default ~/.saga)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup builds the service graph from configuration. Already-populated
// services are kept, which lets tests inject their own.
func setup() error {
	if retrievalService != nil && ingestService != nil {
		return nil
	}

	var err error
	configStore, err = config.NewStore(configDir)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	cfg := configStore.Current()

	metaStore, err = sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening metadata store: %w", err)
	}
	kbStore = metaStore.KnowledgeBaseStore()
	documentStore = metaStore.DocumentStore()

	vectorStore = vectormem.NewStore()
	lexicalStore = bm25.NewStore()

	var embedder driven.EmbeddingService
	if slot, ok := cfg.ActiveEmbedding(); ok {
		embedder, err = openai.NewFromSlot(slot)
		if err != nil {
			return fmt.Errorf("configuring embedding service: %w", err)
		}
	}

	timeout := time.Duration(cfg.Retrieval.TimeoutSeconds) * time.Second

	retrievalService = services.NewRetriever(kbStore, vectorStore, lexicalStore, embedder,
		services.WithAlpha(cfg.Retrieval.Alpha),
		services.WithMinSimilarity(cfg.Retrieval.MinSimilarity),
		services.WithCallTimeout(timeout),
	)

	rerankStage = services.NewReranker(
		func(slot domain.ServiceSlot) (driven.RerankService, error) {
			return httpapi.NewFromSlot(slot)
		},
		services.WithDecay(cfg.Retrieval.RerankDecay),
		services.WithTopN(cfg.Retrieval.RerankTopN),
		services.WithRerankTimeout(timeout),
	)

	chain := parsing.NewChain(
		remoteParser(cfg, 0),
		remoteParser(cfg, 1),
		local.New(),
	)

	splitter := chunker.New(
		chunker.WithTargetSize(cfg.Chunking.TargetSize),
		chunker.WithOverlapRatio(cfg.Chunking.OverlapRatio),
	)

	ingestor := services.NewIngestor(
		kbStore, documentStore, vectorStore, lexicalStore, embedder, chain, splitter)
	ingestor.SetCallTimeout(timeout)
	ingestService = ingestor

	return nil
}

// remoteParser builds the n-th active remote parser slot, or nil when
// that tier is not configured.
func remoteParser(cfg config.Config, n int) driven.DocumentParser {
	active := domain.ActiveSlots(cfg.Slots(), domain.ServiceParser)
	if n >= len(active) {
		return nil
	}
	parser, err := remote.NewFromSlot(active[n])
	if err != nil {
		logger.Warn("Parser slot %s skipped: %v", active[n].Name, err)
		return nil
	}
	return parser
}

// rerankSlots returns the active reranker slots from configuration.
func rerankSlots() []domain.ServiceSlot {
	if configStore == nil {
		return nil
	}
	return domain.ActiveSlots(configStore.Current().Slots(), domain.ServiceReranker)
}
