package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saga-labs/saga-core/internal/core/domain"
)

var (
	queryKBs    []string
	queryLimit  int
	queryJSON   bool
	queryNoRank bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Query knowledge bases",
	Long: `Runs hybrid retrieval across the given knowledge bases, fusing vector
and keyword signals, and re-ranks the results with the configured
reranker slots.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringSliceVarP(&queryKBs, "kb", "k", nil, "knowledge base IDs to search (required)")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 10, "maximum number of results")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	queryCmd.Flags().BoolVar(&queryNoRank, "no-rerank", false, "skip the re-ranking stage")
	_ = queryCmd.MarkFlagRequired("kb")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	ctx := context.Background()

	result, err := retrievalService.Retrieve(ctx, args[0], queryKBs, queryLimit)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	candidates := result.Candidates
	warnings := result.Warnings

	if !queryNoRank && rerankStage != nil {
		slots := rerankSlots()
		if len(slots) > 0 {
			reranked, err := rerankStage.Rerank(ctx, args[0], candidates, slots)
			if err != nil {
				return fmt.Errorf("rerank failed: %w", err)
			}
			candidates = reranked.Candidates
			warnings = append(warnings, reranked.Warnings...)
		}
	}

	if queryJSON {
		return outputQueryJSON(cmd, candidates, warnings)
	}
	return outputQueryList(cmd, candidates, warnings)
}

func outputQueryJSON(cmd *cobra.Command, candidates []domain.RetrievalCandidate, warnings []domain.Warning) error {
	payload := struct {
		Candidates []domain.RetrievalCandidate `json:"candidates"`
		Warnings   []domain.Warning            `json:"warnings,omitempty"`
	}{candidates, warnings}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputQueryList(cmd *cobra.Command, candidates []domain.RetrievalCandidate, warnings []domain.Warning) error {
	for _, w := range warnings {
		cmd.Printf("warning: %s: %s\n", w.Source, w.Message)
	}

	if len(candidates) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for _, c := range candidates {
		score := c.FusedScore
		if c.RerankScore > 0 {
			score = c.RerankScore
		}
		cmd.Printf("  [%d] %s (%.3f)\n", c.Rank, snippet(c.Chunk.Content), score)
		if c.Chunk.Section != "" {
			cmd.Printf("      Section: %s\n", c.Chunk.Section)
		}
		cmd.Println()
	}
	return nil
}

// snippet shortens chunk content for terminal display.
func snippet(text string) string {
	const max = 120
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}
