package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/saga-labs/saga-core/internal/core/domain"
)

var ingestKind string

var ingestCmd = &cobra.Command{
	Use:   "ingest [kb-id] [file]",
	Short: "Ingest a document into a knowledge base",
	Long: `Parses the file, splits it into chunks and indexes the chunks for
hybrid retrieval. Re-ingesting a file replaces its previous chunks.`,
	Args: cobra.ExactArgs(2),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestKind, "kind", "", "document kind: pdf, markdown, plain or image (default: by extension)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	kbID, path := args[0], args[1]

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	kind := domain.DocumentKind(ingestKind)
	if kind == "" {
		kind = kindFromExtension(path)
	}
	if !kind.Valid() {
		return fmt.Errorf("unsupported document kind %q", kind)
	}

	doc := domain.Document{
		ID:   uuid.NewString(),
		Name: filepath.Base(path),
		Kind: kind,
	}

	report, err := ingestService.Ingest(context.Background(), kbID, doc, raw)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	cmd.Printf("Ingested %s: %d chunks (parsed via %s)\n",
		doc.Name, report.ChunkCount, report.ParseSource)
	for _, w := range report.Warnings {
		cmd.Printf("  warning: %s: %s\n", w.Source, w.Message)
	}
	return nil
}

var removeCmd = &cobra.Command{
	Use:   "remove [kb-id] [doc-id]",
	Short: "Remove a document from a knowledge base",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if ingestService == nil {
			return errors.New("ingest service not configured")
		}
		if err := ingestService.Remove(context.Background(), args[0], args[1]); err != nil {
			return fmt.Errorf("remove failed: %w", err)
		}
		cmd.Printf("Removed document %s\n", args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

// kindFromExtension infers the document kind from the file name.
func kindFromExtension(path string) domain.DocumentKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return domain.KindPDF
	case ".md", ".markdown":
		return domain.KindMarkdown
	case ".png", ".jpg", ".jpeg", ".webp":
		return domain.KindImage
	default:
		return domain.KindPlain
	}
}
