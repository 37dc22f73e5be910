package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Inspect ingested documents",
}

var documentListCmd = &cobra.Command{
	Use:   "list [kb-id]",
	Short: "List documents in a knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentList,
}

var documentContentCmd = &cobra.Command{
	Use:   "content [doc-id]",
	Short: "Print extracted document text",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentContent,
}

var documentChunksCmd = &cobra.Command{
	Use:   "chunks [doc-id]",
	Short: "Show a document's chunk boundaries",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentChunks,
}

func init() {
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentContentCmd)
	documentCmd.AddCommand(documentChunksCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, args []string) error {
	if documentStore == nil {
		return errors.New("storage not configured")
	}

	docs, err := documentStore.ListDocuments(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents.")
		return nil
	}

	for _, doc := range docs {
		cmd.Printf("  %s  %s  [%s, parsed via %s]\n", doc.ID, doc.Name, doc.Kind, doc.ParseSource)
	}
	return nil
}

func runDocumentContent(cmd *cobra.Command, args []string) error {
	if documentStore == nil {
		return errors.New("storage not configured")
	}

	doc, err := documentStore.GetDocument(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("getting document: %w", err)
	}

	cmd.Println(doc.Content)
	return nil
}

func runDocumentChunks(cmd *cobra.Command, args []string) error {
	if documentStore == nil {
		return errors.New("storage not configured")
	}

	chunks, err := documentStore.ListChunks(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("listing chunks: %w", err)
	}

	if len(chunks) == 0 {
		cmd.Println("No chunks.")
		return nil
	}

	for _, c := range chunks {
		marker := ""
		if c.Forced {
			marker = " forced"
		}
		cmd.Printf("  [%d] %s  %d bytes, overlap %d%s\n",
			c.Ordinal, c.Type, len(c.Content), c.OverlapLen, marker)
		if c.Section != "" {
			cmd.Printf("      Section: %s\n", c.Section)
		}
	}
	return nil
}
