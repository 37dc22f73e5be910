package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/saga-labs/saga-core/internal/core/domain"
)

var (
	kbProvider   string
	kbModel      string
	kbDimensions int
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage knowledge bases",
	Long:  `Create, list, or delete knowledge bases. Each knowledge base is bound to one embedding model for its lifetime.`,
}

var kbCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE:  runKBCreate,
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge bases",
	Args:  cobra.NoArgs,
	RunE:  runKBList,
}

var kbDeleteCmd = &cobra.Command{
	Use:   "delete [kb-id]",
	Short: "Delete a knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE:  runKBDelete,
}

func init() {
	kbCreateCmd.Flags().StringVar(&kbProvider, "provider", "", "embedding provider (default: active embedding slot)")
	kbCreateCmd.Flags().StringVar(&kbModel, "model", "", "embedding model (default: active embedding slot)")
	kbCreateCmd.Flags().IntVar(&kbDimensions, "dimensions", 0, "embedding vector dimensions")

	kbCmd.AddCommand(kbCreateCmd)
	kbCmd.AddCommand(kbListCmd)
	kbCmd.AddCommand(kbDeleteCmd)
	rootCmd.AddCommand(kbCmd)
}

func runKBCreate(cmd *cobra.Command, args []string) error {
	if kbStore == nil {
		return errors.New("storage not configured")
	}

	identity := domain.EmbeddingIdentity{
		Provider:   kbProvider,
		Model:      kbModel,
		Dimensions: kbDimensions,
	}
	if identity.Provider == "" || identity.Model == "" {
		if configStore == nil {
			return errors.New("no embedding identity given and no configuration loaded")
		}
		slot, ok := configStore.Current().ActiveEmbedding()
		if !ok {
			return errors.New("no embedding identity given and no embedding slot enabled")
		}
		if identity.Provider == "" {
			identity.Provider = slot.Provider
		}
		if identity.Model == "" {
			identity.Model = slot.Model
		}
	}

	kb := domain.KnowledgeBase{
		ID:        uuid.NewString(),
		Name:      args[0],
		Embedding: identity,
		CreatedAt: time.Now().UTC(),
	}

	if err := kbStore.Create(context.Background(), kb); err != nil {
		return fmt.Errorf("creating knowledge base: %w", err)
	}

	cmd.Printf("Created knowledge base %s (%s)\n", kb.Name, kb.ID)
	cmd.Printf("  Embedding: %s\n", kb.Embedding)
	return nil
}

func runKBList(cmd *cobra.Command, _ []string) error {
	if kbStore == nil {
		return errors.New("storage not configured")
	}

	kbs, err := kbStore.List(context.Background())
	if err != nil {
		return fmt.Errorf("listing knowledge bases: %w", err)
	}

	if len(kbs) == 0 {
		cmd.Println("No knowledge bases.")
		return nil
	}

	for _, kb := range kbs {
		cmd.Printf("  %s  %s  (%s)\n", kb.ID, kb.Name, kb.Embedding)
	}
	return nil
}

func runKBDelete(cmd *cobra.Command, args []string) error {
	if kbStore == nil {
		return errors.New("storage not configured")
	}

	ctx := context.Background()
	kb, err := kbStore.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("deleting knowledge base: %w", err)
	}

	if err := kbStore.Delete(ctx, kb.ID); err != nil {
		return fmt.Errorf("deleting knowledge base: %w", err)
	}

	// The metadata rows are gone; drop the per-base indexes with them.
	if vectorStore != nil {
		if err := vectorStore.DeleteCollection(ctx, kb.ID, kb.Embedding); err != nil {
			return fmt.Errorf("deleting vector collection: %w", err)
		}
	}
	if lexicalStore != nil {
		if err := lexicalStore.DeleteIndex(ctx, kb.ID); err != nil {
			return fmt.Errorf("deleting lexical index: %w", err)
		}
	}

	cmd.Printf("Deleted knowledge base %s\n", args[0])
	return nil
}
