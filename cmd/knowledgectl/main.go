// knowledgectl manages the pgvector knowledge base used for reply
// grounding: schema setup, snippet CRUD, and bulk import/export.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/clienterra/leadline/internal/genai"
	"github.com/clienterra/leadline/internal/knowledge"
)

func newRootCmd() *cobra.Command {
	var dsn, openaiKey string

	cmd := &cobra.Command{
		Use:   "knowledgectl",
		Short: "Manage the leadline knowledge base",
		Long:  "knowledgectl maintains the vector-indexed snippets that ground generated replies: schema setup, adding and searching snippets, and bulk import/export.",
	}

	cmd.PersistentFlags().StringVar(&dsn, "dsn", os.Getenv("KNOWLEDGE_DB_URL"), "knowledge base Postgres DSN")
	cmd.PersistentFlags().StringVar(&openaiKey, "openai-key", "", "OpenAI API key (defaults to OPENAI_API_KEY)")

	cmd.AddCommand(newSetupCmd(&dsn, &openaiKey))
	cmd.AddCommand(newAddCmd(&dsn, &openaiKey))
	cmd.AddCommand(newSearchCmd(&dsn, &openaiKey))
	cmd.AddCommand(newListCmd(&dsn))
	cmd.AddCommand(newDeleteCmd(&dsn))
	cmd.AddCommand(newLoadCmd(&dsn, &openaiKey))
	cmd.AddCommand(newExportCmd(&dsn))
	return cmd
}

// openStore connects to the knowledge database.
func openStore(dsn string) (*knowledge.Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("knowledge base DSN not set (use --dsn or KNOWLEDGE_DB_URL)")
	}
	return knowledge.NewStore(knowledge.WithDSN(dsn))
}

// openEmbedder builds the embedding client for commands that index text.
func openEmbedder(key string) (*genai.Client, error) {
	var opts []genai.Option
	if key != "" {
		opts = append(opts, genai.WithAPIKey(key))
	}
	return genai.NewClient(opts...)
}

func main() {
	godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
