package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clienterra/leadline/internal/knowledge"
)

func newSetupCmd(dsn, openaiKey *string) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the vector extension and snippet table",
		Long:  "Ensures the pgvector extension and the knowledge_snippets table exist. With --seed, loads the default service snippets into an empty knowledge base.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(cmd, *dsn, *openaiKey, seed)
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", false, "load default snippets when the knowledge base is empty")
	return cmd
}

func runSetup(cmd *cobra.Command, dsn, openaiKey string, seed bool) error {
	out := cmd.OutOrStdout()

	ks, err := openStore(dsn)
	if err != nil {
		return err
	}
	defer ks.Close()

	if err := ks.Setup(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(out, "Knowledge base schema ready")

	if !seed {
		return nil
	}
	n, err := ks.Count(cmd.Context())
	if err != nil {
		return err
	}
	if n > 0 {
		fmt.Fprintf(out, "Knowledge base already holds %d snippets, skipping seed\n", n)
		return nil
	}
	embedder, err := openEmbedder(openaiKey)
	if err != nil {
		return err
	}
	if err := ks.Seed(cmd.Context(), embedder, knowledge.DefaultSnippets); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d default snippets\n", len(knowledge.DefaultSnippets))
	return nil
}
