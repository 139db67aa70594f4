package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clienterra/leadline/internal/knowledge"
)

func newLoadCmd(dsn, openaiKey *string) *cobra.Command {
	return &cobra.Command{
		Use:   "load FILE",
		Short: "Bulk-import snippets from a JSON file",
		Long:  "Reads a JSON array of snippets ({\"text\", \"category\", optional \"id\"}), embeds each, and upserts them. Snippets without an ID are assigned the next free one.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, *dsn, *openaiKey, args[0])
		},
	}
}

func runLoad(cmd *cobra.Command, dsn, openaiKey, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	var snippets []knowledge.Snippet
	if err := json.Unmarshal(data, &snippets); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(snippets) == 0 {
		return fmt.Errorf("%s contains no snippets", path)
	}

	ks, err := openStore(dsn)
	if err != nil {
		return err
	}
	defer ks.Close()

	embedder, err := openEmbedder(openaiKey)
	if err != nil {
		return err
	}

	nextID, err := ks.NextID(cmd.Context())
	if err != nil {
		return err
	}
	for i := range snippets {
		if snippets[i].ID == 0 {
			snippets[i].ID = nextID
			nextID++
		}
	}
	if err := ks.Seed(cmd.Context(), embedder, snippets); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d snippets from %s\n", len(snippets), path)
	return nil
}

func newExportCmd(dsn *string) *cobra.Command {
	return &cobra.Command{
		Use:   "export [FILE]",
		Short: "Export all snippets as JSON",
		Long:  "Writes the snippet texts and categories as a JSON array, to FILE or stdout. Embeddings are not exported; re-import with load regenerates them.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := openStore(*dsn)
			if err != nil {
				return err
			}
			defer ks.Close()

			snippets, err := ks.List(cmd.Context())
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(snippets, "", "  ")
			if err != nil {
				return err
			}
			data = append(data, '\n')

			if len(args) == 0 {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(args[0], data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d snippets to %s\n", len(snippets), args[0])
			return nil
		},
	}
}
