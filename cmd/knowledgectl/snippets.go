package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clienterra/leadline/internal/knowledge"
)

func newAddCmd(dsn, openaiKey *string) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "add TEXT",
		Short: "Embed and index a snippet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(cmd, *dsn, *openaiKey, args[0], category)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "snippet category label")
	return cmd
}

func runAdd(cmd *cobra.Command, dsn, openaiKey, text, category string) error {
	ks, err := openStore(dsn)
	if err != nil {
		return err
	}
	defer ks.Close()

	embedder, err := openEmbedder(openaiKey)
	if err != nil {
		return err
	}
	vec, err := embedder.EmbedText(cmd.Context(), text)
	if err != nil {
		return err
	}
	id, err := ks.NextID(cmd.Context())
	if err != nil {
		return err
	}
	snip := knowledge.Snippet{ID: id, Text: text, Category: category}
	if err := ks.Upsert(cmd.Context(), snip, vec); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed snippet %d\n", id)
	return nil
}

func newSearchCmd(dsn, openaiKey *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Find snippets similar to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, *dsn, *openaiKey, args[0], limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", knowledge.DefaultSearchLimit, "maximum results")
	return cmd
}

func runSearch(cmd *cobra.Command, dsn, openaiKey, query string, limit int) error {
	out := cmd.OutOrStdout()

	ks, err := openStore(dsn)
	if err != nil {
		return err
	}
	defer ks.Close()

	embedder, err := openEmbedder(openaiKey)
	if err != nil {
		return err
	}
	vec, err := embedder.EmbedText(cmd.Context(), query)
	if err != nil {
		return err
	}
	hits, err := ks.Search(cmd.Context(), vec, limit)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Fprintln(out, "No snippets found")
		return nil
	}
	for _, sn := range hits {
		fmt.Fprintf(out, "%4d  %.3f  [%s]  %s\n", sn.ID, sn.Score, sn.Category, sn.Text)
	}
	return nil
}

func newListCmd(dsn *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all indexed snippets",
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
			out := cmd.OutOrStdout()
			if len(snippets) == 0 {
				fmt.Fprintln(out, "Knowledge base is empty")
				return nil
			}
			for _, sn := range snippets {
				fmt.Fprintf(out, "%4d  [%s]  %s\n", sn.ID, sn.Category, truncate(sn.Text, 100))
			}
			fmt.Fprintf(out, "%d snippets\n", len(snippets))
			return nil
		},
	}
}

func newDeleteCmd(dsn *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Remove a snippet by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid snippet ID %q", args[0])
			}
			ks, err := openStore(*dsn)
			if err != nil {
				return err
			}
			defer ks.Close()

			if err := ks.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted snippet %d\n", id)
			return nil
		},
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
