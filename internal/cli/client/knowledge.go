package client

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func KnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Inspect the ingested knowledge base",
	}

	cmd.AddCommand(knowledgeSourcesCmd())
	cmd.AddCommand(knowledgeSearchCmd())

	return cmd
}

func knowledgeSourcesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List ingested source documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			list, err := client.Sources(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list sources: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), list)
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "SOURCE\tSEGMENTS\tINGESTED")
			for _, s := range list.Sources {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", s.ID, s.SegmentCount, shortTime(s.IngestedAt))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d sources, %d segments\n", len(list.Sources), list.Segments)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "output", false, "Output as JSON")
	return cmd
}

func knowledgeSearchCmd() *cobra.Command {
	var k int
	var sources []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the segments retrieved for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			result, err := client.SearchKnowledge(cmd.Context(), strings.Join(args, " "), k, sources)
			if err != nil {
				return fmt.Errorf("failed to search: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}

			if len(result.Results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matching segments")
				return nil
			}
			for i, seg := range result.Results {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s #%d (score %.3f)\n   %s\n", i+1, seg.SourceID, seg.Ordinal, seg.Score, truncate(seg.Content, 200))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "k", "k", 0, "Number of segments (default: server top-k)")
	cmd.Flags().StringSliceVar(&sources, "source", nil, "Restrict to these source documents")
	cmd.Flags().BoolVar(&asJSON, "output", false, "Output as JSON")
	return cmd
}
