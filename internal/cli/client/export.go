package client

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func ExportCmd() *cobra.Command {
	var format, outPath string
	var link bool

	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export a chat transcript as text or PDF",
		Long: `Download a session transcript. With --link the server stores the export
and prints a temporary download URL instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			if link {
				url, err := client.ExportLink(cmd.Context(), args[0], format)
				if err != nil {
					return fmt.Errorf("failed to export session: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), url)
				return nil
			}

			data, filename, err := client.Export(cmd.Context(), args[0], format)
			if err != nil {
				return fmt.Errorf("failed to export session: %w", err)
			}

			if outPath == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if outPath == "" {
				outPath = filename
			}
			if outPath == "" {
				outPath = fmt.Sprintf("chat-%s.%s", args[0], format)
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", outPath, len(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "txt", "Export format (txt or pdf)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file, or - for stdout")
	cmd.Flags().BoolVar(&link, "link", false, "Store the export and print a download URL")
	return cmd
}
