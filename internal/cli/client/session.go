package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

func SessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"sessions"},
		Short:   "Manage chat sessions",
	}

	cmd.AddCommand(sessionNewCmd())
	cmd.AddCommand(sessionListCmd())
	cmd.AddCommand(sessionShowCmd())
	cmd.AddCommand(sessionDeleteCmd())

	return cmd
}

func sessionNewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Start a new chat session and make it current",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			session, err := client.CreateSession(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to create session: %w", err)
			}
			if err := RememberSession(session.ID); err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("output"); asJSON {
				return writeJSON(cmd.OutOrStdout(), session)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created session %s\n", session.ID)
			return nil
		},
	}
	cmd.Flags().Bool("output", false, "Output as JSON")
	return cmd
}

func sessionListCmd() *cobra.Command {
	var cursor string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List chat sessions, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			page, err := client.ListSessions(cmd.Context(), cursor, limit)
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), page)
			}

			if len(page.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions")
				return nil
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tTITLE\tUPDATED")
			for _, s := range page.Items {
				title := s.Title
				if title == "" {
					title = "(untitled)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, truncate(title, 48), shortTime(s.UpdatedAt))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if page.HasMore {
				fmt.Fprintf(cmd.OutOrStdout(), "\nMore: advisor session list --cursor %s\n", page.Cursor)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cursor, "cursor", "", "Continue from a previous page")
	cmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	cmd.Flags().BoolVar(&asJSON, "output", false, "Output as JSON")
	return cmd
}

func sessionShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			session, err := client.GetSession(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get session: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), session)
			}
			printTranscript(cmd.OutOrStdout(), session)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "output", false, "Output as JSON")
	return cmd
}

func sessionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			if err := client.DeleteSession(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete session: %w", err)
			}

			config, err := LoadGlobalConfig()
			if err == nil && config != nil && config.LastSession == args[0] {
				config.LastSession = ""
				if err := SaveGlobalConfig(config); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
			return nil
		},
	}
}
