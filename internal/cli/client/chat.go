package client

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func ChatCmd() *cobra.Command {
	var sessionID string
	var newSession bool
	var sources []string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open an interactive chat with the advisor",
		Long: `Open a full-screen chat. Without --session the last used session is
resumed, or a new one is created.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			id, err := resolveSession(cmd.Context(), client, sessionID, newSession)
			if err != nil {
				return err
			}
			session, err := client.GetSession(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to load session: %w", err)
			}

			model := newChatModel(cmd.Context(), client, session, sources)
			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("chat ended with error: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session ID to continue")
	cmd.Flags().BoolVar(&newSession, "new", false, "Start a new session")
	cmd.Flags().StringSliceVar(&sources, "source", nil, "Restrict retrieval to these source documents")
	return cmd
}
