package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

func AskCmd() *cobra.Command {
	var sessionID string
	var newSession, asJSON bool
	var sources []string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the advisor a single question",
		Long: `Send one question to the current chat session and print the answer.

Without --session the last used session is resumed, or a new one is created.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			session, err := resolveSession(cmd.Context(), client, sessionID, newSession)
			if err != nil {
				return err
			}

			result, err := client.Ask(cmd.Context(), session, strings.Join(args, " "), sources)
			if err != nil {
				return askError(err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			printAskResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session ID to continue")
	cmd.Flags().BoolVar(&newSession, "new", false, "Start a new session")
	cmd.Flags().StringSliceVar(&sources, "source", nil, "Restrict retrieval to these source documents")
	cmd.Flags().BoolVar(&asJSON, "output", false, "Output as JSON")
	return cmd
}

// resolveSession picks the session for a turn: the explicit id, else the
// remembered one if it still exists, else a fresh session. The result is
// remembered for the next invocation.
func resolveSession(ctx context.Context, client *APIClient, explicit string, forceNew bool) (string, error) {
	id := explicit
	if id == "" && !forceNew {
		if config, err := LoadGlobalConfig(); err == nil && config != nil {
			id = config.LastSession
		}
		if id != "" {
			if _, err := client.GetSession(ctx, id); err != nil {
				var apiErr *APIError
				if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
					return "", fmt.Errorf("failed to load session: %w", err)
				}
				id = ""
			}
		}
	}

	if id == "" {
		session, err := client.CreateSession(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to create session: %w", err)
		}
		id = session.ID
	}

	if err := RememberSession(id); err != nil {
		return "", err
	}
	return id, nil
}

// askError turns rate limiting into a readable wait hint.
func askError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		if apiErr.RetryAfter > 0 {
			return fmt.Errorf("rate limited: please wait %d seconds before asking again", int(apiErr.RetryAfter.Seconds()))
		}
		return fmt.Errorf("rate limited: please wait before asking again")
	}
	return fmt.Errorf("failed to ask: %w", err)
}
