package admin

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/cryptoadvisor/internal/repository"
	"github.com/cloo-solutions/cryptoadvisor/internal/service"
)

func APIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
		Long:  "Create, list, and revoke API keys",
	}

	cmd.AddCommand(APIKeyCreateCmd())
	cmd.AddCommand(APIKeyListCmd())
	cmd.AddCommand(APIKeyRevokeCmd())

	return cmd
}

func APIKeyCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long:  "Create a new API key for a user. The token is shown once.",
		RunE: func(cmd *cobra.Command, args []string) error {
			userRef, _ := cmd.Flags().GetString("user")
			name, _ := cmd.Flags().GetString("name")
			outputFormat, _ := cmd.Flags().GetString("output")
			ctx := cmd.Context()

			return withAuthService(ctx, func(auth *service.AuthService, users *repository.UserRepository) error {
				userID, err := resolveUserID(ctx, users, userRef)
				if err != nil {
					return err
				}
				token, err := auth.CreateAPIKey(ctx, userID, name)
				if err != nil {
					return fmt.Errorf("failed to create API key: %w", err)
				}

				if outputFormat == "json" {
					printJSON(map[string]any{"user_id": userID, "name": name, "token": token})
					return nil
				}
				fmt.Printf("API key created for user %s\n", userID)
				fmt.Printf("Key Name: %s\n", name)
				fmt.Printf("Token: %s\n", token)
				fmt.Println("\nSave this token now. You won't be able to see it again!")
				return nil
			})
		},
	}

	cmd.Flags().StringP("user", "u", "", "User ID or name (required)")
	cmd.Flags().StringP("name", "n", "", "API key name (required)")
	cmd.Flags().StringP("output", "", "text", "Output format (text or json)")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("name")

	return cmd
}

func APIKeyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userRef, _ := cmd.Flags().GetString("user")
			outputFormat, _ := cmd.Flags().GetString("output")
			ctx := cmd.Context()

			return withAuthService(ctx, func(auth *service.AuthService, users *repository.UserRepository) error {
				userID, err := resolveUserID(ctx, users, userRef)
				if err != nil {
					return err
				}
				keys, err := auth.ListAPIKeys(ctx, userID)
				if err != nil {
					return fmt.Errorf("failed to list API keys: %w", err)
				}

				if outputFormat == "json" {
					items := make([]map[string]any, len(keys))
					for i, key := range keys {
						items[i] = map[string]any{
							"id":         key.ID,
							"name":       key.Name,
							"user_id":    key.UserID,
							"created_at": key.CreatedAt,
							"revoked_at": key.RevokedAt,
							"revoked":    key.IsRevoked(),
						}
					}
					printJSON(map[string]any{"items": items})
					return nil
				}
				if len(keys) == 0 {
					fmt.Printf("No API keys found for user %s\n", userID)
					return nil
				}
				fmt.Printf("API keys for user %s:\n", userID)
				for _, key := range keys {
					status := "active"
					if key.IsRevoked() {
						status = "revoked"
					}
					fmt.Printf("  %s: %s (%s, created: %s)\n", key.ID, key.Name, status, key.CreatedAt.Format("2006-01-02 15:04:05"))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringP("user", "u", "", "User ID or name (required)")
	cmd.Flags().StringP("output", "", "text", "Output format (text or json)")
	cmd.MarkFlagRequired("user")

	return cmd
}

func APIKeyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Long:  "Revoke an API key by its ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAuthService(cmd.Context(), func(auth *service.AuthService, _ *repository.UserRepository) error {
				if err := auth.RevokeAPIKey(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("failed to revoke API key: %w", err)
				}
				fmt.Printf("API key %s revoked successfully\n", args[0])
				return nil
			})
		},
	}
}
