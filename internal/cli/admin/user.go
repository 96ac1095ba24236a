package admin

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/cryptoadvisor/internal/repository"
	"github.com/cloo-solutions/cryptoadvisor/internal/service"
)

func UserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
		Long:  "Create, list and delete advisor users",
	}

	cmd.AddCommand(UserCreateCmd())
	cmd.AddCommand(UserListCmd())
	cmd.AddCommand(UserDeleteCmd())

	return cmd
}

func withAuthService(ctx context.Context, fn func(auth *service.AuthService, users *repository.UserRepository) error) error {
	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	users := repository.NewUserRepository(pool)
	auth := service.NewAuthService(users, repository.NewAPIKeyRepository(pool), service.DefaultUUIDGenerator{})
	return fn(auth, users)
}

func UserCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			withKey, _ := cmd.Flags().GetBool("with-key")
			return withAuthService(cmd.Context(), func(auth *service.AuthService, _ *repository.UserRepository) error {
				user, err := auth.CreateUser(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("failed to create user: %w", err)
				}
				var token string
				if withKey {
					if token, err = auth.CreateAPIKey(cmd.Context(), user.ID, "default"); err != nil {
						return fmt.Errorf("failed to create API key: %w", err)
					}
				}

				if outputFormat == "json" {
					printJSON(map[string]any{"id": user.ID, "name": user.Name, "created_at": user.CreatedAt, "token": token})
					return nil
				}
				fmt.Printf("User created: %s (%s)\n", user.Name, user.ID)
				if token != "" {
					fmt.Printf("Token: %s\n", token)
					fmt.Println("\nSave this token now. You won't be able to see it again!")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().Bool("with-key", false, "Also issue an API key for the new user")

	return cmd
}

func UserListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all users",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return withAuthService(cmd.Context(), func(auth *service.AuthService, _ *repository.UserRepository) error {
				users, err := auth.ListUsers(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list users: %w", err)
				}

				if outputFormat == "json" {
					items := make([]map[string]any, len(users))
					for i, u := range users {
						items[i] = map[string]any{"id": u.ID, "name": u.Name, "created_at": u.CreatedAt}
					}
					printJSON(map[string]any{"items": items})
					return nil
				}
				if len(users) == 0 {
					fmt.Println("No users found")
					return nil
				}
				fmt.Println("Users:")
				for _, u := range users {
					fmt.Printf("  %s: %s (created: %s)\n", u.ID, u.Name, u.CreatedAt.Format("2006-01-02 15:04:05"))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func UserDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id|name>",
		Short: "Delete a user with their keys and chat history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAuthService(cmd.Context(), func(auth *service.AuthService, users *repository.UserRepository) error {
				userID, err := resolveUserID(cmd.Context(), users, args[0])
				if err != nil {
					return err
				}
				if err := auth.DeleteUser(cmd.Context(), userID); err != nil {
					return fmt.Errorf("failed to delete user: %w", err)
				}
				fmt.Printf("User %s deleted\n", userID)
				return nil
			})
		},
	}
}
