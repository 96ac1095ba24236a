package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/cryptoadvisor/internal/config"
	"github.com/cloo-solutions/cryptoadvisor/internal/database"
	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
	"github.com/cloo-solutions/cryptoadvisor/internal/repository"
)

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return database.NewPool(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
}

// resolveUserID accepts a user id or a user name.
func resolveUserID(ctx context.Context, users *repository.UserRepository, ref string) (string, error) {
	if _, err := uuid.Parse(ref); err == nil {
		user, err := users.GetByID(ctx, ref)
		if err != nil {
			return "", fmt.Errorf("user not found: %s", ref)
		}
		return user.ID, nil
	}

	user, err := users.GetByName(ctx, ref)
	if err != nil {
		if domain.HasCode(err, domain.ErrCodeNotFound) {
			return "", fmt.Errorf("user not found: %s", ref)
		}
		return "", err
	}
	return user.ID, nil
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
