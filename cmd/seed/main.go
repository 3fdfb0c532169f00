package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
)

const defaultSeedPassword = "demo1234"

type seedUser struct {
	name  string
	email string
	role  domain.Role
}

var demoUsers = []seedUser{
	{name: "Demo Agent", email: "agent@demo.com", role: domain.RoleAgent},
	{name: "Demo Admin", email: "admin@demo.com", role: domain.RoleAdmin},
	{name: "Demo User", email: "user@demo.com", role: domain.RoleRequester},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logger, !cfg.IsProduction())
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = defaultSeedPassword
	}
	created, err := seed(ctx, repository.NewPostgresStore(pg.Pool).Repositories().Users, password, cfg.Auth.BcryptCost, logger)
	if err != nil {
		logger.Fatal("seed failed", zap.Error(err))
	}
	logger.Info("seed complete", zap.Int("created", created))
}

// seed inserts the demo accounts that do not exist yet and returns how many were created.
func seed(ctx context.Context, users repository.UserRepository, password string, cost int, logger *zap.Logger) (int, error) {
	hash, err := auth.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, u := range demoUsers {
		_, err := users.GetByEmail(ctx, u.email)
		if err == nil {
			logger.Info("seed user exists", zap.String("email", u.email))
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return created, err
		}

		if err := users.Create(ctx, &domain.User{
			ID:           uuid.NewString(),
			Name:         u.name,
			Email:        u.email,
			PasswordHash: hash,
			Role:         u.role,
		}); err != nil {
			return created, err
		}
		created++
		logger.Info("seed user created", zap.String("email", u.email), zap.String("role", string(u.role)))
	}
	return created, nil
}
