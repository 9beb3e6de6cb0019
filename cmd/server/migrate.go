package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iliyamo/finiti-glossary/internal/config"
	"github.com/iliyamo/finiti-glossary/internal/database"
	"github.com/iliyamo/finiti-glossary/internal/logger"
	"github.com/iliyamo/finiti-glossary/internal/model"
	"github.com/iliyamo/finiti-glossary/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create any missing tables for the configured database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := config.Load()
		log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

		db, err := database.Open(cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		if err := database.Migrate(cmd.Context(), db, cfg.DBDriver); err != nil {
			return err
		}
		log.Info().Str("driver", cfg.DBDriver).Msg("schema applied")
		return nil
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote <email>",
	Short: "Grant the Admin role to an existing account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

		db, err := database.Open(cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		u, err := promote(cmd.Context(), repository.NewUserRepo(db), args[0])
		if err != nil {
			return err
		}
		log.Info().Uint64("user_id", u.ID).Str("email", u.Email).Msg("user promoted to admin")
		return nil
	},
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, u *model.User) error
}

func promote(ctx context.Context, users userStore, email string) (*model.User, error) {
	u, err := users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("no user with email %q", email)
	}
	if err != nil {
		return nil, err
	}
	u.Role = model.RoleAdmin
	u.IsAdmin = true
	if err := users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
