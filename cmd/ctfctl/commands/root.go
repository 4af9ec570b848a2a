// Package commands implements ctfctl, the operator CLI for preparing and
// inspecting an event database.
package commands

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/config"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/database"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/engine"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/migrations"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/security"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/store"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "ctfctl",
	Short: "Operator tooling for the CTF server",
	Long: `ctfctl prepares and inspects the event database used by the CTF server:
hash flags, import a challenge catalogue, issue finalist tokens and print
the current settings. It reads the same environment as the server.`,
	SilenceUsage: true,
}

// Execute runs the root command under ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default $DB_PATH or data/ctf.db)")
}

// env bundles what commands that touch the database need.
type env struct {
	cfg    *config.Config
	db     *sql.DB
	store  *store.DocStore
	hasher security.Hasher
	engine *engine.Engine
}

func (e *env) Close() error { return e.db.Close() }

// openEnv loads config, opens and migrates the database.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	hasher, err := security.New(cfg.HashAlgo, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.DBPath, err)
	}
	if _, err := migrations.Up(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	st := store.NewDocStore(db, nil, logger)
	return &env{
		cfg:    cfg,
		db:     db,
		store:  st,
		hasher: hasher,
		engine: engine.New(st, hasher, logger),
	}, nil
}
