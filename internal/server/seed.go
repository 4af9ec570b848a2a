package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/ctf"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/security"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/store"
)

// SeedAdmin creates the configured admin if no admin with that email exists.
// An empty password skips seeding.
func SeedAdmin(ctx context.Context, logger *slog.Logger, st store.Store, hasher security.Hasher, email, password string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		logger.Warn("ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}

	_, err := findAdmin(ctx, st, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return err
	}
	if _, err := st.Create(ctx, store.Admins, "", admin{Email: email, PasswordHash: hash}); err != nil {
		return err
	}
	logger.Info("admin seeded", "email", email)
	return nil
}

// SeedSettings writes a running settings document if none exists yet.
func SeedSettings(ctx context.Context, logger *slog.Logger, st store.Store) error {
	_, err := st.Create(ctx, store.Settings, ctf.SettingsID, ctf.Settings{
		EventStatus:   ctf.EventRunning,
		GroupMessages: []string{},
	})
	if errors.Is(err, store.ErrExists) {
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("default settings created")
	return nil
}
