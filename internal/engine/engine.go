// Package engine carries out team operations against the document store:
// entering and leaving challenges, tamper reporting, flag submission, the
// automatic end of the event and finalist token redemption.
//
// Every operation re-reads the documents it decides on. Decisions are made
// by the pure functions in package ctf; the engine only sequences reads and
// writes and maps store failures to transient errors.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/ctf"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/security"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/store"
)

type Engine struct {
	store  store.Store
	hasher security.Hasher
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(st store.Store, hasher security.Hasher, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:  st,
		hasher: hasher,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) clock() time.Time { return e.now().UTC() }

// Settings returns the event settings. A missing document reads as the
// zero value: an unbounded running window with auto-end disabled.
func (e *Engine) Settings(ctx context.Context) (ctf.Settings, error) {
	var s ctf.Settings
	err := e.store.Get(ctx, store.Settings, ctf.SettingsID, &s)
	if errors.Is(err, store.ErrNotFound) {
		return ctf.Settings{EventStatus: ctf.EventRunning}, nil
	}
	if err != nil {
		return ctf.Settings{}, ctf.Transient(err)
	}
	return s, nil
}

// Team loads one team. A missing team is returned as store.ErrNotFound.
func (e *Engine) Team(ctx context.Context, teamID string) (ctf.Team, error) {
	var t ctf.Team
	err := e.store.Get(ctx, store.Teams, teamID, &t)
	if errors.Is(err, store.ErrNotFound) {
		return ctf.Team{}, err
	}
	if err != nil {
		return ctf.Team{}, ctf.Transient(err)
	}
	return t, nil
}

func (e *Engine) Teams(ctx context.Context) ([]ctf.Team, error) {
	var teams []ctf.Team
	if err := e.store.List(ctx, store.Teams, nil, &teams); err != nil {
		return nil, ctf.Transient(err)
	}
	return teams, nil
}

// Challenges returns the whole catalogue, inactive challenges included.
func (e *Engine) Challenges(ctx context.Context) ([]ctf.Challenge, error) {
	var cs []ctf.Challenge
	if err := e.store.List(ctx, store.Challenges, nil, &cs); err != nil {
		return nil, ctf.Transient(err)
	}
	return cs, nil
}

// view is everything one team-facing decision needs.
type view struct {
	team       ctf.Team
	challenges []ctf.Challenge
	settings   ctf.Settings
}

func (e *Engine) load(ctx context.Context, teamID string) (view, error) {
	var v view
	var err error
	if v.settings, err = e.Settings(ctx); err != nil {
		return v, err
	}
	if v.team, err = e.Team(ctx, teamID); err != nil {
		return v, err
	}
	if v.challenges, err = e.Challenges(ctx); err != nil {
		return v, err
	}
	return v, nil
}

func attemptField(challengeID, field string) string {
	return store.Path("challengeAttempts", challengeID, field)
}
