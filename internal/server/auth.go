package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/security"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/store"
)

// teamSession is stored in team_sessions keyed by the bearer token.
type teamSession struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"teamId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

var errNoSession = errors.New("no valid session")

// sessions issues and resolves team bearer tokens.
type sessions struct {
	store store.Store
	ttl   time.Duration
}

func (s sessions) create(ctx context.Context, teamID string) (string, error) {
	token := security.SessionToken()
	_, err := s.store.Create(ctx, store.TeamSessions, token, teamSession{
		TeamID:    teamID,
		ExpiresAt: time.Now().UTC().Add(s.ttl),
	})
	return token, err
}

// TeamFromToken returns the team ID behind a bearer token.
func (s sessions) TeamFromToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", errNoSession
	}
	var sess teamSession
	err := s.store.Get(ctx, store.TeamSessions, token, &sess)
	if errors.Is(err, store.ErrNotFound) {
		return "", errNoSession
	}
	if err != nil {
		return "", err
	}
	if time.Now().After(sess.ExpiresAt) {
		s.store.Delete(ctx, store.TeamSessions, token)
		return "", errNoSession
	}
	return sess.TeamID, nil
}

func (s sessions) revoke(ctx context.Context, token string) {
	s.store.Delete(ctx, store.TeamSessions, token)
}

func bearerToken(r *http.Request) string {
	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return token
}
