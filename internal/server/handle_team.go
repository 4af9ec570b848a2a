package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/ctf"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/security"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/store"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=2,max=64"`
	LeadName string `json:"leadName" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SessionResponse struct {
	Token  string   `json:"token"`
	TeamID string   `json:"teamId"`
	Team   TeamInfo `json:"team"`
}

type TeamInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	LeadName string `json:"leadName"`
	Email    string `json:"email"`
}

func teamInfo(t ctf.Team) TeamInfo {
	return TeamInfo{ID: t.ID, Name: t.Name, LeadName: t.LeadName, Email: t.Email}
}

func findTeamByEmail(r *http.Request, st store.Store, email string) (ctf.Team, error) {
	var teams []ctf.Team
	if err := st.List(r.Context(), store.Teams, &store.Filter{Field: "email", Equals: email}, &teams); err != nil {
		return ctf.Team{}, err
	}
	if len(teams) == 0 {
		return ctf.Team{}, store.ErrNotFound
	}
	return teams[0], nil
}

func handleRegister(logger *slog.Logger, st store.Store, hasher security.Hasher, sess sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := readValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		req.Name = strings.TrimSpace(req.Name)

		_, err := findTeamByEmail(r, st, req.Email)
		if err == nil {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		if !errors.Is(err, store.ErrNotFound) {
			logger.Error("looking up team", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		hash, err := hasher.Hash(req.Password)
		if err != nil {
			logger.Error("hashing password", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		team := ctf.Team{
			Email:               req.Email,
			Name:                req.Name,
			LeadName:            strings.TrimSpace(req.LeadName),
			PasswordHash:        hash,
			SolvedChallenges:    []string{},
			AttemptedChallenges: []string{},
			ChallengeAttempts:   map[string]ctf.ChallengeAttempt{},
			CreatedAt:           time.Now().UTC(),
		}
		team.ID, err = st.Create(r.Context(), store.Teams, "", team)
		if err != nil {
			logger.Error("creating team", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		token, err := sess.create(r.Context(), team.ID)
		if err != nil {
			logger.Error("creating session", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		logger.Info("team registered", "team", team.ID)
		writeJSON(w, http.StatusCreated, SessionResponse{Token: token, TeamID: team.ID, Team: teamInfo(team)})
	}
}

func handleLogin(logger *slog.Logger, st store.Store, hasher security.Hasher, sess sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := readValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))

		team, err := findTeamByEmail(r, st, req.Email)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if err != nil {
			logger.Error("looking up team", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		ok, err := hasher.Verify(req.Password, team.PasswordHash)
		if err != nil || !ok {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		token, err := sess.create(r.Context(), team.ID)
		if err != nil {
			logger.Error("creating session", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, SessionResponse{Token: token, TeamID: team.ID, Team: teamInfo(team)})
	}
}

func handleLogout(sess sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r); token != "" {
			sess.revoke(r.Context(), token)
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
