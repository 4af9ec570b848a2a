package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/ctf"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/security"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/store"
)

// AdminChallenge is a challenge as admins see it. The flag hash is never
// sent back.
type AdminChallenge struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Points      int       `json:"points"`
	Difficulty  string    `json:"difficulty"`
	Active      bool      `json:"active"`
	Hint        string    `json:"hint,omitempty"`
	ImageRef    string    `json:"imageRef,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func adminChallenge(c ctf.Challenge) AdminChallenge {
	return AdminChallenge{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Category:    c.Category,
		Points:      c.Points,
		Difficulty:  c.Difficulty,
		Active:      c.Active,
		Hint:        c.Hint,
		ImageRef:    c.ImageRef,
		CreatedAt:   c.CreatedAt,
	}
}

// AdminChallengeRequest creates or updates a challenge. On update an empty
// flag keeps the stored hash.
type AdminChallengeRequest struct {
	ID          string `json:"id" validate:"omitempty,max=64,excludesall=/*"`
	Title       string `json:"title" validate:"required,max=128"`
	Description string `json:"description"`
	Category    string `json:"category" validate:"max=64"`
	Points      int    `json:"points" validate:"gte=1"`
	Difficulty  string `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Flag        string `json:"flag" validate:"max=512"`
	Active      *bool  `json:"active"`
	Hint        string `json:"hint"`
	ImageRef    string `json:"imageRef"`
}

func handleAdminListChallenges(logger *slog.Logger, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var challenges []ctf.Challenge
		if err := st.List(r.Context(), store.Challenges, nil, &challenges); err != nil {
			logger.Error("listing challenges", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		out := make([]AdminChallenge, 0, len(challenges))
		for _, c := range challenges {
			out = append(out, adminChallenge(c))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleAdminCreateChallenge(logger *slog.Logger, st store.Store, hasher security.Hasher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AdminChallengeRequest
		if err := readValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		flag := strings.TrimSpace(req.Flag)
		if flag == "" {
			writeError(w, http.StatusBadRequest, "flag is required")
			return
		}
		hash, err := hasher.Hash(flag)
		if err != nil {
			logger.Error("hashing flag", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		c := ctf.Challenge{
			Title:       strings.TrimSpace(req.Title),
			Description: req.Description,
			Category:    req.Category,
			Points:      req.Points,
			Difficulty:  req.Difficulty,
			FlagHash:    hash,
			Active:      req.Active == nil || *req.Active,
			Hint:        req.Hint,
			ImageRef:    req.ImageRef,
			CreatedAt:   time.Now().UTC(),
		}
		c.ID, err = st.Create(r.Context(), store.Challenges, req.ID, c)
		if errors.Is(err, store.ErrExists) {
			writeError(w, http.StatusConflict, "challenge id already exists")
			return
		}
		if err != nil {
			logger.Error("creating challenge", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		logger.Info("challenge created", "challenge", c.ID, "admin", adminFrom(r).Email)
		writeJSON(w, http.StatusCreated, adminChallenge(c))
	}
}

func handleAdminGetChallenge(logger *slog.Logger, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c ctf.Challenge
		err := st.Get(r.Context(), store.Challenges, chi.URLParam(r, "id"), &c)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "challenge not found")
			return
		}
		if err != nil {
			logger.Error("getting challenge", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, adminChallenge(c))
	}
}

func handleAdminUpdateChallenge(logger *slog.Logger, st store.Store, hasher security.Hasher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req AdminChallengeRequest
		if err := readValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		fields := map[string]any{
			"title":       strings.TrimSpace(req.Title),
			"description": req.Description,
			"category":    req.Category,
			"points":      req.Points,
			"difficulty":  req.Difficulty,
			"hint":        req.Hint,
			"imageRef":    req.ImageRef,
		}
		if req.Active != nil {
			fields["active"] = *req.Active
		}
		if flag := strings.TrimSpace(req.Flag); flag != "" {
			hash, err := hasher.Hash(flag)
			if err != nil {
				logger.Error("hashing flag", "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			fields["flagHash"] = hash
		}

		err := st.Update(r.Context(), store.Challenges, id, fields, store.UpdateOptions{Merge: true})
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "challenge not found")
			return
		}
		if err != nil {
			logger.Error("updating challenge", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		var c ctf.Challenge
		if err := st.Get(r.Context(), store.Challenges, id, &c); err != nil {
			logger.Error("getting challenge", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, adminChallenge(c))
	}
}

func handleAdminDeleteChallenge(logger *slog.Logger, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := st.Delete(r.Context(), store.Challenges, chi.URLParam(r, "id"))
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "challenge not found")
			return
		}
		if err != nil {
			logger.Error("deleting challenge", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
