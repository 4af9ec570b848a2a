package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/security"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/store"
)

// AdminLoginRequest is the request body for POST /api/admin/login.
type AdminLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AdminMeResponse is the response for GET /api/admin/me.
type AdminMeResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func handleAdminLogin(logger *slog.Logger, st store.Store, hasher security.Hasher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AdminLoginRequest
		if err := readValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))

		a, err := findAdmin(r.Context(), st, req.Email)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if err != nil {
			logger.Error("looking up admin", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if ok, err := hasher.Verify(req.Password, a.PasswordHash); err != nil || !ok {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		sessionID, err := createAdminSession(r.Context(), st, a)
		if err != nil {
			logger.Error("creating admin session", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     adminCookieName,
			Value:    sessionID,
			Path:     "/",
			MaxAge:   int(adminSessionTTL.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusOK, AdminMeResponse{ID: a.ID, Email: a.Email})
	}
}

func handleAdminMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := adminFrom(r)
		writeJSON(w, http.StatusOK, AdminMeResponse{ID: sess.AdminID, Email: sess.Email})
	}
}
