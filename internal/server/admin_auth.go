package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/security"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/store"
)

type admin struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
}

type adminSession struct {
	ID        string    `json:"id"`
	AdminID   string    `json:"adminId"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

var errNoAdminSession = errors.New("no valid admin session")

const (
	adminCookieName = "admin_session"
	adminSessionTTL = 7 * 24 * time.Hour
)

// adminFromRequest reads the admin_session cookie and looks up the admin session.
func adminFromRequest(r *http.Request, st store.Store) (adminSession, error) {
	cookie, err := r.Cookie(adminCookieName)
	if err != nil || cookie.Value == "" {
		return adminSession{}, errNoAdminSession
	}

	var s adminSession
	err = st.Get(r.Context(), store.AdminSessions, cookie.Value, &s)
	if errors.Is(err, store.ErrNotFound) {
		return adminSession{}, errNoAdminSession
	}
	if err != nil {
		return adminSession{}, err
	}
	if time.Now().After(s.ExpiresAt) {
		st.Delete(r.Context(), store.AdminSessions, cookie.Value)
		return adminSession{}, errNoAdminSession
	}
	return s, nil
}

// findAdmin looks an admin up by normalised email.
func findAdmin(ctx context.Context, st store.Store, email string) (admin, error) {
	var admins []admin
	if err := st.List(ctx, store.Admins, &store.Filter{Field: "email", Equals: email}, &admins); err != nil {
		return admin{}, err
	}
	if len(admins) == 0 {
		return admin{}, store.ErrNotFound
	}
	return admins[0], nil
}

func createAdminSession(ctx context.Context, st store.Store, a admin) (string, error) {
	id := security.SessionToken()
	_, err := st.Create(ctx, store.AdminSessions, id, adminSession{
		AdminID:   a.ID,
		Email:     a.Email,
		ExpiresAt: time.Now().UTC().Add(adminSessionTTL),
	})
	return id, err
}
