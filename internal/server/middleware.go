package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/ctf"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/ratelimit"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/store"
)

type ctxKey int

const (
	ctxKeyTeam ctxKey = iota
	ctxKeyAdmin
)

func teamAuthMiddleware(sess sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			teamID, err := sess.TeamFromToken(r.Context(), bearerToken(r))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or missing session token")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyTeam, teamID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func adminAuthMiddleware(st store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := adminFromRequest(r, st)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyAdmin, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// rateLimitMiddleware limits per team; it must run after teamAuthMiddleware.
func rateLimitMiddleware(logger *slog.Logger, limiter ratelimit.Limiter, bucket string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := limiter.Allow(r.Context(), bucket+"-"+teamFrom(r))
			if err != nil {
				logger.Warn("rate limiter unavailable", "bucket", bucket, "allowed", ok, "error", err)
			}
			if !ok {
				writeEngineError(w, logger, ctf.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func teamFrom(r *http.Request) string {
	id, _ := r.Context().Value(ctxKeyTeam).(string)
	return id
}

func adminFrom(r *http.Request) adminSession {
	return r.Context().Value(ctxKeyAdmin).(adminSession)
}
