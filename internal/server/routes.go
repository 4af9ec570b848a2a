package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/handler/proctor"
)

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	eng, st, hasher := deps.Engine, deps.Store, deps.Hasher
	sess := sessions{store: st, ttl: deps.SessionTTL}

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("CTF API", "/openapi.json", "/docs"))

	// Team auth.
	r.Post("/api/teams/register", handleRegister(logger, st, hasher, sess))
	r.Post("/api/teams/login", handleLogin(logger, st, hasher, sess))
	r.Post("/api/teams/logout", handleLogout(sess))

	// Streams authenticate through the query string.
	r.Mount("/ws/proctor", proctor.NewHandler(logger, sess, eng, deps.AllowedOrigins...).Routes())

	r.Route("/api/game", func(r chi.Router) {
		r.Get("/events", handleEvents(logger, eng, sess))

		r.Group(func(r chi.Router) {
			r.Use(teamAuthMiddleware(sess))
			r.Get("/state", handleGameState(logger, eng))
			r.Get("/qualification", handleQualification(logger, eng))

			r.Route("/challenges/{id}", func(r chi.Router) {
				r.Post("/enter", handleEnterChallenge(logger, eng))
				r.Post("/exit", handleExitChallenge(logger, eng))
				r.Post("/tamper", handleReportTamper(logger, eng))
				r.With(rateLimitMiddleware(logger, deps.Limiter, "submit")).
					Post("/submit", handleSubmitFlag(logger, eng))
			})

			r.With(rateLimitMiddleware(logger, deps.Limiter, "redeem")).
				Post("/redeem", handleRedeemToken(logger, eng))
		})
	})

	// Admin auth.
	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/login", handleAdminLogin(logger, st, hasher))
		r.Post("/logout", handleAdminLogout(st))

		r.Group(func(r chi.Router) {
			r.Use(adminAuthMiddleware(st))
			r.Get("/me", handleAdminMe())

			r.Get("/challenges", handleAdminListChallenges(logger, st))
			r.Post("/challenges", handleAdminCreateChallenge(logger, st, hasher))
			r.Get("/challenges/{id}", handleAdminGetChallenge(logger, st))
			r.Put("/challenges/{id}", handleAdminUpdateChallenge(logger, st, hasher))
			r.Delete("/challenges/{id}", handleAdminDeleteChallenge(logger, st))

			r.Get("/settings", handleAdminGetSettings(logger, eng))
			r.Put("/settings", handleAdminPutSettings(logger, eng, st))

			r.Get("/tokens", handleAdminListTokens(logger, st))
			r.Post("/tokens", handleAdminGenerateTokens(logger, eng, deps.TokenDigits))
			r.Get("/finalists", handleAdminListFinalists(logger, st))
			r.Get("/teams", handleAdminTeamReport(logger, eng))
		})
	})

	if deps.Frontend != nil {
		r.NotFound(handleSPA(deps.Frontend))
	}
}
