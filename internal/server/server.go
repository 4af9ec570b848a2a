package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/engine"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/ratelimit"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/security"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/store"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Engine  *engine.Engine
	Store   store.Store
	Hasher  security.Hasher
	Limiter ratelimit.Limiter

	TokenDigits int
	SessionTTL  time.Duration
	// AllowedOrigins restricts WebSocket handshakes; empty accepts any.
	AllowedOrigins []string
	// Frontend, when set, is served for every path no route matches.
	Frontend fs.FS
}

type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// New builds the server. mount registers extra routes such as /healthz.
func New(addr string, logger *slog.Logger, deps Deps, mount func(chi.Router)) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewHandler(logger, deps, mount),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

func NewHandler(logger *slog.Logger, deps Deps, mount func(chi.Router)) http.Handler {
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.Unlimited{}
	}
	if deps.SessionTTL == 0 {
		deps.SessionTTL = 12 * time.Hour
	}
	if deps.TokenDigits == 0 {
		deps.TokenDigits = 8
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(newStructuredLogger(logger))
	r.Use(middleware.Recoverer)

	addRoutes(r, logger, deps)
	if mount != nil {
		mount(r)
	}
	return r
}

func (s *Server) Run(_ context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}

	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func newStructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
