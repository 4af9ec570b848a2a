// Package proctor carries the proctoring channel of one challenge attempt
// over a WebSocket: client signals in, monitor effects out.
package proctor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/ctf"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/engine"
)

// TeamResolver maps a session token to a team ID.
type TeamResolver interface {
	TeamFromToken(ctx context.Context, token string) (string, error)
}

// Proctorer runs the monitor for one attempt.
type Proctorer interface {
	Proctor(ctx context.Context, teamID, challengeID string, src engine.ProctoringSource) error
}

const (
	writeTimeout = 5 * time.Second
	maxSession   = 6 * time.Hour
)

type Handler struct {
	logger  *slog.Logger
	teams   TeamResolver
	proctor Proctorer
	origins []string
}

func NewHandler(logger *slog.Logger, teams TeamResolver, p Proctorer, origins ...string) *Handler {
	return &Handler{logger: logger, teams: teams, proctor: p, origins: origins}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{id}", h.serve)
	return r
}

// ErrorFrame is the last frame sent when the session cannot go on.
type ErrorFrame struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// serve authenticates before upgrading. Browsers cannot set headers on a
// WebSocket handshake, so the token comes in the query string.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	teamID, err := h.teams.TeamFromToken(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return
	}
	challengeID := chi.URLParam(r, "id")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     h.origins,
		InsecureSkipVerify: len(h.origins) == 0,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithTimeout(r.Context(), maxSession)
	defer cancel()

	logger := h.logger.With("team", teamID, "challenge", challengeID)
	src := newSource(ctx, conn, logger)

	err = h.proctor.Proctor(ctx, teamID, challengeID, src)
	if err != nil {
		var ce *ctf.Error
		frame := ErrorFrame{Error: "internal error"}
		if errors.As(err, &ce) {
			frame = ErrorFrame{Error: ce.Msg, Reason: string(ce.Reason)}
		} else {
			logger.Error("proctoring session failed", "error", err)
		}
		wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
		wsjson.Write(wctx, conn, frame)
		wcancel()
		conn.Close(websocket.StatusPolicyViolation, frame.Error)
		return
	}
	conn.Close(websocket.StatusNormalClosure, "session closed")
}

// source adapts a WebSocket connection to engine.ProctoringSource.
type source struct {
	conn    *websocket.Conn
	signals chan ctf.Event
	logger  *slog.Logger
}

func newSource(ctx context.Context, conn *websocket.Conn, logger *slog.Logger) *source {
	s := &source{conn: conn, signals: make(chan ctf.Event), logger: logger}
	go s.read(ctx)
	return s
}

// read forwards decoded frames until the connection or ctx ends, then
// closes signals. Frames that are not a JSON event are skipped rather than
// ending the session.
func (s *source) read(ctx context.Context) {
	defer close(s.signals)
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			s.logger.Debug("websocket read ended", "error", err)
			return
		}
		var ev ctf.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logger.Debug("skipping malformed frame", "error", err)
			continue
		}
		select {
		case s.signals <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (s *source) Signals() <-chan ctf.Event { return s.signals }

func (s *source) Dispatch(ctx context.Context, eff ctf.Effect) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, s.conn, eff)
}
