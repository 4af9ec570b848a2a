package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/ctf"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/engine"
)

// handleEvents streams the team's progress as server-sent events. EventSource
// cannot set headers, so the session token comes in the query string.
func handleEvents(logger *slog.Logger, eng *engine.Engine, sess sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			writeError(w, http.StatusUnauthorized, "token query parameter required")
			return
		}
		teamID, err := sess.TeamFromToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid session token")
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		updates, err := eng.Watch(r.Context(), teamID)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		var phase ctf.Phase
		for {
			select {
			case <-r.Context().Done():
				return
			case p, ok := <-updates:
				if !ok {
					return
				}
				data, err := json.Marshal(p)
				if err != nil {
					logger.Error("encoding progress", "error", err)
					continue
				}
				fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
				if p.Phase == ctf.PhaseEnded && phase != "" && phase != ctf.PhaseEnded {
					fmt.Fprintf(w, "event: event_ended\ndata: {}\n\n")
				}
				phase = p.Phase
				flusher.Flush()
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}
