package server

import (
	"log/slog"
	"net/http"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/engine"
)

func handleGameState(logger *slog.Logger, eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := eng.Progress(r.Context(), teamFrom(r))
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleQualification(logger *slog.Logger, eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := eng.Qualification(r.Context(), teamFrom(r))
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}
