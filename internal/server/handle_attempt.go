package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/ctf"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/engine"
)

type EnterRequest struct {
	// Exclusive reports that the client is already in fullscreen.
	Exclusive bool `json:"exclusive"`
}

type TamperRequest struct {
	Signal string `json:"signal" validate:"required"`
	Detail string `json:"detail" validate:"max=256"`
}

type TamperResponse struct {
	TamperCount int `json:"tamperCount"`
}

func handleEnterChallenge(logger *slog.Logger, eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EnterRequest
		if err := readValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		p, err := eng.EnterChallenge(r.Context(), teamFrom(r), chi.URLParam(r, "id"), req.Exclusive)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleExitChallenge(logger *slog.Logger, eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID := teamFrom(r)
		if err := eng.ExitChallenge(r.Context(), teamID, chi.URLParam(r, "id")); err != nil {
			writeEngineError(w, logger, err)
			return
		}
		p, err := eng.Progress(r.Context(), teamID)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleReportTamper(logger *slog.Logger, eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TamperRequest
		if err := readValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		ev := ctf.Event{Signal: ctf.Signal(req.Signal), Detail: req.Detail}
		n, err := eng.ReportTamper(r.Context(), teamFrom(r), chi.URLParam(r, "id"), ev)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, TamperResponse{TamperCount: n})
	}
}
