package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/ctf"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/engine"
)

type SubmitRequest struct {
	Flag string `json:"flag" validate:"max=512"`
}

type SubmitResponse struct {
	engine.SubmitResult
	Reason string `json:"reason,omitempty"`
}

func handleSubmitFlag(logger *slog.Logger, eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubmitRequest
		if err := readValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		teamID := teamFrom(r)
		id := chi.URLParam(r, "id")
		res, err := eng.SubmitFlag(r.Context(), teamID, id, req.Flag)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		resp := SubmitResponse{SubmitResult: res}
		if !res.Correct {
			resp.Reason = string(ctf.ReasonIncorrectFlag)
		}
		logger.Info("flag submitted", "team", teamID, "challenge", id, "correct", res.Correct)
		writeJSON(w, http.StatusOK, resp)
	}
}
