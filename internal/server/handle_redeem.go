package server

import (
	"log/slog"
	"net/http"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/engine"
)

type RedeemRequest struct {
	Code string `json:"code" validate:"max=32"`
}

type RedeemResponse struct {
	CompletionRank int    `json:"completionRank"`
	Group          int    `json:"group"`
	GroupMessage   string `json:"groupMessage,omitempty"`
}

// handleRedeemToken verifies a finalist token. The group message is read
// after the finalist is recorded, so it reflects the current settings.
func handleRedeemToken(logger *slog.Logger, eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RedeemRequest
		if err := readValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f, err := eng.RedeemToken(r.Context(), teamFrom(r), req.Code)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		resp := RedeemResponse{CompletionRank: f.CompletionRank, Group: f.Group}
		if s, err := eng.Settings(r.Context()); err == nil && s.EnableTeamGrouping {
			resp.GroupMessage = s.GroupMessage(f.Group)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
