package server

import (
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/ctf"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/engine"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/store"
)

type AdminSettingsRequest struct {
	EventStartTime     time.Time       `json:"eventStartTime"`
	EventEndTime       time.Time       `json:"eventEndTime"`
	FinalistCount      int             `json:"finalistCount" validate:"gte=0"`
	MaxTabSwitches     int             `json:"maxTabSwitches" validate:"gte=0"`
	EnableTeamGrouping bool            `json:"enableTeamGrouping"`
	GroupCount         int             `json:"groupCount" validate:"gte=0,lte=64"`
	GroupMessages      []string        `json:"groupMessages" validate:"dive,max=1024"`
	EventStatus        ctf.EventStatus `json:"eventStatus" validate:"omitempty,oneof=running ended"`
}

type GenerateTokensRequest struct {
	Count int `json:"count" validate:"required,gte=1,lte=500"`
}

// AdminToken lists a token without its hash.
type AdminToken struct {
	ID         string     `json:"id"`
	Used       bool       `json:"used"`
	UsedBy     string     `json:"usedBy,omitempty"`
	UsedByTeam string     `json:"usedByTeam,omitempty"`
	UsedAt     *time.Time `json:"usedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
}

type AdminTeamReport struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	LeadName    string         `json:"leadName"`
	Email       string         `json:"email"`
	Score       int            `json:"score"`
	Solved      int            `json:"solved"`
	CompletedAt *time.Time     `json:"completedAt"`
	IsFinalist  bool           `json:"isFinalist"`
	Tamper      map[string]int `json:"tamper"`
	MaxTamper   int            `json:"maxTamper"`
	OverLimit   bool           `json:"overLimit"`
}

func handleAdminGetSettings(logger *slog.Logger, eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := eng.Settings(r.Context())
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

// handleAdminPutSettings replaces the settings document. Setting the status
// to ended stamps actualEndTime; setting it back to running clears it.
func handleAdminPutSettings(logger *slog.Logger, eng *engine.Engine, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AdminSettingsRequest
		if err := readValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if !req.EventStartTime.IsZero() && !req.EventEndTime.IsZero() && !req.EventEndTime.After(req.EventStartTime) {
			writeError(w, http.StatusBadRequest, "eventEndTime must be after eventStartTime")
			return
		}
		prev, err := eng.Settings(r.Context())
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}

		s := ctf.Settings{
			EventStartTime:     req.EventStartTime.UTC(),
			EventEndTime:       req.EventEndTime.UTC(),
			FinalistCount:      req.FinalistCount,
			MaxTabSwitches:     req.MaxTabSwitches,
			EnableTeamGrouping: req.EnableTeamGrouping,
			GroupCount:         req.GroupCount,
			GroupMessages:      req.GroupMessages,
			EventStatus:        req.EventStatus,
		}
		if s.EventStatus == "" {
			s.EventStatus = ctf.EventRunning
		}
		if s.EventStatus == ctf.EventEnded {
			s.ActualEndTime = prev.ActualEndTime
			if s.ActualEndTime == nil {
				now := time.Now().UTC()
				s.ActualEndTime = &now
			}
		}

		if err := st.Put(r.Context(), store.Settings, ctf.SettingsID, s); err != nil {
			logger.Error("saving settings", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		logger.Info("settings updated", "admin", adminFrom(r).Email, "status", s.EventStatus)
		writeJSON(w, http.StatusOK, s)
	}
}

// handleAdminGenerateTokens creates count fresh tokens. The plaintext codes
// are only ever in this response.
func handleAdminGenerateTokens(logger *slog.Logger, eng *engine.Engine, digits int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GenerateTokensRequest
		if err := readValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		tokens, err := eng.IssueTokens(r.Context(), req.Count, digits)
		if err != nil {
			logger.Error("issuing tokens", "error", err, "issued", len(tokens))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		logger.Info("tokens generated", "admin", adminFrom(r).Email, "count", len(tokens))
		writeJSON(w, http.StatusCreated, tokens)
	}
}

func handleAdminListTokens(logger *slog.Logger, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var tokens []ctf.Token
		if err := st.List(r.Context(), store.Tokens, nil, &tokens); err != nil {
			logger.Error("listing tokens", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		out := make([]AdminToken, 0, len(tokens))
		for _, t := range tokens {
			out = append(out, AdminToken{
				ID:         t.ID,
				Used:       t.Used,
				UsedBy:     t.UsedBy,
				UsedByTeam: t.UsedByTeam,
				UsedAt:     t.UsedAt,
				CreatedAt:  t.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleAdminListFinalists(logger *slog.Logger, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var finalists []ctf.Finalist
		if err := st.List(r.Context(), store.Finalists, nil, &finalists); err != nil {
			logger.Error("listing finalists", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if finalists == nil {
			finalists = []ctf.Finalist{}
		}
		sort.SliceStable(finalists, func(i, j int) bool {
			return finalists[i].CompletionRank < finalists[j].CompletionRank
		})
		writeJSON(w, http.StatusOK, finalists)
	}
}

// handleAdminTeamReport lists every team with its per-challenge tamper
// counts, flagging teams above maxTabSwitches.
func handleAdminTeamReport(logger *slog.Logger, eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := eng.Settings(r.Context())
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		teams, err := eng.Teams(r.Context())
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}

		out := make([]AdminTeamReport, 0, len(teams))
		for _, t := range teams {
			rep := AdminTeamReport{
				ID:          t.ID,
				Name:        t.Name,
				LeadName:    t.LeadName,
				Email:       t.Email,
				Score:       t.Score,
				Solved:      len(t.SolvedChallenges),
				CompletedAt: t.CompletedAt,
				IsFinalist:  t.IsFinalist,
				Tamper:      make(map[string]int, len(t.ChallengeAttempts)),
			}
			for id, a := range t.ChallengeAttempts {
				rep.Tamper[id] = a.TamperCount
				rep.MaxTamper = max(rep.MaxTamper, a.TamperCount)
			}
			rep.OverLimit = s.MaxTabSwitches > 0 && rep.MaxTamper > s.MaxTabSwitches
			out = append(out, rep)
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
		writeJSON(w, http.StatusOK, out)
	}
}
