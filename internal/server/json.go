package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/ctf"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/store"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// readJSON decodes the body into v. An empty body leaves v untouched.
func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// readValid decodes the body and runs its validate tags.
func readValid(r *http.Request, v any) error {
	if err := readJSON(r, v); err != nil {
		return errors.New("invalid request body")
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeEngineError maps an engine error to its HTTP status and reason code.
func writeEngineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	var e *ctf.Error
	if !errors.As(err, &e) {
		logger.Error("unexpected engine error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if e.Kind == ctf.KindTransient && e.Reason != ctf.ReasonRateLimited {
		logger.Error("store unavailable", "error", err)
	}
	writeJSON(w, statusOf(e), ErrorResponse{Error: e.Msg, Reason: string(e.Reason)})
}

func statusOf(e *ctf.Error) int {
	switch e.Reason {
	case ctf.ReasonChallengeNotFound, ctf.ReasonTokenNotFound:
		return http.StatusNotFound
	case ctf.ReasonRateLimited:
		return http.StatusTooManyRequests
	}
	switch e.Kind {
	case ctf.KindInvalid:
		return http.StatusBadRequest
	case ctf.KindPhase, ctf.KindAccess:
		return http.StatusForbidden
	case ctf.KindConflict:
		return http.StatusConflict
	case ctf.KindVerification:
		return http.StatusUnprocessableEntity
	case ctf.KindProctoring:
		return http.StatusPreconditionRequired
	}
	return http.StatusServiceUnavailable
}
