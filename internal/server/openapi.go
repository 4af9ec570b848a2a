package server

import (
	"encoding/json"
	"net/http"
	"strings"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/ctf"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/engine"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/handler/health"
)

// idParam documents the {id} path segment.
type idParam struct {
	ID string `path:"id"`
}

type operation struct {
	method, path, summary, description string
	req                                any
	resp                               any
	status                             int
	errors                             []int
	contentType                        string
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "CTF API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Timed, proctored capture-the-flag event: team progression, flag verification and finalist selection.")

	const (
		bearer = " Requires Bearer token."
		cookie = " Requires admin_session cookie."
	)

	ops := []operation{
		{method: http.MethodGet, path: "/healthz", summary: "Health check",
			description: "Returns the health status of backend dependencies.",
			resp:        health.Response{}, errors: []int{http.StatusServiceUnavailable}},

		{method: http.MethodPost, path: "/api/teams/register", summary: "Register team",
			description: "Creates a team account and returns a session token.",
			req:         RegisterRequest{}, resp: SessionResponse{}, status: http.StatusCreated,
			errors: []int{http.StatusBadRequest, http.StatusConflict}},
		{method: http.MethodPost, path: "/api/teams/login", summary: "Team login",
			description: "Authenticates a team and returns a session token.",
			req:         LoginRequest{}, resp: SessionResponse{}, errors: []int{http.StatusBadRequest, http.StatusUnauthorized}},
		{method: http.MethodPost, path: "/api/teams/logout", summary: "Team logout",
			description: "Revokes the bearer session token."},

		{method: http.MethodGet, path: "/api/game/state", summary: "Get progress",
			description: "Returns the team's view of the event and every challenge." + bearer,
			resp:        ctf.Progress{}, errors: []int{http.StatusUnauthorized}},
		{method: http.MethodPost, path: "/api/game/challenges/{id}/enter", summary: "Enter challenge",
			description: "Opens the team's single attempt. The client must already be in fullscreen." + bearer,
			req:         EnterRequest{}, resp: ctf.Progress{},
			errors: []int{http.StatusNotFound, http.StatusForbidden, http.StatusConflict, http.StatusPreconditionRequired}},
		{method: http.MethodPost, path: "/api/game/challenges/{id}/exit", summary: "Exit challenge",
			description: "Gives up the live attempt. The challenge cannot be entered again." + bearer,
			resp:        ctf.Progress{}, errors: []int{http.StatusNotFound, http.StatusForbidden}},
		{method: http.MethodPost, path: "/api/game/challenges/{id}/tamper", summary: "Report proctoring signal",
			description: "Records a tab switch or other proctoring signal against the live attempt." + bearer,
			req:         TamperRequest{}, resp: TamperResponse{}, errors: []int{http.StatusBadRequest, http.StatusForbidden}},
		{method: http.MethodPost, path: "/api/game/challenges/{id}/submit", summary: "Submit flag",
			description: "Submits the single flag allowed for the live attempt. Rate limited." + bearer,
			req:         SubmitRequest{}, resp: SubmitResponse{},
			errors: []int{http.StatusBadRequest, http.StatusForbidden, http.StatusConflict, http.StatusTooManyRequests}},
		{method: http.MethodGet, path: "/api/game/qualification", summary: "Qualification",
			description: "Returns rank, group and group message once the team has completed every challenge." + bearer,
			resp:        ctf.Qualification{}, errors: []int{http.StatusForbidden}},
		{method: http.MethodPost, path: "/api/game/redeem", summary: "Redeem finalist token",
			description: "Verifies a one-time token and records the team as a finalist. Rate limited." + bearer,
			req:         RedeemRequest{}, resp: RedeemResponse{},
			errors: []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusTooManyRequests}},
		{method: http.MethodGet, path: "/api/game/events", summary: "Progress stream",
			description: "Server-Sent Events: progress on every change, event_ended when the event closes. Pass token as query parameter.",
			contentType: "text/event-stream", errors: []int{http.StatusUnauthorized}},
		{method: http.MethodGet, path: "/ws/proctor/{id}", summary: "Proctoring channel",
			description: "WebSocket carrying proctoring signals in and monitor effects out for one attempt. Pass token as query parameter.",
			resp:        ctf.Effect{}, status: http.StatusSwitchingProtocols, errors: []int{http.StatusUnauthorized}},

		{method: http.MethodPost, path: "/api/admin/login", summary: "Admin login",
			description: "Authenticate with email and password. Sets admin_session cookie.",
			req:         AdminLoginRequest{}, resp: AdminMeResponse{}, errors: []int{http.StatusUnauthorized}},
		{method: http.MethodPost, path: "/api/admin/logout", summary: "Admin logout",
			description: "Clears admin session and cookie."},
		{method: http.MethodGet, path: "/api/admin/me", summary: "Current admin",
			description: "Returns the currently authenticated admin." + cookie,
			resp:        AdminMeResponse{}, errors: []int{http.StatusUnauthorized}},
		{method: http.MethodGet, path: "/api/admin/challenges", summary: "List challenges",
			description: "Returns the catalogue without flag hashes." + cookie,
			resp:        []AdminChallenge{}, errors: []int{http.StatusUnauthorized}},
		{method: http.MethodPost, path: "/api/admin/challenges", summary: "Create challenge",
			description: "Creates a challenge. The flag is hashed and never returned." + cookie,
			req:         AdminChallengeRequest{}, resp: AdminChallenge{}, status: http.StatusCreated,
			errors: []int{http.StatusBadRequest, http.StatusConflict, http.StatusUnauthorized}},
		{method: http.MethodGet, path: "/api/admin/challenges/{id}", summary: "Get challenge",
			description: "Returns one challenge." + cookie,
			resp:        AdminChallenge{}, errors: []int{http.StatusNotFound, http.StatusUnauthorized}},
		{method: http.MethodPut, path: "/api/admin/challenges/{id}", summary: "Update challenge",
			description: "Updates a challenge. An empty flag keeps the current one." + cookie,
			req:         AdminChallengeRequest{}, resp: AdminChallenge{},
			errors: []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnauthorized}},
		{method: http.MethodDelete, path: "/api/admin/challenges/{id}", summary: "Delete challenge",
			description: "Deletes a challenge." + cookie, errors: []int{http.StatusNotFound, http.StatusUnauthorized}},
		{method: http.MethodGet, path: "/api/admin/settings", summary: "Get settings",
			description: "Returns the event settings." + cookie, resp: ctf.Settings{}, errors: []int{http.StatusUnauthorized}},
		{method: http.MethodPut, path: "/api/admin/settings", summary: "Replace settings",
			description: "Replaces the event settings. Setting eventStatus to ended closes the event." + cookie,
			req:         AdminSettingsRequest{}, resp: ctf.Settings{}, errors: []int{http.StatusBadRequest, http.StatusUnauthorized}},
		{method: http.MethodGet, path: "/api/admin/tokens", summary: "List tokens",
			description: "Lists finalist tokens and who used them." + cookie,
			resp:        []AdminToken{}, errors: []int{http.StatusUnauthorized}},
		{method: http.MethodPost, path: "/api/admin/tokens", summary: "Generate tokens",
			description: "Generates one-time finalist tokens. The plaintext codes are only returned here." + cookie,
			req:         GenerateTokensRequest{}, resp: []engine.IssuedToken{}, status: http.StatusCreated,
			errors: []int{http.StatusBadRequest, http.StatusUnauthorized}},
		{method: http.MethodGet, path: "/api/admin/finalists", summary: "List finalists",
			description: "Lists verified finalists by completion rank." + cookie,
			resp:        []ctf.Finalist{}, errors: []int{http.StatusUnauthorized}},
		{method: http.MethodGet, path: "/api/admin/teams", summary: "Team report",
			description: "Lists teams with scores and per-challenge tamper counts." + cookie,
			resp:        []AdminTeamReport{}, errors: []int{http.StatusUnauthorized}},
	}

	for _, op := range ops {
		oc, err := r.NewOperationContext(op.method, op.path)
		if err != nil {
			continue
		}
		oc.SetSummary(op.summary)
		oc.SetDescription(op.description)
		if strings.Contains(op.path, "{id}") {
			oc.AddReqStructure(idParam{})
		}
		if op.req != nil {
			oc.AddReqStructure(op.req)
		}
		status := op.status
		if status == 0 {
			status = http.StatusOK
		}
		opts := []openapi.ContentOption{openapi.WithHTTPStatus(status)}
		if op.contentType != "" {
			opts = append(opts, openapi.WithContentType(op.contentType))
		}
		oc.AddRespStructure(op.resp, opts...)
		for _, code := range op.errors {
			oc.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(code))
		}
		_ = r.AddOperation(oc)
	}

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
