// Package server exposes the plenum engine over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"plenum/internal/domain"
	"plenum/internal/engine"
	"plenum/internal/engine/auth"
	"plenum/internal/motion"
	"plenum/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"forbidden"`
	Message string         `json:"message" example:"actor lacks capability preside"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError is the error envelope every endpoint returns.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Plenum API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Plenum API", "0.1.0")
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerMeetings(group, cfg.Engine)
	registerRoles(group, cfg.Engine)
	registerMotions(group, cfg.Engine)
	registerFloor(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerKeys(group, cfg.Engine)
	registerMe(group)

	startWebhookDispatcher(cfg.Engine)
	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"capability": fe.Capability})
	}
	var ute motion.UnknownTypeError
	if errors.As(err, &ute) {
		return newAPIError(http.StatusBadRequest, "unknown_type", err.Error(), map[string]any{"type": ute.Type})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required") || strings.Contains(lowered, "must be"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func hasCapabilityClaim(caps []string, capability string) bool {
	for _, c := range caps {
		if c == capability {
			return true
		}
	}
	return false
}

func requireCapability(ctx context.Context, e engine.Engine, meetingID, capability string) error {
	principal, authErr := principalFromRequest(ctx)
	if authErr != nil {
		return authErr
	}
	if hasCapabilityClaim(principal.Capabilities, capability) {
		return nil
	}
	ok, err := e.Auth.Has(ctx, nil, capability, meetingID, principal.ActorID)
	if err != nil {
		return err
	}
	if !ok {
		return auth.ForbiddenError{ActorID: principal.ActorID, Capability: capability, MeetingID: meetingID}
	}
	return nil
}

func principalFromRequest(ctx context.Context) (Principal, huma.StatusError) {
	p, ok := principalFromContext(ctx)
	if !ok || p.ActorID == "" {
		return Principal{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
	}
	return p, nil
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerMeetings(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-meeting",
		Method:        http.MethodPost,
		Path:          "/meetings",
		Summary:       "Create meeting",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateMeetingRequest `json:"body"`
	}) (*struct {
		Body MeetingResponse `json:"body"`
	}, error) {
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.CreateMeeting(ctx, input.Body.Name, input.Body.Moderate, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MeetingResponse `json:"body"`
		}{Body: meetingResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-meetings",
		Method:      http.MethodGet,
		Path:        "/meetings",
		Summary:     "List meetings",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []MeetingResponse `json:"body"`
	}, error) {
		meetings, err := e.Repo.ListMeetings(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]MeetingResponse, 0, len(meetings))
		for _, m := range meetings {
			res = append(res, meetingResponse(m))
		}
		return &struct {
			Body []MeetingResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-meeting",
		Method:      http.MethodGet,
		Path:        "/meetings/{meeting_id}",
		Summary:     "Get meeting",
	}, func(ctx context.Context, input *struct {
		MeetingID string `path:"meeting_id"`
	}) (*struct {
		Body MeetingResponse `json:"body"`
	}, error) {
		m, err := e.Repo.GetMeeting(ctx, input.MeetingID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MeetingResponse `json:"body"`
		}{Body: meetingResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-meeting",
		Method:      http.MethodPatch,
		Path:        "/meetings/{meeting_id}",
		Summary:     "Update meeting",
	}, func(ctx context.Context, input *struct {
		MeetingID string               `path:"meeting_id"`
		Body      UpdateMeetingRequest `json:"body"`
	}) (*struct {
		Body MeetingResponse `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, input.MeetingID, domain.CapPreside); err != nil {
			return nil, handleError(err)
		}
		m, err := e.UpdateMeeting(ctx, input.MeetingID, input.Body.Name, input.Body.Moderate, input.Body.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MeetingResponse `json:"body"`
		}{Body: meetingResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "grade-meeting",
		Method:        http.MethodPost,
		Path:          "/meetings/{meeting_id}/grade",
		Summary:       "Record a grading sync point",
		DefaultStatus: http.StatusAccepted,
	}, func(ctx context.Context, input *struct {
		MeetingID string         `path:"meeting_id"`
		Body      map[string]any `json:"body"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.Grade(ctx, input.MeetingID, actorID, input.Body); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "accepted"}}, nil
	})
}

func registerRoles(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "assign-role",
		Method:        http.MethodPost,
		Path:          "/meetings/{meeting_id}/roles",
		Summary:       "Assign role",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		MeetingID string            `path:"meeting_id"`
		Body      AssignRoleRequest `json:"body"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if input.Body.ActorID == "" || input.Body.Role == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id and role are required", nil)
		}
		if err := requireCapability(ctx, e, input.MeetingID, domain.CapPreside); err != nil {
			return nil, handleError(err)
		}
		if _, err := e.Repo.GetMeeting(ctx, input.MeetingID); err != nil {
			return nil, handleError(err)
		}
		if err := e.AssignRole(ctx, input.MeetingID, input.Body.ActorID, input.Body.Role); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "assigned"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "revoke-role",
		Method:      http.MethodDelete,
		Path:        "/meetings/{meeting_id}/roles/{actor_id}/{role}",
		Summary:     "Revoke role",
	}, func(ctx context.Context, input *struct {
		MeetingID string `path:"meeting_id"`
		ActorID   string `path:"actor_id"`
		Role      string `path:"role"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if err := requireCapability(ctx, e, input.MeetingID, domain.CapPreside); err != nil {
			return nil, handleError(err)
		}
		if err := e.Repo.RevokeRole(ctx, input.MeetingID, input.ActorID, input.Role); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "revoked"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-roles",
		Method:      http.MethodGet,
		Path:        "/meetings/{meeting_id}/roles",
		Summary:     "List role assignments",
	}, func(ctx context.Context, input *struct {
		MeetingID string `path:"meeting_id"`
	}) (*struct {
		Body []RoleResponse `json:"body"`
	}, error) {
		roles, err := e.Repo.ListRoles(ctx, input.MeetingID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]RoleResponse, 0, len(roles))
		for _, r := range roles {
			res = append(res, RoleResponse{ActorID: r.ActorID, Role: r.Role, CreatedAt: r.CreatedAt})
		}
		return &struct {
			Body []RoleResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerMotions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "offer-motion",
		Method:        http.MethodPost,
		Path:          "/meetings/{meeting_id}/motions",
		Summary:       "Offer a motion",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		MeetingID string             `path:"meeting_id"`
		Body      OfferMotionRequest `json:"body"`
	}) (*struct {
		Body *MotionResponse `json:"body"`
	}, error) {
		if input.Body.Type == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "type is required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.Make(ctx, actorID, input.MeetingID, input.Body.GroupID, input.Body.Type, input.Body.Payload)
		if err != nil {
			return nil, handleError(err)
		}
		// Disabled types are silently refused; the motion is simply absent.
		if m == nil {
			return &struct {
				Body *MotionResponse `json:"body"`
			}{}, nil
		}
		res := motionResponse(*m)
		return &struct {
			Body *MotionResponse `json:"body"`
		}{Body: &res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-motions",
		Method:      http.MethodGet,
		Path:        "/meetings/{meeting_id}/motions",
		Summary:     "List motions",
	}, func(ctx context.Context, input *struct {
		MeetingID string `path:"meeting_id"`
		Type      string `query:"type"`
		Status    string `query:"status"`
		CreatedBy string `query:"created_by"`
	}) (*struct {
		Body []MotionResponse `json:"body"`
	}, error) {
		motions, err := e.Repo.ListMotions(ctx, repo.MotionFilters{
			MeetingID: input.MeetingID,
			Type:      input.Type,
			Status:    domain.Status(input.Status),
			CreatedBy: input.CreatedBy,
		})
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]MotionResponse, 0, len(motions))
		for _, m := range motions {
			res = append(res, motionResponse(m))
		}
		return &struct {
			Body []MotionResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-motion",
		Method:      http.MethodGet,
		Path:        "/meetings/{meeting_id}/motions/{motion_id}",
		Summary:     "Get motion",
	}, func(ctx context.Context, input *struct {
		MeetingID string `path:"meeting_id"`
		MotionID  int64  `path:"motion_id"`
	}) (*struct {
		Body MotionResponse `json:"body"`
	}, error) {
		m, err := e.Repo.GetMotion(ctx, input.MotionID)
		if err != nil {
			return nil, handleError(err)
		}
		if m.MeetingID != input.MeetingID {
			return nil, newAPIError(http.StatusNotFound, "not_found", "motion not in meeting", nil)
		}
		return &struct {
			Body MotionResponse `json:"body"`
		}{Body: motionResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "decide-motion",
		Method:      http.MethodPut,
		Path:        "/meetings/{meeting_id}/motions/{motion_id}/status",
		Summary:     "Change motion status",
	}, func(ctx context.Context, input *struct {
		MeetingID string        `path:"meeting_id"`
		MotionID  int64         `path:"motion_id"`
		Body      DecideRequest `json:"body"`
	}) (*struct {
		Body MotionResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.Decide(ctx, input.MotionID, domain.Status(input.Body.Status), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MotionResponse `json:"body"`
		}{Body: motionResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-motion",
		Method:      http.MethodDelete,
		Path:        "/meetings/{meeting_id}/motions/{motion_id}",
		Summary:     "Delete motion and descendants",
	}, func(ctx context.Context, input *struct {
		MeetingID string `path:"meeting_id"`
		MotionID  int64  `path:"motion_id"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.Repo.GetMotion(ctx, input.MotionID)
		if err != nil {
			return nil, handleError(err)
		}
		if m.CreatedBy != principal.ActorID {
			if err := requireCapability(ctx, e, input.MeetingID, domain.CapPreside); err != nil {
				return nil, handleError(err)
			}
		}
		if err := e.Delete(ctx, input.MotionID, principal.ActorID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "deleted"}}, nil
	})
}

func registerFloor(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "pending-chain",
		Method:      http.MethodGet,
		Path:        "/meetings/{meeting_id}/pending",
		Summary:     "Pending motion chain",
	}, func(ctx context.Context, input *struct {
		MeetingID string `path:"meeting_id"`
		GroupID   int64  `query:"group"`
	}) (*struct {
		Body []MotionResponse `json:"body"`
	}, error) {
		ch, err := e.GetPending(ctx, input.MeetingID, input.GroupID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]MotionResponse, 0, len(ch))
		for _, m := range ch {
			res = append(res, motionResponse(m))
		}
		return &struct {
			Body []MotionResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "available-motions",
		Method:      http.MethodGet,
		Path:        "/meetings/{meeting_id}/available",
		Summary:     "Motion types in order right now",
	}, func(ctx context.Context, input *struct {
		MeetingID string `path:"meeting_id"`
		GroupID   int64  `query:"group"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		avail, err := e.AvailableMotions(ctx, actorID, input.MeetingID, input.GroupID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: avail}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "offered-motions",
		Method:      http.MethodGet,
		Path:        "/meetings/{meeting_id}/offered",
		Summary:     "Draft motions queued for the floor",
	}, func(ctx context.Context, input *struct {
		MeetingID string `path:"meeting_id"`
		GroupID   int64  `query:"group"`
	}) (*struct {
		Body []MotionResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		offered, err := e.OfferedMotions(ctx, actorID, input.MeetingID, input.GroupID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]MotionResponse, 0, len(offered))
		for _, m := range offered {
			res = append(res, motionResponse(m))
		}
		return &struct {
			Body []MotionResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/meetings/{meeting_id}/events",
		Summary:     "Latest events",
	}, func(ctx context.Context, input *struct {
		MeetingID string `path:"meeting_id"`
		Limit     int    `query:"limit"`
		Type      string `query:"type"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		limit := input.Limit
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		evts, err := e.Repo.LatestEvents(ctx, limit, input.MeetingID, input.Type, "", "")
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]EventResponse, 0, len(evts))
		for _, evt := range evts {
			res = append(res, eventResponse(evt))
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/keys",
		Summary:       "Register an API key",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		if input.Body.ActorID == "" || input.Body.Key == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id and key are required", nil)
		}
		k, err := e.Repo.InsertAPIKey(ctx, input.Body.ActorID, input.Body.Name, input.Body.Key)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: APIKeyResponse{ID: k.ID, ActorID: k.ActorID, Name: k.Name, CreatedAt: k.CreatedAt}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-api-key",
		Method:      http.MethodDelete,
		Path:        "/keys/{key_id}",
		Summary:     "Delete an API key",
	}, func(ctx context.Context, input *struct {
		KeyID string `path:"key_id"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if err := e.Repo.DeleteAPIKey(ctx, input.KeyID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "deleted"}}, nil
	})
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Authenticated principal",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MeResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body MeResponse `json:"body"`
		}{Body: MeResponse{
			ActorID:      principal.ActorID,
			Roles:        principal.Roles,
			Capabilities: principal.Capabilities,
			Source:       principal.Source,
		}}, nil
	})
}
