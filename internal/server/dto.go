package server

import (
	"encoding/json"

	"plenum/internal/domain"
)

type CreateMeetingRequest struct {
	Name     string `json:"name"`
	Moderate string `json:"moderate,omitempty" enum:"automatic,manual"`
}

type UpdateMeetingRequest struct {
	Name     string `json:"name,omitempty"`
	Moderate string `json:"moderate,omitempty" enum:"automatic,manual"`
	Status   string `json:"status,omitempty" enum:"active,closed"`
}

type MeetingResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Moderate  string `json:"moderate"`
	Status    string `json:"status"`
	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at"`
}

type AssignRoleRequest struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role"`
}

type RoleResponse struct {
	ActorID   string `json:"actor_id"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

type OfferMotionRequest struct {
	Type    string         `json:"type"`
	GroupID int64          `json:"group_id,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

type DecideRequest struct {
	Status string `json:"status" enum:"pending,open,closed,adopt,decline"`
}

type MotionResponse struct {
	ID         int64          `json:"id"`
	MeetingID  string         `json:"meeting_id"`
	Type       string         `json:"type"`
	Parent     *int64         `json:"parent,omitempty"`
	GroupID    int64          `json:"group_id"`
	Status     string         `json:"status"`
	CreatedBy  string         `json:"created_by"`
	CreatedAt  string         `json:"created_at"`
	ModifiedAt string         `json:"modified_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type EventResponse struct {
	ID         int64           `json:"id"`
	TS         string          `json:"ts"`
	Type       string          `json:"type"`
	MeetingID  string          `json:"meeting_id,omitempty"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	Payload    json.RawMessage `json:"payload"`
}

type CreateKeyRequest struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name,omitempty"`
	Key     string `json:"key"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at"`
}

type MeResponse struct {
	ActorID      string   `json:"actor_id"`
	Roles        []string `json:"roles,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Source       string   `json:"source"`
}

func meetingResponse(m domain.Meeting) MeetingResponse {
	return MeetingResponse{
		ID:        m.ID,
		Name:      m.Name,
		Moderate:  m.Moderate,
		Status:    m.Status,
		CreatedBy: m.CreatedBy,
		CreatedAt: m.CreatedAt,
	}
}

func motionResponse(m domain.Motion) MotionResponse {
	return MotionResponse{
		ID:         m.ID,
		MeetingID:  m.MeetingID,
		Type:       m.Type,
		Parent:     m.Parent,
		GroupID:    m.GroupID,
		Status:     string(m.Status),
		CreatedBy:  m.CreatedBy,
		CreatedAt:  m.CreatedAt,
		ModifiedAt: m.ModifiedAt,
		Payload:    m.Payload,
	}
}

func eventResponse(evt domain.Event) EventResponse {
	payload := json.RawMessage([]byte("{}"))
	if evt.Payload != "" && json.Valid([]byte(evt.Payload)) {
		payload = json.RawMessage([]byte(evt.Payload))
	}
	return EventResponse{
		ID:         evt.ID,
		TS:         evt.TS,
		Type:       evt.Type,
		MeetingID:  evt.MeetingID,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		Payload:    payload,
	}
}
