package domain

// Status is a motion lifecycle state.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusPending Status = "pending"
	StatusOpen    Status = "open"
	StatusClosed  Status = "closed"
	StatusAdopt   Status = "adopt"
	StatusDecline Status = "decline"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusOpen, StatusClosed, StatusAdopt, StatusDecline:
		return true
	}
	return false
}

// Motion type names. Each maps to a registered policy in internal/motion.
const (
	TypeOpen    = "open"
	TypeResolve = "resolve"
	TypeAmend   = "amend"
	TypeCall    = "call"
	TypeDivide  = "divide"
	TypeSecond  = "second"
	TypeSpeak   = "speak"
	TypeAdjourn = "adjourn"
	TypeNay     = "nay"
	TypeYea     = "yea"
	TypeOrder   = "order"
)

// Moderation modes for a meeting.
const (
	ModerateAutomatic = "automatic"
	ModerateManual    = "manual"
)

// Capability names checked against meeting roles.
const (
	CapPreside = "preside"
	CapMeet    = "meet"
	CapGrade   = "grade"
)

type Meeting struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Moderate  string `json:"moderate" enum:"automatic,manual"`
	Status    string `json:"status" enum:"active,closed"`
	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Motion struct {
	ID         int64          `json:"id"`
	MeetingID  string         `json:"meeting_id"`
	Type       string         `json:"type"`
	Parent     *int64         `json:"parent,omitempty"`
	GroupID    int64          `json:"group_id,omitempty"`
	Status     Status         `json:"status" enum:"draft,pending,open,closed,adopt,decline"`
	CreatedBy  string         `json:"created_by"`
	CreatedAt  string         `json:"created_at" format:"date-time"`
	ModifiedAt string         `json:"modified_at" format:"date-time"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// ParentID returns the parent id or 0 for a top-level motion.
func (m Motion) ParentID() int64 {
	if m.Parent == nil {
		return 0
	}
	return *m.Parent
}

type MeetingRole struct {
	MeetingID string `json:"meeting_id"`
	ActorID   string `json:"actor_id"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	MeetingID  string `json:"meeting_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
