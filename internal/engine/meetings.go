package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"plenum/internal/domain"
	"plenum/internal/events"
)

// CreateMeeting opens a new plenary meeting and makes its creator the chair.
func (e Engine) CreateMeeting(ctx context.Context, name, moderate, actorID string) (domain.Meeting, error) {
	switch moderate {
	case "":
		moderate = domain.ModerateAutomatic
	case domain.ModerateAutomatic, domain.ModerateManual:
	default:
		return domain.Meeting{}, fmt.Errorf("moderate must be %q or %q", domain.ModerateAutomatic, domain.ModerateManual)
	}
	m := domain.Meeting{
		ID:        uuid.NewString(),
		Name:      name,
		Moderate:  moderate,
		Status:    "active",
		CreatedBy: actorID,
		CreatedAt: e.now(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Meeting{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertMeetingTx(ctx, tx, m); err != nil {
		return domain.Meeting{}, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO meeting_roles(meeting_id,actor_id,role,created_at) VALUES (?,?,?,?)`,
		m.ID, actorID, "chair", m.CreatedAt); err != nil {
		return domain.Meeting{}, err
	}
	if err := e.Events.Append(ctx, tx, events.MeetingCreated, m.ID, "meeting", m.ID, actorID, events.EventPayload{
		"name":     name,
		"moderate": moderate,
	}); err != nil {
		return domain.Meeting{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Meeting{}, err
	}
	if e.Bus != nil {
		e.Bus.Publish(ctx, events.Notification{Type: events.MeetingCreated, MeetingID: m.ID, ActorID: actorID})
	}
	return m, nil
}

// UpdateMeeting changes name, moderation mode, or status.
func (e Engine) UpdateMeeting(ctx context.Context, id, name, moderate, status string) (domain.Meeting, error) {
	switch moderate {
	case "", domain.ModerateAutomatic, domain.ModerateManual:
	default:
		return domain.Meeting{}, fmt.Errorf("moderate must be %q or %q", domain.ModerateAutomatic, domain.ModerateManual)
	}
	if err := e.Repo.UpdateMeeting(ctx, id, name, moderate, status); err != nil {
		return domain.Meeting{}, err
	}
	m, err := e.Repo.GetMeeting(ctx, id)
	if err != nil {
		return domain.Meeting{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return m, err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, events.MeetingUpdated, id, "meeting", id, m.CreatedBy, events.EventPayload{
		"name":     m.Name,
		"moderate": m.Moderate,
		"status":   m.Status,
	}); err != nil {
		return m, err
	}
	if err := tx.Commit(); err != nil {
		return m, err
	}
	e.Cache.InvalidateMeeting(id)
	if e.Bus != nil {
		e.Bus.Publish(ctx, events.Notification{Type: events.MeetingUpdated, MeetingID: id})
	}
	return m, nil
}

// AssignRole grants a meeting role, stamped with the engine clock.
func (e Engine) AssignRole(ctx context.Context, meetingID, actorID, role string) error {
	return e.Repo.AssignRole(ctx, meetingID, actorID, role, e.now())
}

// Grade records a grading sync point for external gradebook collaborators.
// The engine only emits the hook; grade computation happens elsewhere.
func (e Engine) Grade(ctx context.Context, meetingID, actorID string, payload map[string]any) error {
	if err := e.Auth.Require(ctx, nil, domain.CapGrade, meetingID, actorID); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, events.PlenumGraded, meetingID, "meeting", meetingID, actorID, events.EventPayload(payload)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if e.Bus != nil {
		e.Bus.Publish(ctx, events.Notification{Type: events.PlenumGraded, MeetingID: meetingID, ActorID: actorID})
	}
	return nil
}
