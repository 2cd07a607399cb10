// Package auth resolves actor capabilities from meeting roles.
package auth

import (
	"context"
	"database/sql"
	"fmt"

	"plenum/internal/config"
	"plenum/internal/repo"
)

// ForbiddenError marks a capability check failure so callers can map it to
// a 403 instead of a 500.
type ForbiddenError struct {
	ActorID    string
	Capability string
	MeetingID  string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("actor %s lacks capability %s in meeting %s", e.ActorID, e.Capability, e.MeetingID)
}

func IsForbidden(err error) bool {
	_, ok := err.(ForbiddenError)
	return ok
}

// Service answers capability queries against meeting role assignments and
// the meeting config's role definitions.
type Service struct {
	Repo   repo.Repo
	Config *config.Config
}

// Capabilities returns the union of capabilities the actor's roles grant.
func (s Service) Capabilities(ctx context.Context, tx *sql.Tx, meetingID, actorID string) (map[string]bool, error) {
	var roles []string
	var err error
	if tx != nil {
		roles, err = s.Repo.ActorRolesTx(ctx, tx, meetingID, actorID)
	} else {
		roles, err = s.Repo.ActorRoles(ctx, meetingID, actorID)
	}
	if err != nil {
		return nil, err
	}
	caps := map[string]bool{}
	if s.Config == nil {
		return caps, nil
	}
	for _, role := range roles {
		rc, ok := s.Config.Roles[role]
		if !ok {
			continue
		}
		for _, c := range rc.Capabilities {
			caps[c] = true
		}
	}
	return caps, nil
}

// Has reports whether the actor holds the capability in the meeting.
func (s Service) Has(ctx context.Context, tx *sql.Tx, capability, meetingID, actorID string) (bool, error) {
	caps, err := s.Capabilities(ctx, tx, meetingID, actorID)
	if err != nil {
		return false, err
	}
	return caps[capability], nil
}

// Require returns a ForbiddenError when the actor lacks the capability.
func (s Service) Require(ctx context.Context, tx *sql.Tx, capability, meetingID, actorID string) error {
	ok, err := s.Has(ctx, tx, capability, meetingID, actorID)
	if err != nil {
		return err
	}
	if !ok {
		return ForbiddenError{ActorID: actorID, Capability: capability, MeetingID: meetingID}
	}
	return nil
}
