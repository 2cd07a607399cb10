package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plenum/internal/config"
	"plenum/internal/domain"
	"plenum/internal/repo"
)

// ResolveMeetingAndConfig picks the active meeting and ensures a meeting +
// config exist in the DB, seeding defaults if missing. An explicit override
// wins; otherwise a lone meeting in the workspace is used. A named meeting
// that does not exist yet is created on the fly with its caller as chair.
func ResolveMeetingAndConfig(ctx context.Context, meetingOverride, actorID string, r repo.Repo) (string, *config.Config, error) {
	meetingID := meetingOverride
	if meetingID == "" {
		m, err := r.SingleMeeting(ctx)
		if err != nil {
			return "", nil, fmt.Errorf("meeting not specified; use --meeting")
		}
		meetingID = m.ID
	}
	seedCfg := config.Default(meetingID)

	if _, err := r.GetMeeting(ctx, meetingID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		if err := createMeeting(ctx, r, meetingID, seedCfg, actorID); err != nil {
			return "", nil, err
		}
	}
	cfg, err := r.GetMeetingConfig(ctx, meetingID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		if err := r.UpsertMeetingConfig(ctx, meetingID, seedCfg); err != nil {
			return "", nil, fmt.Errorf("seed meeting config: %w", err)
		}
		cfg = seedCfg
	}
	cfg.Meeting.ID = meetingID
	return meetingID, cfg, nil
}

func createMeeting(ctx context.Context, r repo.Repo, meetingID string, seedCfg *config.Config, actorID string) error {
	if seedCfg == nil {
		seedCfg = config.Default(meetingID)
	}
	if actorID == "" {
		actorID = "local-user"
	}
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	m := domain.Meeting{
		ID:        meetingID,
		Name:      meetingID,
		Moderate:  domain.ModerateAutomatic,
		Status:    "active",
		CreatedBy: actorID,
		CreatedAt: now,
	}
	if err := r.InsertMeetingTx(ctx, tx, m); err != nil {
		return fmt.Errorf("insert meeting: %w", err)
	}
	if err := r.UpsertMeetingConfigTx(ctx, tx, meetingID, seedCfg); err != nil {
		return fmt.Errorf("insert meeting config: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO meeting_roles(meeting_id,actor_id,role,created_at) VALUES (?,?,?,?)`,
		meetingID, actorID, "chair", now); err != nil {
		return fmt.Errorf("assign chair: %w", err)
	}
	return tx.Commit()
}
