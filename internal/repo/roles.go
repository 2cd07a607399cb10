package repo

import (
	"context"
	"database/sql"

	"plenum/internal/domain"
)

// AssignRole grants a role to an actor for a meeting. Re-assigning an
// existing role is a no-op. The caller supplies the timestamp so it comes
// from the engine clock.
func (r Repo) AssignRole(ctx context.Context, meetingID, actorID, role, createdAt string) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO meeting_roles(meeting_id,actor_id,role,created_at) VALUES (?,?,?,?)
ON CONFLICT(meeting_id,actor_id,role) DO NOTHING`, meetingID, actorID, role, createdAt)
	return err
}

func (r Repo) RevokeRole(ctx context.Context, meetingID, actorID, role string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM meeting_roles WHERE meeting_id=? AND actor_id=? AND role=?`, meetingID, actorID, role)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ActorRoles(ctx context.Context, meetingID, actorID string) ([]string, error) {
	return actorRoles(ctx, r.DB.QueryContext, meetingID, actorID)
}

func (r Repo) ActorRolesTx(ctx context.Context, tx *sql.Tx, meetingID, actorID string) ([]string, error) {
	return actorRoles(ctx, tx.QueryContext, meetingID, actorID)
}

func actorRoles(ctx context.Context, query queryFunc, meetingID, actorID string) ([]string, error) {
	rows, err := query(ctx, `SELECT role FROM meeting_roles WHERE meeting_id=? AND actor_id=? ORDER BY role`, meetingID, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// ListRoles returns every role assignment for a meeting.
func (r Repo) ListRoles(ctx context.Context, meetingID string) ([]domain.MeetingRole, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT meeting_id,actor_id,role,created_at FROM meeting_roles WHERE meeting_id=? ORDER BY actor_id, role`, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.MeetingRole
	for rows.Next() {
		var mr domain.MeetingRole
		if err := rows.Scan(&mr.MeetingID, &mr.ActorID, &mr.Role, &mr.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, mr)
	}
	return res, rows.Err()
}
