package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"plenum/internal/config"
	"plenum/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const motionColumns = `id,meeting_id,type,parent,group_id,status,created_by,created_at,modified_at,payload_json`

func scanMotion(scan func(dest ...any) error) (domain.Motion, error) {
	var m domain.Motion
	var parent sql.NullInt64
	var status string
	var payload sql.NullString
	err := scan(&m.ID, &m.MeetingID, &m.Type, &parent, &m.GroupID, &status, &m.CreatedBy, &m.CreatedAt, &m.ModifiedAt, &payload)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	m.Status = domain.Status(status)
	if parent.Valid {
		p := parent.Int64
		m.Parent = &p
	}
	if payload.Valid && payload.String != "" {
		_ = json.Unmarshal([]byte(payload.String), &m.Payload)
	}
	return m, nil
}

func marshalPayload(payload map[string]any) (any, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal motion payload: %w", err)
	}
	return string(data), nil
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// InsertMotionTx inserts a motion and returns its assigned id.
func (r Repo) InsertMotionTx(ctx context.Context, tx *sql.Tx, m domain.Motion) (int64, error) {
	payload, err := marshalPayload(m.Payload)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO motions(meeting_id,type,parent,group_id,status,created_by,created_at,modified_at,payload_json)
VALUES (?,?,?,?,?,?,?,?,?)`,
		m.MeetingID, m.Type, nullableInt64Ptr(m.Parent), m.GroupID, string(m.Status), m.CreatedBy, m.CreatedAt, m.ModifiedAt, payload)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetMotion(ctx context.Context, id int64) (domain.Motion, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+motionColumns+` FROM motions WHERE id=?`, id)
	return scanMotion(row.Scan)
}

func (r Repo) GetMotionTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Motion, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+motionColumns+` FROM motions WHERE id=?`, id)
	return scanMotion(row.Scan)
}

// UpdateMotionStatusTx writes a new status and modified timestamp. The
// caller supplies the timestamp so it comes from the engine clock.
func (r Repo) UpdateMotionStatusTx(ctx context.Context, tx *sql.Tx, id int64, status domain.Status, modifiedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE motions SET status=?, modified_at=? WHERE id=?`, string(status), modifiedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteMotionTx(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM motions WHERE id=?`, id)
	return err
}

// MotionFilters narrows ListMotions. Nil pointer fields are unfiltered;
// ParentRoot selects motions with no parent.
type MotionFilters struct {
	MeetingID  string
	GroupID    *int64
	Parent     *int64
	ParentRoot bool
	Type       string
	Status     domain.Status
	CreatedBy  string
	OrderAsc   bool
}

func (f MotionFilters) clauses() (string, []any) {
	var clauses []string
	var args []any
	if f.MeetingID != "" {
		clauses = append(clauses, "meeting_id=?")
		args = append(args, f.MeetingID)
	}
	if f.GroupID != nil {
		clauses = append(clauses, "group_id=?")
		args = append(args, *f.GroupID)
	}
	if f.ParentRoot {
		clauses = append(clauses, "parent IS NULL")
	} else if f.Parent != nil {
		clauses = append(clauses, "parent=?")
		args = append(args, *f.Parent)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, string(f.Status))
	}
	if f.CreatedBy != "" {
		clauses = append(clauses, "created_by=?")
		args = append(args, f.CreatedBy)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	return where, args
}

func (r Repo) ListMotions(ctx context.Context, f MotionFilters) ([]domain.Motion, error) {
	return r.listMotions(ctx, r.DB.QueryContext, f)
}

func (r Repo) ListMotionsTx(ctx context.Context, tx *sql.Tx, f MotionFilters) ([]domain.Motion, error) {
	return r.listMotions(ctx, tx.QueryContext, f)
}

type queryFunc func(ctx context.Context, query string, args ...any) (*sql.Rows, error)

func (r Repo) listMotions(ctx context.Context, query queryFunc, f MotionFilters) ([]domain.Motion, error) {
	where, args := f.clauses()
	order := "ORDER BY created_at DESC, id DESC"
	if f.OrderAsc {
		order = "ORDER BY created_at ASC, id ASC"
	}
	rows, err := query(ctx, `SELECT `+motionColumns+` FROM motions `+where+` `+order, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Motion
	for rows.Next() {
		m, err := scanMotion(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// HasChildTx reports whether any motion with the given parent, type and
// status exists. Policies use this for "has this been seconded/called".
func (r Repo) HasChildTx(ctx context.Context, tx *sql.Tx, parentID int64, typ string, status domain.Status) (bool, error) {
	row := tx.QueryRowContext(ctx, `SELECT 1 FROM motions WHERE parent=? AND type=? AND status=? LIMIT 1`, parentID, typ, string(status))
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) HasChild(ctx context.Context, parentID int64, typ string, status domain.Status) (bool, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT 1 FROM motions WHERE parent=? AND type=? AND status=? LIMIT 1`, parentID, typ, string(status))
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// ListChildrenTx returns the direct children of a motion.
func (r Repo) ListChildrenTx(ctx context.Context, tx *sql.Tx, parentID int64) ([]domain.Motion, error) {
	return r.listMotions(ctx, tx.QueryContext, MotionFilters{Parent: &parentID, OrderAsc: true})
}

// PendingTx returns every pending motion in the (meeting, group) scope.
func (r Repo) PendingTx(ctx context.Context, tx *sql.Tx, meetingID string, groupID int64) ([]domain.Motion, error) {
	return r.listMotions(ctx, tx.QueryContext, MotionFilters{
		MeetingID: meetingID,
		GroupID:   &groupID,
		Status:    domain.StatusPending,
		OrderAsc:  true,
	})
}

func (r Repo) Pending(ctx context.Context, meetingID string, groupID int64) ([]domain.Motion, error) {
	return r.listMotions(ctx, r.DB.QueryContext, MotionFilters{
		MeetingID: meetingID,
		GroupID:   &groupID,
		Status:    domain.StatusPending,
		OrderAsc:  true,
	})
}

// NextQueuedTx finds the draft motion next in line for promotion under the
// given parent scope. Point-of-order motions jump the queue; otherwise FIFO.
func (r Repo) NextQueuedTx(ctx context.Context, tx *sql.Tx, meetingID string, groupID int64, parent *int64) (domain.Motion, error) {
	clauses := []string{"meeting_id=?", "group_id=?", "status=?"}
	args := []any{meetingID, groupID, string(domain.StatusDraft)}
	if parent == nil {
		clauses = append(clauses, "parent IS NULL")
	} else {
		clauses = append(clauses, "parent=?")
		args = append(args, *parent)
	}
	query := `SELECT ` + motionColumns + ` FROM motions WHERE ` + strings.Join(clauses, " AND ") + `
ORDER BY CASE WHEN type=? THEN 0 ELSE 1 END, created_at ASC, id ASC LIMIT 1`
	args = append(args, domain.TypeOrder)
	row := tx.QueryRowContext(ctx, query, args...)
	return scanMotion(row.Scan)
}

// --- meetings ---

func scanMeeting(scan func(dest ...any) error) (domain.Meeting, error) {
	var m domain.Meeting
	err := scan(&m.ID, &m.Name, &m.Moderate, &m.Status, &m.CreatedBy, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	return m, err
}

func (r Repo) InsertMeetingTx(ctx context.Context, tx *sql.Tx, m domain.Meeting) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO meetings(id,name,moderate,status,created_by,created_at) VALUES (?,?,?,?,?,?)`,
		m.ID, m.Name, m.Moderate, m.Status, m.CreatedBy, m.CreatedAt)
	return err
}

func (r Repo) GetMeeting(ctx context.Context, id string) (domain.Meeting, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,name,moderate,status,created_by,created_at FROM meetings WHERE id=?`, id)
	return scanMeeting(row.Scan)
}

func (r Repo) GetMeetingTx(ctx context.Context, tx *sql.Tx, id string) (domain.Meeting, error) {
	row := tx.QueryRowContext(ctx, `SELECT id,name,moderate,status,created_by,created_at FROM meetings WHERE id=?`, id)
	return scanMeeting(row.Scan)
}

func (r Repo) ListMeetings(ctx context.Context) ([]domain.Meeting, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,moderate,status,created_by,created_at FROM meetings ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// SingleMeeting returns the only meeting in the workspace, or an error when
// zero or several exist.
func (r Repo) SingleMeeting(ctx context.Context) (domain.Meeting, error) {
	meetings, err := r.ListMeetings(ctx)
	if err != nil {
		return domain.Meeting{}, err
	}
	if len(meetings) == 0 {
		return domain.Meeting{}, ErrNotFound
	}
	if len(meetings) > 1 {
		return domain.Meeting{}, fmt.Errorf("multiple meetings exist; specify --meeting")
	}
	return meetings[0], nil
}

func (r Repo) UpdateMeeting(ctx context.Context, id, name, moderate, status string) error {
	var (
		fields []string
		args   []any
	)
	if name != "" {
		fields = append(fields, "name=?")
		args = append(args, name)
	}
	if moderate != "" {
		fields = append(fields, "moderate=?")
		args = append(args, moderate)
	}
	if status != "" {
		fields = append(fields, "status=?")
		args = append(args, status)
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE meetings SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteMeeting(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM meetings WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- meeting configs ---

func (r Repo) UpsertMeetingConfig(ctx context.Context, meetingID string, cfg *config.Config) error {
	return upsertMeetingConfig(ctx, r.DB, nil, meetingID, cfg)
}

func (r Repo) UpsertMeetingConfigTx(ctx context.Context, tx *sql.Tx, meetingID string, cfg *config.Config) error {
	return upsertMeetingConfig(ctx, nil, tx, meetingID, cfg)
}

func upsertMeetingConfig(ctx context.Context, db *sql.DB, tx *sql.Tx, meetingID string, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	cfg.Meeting.ID = meetingID
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return db.ExecContext(ctx, query, args...)
	}
	_, err = exec(`INSERT INTO meeting_configs(meeting_id,config_json,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(meeting_id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`, meetingID, string(payload), now, now)
	return err
}

func (r Repo) GetMeetingConfig(ctx context.Context, meetingID string) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM meeting_configs WHERE meeting_id=?`, meetingID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	if cfg.Meeting.ID == "" {
		cfg.Meeting.ID = meetingID
	}
	return &cfg, cfg.Validate()
}

// --- events ---

func (r Repo) LatestEvents(ctx context.Context, limit int, meetingID, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if meetingID != "" {
		clauses = append(clauses, "meeting_id=?")
		args = append(args, meetingID)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,meeting_id,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	return r.queryEvents(ctx, query, args...)
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64, meetingID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"1=1"}
	var args []any
	if meetingID != "" {
		clauses = append(clauses, "meeting_id=?")
		args = append(args, meetingID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,meeting_id,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id ASC LIMIT ?`, where)
	args = append(args, limit)
	return r.queryEvents(ctx, query, args...)
}

// LatestEventID returns the most recent event ID for a meeting.
func (r Repo) LatestEventID(ctx context.Context, meetingID string) (int64, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events WHERE meeting_id=?`, meetingID)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var meetingID, entityID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &meetingID, &e.EntityKind, &entityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if meetingID.Valid {
			e.MeetingID = meetingID.String
		}
		if entityID.Valid {
			e.EntityID = entityID.String
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
