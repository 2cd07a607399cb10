// Package engine orchestrates the motion lifecycle: creation, queue
// promotion, status-change cascades, and the derived pending/offer views.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"plenum/internal/cache"
	"plenum/internal/config"
	"plenum/internal/domain"
	"plenum/internal/engine/auth"
	"plenum/internal/events"
	"plenum/internal/motion"
	"plenum/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Auth   auth.Service
	Config *config.Config
	Cache  *cache.Views
	Bus    *events.Bus
	Now    func() time.Time
}

// New wires an engine over an open database and meeting config.
func New(db *sql.DB, cfg *config.Config) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:     db,
		Repo:   r,
		Events: events.Writer{DB: db},
		Auth:   auth.Service{Repo: r, Config: cfg},
		Config: cfg,
		Cache:  cache.New(),
		Bus:    events.NewBus(),
		Now:    time.Now,
	}
}

func (e Engine) now() string {
	n := e.Now
	if n == nil {
		n = time.Now
	}
	return n().UTC().Format(time.RFC3339)
}

// txState accumulates the cache scopes touched and the notifications to
// publish once the transaction commits.
type txState struct {
	actorID string
	scopes  map[cache.ChainKey]struct{}
	notes   []events.Notification
}

func newTxState(actorID string) *txState {
	return &txState{actorID: actorID, scopes: map[cache.ChainKey]struct{}{}}
}

func (st *txState) touch(m domain.Motion) {
	st.scopes[cache.ChainKey{MeetingID: m.MeetingID, GroupID: m.GroupID}] = struct{}{}
}

func (e Engine) settle(ctx context.Context, st *txState) {
	for key := range st.scopes {
		e.Cache.Invalidate(key.MeetingID, key.GroupID)
	}
	for _, n := range st.notes {
		e.Bus.Publish(ctx, n)
	}
}

// txEnv gives policies transaction-bound reads.
type txEnv struct {
	eng Engine
	tx  *sql.Tx
}

func (env txEnv) HasChild(ctx context.Context, parentID int64, typ string, status domain.Status) (bool, error) {
	return env.eng.Repo.HasChildTx(ctx, env.tx, parentID, typ, status)
}

func (env txEnv) Motion(ctx context.Context, id int64) (domain.Motion, error) {
	return env.eng.Repo.GetMotionTx(ctx, env.tx, id)
}

func (env txEnv) Meeting(ctx context.Context, id string) (domain.Meeting, error) {
	return env.eng.Repo.GetMeetingTx(ctx, env.tx, id)
}

func (env txEnv) HasCapability(ctx context.Context, capability, meetingID, actorID string) (bool, error) {
	return env.eng.Auth.Has(ctx, env.tx, capability, meetingID, actorID)
}

// txMutator is what cascade hooks write through; SetStatus routes back
// into the engine so nested cascades fire.
type txMutator struct {
	txEnv
	st *txState
}

func (mut txMutator) SetStatus(ctx context.Context, m domain.Motion, status domain.Status) error {
	return mut.eng.changeStatusTx(ctx, mut.tx, m, status, mut.st)
}

func (mut txMutator) Pending(ctx context.Context, meetingID string) ([]domain.Motion, error) {
	return mut.eng.Repo.ListMotionsTx(ctx, mut.tx, repo.MotionFilters{
		MeetingID: meetingID,
		Status:    domain.StatusPending,
		OrderAsc:  true,
	})
}

func (mut txMutator) Children(ctx context.Context, parentID int64) ([]domain.Motion, error) {
	return mut.eng.Repo.ListChildrenTx(ctx, mut.tx, parentID)
}

// ChangeStatus applies a status transition with its moderation advance and
// type cascades, then invalidates caches and publishes notifications.
// Capability checks are the caller's responsibility; see Decide.
func (e Engine) ChangeStatus(ctx context.Context, motionID int64, status domain.Status, actorID string) (domain.Motion, error) {
	if !status.Valid() {
		return domain.Motion{}, fmt.Errorf("invalid status %q", status)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Motion{}, err
	}
	defer tx.Rollback()

	m, err := e.Repo.GetMotionTx(ctx, tx, motionID)
	if err != nil {
		return domain.Motion{}, err
	}
	st := newTxState(actorID)
	if err := e.changeStatusTx(ctx, tx, m, status, st); err != nil {
		return domain.Motion{}, err
	}
	updated, err := e.Repo.GetMotionTx(ctx, tx, motionID)
	if err != nil {
		return domain.Motion{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Motion{}, err
	}
	e.settle(ctx, st)
	return updated, nil
}

func (e Engine) changeStatusTx(ctx context.Context, tx *sql.Tx, m domain.Motion, status domain.Status, st *txState) error {
	policy, err := motion.Lookup(m.Type)
	if err != nil {
		return err
	}
	meeting, err := e.Repo.GetMeetingTx(ctx, tx, m.MeetingID)
	if err != nil {
		return err
	}

	// Leaving PENDING as the immediately-pending motion of an
	// automatically moderated meeting advances the queue.
	advance := false
	if m.Status == domain.StatusPending && status != domain.StatusPending && meeting.Moderate == domain.ModerateAutomatic {
		immediate, err := e.immediatePendingTx(ctx, tx, m.MeetingID, m.GroupID)
		if err != nil {
			return err
		}
		advance = immediate != nil && immediate.ID == m.ID
	}

	if err := e.Repo.UpdateMotionStatusTx(ctx, tx, m.ID, status, e.now()); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.MotionUpdated, m.MeetingID, "motion", fmt.Sprint(m.ID), st.actorID, events.EventPayload{
		"type":   m.Type,
		"status": string(status),
		"prev":   string(m.Status),
	}); err != nil {
		return err
	}
	st.touch(m)
	st.notes = append(st.notes, events.Notification{
		Type:      events.MotionUpdated,
		MeetingID: m.MeetingID,
		MotionID:  m.ID,
		Status:    string(status),
		ActorID:   st.actorID,
	})

	// Terminal decisions on decision-eligible motions are what gradebook
	// collaborators sync on.
	if policy.Decidable() && (status == domain.StatusAdopt || status == domain.StatusDecline) {
		if err := e.Events.Append(ctx, tx, events.PlenumGraded, m.MeetingID, "motion", fmt.Sprint(m.ID), st.actorID, events.EventPayload{
			"type":       m.Type,
			"status":     string(status),
			"created_by": m.CreatedBy,
		}); err != nil {
			return err
		}
		st.notes = append(st.notes, events.Notification{
			Type:      events.PlenumGraded,
			MeetingID: m.MeetingID,
			MotionID:  m.ID,
			Status:    string(status),
			ActorID:   st.actorID,
		})
	}

	mut := txMutator{txEnv: txEnv{eng: e, tx: tx}, st: st}
	changed := m
	changed.Status = status
	if err := policy.OnChangeStatus(ctx, mut, changed, status); err != nil {
		return err
	}

	if advance {
		// An adopted adjournment ends the meeting; nothing is promoted
		// onto the emptied floor.
		if m.Type == domain.TypeAdjourn && status == domain.StatusAdopt {
			return nil
		}
		next, err := e.Repo.NextQueuedTx(ctx, tx, m.MeetingID, m.GroupID, m.Parent)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return e.changeStatusTx(ctx, tx, next, domain.StatusPending, st)
	}
	return nil
}

// Make offers a new motion. A disabled type is silently refused (nil, nil);
// an unregistered type is an error. The motion anchors under the current
// immediately-pending motion (or that motion's parent when it is a floor
// request) and is promoted straight to PENDING when the creation rules in
// the meeting's moderation mode allow it.
func (e Engine) Make(ctx context.Context, actorID, meetingID string, groupID int64, typ string, payload map[string]any) (*domain.Motion, error) {
	if _, err := motion.Lookup(typ); err != nil {
		return nil, err
	}
	if e.Config != nil && !e.Config.TypeEnabled(typ) {
		return nil, nil
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	meeting, err := e.Repo.GetMeetingTx(ctx, tx, meetingID)
	if err != nil {
		return nil, err
	}
	immediate, err := e.immediatePendingTx(ctx, tx, meetingID, groupID)
	if err != nil {
		return nil, err
	}

	var parent *int64
	if immediate != nil {
		if immediate.Type == domain.TypeSpeak && immediate.Parent != nil {
			p := *immediate.Parent
			parent = &p
		} else {
			id := immediate.ID
			parent = &id
		}
	}

	now := e.now()
	m := domain.Motion{
		MeetingID:  meetingID,
		Type:       typ,
		Parent:     parent,
		GroupID:    groupID,
		Status:     domain.StatusDraft,
		CreatedBy:  actorID,
		CreatedAt:  now,
		ModifiedAt: now,
		Payload:    payload,
	}
	id, err := e.Repo.InsertMotionTx(ctx, tx, m)
	if err != nil {
		return nil, err
	}
	m.ID = id

	st := newTxState(actorID)
	if err := e.Events.Append(ctx, tx, events.MotionCreated, meetingID, "motion", fmt.Sprint(id), actorID, events.EventPayload{
		"type":   typ,
		"parent": m.ParentID(),
	}); err != nil {
		return nil, err
	}
	st.touch(m)
	st.notes = append(st.notes, events.Notification{
		Type:      events.MotionCreated,
		MeetingID: meetingID,
		MotionID:  id,
		Status:    string(domain.StatusDraft),
		ActorID:   actorID,
	})

	promote, err := e.promoteOnMake(ctx, tx, meeting, m, actorID)
	if err != nil {
		return nil, err
	}
	if promote {
		if err := e.changeStatusTx(ctx, tx, m, domain.StatusPending, st); err != nil {
			return nil, err
		}
	}

	final, err := e.Repo.GetMotionTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	e.settle(ctx, st)
	return &final, nil
}

// promoteOnMake decides whether a freshly offered motion skips the draft
// queue: presiding actors drive open/divide straight onto the floor, and
// automatic moderation promotes anything except ballots when the target
// parent scope has no pending motion yet.
func (e Engine) promoteOnMake(ctx context.Context, tx *sql.Tx, meeting domain.Meeting, m domain.Motion, actorID string) (bool, error) {
	if m.Type == domain.TypeDivide || m.Type == domain.TypeOpen {
		preside, err := e.Auth.Has(ctx, tx, domain.CapPreside, meeting.ID, actorID)
		if err != nil {
			return false, err
		}
		if preside {
			return true, nil
		}
	}
	if m.Type == domain.TypeNay || m.Type == domain.TypeYea {
		return false, nil
	}
	if meeting.Moderate != domain.ModerateAutomatic {
		return false, nil
	}
	siblings, err := e.Repo.ListMotionsTx(ctx, tx, repo.MotionFilters{
		MeetingID:  m.MeetingID,
		GroupID:    &m.GroupID,
		Parent:     m.Parent,
		ParentRoot: m.Parent == nil,
		Status:     domain.StatusPending,
	})
	if err != nil {
		return false, err
	}
	return len(siblings) == 0, nil
}

// CanDecide reports whether the actor may adopt or decline the motion: a
// presiding actor, a decision-eligible type, second satisfied, debate
// closed when debatable, and the motion currently on the floor.
func (e Engine) CanDecide(ctx context.Context, actorID string, m domain.Motion) (bool, error) {
	policy, err := motion.Lookup(m.Type)
	if err != nil {
		return false, err
	}
	if !policy.Decidable() {
		return false, nil
	}
	preside, err := e.Auth.Has(ctx, nil, domain.CapPreside, m.MeetingID, actorID)
	if err != nil || !preside {
		return false, err
	}
	immediate, err := e.ImmediatePending(ctx, m.MeetingID, m.GroupID)
	if err != nil {
		return false, err
	}
	if immediate == nil || immediate.ID != m.ID {
		return false, nil
	}
	inst, err := motion.NewInstance(m, e.dbEnv(), e.Config)
	if err != nil {
		return false, err
	}
	seconded, err := inst.SecondSatisfied(ctx)
	if err != nil || !seconded {
		return false, err
	}
	if policy.Debatable() {
		return inst.CallAdopted(ctx)
	}
	return true, nil
}

// Decide gates a status change on the actor's standing. Promoting a draft
// to PENDING needs the preside capability; terminal outcomes additionally
// need CanDecide to hold.
func (e Engine) Decide(ctx context.Context, motionID int64, status domain.Status, actorID string) (domain.Motion, error) {
	m, err := e.Repo.GetMotion(ctx, motionID)
	if err != nil {
		return domain.Motion{}, err
	}
	switch status {
	case domain.StatusPending, domain.StatusClosed, domain.StatusOpen:
		if err := e.Auth.Require(ctx, nil, domain.CapPreside, m.MeetingID, actorID); err != nil {
			return domain.Motion{}, err
		}
	case domain.StatusAdopt, domain.StatusDecline:
		ok, err := e.CanDecide(ctx, actorID, m)
		if err != nil {
			return domain.Motion{}, err
		}
		if !ok {
			return domain.Motion{}, auth.ForbiddenError{ActorID: actorID, Capability: domain.CapPreside, MeetingID: m.MeetingID}
		}
	default:
		return domain.Motion{}, fmt.Errorf("invalid status %q", status)
	}
	return e.ChangeStatus(ctx, motionID, status, actorID)
}

// HasChild reports whether the motion has a child of the given type and status.
func (e Engine) HasChild(ctx context.Context, motionID int64, typ string, status domain.Status) (bool, error) {
	return e.Repo.HasChild(ctx, motionID, typ, status)
}

// Descendants returns the motion and every transitive child, parents before
// children.
func (e Engine) Descendants(ctx context.Context, motionID int64) ([]domain.Motion, error) {
	root, err := e.Repo.GetMotion(ctx, motionID)
	if err != nil {
		return nil, err
	}
	res := []domain.Motion{root}
	queue := []int64{motionID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		children, err := e.Repo.ListMotions(ctx, repo.MotionFilters{Parent: &id, OrderAsc: true})
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			res = append(res, c)
			queue = append(queue, c.ID)
		}
	}
	return res, nil
}

// Delete removes a motion and its descendants. The before hook fires and
// must succeed before anything is mutated, so collaborators can release
// attached resources first.
func (e Engine) Delete(ctx context.Context, motionID int64, actorID string) error {
	desc, err := e.Descendants(ctx, motionID)
	if err != nil {
		return err
	}
	root := desc[0]
	if e.Bus != nil {
		if err := e.Bus.PublishBlocking(ctx, events.Notification{
			Type:      events.BeforeMotionDeleted,
			MeetingID: root.MeetingID,
			MotionID:  root.ID,
			Status:    string(root.Status),
			ActorID:   actorID,
		}); err != nil {
			return fmt.Errorf("before delete hook: %w", err)
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	st := newTxState(actorID)
	// Children first so the parent foreign key is never dangling.
	for i := len(desc) - 1; i >= 0; i-- {
		m := desc[i]
		if err := e.Repo.DeleteMotionTx(ctx, tx, m.ID); err != nil {
			return err
		}
		if err := e.Events.Append(ctx, tx, events.MotionDeleted, m.MeetingID, "motion", fmt.Sprint(m.ID), actorID, events.EventPayload{
			"type": m.Type,
		}); err != nil {
			return err
		}
		st.touch(m)
		st.notes = append(st.notes, events.Notification{
			Type:      events.MotionDeleted,
			MeetingID: m.MeetingID,
			MotionID:  m.ID,
			Status:    string(m.Status),
			ActorID:   actorID,
		})
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.settle(ctx, st)
	return nil
}

// dbEnv is the non-transactional Env used by read paths.
type dbEnv struct {
	eng Engine
}

func (e Engine) dbEnv() dbEnv { return dbEnv{eng: e} }

func (env dbEnv) HasChild(ctx context.Context, parentID int64, typ string, status domain.Status) (bool, error) {
	return env.eng.Repo.HasChild(ctx, parentID, typ, status)
}

func (env dbEnv) Motion(ctx context.Context, id int64) (domain.Motion, error) {
	return env.eng.Repo.GetMotion(ctx, id)
}

func (env dbEnv) Meeting(ctx context.Context, id string) (domain.Meeting, error) {
	return env.eng.Repo.GetMeeting(ctx, id)
}

func (env dbEnv) HasCapability(ctx context.Context, capability, meetingID, actorID string) (bool, error) {
	return env.eng.Auth.Has(ctx, nil, capability, meetingID, actorID)
}
