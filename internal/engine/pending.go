package engine

import (
	"context"
	"database/sql"

	"plenum/internal/cache"
	"plenum/internal/domain"
	"plenum/internal/repo"
)

// chain orders a scope's pending motions into the parent chain: the root
// is the pending motion whose parent is null or outside the scope, each
// following element is the child of the previous one. The last element is
// the immediately pending motion.
func chain(pending []domain.Motion) []domain.Motion {
	if len(pending) == 0 {
		return nil
	}
	inScope := map[int64]bool{}
	byParent := map[int64]domain.Motion{}
	for _, m := range pending {
		inScope[m.ID] = true
	}
	var root *domain.Motion
	for _, m := range pending {
		if m.Parent == nil || !inScope[*m.Parent] {
			if root == nil {
				r := m
				root = &r
			}
			continue
		}
		byParent[*m.Parent] = m
	}
	if root == nil {
		return nil
	}
	res := []domain.Motion{*root}
	cur := root.ID
	for {
		next, ok := byParent[cur]
		if !ok {
			break
		}
		res = append(res, next)
		cur = next.ID
	}
	return res
}

// GetPending returns the ordered pending chain for a meeting and group,
// serving from cache when possible.
func (e Engine) GetPending(ctx context.Context, meetingID string, groupID int64) ([]domain.Motion, error) {
	key := cache.ChainKey{MeetingID: meetingID, GroupID: groupID}
	if cached, ok := e.Cache.Chain(key); ok {
		return cached, nil
	}
	pending, err := e.Repo.Pending(ctx, meetingID, groupID)
	if err != nil {
		return nil, err
	}
	res := chain(pending)
	e.Cache.PutChain(key, res)
	return res, nil
}

// ImmediatePending returns the motion currently on the floor, or nil.
func (e Engine) ImmediatePending(ctx context.Context, meetingID string, groupID int64) (*domain.Motion, error) {
	ch, err := e.GetPending(ctx, meetingID, groupID)
	if err != nil {
		return nil, err
	}
	if len(ch) == 0 {
		return nil, nil
	}
	m := ch[len(ch)-1]
	return &m, nil
}

func (e Engine) immediatePendingTx(ctx context.Context, tx *sql.Tx, meetingID string, groupID int64) (*domain.Motion, error) {
	pending, err := e.Repo.PendingTx(ctx, tx, meetingID, groupID)
	if err != nil {
		return nil, err
	}
	ch := chain(pending)
	if len(ch) == 0 {
		return nil, nil
	}
	m := ch[len(ch)-1]
	return &m, nil
}

// OfferedMotions lists the draft motions queued beneath the current
// immediately-pending motion, oldest first. When the floor is held by a
// speak motion the offers anchor at its parent, so drafts attach to the
// debate rather than the transient floor request. Non-presiding actors see
// only their own drafts.
func (e Engine) OfferedMotions(ctx context.Context, actorID, meetingID string, groupID int64) ([]domain.Motion, error) {
	key := cache.OfferKey{MeetingID: meetingID, ActorID: actorID, GroupID: groupID}
	if cached, ok := e.Cache.Offers(key); ok {
		return cached, nil
	}
	immediate, err := e.ImmediatePending(ctx, meetingID, groupID)
	if err != nil {
		return nil, err
	}
	if immediate == nil {
		return nil, nil
	}
	anchor := immediate.ID
	if immediate.Type == domain.TypeSpeak && immediate.Parent != nil {
		anchor = *immediate.Parent
	}
	drafts, err := e.Repo.ListMotions(ctx, repo.MotionFilters{
		MeetingID: meetingID,
		GroupID:   &groupID,
		Parent:    &anchor,
		Status:    domain.StatusDraft,
		OrderAsc:  true,
	})
	if err != nil {
		return nil, err
	}
	preside, err := e.Auth.Has(ctx, nil, domain.CapPreside, meetingID, actorID)
	if err != nil {
		return nil, err
	}
	if !preside {
		own := drafts[:0]
		for _, d := range drafts {
			if d.CreatedBy == actorID {
				own = append(own, d)
			}
		}
		drafts = own
	}
	e.Cache.PutOffers(key, drafts)
	return drafts, nil
}
