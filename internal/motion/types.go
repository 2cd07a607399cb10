package motion

import (
	"context"

	"plenum/internal/domain"
)

// base supplies the flag set shared by all concrete policies. InOrder
// defaults to unconditionally true; every builtin overrides it.
type base struct {
	name      string
	display   string
	debatable bool
	privilege bool
	closable  bool
	decidable bool
}

func (b base) Name() string        { return b.name }
func (b base) DisplayName() string { return b.display }
func (b base) Debatable() bool     { return b.debatable }
func (b base) HasPrivilege() bool  { return b.privilege }
func (b base) CanClose() bool      { return b.closable }
func (b base) Decidable() bool     { return b.decidable }

func (b base) InOrder(ctx context.Context, ord Ordering, immediate *Instance) (bool, error) {
	return true, nil
}

func (b base) OnChangeStatus(ctx context.Context, mut Mutator, m domain.Motion, status domain.Status) error {
	return nil
}

func init() {
	Register(openPolicy{base{name: domain.TypeOpen, display: "Open session", privilege: true}})
	Register(resolvePolicy{base{name: domain.TypeResolve, display: "Main motion", debatable: true, closable: true, decidable: true}})
	Register(amendPolicy{base{name: domain.TypeAmend, display: "Amendment", debatable: true, closable: true, decidable: true}})
	Register(callPolicy{base{name: domain.TypeCall, display: "Call the question", closable: true, decidable: true}})
	Register(dividePolicy{base{name: domain.TypeDivide, display: "Division of the assembly", privilege: true, closable: true, decidable: true}})
	Register(secondPolicy{base{name: domain.TypeSecond, display: "Second", closable: true, decidable: true}})
	Register(speakPolicy{base{name: domain.TypeSpeak, display: "Floor request", debatable: true, closable: true}})
	Register(adjournPolicy{base{name: domain.TypeAdjourn, display: "Adjournment", closable: true, decidable: true}})
	Register(nayPolicy{base{name: domain.TypeNay, display: "Nay", closable: true}})
	Register(yeaPolicy{base{name: domain.TypeYea, display: "Yea", closable: true}})
	Register(orderPolicy{base{name: domain.TypeOrder, display: "Point of order", privilege: true, closable: true, decidable: true}})
}

// openPolicy starts a session: only in order on an empty floor, and only
// for a presiding actor.
type openPolicy struct{ base }

func (p openPolicy) InOrder(ctx context.Context, ord Ordering, immediate *Instance) (bool, error) {
	if immediate != nil {
		return false, nil
	}
	return ord.Env.HasCapability(ctx, domain.CapPreside, ord.MeetingID, ord.ActorID)
}

// resolvePolicy is the main motion: in order on an empty floor or directly
// under the open session motion.
type resolvePolicy struct{ base }

func (p resolvePolicy) InOrder(ctx context.Context, ord Ordering, immediate *Instance) (bool, error) {
	if immediate == nil {
		return true, nil
	}
	return immediate.Motion.Type == domain.TypeOpen, nil
}

// amendPolicy permits amending a pending resolve, or amending an amendment
// one level deep, once the target's second requirement is satisfied.
type amendPolicy struct{ base }

func (p amendPolicy) InOrder(ctx context.Context, ord Ordering, immediate *Instance) (bool, error) {
	if immediate == nil {
		return false, nil
	}
	switch immediate.Motion.Type {
	case domain.TypeResolve:
	case domain.TypeAmend:
		if immediate.Motion.Parent == nil {
			return false, nil
		}
		parent, err := ord.Env.Motion(ctx, *immediate.Motion.Parent)
		if err != nil {
			return false, err
		}
		if parent.Type != domain.TypeResolve {
			return false, nil
		}
	default:
		return false, nil
	}
	return immediate.SecondSatisfied(ctx)
}

// callPolicy moves to end debate on the pending question.
type callPolicy struct{ base }

func (p callPolicy) InOrder(ctx context.Context, ord Ordering, immediate *Instance) (bool, error) {
	if immediate == nil || !immediate.Policy.Debatable() {
		return false, nil
	}
	called, err := immediate.CallAdopted(ctx)
	if err != nil {
		return false, err
	}
	return !called, nil
}

// dividePolicy puts the pending question to a vote. Presiding actors only,
// once debate is no longer possible on it.
type dividePolicy struct{ base }

func (p dividePolicy) InOrder(ctx context.Context, ord Ordering, immediate *Instance) (bool, error) {
	if immediate == nil {
		return false, nil
	}
	switch immediate.Motion.Type {
	case domain.TypeAdjourn, domain.TypeResolve, domain.TypeAmend, domain.TypeCall:
	default:
		return false, nil
	}
	ok, err := ord.Env.HasCapability(ctx, domain.CapPreside, ord.MeetingID, ord.ActorID)
	if err != nil || !ok {
		return false, err
	}
	seconded, err := immediate.SecondSatisfied(ctx)
	if err != nil || !seconded {
		return false, err
	}
	if immediate.Policy.Debatable() {
		// A debatable question goes to a vote only after debate closed.
		return immediate.CallAdopted(ctx)
	}
	return true, nil
}

// secondPolicy co-sponsors the pending motion. The original mover cannot
// second their own motion.
type secondPolicy struct{ base }

func (p secondPolicy) InOrder(ctx context.Context, ord Ordering, immediate *Instance) (bool, error) {
	if immediate == nil || immediate.Motion.CreatedBy == ord.ActorID {
		return false, nil
	}
	return immediate.NeedsSecond(ctx)
}

// OnChangeStatus redirects a second reaching PENDING straight to ADOPT; an
// accepted second never sits on the floor.
func (p secondPolicy) OnChangeStatus(ctx context.Context, mut Mutator, m domain.Motion, status domain.Status) error {
	if status != domain.StatusPending {
		return nil
	}
	return mut.SetStatus(ctx, m, domain.StatusAdopt)
}

// speakPolicy is a floor request during debate.
type speakPolicy struct{ base }

func (p speakPolicy) InOrder(ctx context.Context, ord Ordering, immediate *Instance) (bool, error) {
	if immediate == nil || !immediate.Policy.Debatable() {
		return false, nil
	}
	switch immediate.Motion.Type {
	case domain.TypeResolve, domain.TypeAmend, domain.TypeSpeak:
	default:
		return false, nil
	}
	seconded, err := immediate.SecondSatisfied(ctx)
	if err != nil || !seconded {
		return false, err
	}
	called, err := immediate.CallAdopted(ctx)
	if err != nil {
		return false, err
	}
	return !called, nil
}

// OnChangeStatus enforces the single floor-holder invariant: a speak
// reaching PENDING closes any prior pending speak under the same parent,
// unless the meeting is moderated manually.
func (p speakPolicy) OnChangeStatus(ctx context.Context, mut Mutator, m domain.Motion, status domain.Status) error {
	if status != domain.StatusPending || m.Parent == nil {
		return nil
	}
	meeting, err := mut.Meeting(ctx, m.MeetingID)
	if err != nil {
		return err
	}
	if meeting.Moderate == domain.ModerateManual {
		return nil
	}
	siblings, err := mut.Children(ctx, *m.Parent)
	if err != nil {
		return err
	}
	for _, sib := range siblings {
		if sib.ID == m.ID || sib.Type != domain.TypeSpeak || sib.Status != domain.StatusPending {
			continue
		}
		if err := mut.SetStatus(ctx, sib, domain.StatusClosed); err != nil {
			return err
		}
	}
	return nil
}

// adjournPolicy ends the meeting.
type adjournPolicy struct{ base }

func (p adjournPolicy) InOrder(ctx context.Context, ord Ordering, immediate *Instance) (bool, error) {
	if immediate == nil {
		return false, nil
	}
	switch immediate.Motion.Type {
	case domain.TypeAdjourn, domain.TypeCall, domain.TypeDivide, domain.TypeOrder:
		return false, nil
	}
	called, err := immediate.CallAdopted(ctx)
	if err != nil || called {
		return false, err
	}
	return ord.Env.HasCapability(ctx, domain.CapMeet, ord.MeetingID, ord.ActorID)
}

// OnChangeStatus declines all other pending business once an adjournment
// is adopted.
func (p adjournPolicy) OnChangeStatus(ctx context.Context, mut Mutator, m domain.Motion, status domain.Status) error {
	if status != domain.StatusAdopt {
		return nil
	}
	pending, err := mut.Pending(ctx, m.MeetingID)
	if err != nil {
		return err
	}
	for _, other := range pending {
		if other.ID == m.ID {
			continue
		}
		if err := mut.SetStatus(ctx, other, domain.StatusDecline); err != nil {
			return err
		}
	}
	return nil
}

// nayPolicy and yeaPolicy are vote ballots, only in order under a pending
// division.
type nayPolicy struct{ base }

func (p nayPolicy) InOrder(ctx context.Context, ord Ordering, immediate *Instance) (bool, error) {
	return immediate != nil && immediate.Motion.Type == domain.TypeDivide, nil
}

type yeaPolicy struct{ base }

func (p yeaPolicy) InOrder(ctx context.Context, ord Ordering, immediate *Instance) (bool, error) {
	return immediate != nil && immediate.Motion.Type == domain.TypeDivide, nil
}

// orderPolicy raises a point of order. Any participant may raise one
// whenever a question is on the floor; it jumps the promotion queue.
type orderPolicy struct{ base }

func (p orderPolicy) InOrder(ctx context.Context, ord Ordering, immediate *Instance) (bool, error) {
	if immediate == nil {
		return false, nil
	}
	return ord.Env.HasCapability(ctx, domain.CapMeet, ord.MeetingID, ord.ActorID)
}
