// Package motion defines the per-type policies that govern which motions
// are in order, how they nest, and how status changes cascade.
package motion

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"plenum/internal/config"
	"plenum/internal/domain"
)

// Env is the read side policies need while evaluating rules. The engine
// provides a transaction-bound implementation.
type Env interface {
	HasChild(ctx context.Context, parentID int64, typ string, status domain.Status) (bool, error)
	Motion(ctx context.Context, id int64) (domain.Motion, error)
	Meeting(ctx context.Context, id string) (domain.Meeting, error)
	HasCapability(ctx context.Context, capability, meetingID, actorID string) (bool, error)
}

// Mutator extends Env with the writes cascade hooks are allowed to make.
// SetStatus routes back through the engine so nested cascades fire.
type Mutator interface {
	Env
	SetStatus(ctx context.Context, m domain.Motion, status domain.Status) error
	Pending(ctx context.Context, meetingID string) ([]domain.Motion, error)
	Children(ctx context.Context, parentID int64) ([]domain.Motion, error)
}

// Ordering carries the scope an in-order check runs against.
type Ordering struct {
	MeetingID string
	GroupID   int64
	ActorID   string
	Config    *config.Config
	Env       Env
}

// Policy is the capability set of one motion type.
type Policy interface {
	Name() string
	DisplayName() string
	// InOrder reports whether this type may be offered right now.
	// immediate is the currently immediately-pending motion, nil when the
	// floor is empty.
	InOrder(ctx context.Context, ord Ordering, immediate *Instance) (bool, error)
	Debatable() bool
	HasPrivilege() bool
	CanClose() bool
	// Decidable reports whether a presiding actor may decide (adopt or
	// decline) motions of this type at all.
	Decidable() bool
	// OnChangeStatus runs after the status write is persisted.
	OnChangeStatus(ctx context.Context, mut Mutator, m domain.Motion, status domain.Status) error
}

// Instance pairs a stored motion with its policy so rules can interrogate
// the pending motion polymorphically.
type Instance struct {
	Motion domain.Motion
	Policy Policy

	env Env
	cfg *config.Config
}

// NewInstance wraps a motion in its registered policy.
func NewInstance(m domain.Motion, env Env, cfg *config.Config) (*Instance, error) {
	p, err := Lookup(m.Type)
	if err != nil {
		return nil, err
	}
	return &Instance{Motion: m, Policy: p, env: env, cfg: cfg}, nil
}

// NeedsSecond reports whether this motion still awaits a second: its type
// is configured to require one and no adopted second child exists yet.
func (in *Instance) NeedsSecond(ctx context.Context) (bool, error) {
	if in == nil {
		return false, nil
	}
	if in.cfg == nil || !in.cfg.RequireSecond(in.Motion.Type) {
		return false, nil
	}
	seconded, err := in.env.HasChild(ctx, in.Motion.ID, domain.TypeSecond, domain.StatusAdopt)
	if err != nil {
		return false, err
	}
	return !seconded, nil
}

// SecondSatisfied is the inverse gate used by most in-order rules.
func (in *Instance) SecondSatisfied(ctx context.Context) (bool, error) {
	needs, err := in.NeedsSecond(ctx)
	return !needs, err
}

// CallAdopted reports whether debate on this motion has been closed by an
// adopted call-the-question child.
func (in *Instance) CallAdopted(ctx context.Context) (bool, error) {
	if in == nil {
		return false, nil
	}
	return in.env.HasChild(ctx, in.Motion.ID, domain.TypeCall, domain.StatusAdopt)
}

// UnknownTypeError marks a motion type with no registered policy.
type UnknownTypeError struct {
	Type string
}

func (e UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown motion type %q", e.Type)
}

var (
	regMu    sync.RWMutex
	registry = map[string]Policy{}
)

// Register adds a policy to the registry. Later registrations replace
// earlier ones with the same name.
func Register(p Policy) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[p.Name()] = p
}

// Lookup resolves a type name to its policy.
func Lookup(name string) (Policy, error) {
	regMu.RLock()
	defer regMu.RUnlock()
	p, ok := registry[name]
	if !ok {
		return nil, UnknownTypeError{Type: name}
	}
	return p, nil
}

// All returns every registered policy sorted by name.
func All() []Policy {
	regMu.RLock()
	defer regMu.RUnlock()
	res := make([]Policy, 0, len(registry))
	for _, p := range registry {
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name() < res[j].Name() })
	return res
}
