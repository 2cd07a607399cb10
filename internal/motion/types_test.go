package motion_test

import (
	"context"
	"errors"
	"testing"

	"plenum/internal/config"
	"plenum/internal/domain"
	"plenum/internal/motion"
)

// stubEnv answers policy reads from in-memory fixtures.
type stubEnv struct {
	motions  map[int64]domain.Motion
	children map[int64][]domain.Motion
	caps     map[string]bool // "actor/capability"
	meeting  domain.Meeting
}

func (s stubEnv) HasChild(ctx context.Context, parentID int64, typ string, status domain.Status) (bool, error) {
	for _, c := range s.children[parentID] {
		if c.Type == typ && c.Status == status {
			return true, nil
		}
	}
	return false, nil
}

func (s stubEnv) Motion(ctx context.Context, id int64) (domain.Motion, error) {
	return s.motions[id], nil
}

func (s stubEnv) Meeting(ctx context.Context, id string) (domain.Meeting, error) {
	return s.meeting, nil
}

func (s stubEnv) HasCapability(ctx context.Context, capability, meetingID, actorID string) (bool, error) {
	return s.caps[actorID+"/"+capability], nil
}

func fixture() (stubEnv, *config.Config) {
	env := stubEnv{
		motions:  map[int64]domain.Motion{},
		children: map[int64][]domain.Motion{},
		caps: map[string]bool{
			"chair/" + domain.CapPreside: true,
			"chair/" + domain.CapMeet:    true,
			"alice/" + domain.CapMeet:    true,
			"bob/" + domain.CapMeet:      true,
		},
		meeting: domain.Meeting{ID: "m1", Moderate: domain.ModerateAutomatic},
	}
	cfg := config.Default("m1")
	return env, cfg
}

func (s stubEnv) add(m domain.Motion) stubEnv {
	s.motions[m.ID] = m
	if m.Parent != nil {
		s.children[*m.Parent] = append(s.children[*m.Parent], m)
	}
	return s
}

func inOrder(t *testing.T, env stubEnv, cfg *config.Config, typ, actorID string, immediate *domain.Motion) bool {
	t.Helper()
	p, err := motion.Lookup(typ)
	if err != nil {
		t.Fatalf("lookup %s: %v", typ, err)
	}
	var inst *motion.Instance
	if immediate != nil {
		inst, err = motion.NewInstance(*immediate, env, cfg)
		if err != nil {
			t.Fatalf("instance: %v", err)
		}
	}
	ord := motion.Ordering{MeetingID: "m1", ActorID: actorID, Config: cfg, Env: env}
	ok, err := p.InOrder(context.Background(), ord, inst)
	if err != nil {
		t.Fatalf("in order %s: %v", typ, err)
	}
	return ok
}

func TestEmptyFloorRules(t *testing.T) {
	env, cfg := fixture()

	if !inOrder(t, env, cfg, domain.TypeResolve, "alice", nil) {
		t.Fatalf("resolve should be in order on an empty floor")
	}
	if !inOrder(t, env, cfg, domain.TypeOpen, "chair", nil) {
		t.Fatalf("chair should be able to open")
	}
	if inOrder(t, env, cfg, domain.TypeOpen, "alice", nil) {
		t.Fatalf("members cannot open the session")
	}
	for _, typ := range []string{domain.TypeAmend, domain.TypeCall, domain.TypeDivide, domain.TypeSecond, domain.TypeSpeak, domain.TypeAdjourn, domain.TypeNay, domain.TypeYea, domain.TypeOrder} {
		if inOrder(t, env, cfg, typ, "chair", nil) {
			t.Fatalf("%s needs a pending motion", typ)
		}
	}
}

func TestSecondRules(t *testing.T) {
	env, cfg := fixture()
	resolve := domain.Motion{ID: 1, MeetingID: "m1", Type: domain.TypeResolve, Status: domain.StatusPending, CreatedBy: "alice"}
	env = env.add(resolve)

	if !inOrder(t, env, cfg, domain.TypeSecond, "bob", &resolve) {
		t.Fatalf("bob should be able to second")
	}
	if inOrder(t, env, cfg, domain.TypeSecond, "alice", &resolve) {
		t.Fatalf("the mover cannot second")
	}
	if inOrder(t, env, cfg, domain.TypeAmend, "bob", &resolve) {
		t.Fatalf("amend waits for a second")
	}
	if inOrder(t, env, cfg, domain.TypeSpeak, "bob", &resolve) {
		t.Fatalf("speak waits for a second")
	}

	p := int64(1)
	env = env.add(domain.Motion{ID: 2, MeetingID: "m1", Type: domain.TypeSecond, Parent: &p, Status: domain.StatusAdopt, CreatedBy: "bob"})
	if inOrder(t, env, cfg, domain.TypeSecond, "bob", &resolve) {
		t.Fatalf("no further second once satisfied")
	}
	if !inOrder(t, env, cfg, domain.TypeAmend, "bob", &resolve) {
		t.Fatalf("amend should be in order once seconded")
	}
	if !inOrder(t, env, cfg, domain.TypeSpeak, "bob", &resolve) {
		t.Fatalf("speak should be in order once seconded")
	}
}

func TestAmendNesting(t *testing.T) {
	env, cfg := fixture()
	// seconding off for this one
	cfg.Types[domain.TypeResolve] = config.TypeConfig{Enabled: true}
	cfg.Types[domain.TypeAmend] = config.TypeConfig{Enabled: true}

	resolve := domain.Motion{ID: 1, MeetingID: "m1", Type: domain.TypeResolve, Status: domain.StatusPending}
	rp := int64(1)
	amend := domain.Motion{ID: 2, MeetingID: "m1", Type: domain.TypeAmend, Parent: &rp, Status: domain.StatusPending}
	ap := int64(2)
	sub := domain.Motion{ID: 3, MeetingID: "m1", Type: domain.TypeAmend, Parent: &ap, Status: domain.StatusPending}
	env = env.add(resolve).add(amend).add(sub)

	if !inOrder(t, env, cfg, domain.TypeAmend, "bob", &resolve) {
		t.Fatalf("amending a resolve should be in order")
	}
	if !inOrder(t, env, cfg, domain.TypeAmend, "bob", &amend) {
		t.Fatalf("amending a first-degree amendment should be in order")
	}
	if inOrder(t, env, cfg, domain.TypeAmend, "bob", &sub) {
		t.Fatalf("third-degree amendments are out of order")
	}
}

func TestCallAndDivideRules(t *testing.T) {
	env, cfg := fixture()
	cfg.Types[domain.TypeResolve] = config.TypeConfig{Enabled: true}

	resolve := domain.Motion{ID: 1, MeetingID: "m1", Type: domain.TypeResolve, Status: domain.StatusPending}
	env = env.add(resolve)

	if !inOrder(t, env, cfg, domain.TypeCall, "bob", &resolve) {
		t.Fatalf("call should be in order during debate")
	}
	if inOrder(t, env, cfg, domain.TypeDivide, "chair", &resolve) {
		t.Fatalf("divide waits for debate to close")
	}

	p := int64(1)
	env = env.add(domain.Motion{ID: 2, MeetingID: "m1", Type: domain.TypeCall, Parent: &p, Status: domain.StatusAdopt})
	if inOrder(t, env, cfg, domain.TypeCall, "bob", &resolve) {
		t.Fatalf("no second call once adopted")
	}
	if inOrder(t, env, cfg, domain.TypeSpeak, "bob", &resolve) {
		t.Fatalf("no floor requests after the question is called")
	}
	if !inOrder(t, env, cfg, domain.TypeDivide, "chair", &resolve) {
		t.Fatalf("chair should divide once debate closed")
	}
	if inOrder(t, env, cfg, domain.TypeDivide, "bob", &resolve) {
		t.Fatalf("only the chair divides")
	}
	if inOrder(t, env, cfg, domain.TypeAdjourn, "bob", &resolve) {
		t.Fatalf("adjourn is out of order once the question is called")
	}
}

func TestBallotAndOrderRules(t *testing.T) {
	env, cfg := fixture()
	divide := domain.Motion{ID: 1, MeetingID: "m1", Type: domain.TypeDivide, Status: domain.StatusPending}
	env = env.add(divide)

	if !inOrder(t, env, cfg, domain.TypeYea, "alice", &divide) {
		t.Fatalf("yea should be in order under a division")
	}
	if !inOrder(t, env, cfg, domain.TypeNay, "alice", &divide) {
		t.Fatalf("nay should be in order under a division")
	}
	if !inOrder(t, env, cfg, domain.TypeOrder, "alice", &divide) {
		t.Fatalf("a point of order may interrupt anything pending")
	}
	if inOrder(t, env, cfg, domain.TypeOrder, "stranger", &divide) {
		t.Fatalf("points of order need meeting standing")
	}

	resolve := domain.Motion{ID: 2, MeetingID: "m1", Type: domain.TypeResolve, Status: domain.StatusPending}
	if inOrder(t, env, cfg, domain.TypeYea, "alice", &resolve) {
		t.Fatalf("ballots only under a division")
	}
}

func TestUnknownTypeLookup(t *testing.T) {
	_, err := motion.Lookup("gavel")
	var unknown motion.UnknownTypeError
	if !errors.As(err, &unknown) || unknown.Type != "gavel" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestRegistryLists(t *testing.T) {
	names := map[string]bool{}
	for _, p := range motion.All() {
		names[p.Name()] = true
	}
	for _, typ := range []string{domain.TypeOpen, domain.TypeResolve, domain.TypeAmend, domain.TypeCall, domain.TypeDivide, domain.TypeSecond, domain.TypeSpeak, domain.TypeAdjourn, domain.TypeNay, domain.TypeYea, domain.TypeOrder} {
		if !names[typ] {
			t.Fatalf("missing builtin policy %s", typ)
		}
	}
}
