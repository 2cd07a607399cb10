package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"plenum/internal/config"
	"plenum/internal/db"
	"plenum/internal/domain"
	"plenum/internal/engine"
	"plenum/internal/engine/auth"
	"plenum/internal/events"
	"plenum/internal/migrate"
	"plenum/internal/motion"
)

type testEnv struct {
	Engine  engine.Engine
	Ctx     context.Context
	Meeting domain.Meeting
}

func newTestEnv(t *testing.T, moderate string, cfg *config.Config) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if cfg == nil {
		cfg = config.Default("")
	}
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	meeting, err := eng.CreateMeeting(ctx, "weekly assembly", moderate, "chair")
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	cfg.Meeting.ID = meeting.ID
	if err := eng.Repo.UpsertMeetingConfig(ctx, meeting.ID, cfg); err != nil {
		t.Fatalf("seed config: %v", err)
	}
	for _, actor := range []string{"alice", "bob", "carol"} {
		if err := eng.AssignRole(ctx, meeting.ID, actor, "member"); err != nil {
			t.Fatalf("assign role %s: %v", actor, err)
		}
	}
	return testEnv{Engine: eng, Ctx: ctx, Meeting: meeting}
}

// noSecondConfig disables the seconding requirement so tests can exercise
// the rest of the lifecycle without co-sponsoring every motion.
func noSecondConfig() *config.Config {
	cfg := config.Default("")
	cfg.Types[domain.TypeResolve] = config.TypeConfig{Enabled: true}
	cfg.Types[domain.TypeAmend] = config.TypeConfig{Enabled: true}
	return cfg
}

func (env testEnv) offer(t *testing.T, actorID, typ string) domain.Motion {
	t.Helper()
	m, err := env.Engine.Make(env.Ctx, actorID, env.Meeting.ID, 0, typ, nil)
	if err != nil {
		t.Fatalf("offer %s: %v", typ, err)
	}
	if m == nil {
		t.Fatalf("offer %s: refused", typ)
	}
	return *m
}

func (env testEnv) status(t *testing.T, id int64) domain.Status {
	t.Helper()
	m, err := env.Engine.Repo.GetMotion(env.Ctx, id)
	if err != nil {
		t.Fatalf("get motion %d: %v", id, err)
	}
	return m.Status
}

func (env testEnv) available(t *testing.T, actorID string) map[string]string {
	t.Helper()
	avail, err := env.Engine.AvailableMotions(env.Ctx, actorID, env.Meeting.ID, 0)
	if err != nil {
		t.Fatalf("available for %s: %v", actorID, err)
	}
	return avail
}

func TestOpenSessionThenResolve(t *testing.T) {
	env := newTestEnv(t, domain.ModerateAutomatic, noSecondConfig())

	open := env.offer(t, "chair", domain.TypeOpen)
	if open.Status != domain.StatusPending {
		t.Fatalf("open should go straight to the floor, got %s", open.Status)
	}
	resolve := env.offer(t, "alice", domain.TypeResolve)
	if resolve.Status != domain.StatusPending {
		t.Fatalf("resolve should auto-promote, got %s", resolve.Status)
	}
	if resolve.Parent == nil || *resolve.Parent != open.ID {
		t.Fatalf("resolve should nest under the open motion")
	}

	chain, err := env.Engine.GetPending(env.Ctx, env.Meeting.ID, 0)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(chain) != 2 || chain[0].ID != open.ID || chain[1].ID != resolve.ID {
		t.Fatalf("unexpected chain: %+v", chain)
	}
	immediate, err := env.Engine.ImmediatePending(env.Ctx, env.Meeting.ID, 0)
	if err != nil || immediate == nil || immediate.ID != resolve.ID {
		t.Fatalf("immediate should be the resolve: %v %+v", err, immediate)
	}
}

func TestOpenRequiresPreside(t *testing.T) {
	env := newTestEnv(t, domain.ModerateAutomatic, noSecondConfig())

	avail := env.available(t, "alice")
	if _, ok := avail[domain.TypeOpen]; ok {
		t.Fatalf("member should not see open as in order")
	}
	avail = env.available(t, "chair")
	if _, ok := avail[domain.TypeOpen]; !ok {
		t.Fatalf("chair should see open as in order on an empty floor")
	}
	if _, ok := avail[domain.TypeResolve]; !ok {
		t.Fatalf("resolve should be in order on an empty floor")
	}
}

func TestManualModerationQueuesDrafts(t *testing.T) {
	env := newTestEnv(t, domain.ModerateManual, noSecondConfig())

	resolve := env.offer(t, "alice", domain.TypeResolve)
	if resolve.Status != domain.StatusDraft {
		t.Fatalf("manual mode should leave the offer queued, got %s", resolve.Status)
	}

	// only the chair may put it on the floor
	if _, err := env.Engine.Decide(env.Ctx, resolve.ID, domain.StatusPending, "bob"); !auth.IsForbidden(err) {
		t.Fatalf("member promotion should be forbidden, got %v", err)
	}
	promoted, err := env.Engine.Decide(env.Ctx, resolve.ID, domain.StatusPending, "chair")
	if err != nil {
		t.Fatalf("chair promotion: %v", err)
	}
	if promoted.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", promoted.Status)
	}

	avail := env.available(t, "alice")
	for _, typ := range []string{domain.TypeAmend, domain.TypeSpeak, domain.TypeAdjourn, domain.TypeCall} {
		if _, ok := avail[typ]; !ok {
			t.Fatalf("%s should be in order under a pending resolve", typ)
		}
	}
	if _, ok := avail[domain.TypeResolve]; ok {
		t.Fatalf("a second resolve is out of order while one is pending")
	}
	if _, ok := avail[domain.TypeDivide]; ok {
		t.Fatalf("divide is out of order while debate is still open")
	}
}

func TestSecondGatesDebate(t *testing.T) {
	env := newTestEnv(t, domain.ModerateAutomatic, nil) // default config: resolve requires a second

	resolve := env.offer(t, "alice", domain.TypeResolve)
	if resolve.Status != domain.StatusPending {
		t.Fatalf("expected pending resolve, got %s", resolve.Status)
	}

	avail := env.available(t, "bob")
	if _, ok := avail[domain.TypeSecond]; !ok {
		t.Fatalf("bob should be able to second")
	}
	for _, typ := range []string{domain.TypeAmend, domain.TypeSpeak, domain.TypeDivide} {
		if _, ok := avail[typ]; ok {
			t.Fatalf("%s should wait for a second", typ)
		}
	}
	// the mover cannot second their own motion
	if _, ok := env.available(t, "alice")[domain.TypeSecond]; ok {
		t.Fatalf("alice cannot second her own motion")
	}

	second := env.offer(t, "bob", domain.TypeSecond)
	if second.Status != domain.StatusAdopt {
		t.Fatalf("an accepted second lands as adopt, got %s", second.Status)
	}
	if second.Parent == nil || *second.Parent != resolve.ID {
		t.Fatalf("second should nest under the resolve")
	}

	avail = env.available(t, "bob")
	for _, typ := range []string{domain.TypeAmend, domain.TypeSpeak} {
		if _, ok := avail[typ]; !ok {
			t.Fatalf("%s should be in order once seconded", typ)
		}
	}
	if _, ok := avail[domain.TypeSecond]; ok {
		t.Fatalf("a satisfied motion needs no further second")
	}
}

func TestAmendOneLevelDeep(t *testing.T) {
	env := newTestEnv(t, domain.ModerateAutomatic, noSecondConfig())

	env.offer(t, "alice", domain.TypeResolve)
	amend := env.offer(t, "bob", domain.TypeAmend)
	if amend.Status != domain.StatusPending {
		t.Fatalf("amendment should auto-promote, got %s", amend.Status)
	}

	// amendment of an amendment is in order, but only one level deep
	if _, ok := env.available(t, "carol")[domain.TypeAmend]; !ok {
		t.Fatalf("amending an amendment should be in order")
	}
	sub := env.offer(t, "carol", domain.TypeAmend)
	if sub.Status != domain.StatusPending {
		t.Fatalf("sub-amendment should auto-promote, got %s", sub.Status)
	}
	if _, ok := env.available(t, "alice")[domain.TypeAmend]; ok {
		t.Fatalf("a third-degree amendment is out of order")
	}
}

func TestCallThenDivideThenAdopt(t *testing.T) {
	env := newTestEnv(t, domain.ModerateAutomatic, nil)

	resolve := env.offer(t, "alice", domain.TypeResolve)
	env.offer(t, "bob", domain.TypeSecond)

	// debate is open: the chair may not yet put the question or adopt it
	if ok, err := env.Engine.CanDecide(env.Ctx, "chair", resolve); err != nil || ok {
		t.Fatalf("resolve should not be decidable while debate is open: %v %v", ok, err)
	}
	if _, ok := env.available(t, "chair")[domain.TypeDivide]; ok {
		t.Fatalf("divide is out of order before debate closes")
	}

	call := env.offer(t, "carol", domain.TypeCall)
	if call.Status != domain.StatusPending {
		t.Fatalf("call should auto-promote, got %s", call.Status)
	}
	// a second call against the same question is out of order after adoption
	adopted, err := env.Engine.Decide(env.Ctx, call.ID, domain.StatusAdopt, "chair")
	if err != nil {
		t.Fatalf("adopt call: %v", err)
	}
	if adopted.Status != domain.StatusAdopt {
		t.Fatalf("expected adopted call, got %s", adopted.Status)
	}
	avail := env.available(t, "chair")
	if _, ok := avail[domain.TypeCall]; ok {
		t.Fatalf("debate already closed, call is out of order")
	}
	if _, ok := avail[domain.TypeSpeak]; ok {
		t.Fatalf("no floor requests after the question is called")
	}
	if _, ok := avail[domain.TypeDivide]; !ok {
		t.Fatalf("chair should now be able to divide")
	}
	if _, ok := env.available(t, "alice")[domain.TypeDivide]; ok {
		t.Fatalf("only the chair divides the assembly")
	}

	// with debate closed the resolve itself becomes decidable
	final, err := env.Engine.Decide(env.Ctx, resolve.ID, domain.StatusAdopt, "chair")
	if err != nil {
		t.Fatalf("adopt resolve: %v", err)
	}
	if final.Status != domain.StatusAdopt {
		t.Fatalf("expected adopted resolve, got %s", final.Status)
	}
}

func TestDivisionBallots(t *testing.T) {
	env := newTestEnv(t, domain.ModerateAutomatic, noSecondConfig())

	env.offer(t, "alice", domain.TypeResolve)
	call := env.offer(t, "bob", domain.TypeCall)
	if _, err := env.Engine.Decide(env.Ctx, call.ID, domain.StatusAdopt, "chair"); err != nil {
		t.Fatalf("adopt call: %v", err)
	}
	divide := env.offer(t, "chair", domain.TypeDivide)
	if divide.Status != domain.StatusPending {
		t.Fatalf("chair's division goes straight to the floor, got %s", divide.Status)
	}

	avail := env.available(t, "alice")
	if _, ok := avail[domain.TypeYea]; !ok {
		t.Fatalf("yea should be in order under a division")
	}
	if _, ok := avail[domain.TypeNay]; !ok {
		t.Fatalf("nay should be in order under a division")
	}

	yea := env.offer(t, "alice", domain.TypeYea)
	nay := env.offer(t, "bob", domain.TypeNay)
	if yea.Status != domain.StatusDraft || nay.Status != domain.StatusDraft {
		t.Fatalf("ballots never auto-promote: %s %s", yea.Status, nay.Status)
	}
	if yea.Parent == nil || *yea.Parent != divide.ID {
		t.Fatalf("ballots nest under the division")
	}
}

func TestAdjournDeclinesPendingBusiness(t *testing.T) {
	env := newTestEnv(t, domain.ModerateAutomatic, noSecondConfig())

	resolve := env.offer(t, "alice", domain.TypeResolve)
	adjourn := env.offer(t, "bob", domain.TypeAdjourn)
	if adjourn.Status != domain.StatusPending {
		t.Fatalf("adjourn should auto-promote, got %s", adjourn.Status)
	}

	if _, err := env.Engine.Decide(env.Ctx, adjourn.ID, domain.StatusAdopt, "chair"); err != nil {
		t.Fatalf("adopt adjourn: %v", err)
	}
	if got := env.status(t, adjourn.ID); got != domain.StatusAdopt {
		t.Fatalf("adjourn: %s", got)
	}
	if got := env.status(t, resolve.ID); got != domain.StatusDecline {
		t.Fatalf("pending resolve should be declined on adjournment, got %s", got)
	}
	chain, err := env.Engine.GetPending(env.Ctx, env.Meeting.ID, 0)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(chain) != 0 {
		t.Fatalf("floor should be empty after adjournment, got %+v", chain)
	}

	// both terminal decisions feed the gradebook sync
	graded, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, env.Meeting.ID, events.PlenumGraded, "", "")
	if err != nil || len(graded) != 2 {
		t.Fatalf("expected two grade events: %v %+v", err, graded)
	}
}

func TestStatusChangeStampsEngineClock(t *testing.T) {
	env := newTestEnv(t, domain.ModerateAutomatic, noSecondConfig())

	resolve := env.offer(t, "alice", domain.TypeResolve)
	decided, err := env.Engine.Decide(env.Ctx, resolve.ID, domain.StatusAdopt, "chair")
	if err != nil {
		t.Fatalf("adopt: %v", err)
	}
	const want = "2024-01-01T00:00:00Z"
	if decided.ModifiedAt != want {
		t.Fatalf("modified_at = %q, want the injected clock %q", decided.ModifiedAt, want)
	}
	stored, err := env.Engine.Repo.GetMotion(env.Ctx, resolve.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.ModifiedAt != want {
		t.Fatalf("stored modified_at = %q, want %q", stored.ModifiedAt, want)
	}
}

func TestAdjournDeclinesAcrossGroupScopes(t *testing.T) {
	env := newTestEnv(t, domain.ModerateAutomatic, noSecondConfig())

	// pending business on every committee floor plus the main one
	byGroup := map[int64]int64{}
	for _, group := range []int64{0, 1, 2, 3} {
		m, err := env.Engine.Make(env.Ctx, "alice", env.Meeting.ID, group, domain.TypeResolve, nil)
		if err != nil || m == nil || m.Status != domain.StatusPending {
			t.Fatalf("offer in group %d: %v %+v", group, err, m)
		}
		byGroup[group] = m.ID
	}

	adjourn := env.offer(t, "bob", domain.TypeAdjourn)
	if _, err := env.Engine.Decide(env.Ctx, adjourn.ID, domain.StatusAdopt, "chair"); err != nil {
		t.Fatalf("adopt adjourn: %v", err)
	}
	for group, id := range byGroup {
		if got := env.status(t, id); got != domain.StatusDecline {
			t.Fatalf("group %d resolve should be declined, got %s", group, got)
		}
		chain, err := env.Engine.GetPending(env.Ctx, env.Meeting.ID, group)
		if err != nil || len(chain) != 0 {
			t.Fatalf("group %d floor should be empty: %v %+v", group, err, chain)
		}
	}
}

func TestAdjournAdoptionLeavesQueueUntouched(t *testing.T) {
	env := newTestEnv(t, domain.ModerateAutomatic, noSecondConfig())

	resolve := env.offer(t, "alice", domain.TypeResolve)
	speak := env.offer(t, "bob", domain.TypeSpeak)
	amend := env.offer(t, "carol", domain.TypeAmend)
	if amend.Status != domain.StatusDraft || amend.Parent == nil || *amend.Parent != resolve.ID {
		t.Fatalf("amend should queue under the debate: %+v", amend)
	}
	adjourn := env.offer(t, "bob", domain.TypeAdjourn)
	if adjourn.Status != domain.StatusDraft {
		t.Fatalf("adjourn should queue behind the floor holder, got %s", adjourn.Status)
	}
	if _, err := env.Engine.Decide(env.Ctx, adjourn.ID, domain.StatusPending, "chair"); err != nil {
		t.Fatalf("promote adjourn: %v", err)
	}
	if _, err := env.Engine.Decide(env.Ctx, adjourn.ID, domain.StatusAdopt, "chair"); err != nil {
		t.Fatalf("adopt adjourn: %v", err)
	}

	// the queued amend must not be promoted onto the dead floor
	if got := env.status(t, amend.ID); got != domain.StatusDraft {
		t.Fatalf("queued draft should stay queued after adjournment, got %s", got)
	}
	if got := env.status(t, resolve.ID); got != domain.StatusDecline {
		t.Fatalf("resolve: %s", got)
	}
	if got := env.status(t, speak.ID); got != domain.StatusDecline {
		t.Fatalf("floor holder: %s", got)
	}
	chain, err := env.Engine.GetPending(env.Ctx, env.Meeting.ID, 0)
	if err != nil || len(chain) != 0 {
		t.Fatalf("floor should stay empty: %v %+v", err, chain)
	}
}

func TestAdjournOutOfOrderUnderPrivilegedMotions(t *testing.T) {
	env := newTestEnv(t, domain.ModerateAutomatic, noSecondConfig())

	env.offer(t, "alice", domain.TypeResolve)
	call := env.offer(t, "bob", domain.TypeCall)
	if call.Status != domain.StatusPending {
		t.Fatalf("call should auto-promote, got %s", call.Status)
	}
	if _, ok := env.available(t, "alice")[domain.TypeAdjourn]; ok {
		t.Fatalf("adjourn is out of order while a call is pending")
	}
}

func TestSpeakClosesPriorFloorHolder(t *testing.T) {
	env := newTestEnv(t, domain.ModerateAutomatic, noSecondConfig())

	env.offer(t, "alice", domain.TypeResolve)
	speak1 := env.offer(t, "bob", domain.TypeSpeak)
	if speak1.Status != domain.StatusPending {
		t.Fatalf("first floor request should auto-promote, got %s", speak1.Status)
	}
	speak2 := env.offer(t, "carol", domain.TypeSpeak)
	if speak2.Status != domain.StatusDraft {
		t.Fatalf("second floor request should queue, got %s", speak2.Status)
	}
	if speak2.Parent == nil || *speak2.Parent != *speak1.Parent {
		t.Fatalf("floor requests should share the debate parent")
	}

	// the chair recognizes carol; bob's floor closes
	if _, err := env.Engine.Decide(env.Ctx, speak2.ID, domain.StatusPending, "chair"); err != nil {
		t.Fatalf("recognize carol: %v", err)
	}
	if got := env.status(t, speak1.ID); got != domain.StatusClosed {
		t.Fatalf("prior floor holder should be closed, got %s", got)
	}
	immediate, err := env.Engine.ImmediatePending(env.Ctx, env.Meeting.ID, 0)
	if err != nil || immediate == nil || immediate.ID != speak2.ID {
		t.Fatalf("carol should hold the floor: %v %+v", err, immediate)
	}
}

func TestManualModerationKeepsBothSpeakers(t *testing.T) {
	env := newTestEnv(t, domain.ModerateManual, noSecondConfig())

	resolve := env.offer(t, "alice", domain.TypeResolve)
	if _, err := env.Engine.Decide(env.Ctx, resolve.ID, domain.StatusPending, "chair"); err != nil {
		t.Fatalf("promote resolve: %v", err)
	}
	speak1 := env.offer(t, "bob", domain.TypeSpeak)
	if _, err := env.Engine.Decide(env.Ctx, speak1.ID, domain.StatusPending, "chair"); err != nil {
		t.Fatalf("promote speak1: %v", err)
	}
	speak2 := env.offer(t, "carol", domain.TypeSpeak)
	if _, err := env.Engine.Decide(env.Ctx, speak2.ID, domain.StatusPending, "chair"); err != nil {
		t.Fatalf("promote speak2: %v", err)
	}
	// manual moderation leaves floor management to the chair
	if got := env.status(t, speak1.ID); got != domain.StatusPending {
		t.Fatalf("manual mode should not close the prior speaker, got %s", got)
	}
}

func TestPointOfOrderJumpsQueue(t *testing.T) {
	env := newTestEnv(t, domain.ModerateAutomatic, noSecondConfig())

	env.offer(t, "alice", domain.TypeResolve)
	speak1 := env.offer(t, "bob", domain.TypeSpeak)
	speak2 := env.offer(t, "carol", domain.TypeSpeak)
	order := env.offer(t, "alice", domain.TypeOrder)
	if speak2.Status != domain.StatusDraft || order.Status != domain.StatusDraft {
		t.Fatalf("later offers should queue: %s %s", speak2.Status, order.Status)
	}

	// closing the floor holder advances the queue; the point of order wins
	// despite being offered last
	if _, err := env.Engine.Decide(env.Ctx, speak1.ID, domain.StatusClosed, "chair"); err != nil {
		t.Fatalf("close speak1: %v", err)
	}
	if got := env.status(t, order.ID); got != domain.StatusPending {
		t.Fatalf("point of order should jump the queue, got %s", got)
	}
	if got := env.status(t, speak2.ID); got != domain.StatusDraft {
		t.Fatalf("floor request should still be queued, got %s", got)
	}
}

func TestOfferedAnchorsAtDebate(t *testing.T) {
	env := newTestEnv(t, domain.ModerateAutomatic, noSecondConfig())

	resolve := env.offer(t, "alice", domain.TypeResolve)
	env.offer(t, "bob", domain.TypeSpeak)
	amend := env.offer(t, "carol", domain.TypeAmend)
	if amend.Status != domain.StatusDraft {
		t.Fatalf("amend should queue behind the floor holder, got %s", amend.Status)
	}
	if amend.Parent == nil || *amend.Parent != resolve.ID {
		t.Fatalf("offers during a floor request attach to the debate, not the speaker")
	}

	// the chair sees the whole queue
	offered, err := env.Engine.OfferedMotions(env.Ctx, "chair", env.Meeting.ID, 0)
	if err != nil {
		t.Fatalf("offered for chair: %v", err)
	}
	if len(offered) != 1 || offered[0].ID != amend.ID {
		t.Fatalf("chair should see the queued amend: %+v", offered)
	}
	// the author sees their own draft
	offered, err = env.Engine.OfferedMotions(env.Ctx, "carol", env.Meeting.ID, 0)
	if err != nil || len(offered) != 1 {
		t.Fatalf("carol should see her own draft: %v %+v", err, offered)
	}
	// other members see nothing
	offered, err = env.Engine.OfferedMotions(env.Ctx, "alice", env.Meeting.ID, 0)
	if err != nil || len(offered) != 0 {
		t.Fatalf("alice should not see carol's draft: %v %+v", err, offered)
	}
}

func TestGroupScopesAreIndependent(t *testing.T) {
	env := newTestEnv(t, domain.ModerateAutomatic, noSecondConfig())

	r1, err := env.Engine.Make(env.Ctx, "alice", env.Meeting.ID, 1, domain.TypeResolve, nil)
	if err != nil || r1 == nil {
		t.Fatalf("offer in group 1: %v", err)
	}
	r2, err := env.Engine.Make(env.Ctx, "bob", env.Meeting.ID, 2, domain.TypeResolve, nil)
	if err != nil || r2 == nil {
		t.Fatalf("offer in group 2: %v", err)
	}
	// both promote: each group has its own floor
	if r1.Status != domain.StatusPending || r2.Status != domain.StatusPending {
		t.Fatalf("each group should have its own floor: %s %s", r1.Status, r2.Status)
	}
	im1, err := env.Engine.ImmediatePending(env.Ctx, env.Meeting.ID, 1)
	if err != nil || im1 == nil || im1.ID != r1.ID {
		t.Fatalf("group 1 immediate: %v %+v", err, im1)
	}
	im0, err := env.Engine.ImmediatePending(env.Ctx, env.Meeting.ID, 0)
	if err != nil || im0 != nil {
		t.Fatalf("group 0 floor should be empty: %v %+v", err, im0)
	}
}

func TestDisabledTypeIsRefusedSilently(t *testing.T) {
	cfg := noSecondConfig()
	cfg.Types[domain.TypeSpeak] = config.TypeConfig{Enabled: false}
	env := newTestEnv(t, domain.ModerateAutomatic, cfg)

	env.offer(t, "alice", domain.TypeResolve)
	m, err := env.Engine.Make(env.Ctx, "bob", env.Meeting.ID, 0, domain.TypeSpeak, nil)
	if err != nil {
		t.Fatalf("disabled type should not error: %v", err)
	}
	if m != nil {
		t.Fatalf("disabled type should be refused silently, got %+v", m)
	}
	if _, ok := env.available(t, "bob")[domain.TypeSpeak]; ok {
		t.Fatalf("disabled type should not be listed as available")
	}
}

func TestUnknownTypeErrors(t *testing.T) {
	env := newTestEnv(t, domain.ModerateAutomatic, nil)
	_, err := env.Engine.Make(env.Ctx, "alice", env.Meeting.ID, 0, "filibuster", nil)
	var unknown motion.UnknownTypeError
	if !errors.As(err, &unknown) || unknown.Type != "filibuster" {
		t.Fatalf("expected unknown type error, got %v", err)
	}
}

func TestDeleteCascadesAndHonorsBeforeHook(t *testing.T) {
	env := newTestEnv(t, domain.ModerateAutomatic, nil)

	resolve := env.offer(t, "alice", domain.TypeResolve)
	second := env.offer(t, "bob", domain.TypeSecond)

	allow := false
	env.Engine.Bus.Subscribe(events.BeforeMotionDeleted, func(ctx context.Context, n events.Notification) error {
		if !allow {
			return errors.New("attachment still held")
		}
		return nil
	})

	if err := env.Engine.Delete(env.Ctx, resolve.ID, "chair"); err == nil {
		t.Fatalf("delete should be blocked by the before hook")
	}
	if got := env.status(t, resolve.ID); got != domain.StatusPending {
		t.Fatalf("blocked delete must not mutate, got %s", got)
	}

	allow = true
	if err := env.Engine.Delete(env.Ctx, resolve.ID, "chair"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.Engine.Repo.GetMotion(env.Ctx, resolve.ID); err == nil {
		t.Fatalf("resolve should be gone")
	}
	if _, err := env.Engine.Repo.GetMotion(env.Ctx, second.ID); err == nil {
		t.Fatalf("descendants should be gone too")
	}
}

func TestEventLogRecordsLifecycle(t *testing.T) {
	env := newTestEnv(t, domain.ModerateAutomatic, noSecondConfig())

	resolve := env.offer(t, "alice", domain.TypeResolve)
	if _, err := env.Engine.ChangeStatus(env.Ctx, resolve.ID, domain.StatusClosed, "chair"); err != nil {
		t.Fatalf("close: %v", err)
	}

	evts, err := env.Engine.Repo.LatestEvents(env.Ctx, 50, env.Meeting.ID, "", "", "")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	seen := map[string]int{}
	for _, e := range evts {
		seen[e.Type]++
	}
	if seen[events.MeetingCreated] != 1 {
		t.Fatalf("expected meeting_created event, got %v", seen)
	}
	if seen[events.MotionCreated] == 0 {
		t.Fatalf("expected motion_created events, got %v", seen)
	}
	// draft->pending plus pending->closed
	if seen[events.MotionUpdated] < 2 {
		t.Fatalf("expected status change events, got %v", seen)
	}
}

func TestGradeRequiresCapability(t *testing.T) {
	env := newTestEnv(t, domain.ModerateAutomatic, nil)

	if err := env.Engine.Grade(env.Ctx, env.Meeting.ID, "alice", nil); !auth.IsForbidden(err) {
		t.Fatalf("member grading should be forbidden, got %v", err)
	}
	if err := env.Engine.Grade(env.Ctx, env.Meeting.ID, "chair", map[string]any{"round": 1}); err != nil {
		t.Fatalf("chair grade: %v", err)
	}
	evts, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, env.Meeting.ID, events.PlenumGraded, "", "")
	if err != nil || len(evts) != 1 {
		t.Fatalf("expected one grade event: %v %+v", err, evts)
	}
}
