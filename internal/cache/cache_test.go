package cache

import (
	"testing"

	"plenum/internal/domain"
)

func TestScopedInvalidation(t *testing.T) {
	v := New()
	k1 := ChainKey{MeetingID: "m1", GroupID: 0}
	k2 := ChainKey{MeetingID: "m1", GroupID: 7}
	v.PutChain(k1, []domain.Motion{{ID: 1}})
	v.PutChain(k2, []domain.Motion{{ID: 2}})
	v.PutOffers(OfferKey{MeetingID: "m1", ActorID: "alice", GroupID: 0}, []domain.Motion{{ID: 3}})
	v.PutOffers(OfferKey{MeetingID: "m1", ActorID: "bob", GroupID: 0}, []domain.Motion{{ID: 4}})

	v.Invalidate("m1", 0)
	if _, ok := v.Chain(k1); ok {
		t.Fatalf("group 0 chain should be dropped")
	}
	if _, ok := v.Chain(k2); !ok {
		t.Fatalf("group 7 chain should survive")
	}
	// offer entries for every actor in the scope go with it
	if _, ok := v.Offers(OfferKey{MeetingID: "m1", ActorID: "alice", GroupID: 0}); ok {
		t.Fatalf("alice's offers should be dropped")
	}
	if _, ok := v.Offers(OfferKey{MeetingID: "m1", ActorID: "bob", GroupID: 0}); ok {
		t.Fatalf("bob's offers should be dropped")
	}
}

func TestInvalidateMeeting(t *testing.T) {
	v := New()
	v.PutChain(ChainKey{MeetingID: "m1", GroupID: 0}, nil)
	v.PutChain(ChainKey{MeetingID: "m1", GroupID: 3}, nil)
	v.PutChain(ChainKey{MeetingID: "m2", GroupID: 0}, nil)

	v.InvalidateMeeting("m1")
	if _, ok := v.Chain(ChainKey{MeetingID: "m1", GroupID: 0}); ok {
		t.Fatalf("m1 group 0 should be dropped")
	}
	if _, ok := v.Chain(ChainKey{MeetingID: "m1", GroupID: 3}); ok {
		t.Fatalf("m1 group 3 should be dropped")
	}
	if _, ok := v.Chain(ChainKey{MeetingID: "m2", GroupID: 0}); !ok {
		t.Fatalf("other meetings should survive")
	}
}

func TestNilViewsAreSafe(t *testing.T) {
	var v *Views
	v.PutChain(ChainKey{MeetingID: "m1"}, nil)
	if _, ok := v.Chain(ChainKey{MeetingID: "m1"}); ok {
		t.Fatalf("nil views never hit")
	}
	v.Invalidate("m1", 0)
	v.InvalidateMeeting("m1")
}
