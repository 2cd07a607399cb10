package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"plenum/internal/domain"
)

// ChainKey scopes a cached pending chain.
type ChainKey struct {
	MeetingID string
	GroupID   int64
}

// OfferKey scopes a cached offered set for one actor.
type OfferKey struct {
	MeetingID string
	ActorID   string
	GroupID   int64
}

const defaultSize = 256

// Views caches the derived pending-chain and offered-set structures.
// Invalidation is explicit: every mutation path calls Invalidate for the
// scope it touched. Readers fall back to the store on a miss, so brief
// staleness across processes is acceptable.
type Views struct {
	chains *lru.Cache[ChainKey, []domain.Motion]
	offers *lru.Cache[OfferKey, []domain.Motion]
}

func New() *Views {
	chains, _ := lru.New[ChainKey, []domain.Motion](defaultSize)
	offers, _ := lru.New[OfferKey, []domain.Motion](defaultSize)
	return &Views{chains: chains, offers: offers}
}

func (v *Views) Chain(key ChainKey) ([]domain.Motion, bool) {
	if v == nil {
		return nil, false
	}
	return v.chains.Get(key)
}

func (v *Views) PutChain(key ChainKey, chain []domain.Motion) {
	if v == nil {
		return
	}
	v.chains.Add(key, chain)
}

func (v *Views) Offers(key OfferKey) ([]domain.Motion, bool) {
	if v == nil {
		return nil, false
	}
	return v.offers.Get(key)
}

func (v *Views) PutOffers(key OfferKey, offers []domain.Motion) {
	if v == nil {
		return
	}
	v.offers.Add(key, offers)
}

// Invalidate drops every derived view for the (meeting, group) scope.
func (v *Views) Invalidate(meetingID string, groupID int64) {
	if v == nil {
		return
	}
	v.chains.Remove(ChainKey{MeetingID: meetingID, GroupID: groupID})
	for _, key := range v.offers.Keys() {
		if key.MeetingID == meetingID && key.GroupID == groupID {
			v.offers.Remove(key)
		}
	}
}

// InvalidateMeeting drops every derived view for the meeting across all groups.
func (v *Views) InvalidateMeeting(meetingID string) {
	if v == nil {
		return
	}
	for _, key := range v.chains.Keys() {
		if key.MeetingID == meetingID {
			v.chains.Remove(key)
		}
	}
	for _, key := range v.offers.Keys() {
		if key.MeetingID == meetingID {
			v.offers.Remove(key)
		}
	}
}
