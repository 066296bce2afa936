// Package reward defines the closed set of reward-bearing event types and
// the static event→reward mapping. The mapping is the only per-event-type
// knowledge in the system; everything downstream (wallet mutation, ledger
// rows, level derivation) is generic over it.
package reward

// EventType identifies a discrete user action that may carry a reward.
type EventType string

// Supported event types. Events outside this set are ignored by the engine.
const (
	EventPurchaseCompleted     EventType = "purchase.completed"
	EventESIMActivated         EventType = "esim.activated"
	EventESIMExpired           EventType = "esim.expired"
	EventReferralValidated     EventType = "referral.validated"
	EventDailyCheckin          EventType = "checkin.daily"
	EventSubscriptionCreated   EventType = "subscription.created"
	EventSubscriptionCancelled EventType = "subscription.cancelled"
	EventOfferRedeemed         EventType = "offer.redeemed"
)

// Reward is the bundle of deltas credited for one event.
type Reward struct {
	XP      int64 `json:"xp"`
	Points  int64 `json:"points"`
	Tickets int64 `json:"tickets"`
}

// IsZero reports whether the reward carries no credit at all.
func (r Reward) IsZero() bool {
	return r.XP == 0 && r.Points == 0 && r.Tickets == 0
}

// Table maps event types to rewards. Tables are built once at startup and
// never mutated; the engine takes one by injection so tests can swap it.
type Table map[EventType]Reward

// Lookup returns the reward for an event type and whether it is mapped.
func (t Table) Lookup(et EventType) (Reward, bool) {
	r, ok := t[et]
	return r, ok
}

// Known reports whether the event type belongs to the closed set,
// independent of whether it carries a reward.
func (t Table) Known(et EventType) bool {
	_, ok := t[et]
	return ok
}

// DefaultTable returns the production event→reward mapping.
// Zero-reward entries (expiry, cancellation) are deliberate: the events are
// known and audited, they just credit nothing.
func DefaultTable() Table {
	return Table{
		EventPurchaseCompleted:     {XP: 100, Points: 50, Tickets: 1},
		EventESIMActivated:         {XP: 150, Points: 25, Tickets: 0},
		EventESIMExpired:           {XP: 0, Points: 0, Tickets: 0},
		EventReferralValidated:     {XP: 200, Points: 100, Tickets: 2},
		EventDailyCheckin:          {XP: 25, Points: 10, Tickets: 0},
		EventSubscriptionCreated:   {XP: 300, Points: 150, Tickets: 3},
		EventSubscriptionCancelled: {XP: 0, Points: 0, Tickets: 0},
		EventOfferRedeemed:         {XP: 50, Points: 20, Tickets: 0},
	}
}
