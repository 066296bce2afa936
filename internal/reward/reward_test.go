package reward_test

import (
	"testing"

	"github.com/roamly/rewards-engine/internal/reward"
)

func TestDefaultTable_CoversClosedSet(t *testing.T) {
	table := reward.DefaultTable()

	all := []reward.EventType{
		reward.EventPurchaseCompleted,
		reward.EventESIMActivated,
		reward.EventESIMExpired,
		reward.EventReferralValidated,
		reward.EventDailyCheckin,
		reward.EventSubscriptionCreated,
		reward.EventSubscriptionCancelled,
		reward.EventOfferRedeemed,
	}

	if len(table) != len(all) {
		t.Errorf("table has %d entries, want %d", len(table), len(all))
	}
	for _, et := range all {
		if !table.Known(et) {
			t.Errorf("event type %s missing from default table", et)
		}
	}
}

func TestDefaultTable_ZeroRewardEvents(t *testing.T) {
	table := reward.DefaultTable()

	for _, et := range []reward.EventType{reward.EventESIMExpired, reward.EventSubscriptionCancelled} {
		r, ok := table.Lookup(et)
		if !ok {
			t.Fatalf("expected %s to be mapped", et)
		}
		if !r.IsZero() {
			t.Errorf("expected %s to carry no reward, got %+v", et, r)
		}
	}
}

func TestLookup_UnknownType(t *testing.T) {
	table := reward.DefaultTable()

	if _, ok := table.Lookup("user.sneezed"); ok {
		t.Error("expected unknown event type to be unmapped")
	}
	if table.Known("user.sneezed") {
		t.Error("expected unknown event type to be unknown")
	}
}

func TestDefaultTable_PurchaseReward(t *testing.T) {
	r, _ := reward.DefaultTable().Lookup(reward.EventPurchaseCompleted)
	if r.XP != 100 || r.Points != 50 || r.Tickets != 1 {
		t.Errorf("purchase.completed = %+v, want {100 50 1}", r)
	}
}
