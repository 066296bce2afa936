package rewards

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/roamly/rewards-engine/internal/model"
	"github.com/roamly/rewards-engine/internal/reward"
	"github.com/roamly/rewards-engine/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	return NewEngine(ms, reward.DefaultTable(), nil), ms
}

func mustWallet(t *testing.T, ms *store.MemoryStore, userID string) *model.Wallet {
	t.Helper()
	w, err := ms.GetWallet(context.Background(), userID)
	if err != nil {
		t.Fatalf("failed to get wallet for %s: %v", userID, err)
	}
	return w
}

func TestEmit_NewUserBootstrap(t *testing.T) {
	eng, ms := newTestEngine(t)

	eng.Emit(context.Background(), Event{
		Type:   reward.EventPurchaseCompleted,
		UserID: "new-user",
	})

	w := mustWallet(t, ms, "new-user")
	if w.XPTotal != 100 {
		t.Errorf("xp_total = %d, want 100", w.XPTotal)
	}
	if w.Level != 1 || w.Tier != model.TierBronze {
		t.Errorf("level/tier = %d/%s, want 1/bronze", w.Level, w.Tier)
	}
	if w.PointsBalance != 50 || w.PointsEarnedTotal != 50 {
		t.Errorf("points = %d/%d, want 50/50", w.PointsBalance, w.PointsEarnedTotal)
	}
	if w.TicketsBalance != 1 {
		t.Errorf("tickets_balance = %d, want 1", w.TicketsBalance)
	}

	entries, _ := ms.LedgerEntriesByUser(context.Background(), "new-user", 0)
	if len(entries) != 3 {
		t.Fatalf("expected 3 ledger entries, got %d", len(entries))
	}
	kinds := map[model.RewardKind]bool{}
	for _, e := range entries {
		kinds[e.Kind] = true
		if e.Reason != string(reward.EventPurchaseCompleted) {
			t.Errorf("reason = %s, want purchase.completed", e.Reason)
		}
		if e.Delta <= 0 {
			t.Errorf("delta should be positive, got %d", e.Delta)
		}
		if e.ID == "" {
			t.Error("expected non-empty ledger entry id")
		}
	}
	for _, k := range []model.RewardKind{model.KindXP, model.KindPoints, model.KindTickets} {
		if !kinds[k] {
			t.Errorf("missing ledger entry for kind %s", k)
		}
	}
}

func TestEmit_AccumulationCrossesThreshold(t *testing.T) {
	eng, ms := newTestEngine(t)

	for i := 0; i < 5; i++ {
		eng.Emit(context.Background(), Event{
			Type:   reward.EventPurchaseCompleted,
			UserID: "user1",
		})
	}

	w := mustWallet(t, ms, "user1")
	if w.XPTotal != 500 {
		t.Fatalf("xp_total = %d, want 500", w.XPTotal)
	}
	// The 500 boundary is inclusive: exactly 500 XP is level 2.
	if w.Level != 2 {
		t.Errorf("level = %d, want 2", w.Level)
	}
	if w.PointsBalance != 250 || w.PointsEarnedTotal != 250 {
		t.Errorf("points = %d/%d, want 250/250", w.PointsBalance, w.PointsEarnedTotal)
	}

	entries, _ := ms.LedgerEntriesByUser(context.Background(), "user1", 0)
	if len(entries) != 15 {
		t.Errorf("expected 15 ledger entries, got %d", len(entries))
	}
}

func TestEmit_ZeroRewardEventIsNoOp(t *testing.T) {
	eng, ms := newTestEngine(t)

	eng.Emit(context.Background(), Event{Type: reward.EventPurchaseCompleted, UserID: "user1"})
	before := mustWallet(t, ms, "user1")

	outcome, err := eng.process(context.Background(), Event{
		Type:   reward.EventESIMExpired,
		UserID: "user1",
	})
	if err != nil {
		t.Fatalf("process returned error: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Errorf("outcome = %s, want skipped", outcome)
	}

	after := mustWallet(t, ms, "user1")
	if *after != *before {
		t.Errorf("wallet changed on zero-reward event: before=%+v after=%+v", before, after)
	}

	entries, _ := ms.LedgerEntriesByUser(context.Background(), "user1", 0)
	if len(entries) != 3 {
		t.Errorf("expected 3 ledger entries, got %d", len(entries))
	}

	// Known-but-rewardless events are still audited.
	if logs := ms.EventLogsByUser("user1"); len(logs) != 2 {
		t.Errorf("expected 2 audit rows, got %d", len(logs))
	}
}

func TestEmit_UnknownTypeSkipped(t *testing.T) {
	eng, ms := newTestEngine(t)

	outcome, err := eng.process(context.Background(), Event{
		Type:   "user.sneezed",
		UserID: "user1",
	})
	if err != nil {
		t.Fatalf("process returned error: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Errorf("outcome = %s, want skipped", outcome)
	}

	if _, err := ms.GetWallet(context.Background(), "user1"); !errors.Is(err, store.ErrWalletNotFound) {
		t.Errorf("expected no wallet, got err=%v", err)
	}
	if logs := ms.EventLogsByUser("user1"); len(logs) != 0 {
		t.Errorf("unknown types must not be audited, got %d rows", len(logs))
	}
}

func TestEmit_LedgerRowPerNonZeroComponent(t *testing.T) {
	tests := []struct {
		event reward.EventType
		rows  int
	}{
		{reward.EventESIMActivated, 2},       // xp + points
		{reward.EventDailyCheckin, 2},        // xp + points
		{reward.EventOfferRedeemed, 2},       // xp + points
		{reward.EventReferralValidated, 3},   // xp + points + tickets
		{reward.EventSubscriptionCreated, 3}, // xp + points + tickets
	}

	for _, tt := range tests {
		eng, ms := newTestEngine(t)
		eng.Emit(context.Background(), Event{Type: tt.event, UserID: "user1"})

		entries, _ := ms.LedgerEntriesByUser(context.Background(), "user1", 0)
		if len(entries) != tt.rows {
			t.Errorf("%s: expected %d ledger entries, got %d", tt.event, tt.rows, len(entries))
		}
	}
}

func TestEmit_SourceIDFromEventData(t *testing.T) {
	eng, ms := newTestEngine(t)

	eng.Emit(context.Background(), Event{
		Type:   reward.EventPurchaseCompleted,
		UserID: "user1",
		Data:   map[string]any{"orderId": "order-42", "plan": "eu-10gb"},
	})
	eng.Emit(context.Background(), Event{
		Type:   reward.EventReferralValidated,
		UserID: "user2",
		Data:   map[string]any{"sourceId": "ref-7"},
	})

	entries, _ := ms.LedgerEntriesByUser(context.Background(), "user1", 0)
	for _, e := range entries {
		if e.SourceID != "order-42" {
			t.Errorf("source_id = %q, want order-42", e.SourceID)
		}
	}

	entries, _ = ms.LedgerEntriesByUser(context.Background(), "user2", 0)
	for _, e := range entries {
		if e.SourceID != "ref-7" {
			t.Errorf("source_id = %q, want ref-7", e.SourceID)
		}
	}
}

func TestEmit_DescriptionFormat(t *testing.T) {
	eng, ms := newTestEngine(t)

	eng.Emit(context.Background(), Event{Type: reward.EventDailyCheckin, UserID: "user1"})

	entries, _ := ms.LedgerEntriesByUser(context.Background(), "user1", 0)
	want := map[model.RewardKind]string{
		model.KindXP:     "+25 xp from checkin.daily",
		model.KindPoints: "+10 points from checkin.daily",
	}
	for _, e := range entries {
		if e.Description != want[e.Kind] {
			t.Errorf("description = %q, want %q", e.Description, want[e.Kind])
		}
	}
}

func TestEmit_ExplicitTimestamp(t *testing.T) {
	eng, ms := newTestEngine(t)
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	eng.Emit(context.Background(), Event{
		Type:      reward.EventPurchaseCompleted,
		UserID:    "user1",
		Timestamp: at,
	})

	w := mustWallet(t, ms, "user1")
	if !w.UpdatedAt.Equal(at) {
		t.Errorf("updated_at = %s, want %s", w.UpdatedAt, at)
	}
	entries, _ := ms.LedgerEntriesByUser(context.Background(), "user1", 0)
	for _, e := range entries {
		if !e.CreatedAt.Equal(at) {
			t.Errorf("created_at = %s, want %s", e.CreatedAt, at)
		}
	}
}

func TestEmit_Monotonicity(t *testing.T) {
	eng, ms := newTestEngine(t)

	sequence := []reward.EventType{
		reward.EventDailyCheckin,
		reward.EventPurchaseCompleted,
		reward.EventESIMExpired,
		reward.EventESIMActivated,
		reward.EventOfferRedeemed,
		reward.EventSubscriptionCreated,
		reward.EventSubscriptionCancelled,
		reward.EventReferralValidated,
	}

	var prevXP, prevEarned int64
	prevLevel := 0
	for _, et := range sequence {
		eng.Emit(context.Background(), Event{Type: et, UserID: "user1"})
		w := mustWallet(t, ms, "user1")
		if w.XPTotal < prevXP {
			t.Fatalf("xp_total decreased after %s: %d < %d", et, w.XPTotal, prevXP)
		}
		if w.PointsEarnedTotal < prevEarned {
			t.Fatalf("points_earned_total decreased after %s: %d < %d", et, w.PointsEarnedTotal, prevEarned)
		}
		if w.Level < prevLevel {
			t.Fatalf("level decreased after %s: %d < %d", et, w.Level, prevLevel)
		}
		prevXP, prevEarned, prevLevel = w.XPTotal, w.PointsEarnedTotal, w.Level
	}
}

func TestEmit_InjectedTableDrivesProgression(t *testing.T) {
	ms := store.NewMemoryStore()
	table := reward.Table{
		"test.bigwin": {XP: 5000, Points: 1, Tickets: 0},
	}
	eng := NewEngine(ms, table, nil)

	eng.Emit(context.Background(), Event{Type: "test.bigwin", UserID: "user1"})

	w := mustWallet(t, ms, "user1")
	if w.Level != 5 {
		t.Errorf("level = %d, want 5 for 5000 XP", w.Level)
	}
	if w.Tier != model.TierSilver {
		t.Errorf("tier = %s, want silver", w.Tier)
	}
}

func TestEmit_ConcurrentCreditsSameUser(t *testing.T) {
	eng, ms := newTestEngine(t)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			eng.Emit(context.Background(), Event{
				Type:   reward.EventPurchaseCompleted,
				UserID: "user1",
			})
		}()
	}
	wg.Wait()

	w := mustWallet(t, ms, "user1")
	if w.XPTotal != n*100 {
		t.Errorf("xp_total = %d, want %d (lost update)", w.XPTotal, n*100)
	}
	if w.PointsEarnedTotal != n*50 {
		t.Errorf("points_earned_total = %d, want %d", w.PointsEarnedTotal, n*50)
	}
	if want := 5; w.Level != want {
		t.Errorf("level = %d, want %d", w.Level, want)
	}

	entries, _ := ms.LedgerEntriesByUser(context.Background(), "user1", 0)
	if len(entries) != n*3 {
		t.Errorf("expected %d ledger entries, got %d", n*3, len(entries))
	}
}

// --- Failure swallowing ---

// brokenStore fails every operation.
type brokenStore struct{}

var errBroken = errors.New("store is down")

func (brokenStore) GetWallet(context.Context, string) (*model.Wallet, error) {
	return nil, errBroken
}
func (brokenStore) CreditWallet(context.Context, string, reward.Reward, time.Time) (*model.Wallet, error) {
	return nil, errBroken
}
func (brokenStore) SetProgression(context.Context, string, int, model.Tier, int64) error {
	return errBroken
}
func (brokenStore) UpdateCheckin(context.Context, string, int, time.Time) error {
	return errBroken
}
func (brokenStore) InsertLedgerEntry(context.Context, *model.LedgerEntry) error {
	return errBroken
}
func (brokenStore) LedgerEntriesByUser(context.Context, string, int) ([]model.LedgerEntry, error) {
	return nil, errBroken
}
func (brokenStore) InsertEventLog(context.Context, *model.EventLog) error {
	return errBroken
}

// auditFailStore fails only the audit log.
type auditFailStore struct {
	store.Store
}

func (auditFailStore) InsertEventLog(context.Context, *model.EventLog) error {
	return errBroken
}

func TestEmit_StoreFailureSwallowed(t *testing.T) {
	eng := NewEngine(brokenStore{}, reward.DefaultTable(), nil)

	// Must return normally, no panic, no error surfaced.
	eng.Emit(context.Background(), Event{
		Type:   reward.EventPurchaseCompleted,
		UserID: "user1",
	})

	outcome, err := eng.process(context.Background(), Event{
		Type:   reward.EventPurchaseCompleted,
		UserID: "user1",
	})
	if outcome != OutcomeFailed {
		t.Errorf("outcome = %s, want failed", outcome)
	}
	if err == nil {
		t.Error("expected error from fallible core")
	}
}

func TestEmit_AuditFailureDoesNotBlockCredit(t *testing.T) {
	ms := store.NewMemoryStore()
	eng := NewEngine(auditFailStore{Store: ms}, reward.DefaultTable(), nil)

	outcome, err := eng.process(context.Background(), Event{
		Type:   reward.EventPurchaseCompleted,
		UserID: "user1",
	})
	if err != nil {
		t.Fatalf("process returned error: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Errorf("outcome = %s, want applied", outcome)
	}

	w := mustWallet(t, ms, "user1")
	if w.XPTotal != 100 {
		t.Errorf("xp_total = %d, want 100 despite audit failure", w.XPTotal)
	}
}
