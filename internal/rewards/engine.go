// Package rewards implements the reward ledger engine: it converts discrete
// user actions into XP, points, and raffle-ticket credits, maintains the
// per-user wallet snapshot, and appends the immutable transaction ledger.
//
// Emit is fire-and-forget: reward crediting is non-critical infrastructure,
// so a failure here is logged and swallowed — it must never fail or roll
// back the business action that triggered it.
package rewards

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roamly/rewards-engine/internal/metrics"
	"github.com/roamly/rewards-engine/internal/model"
	"github.com/roamly/rewards-engine/internal/progression"
	"github.com/roamly/rewards-engine/internal/reward"
	"github.com/roamly/rewards-engine/internal/store"
)

// DefaultStoreTimeout bounds the store work done by one Emit call so a
// reward credit can never stall the triggering business request.
const DefaultStoreTimeout = 5 * time.Second

// Event is one discrete user action submitted to the engine. UserID is
// trusted from the caller; Data is an opaque payload of which only
// orderId/sourceId are consumed, to stamp ledger rows for traceability.
type Event struct {
	Type      reward.EventType `json:"type"`
	UserID    string           `json:"user_id"`
	Data      map[string]any   `json:"data,omitempty"`
	Timestamp time.Time        `json:"timestamp,omitempty"`
}

// Outcome classifies what one emit attempt did. Exposed from the fallible
// core so tests and metrics can observe it; the public Emit discards it.
type Outcome string

const (
	// OutcomeApplied means the wallet was credited and ledger rows written.
	OutcomeApplied Outcome = "applied"

	// OutcomeSkipped means the event carried no reward (unknown type or
	// all deltas zero). The wallet was neither read nor written.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeFailed means a store operation failed. At-most-one-attempt:
	// the engine never retries.
	OutcomeFailed Outcome = "failed"
)

// Engine is the reward ledger engine. It has no internal concurrency of its
// own; per-user consistency under concurrent emits relies on the store's
// atomic increment semantics (see store.Store.CreditWallet).
type Engine struct {
	store   store.Store
	table   reward.Table
	hub     *Hub // optional, for real-time wallet update broadcasts
	timeout time.Duration
	now     func() time.Time
}

// NewEngine creates an engine over the given store and reward table.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewEngine(st store.Store, table reward.Table, hub *Hub) *Engine {
	return &Engine{
		store:   st,
		table:   table,
		hub:     hub,
		timeout: DefaultStoreTimeout,
		now:     time.Now,
	}
}

// Known reports whether the engine recognizes an event type.
func (e *Engine) Known(et reward.EventType) bool {
	return e.table.Known(et)
}

// Emit processes an event, crediting rewards as configured. It never
// returns an error: failures are counted, logged with the event type and
// user id, and swallowed. Callers that need the updated snapshot must read
// the wallet afterwards.
func (e *Engine) Emit(ctx context.Context, ev Event) {
	start := time.Now()
	outcome, err := e.process(ctx, ev)
	metrics.EventsTotal.WithLabelValues(string(ev.Type), string(outcome)).Inc()
	metrics.EmitLatency.WithLabelValues(string(ev.Type)).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.SwallowedFailures.Inc()
		slog.Error("reward emit failed",
			"event_type", ev.Type,
			"user", ev.UserID,
			"err", err,
		)
	}
}

// process is the fallible core behind Emit.
func (e *Engine) process(ctx context.Context, ev Event) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	at := ev.Timestamp
	if at.IsZero() {
		at = e.now().UTC()
	}

	r, ok := e.table.Lookup(ev.Type)
	if !ok {
		// Unknown type: nothing to audit, nothing to credit.
		return OutcomeSkipped, nil
	}

	// Audit log first, before any reward work. Best-effort: the audit
	// trail is independent of whether the event carries a reward, and a
	// failure here must not block crediting.
	e.logEvent(ctx, ev, at)

	if r.IsZero() {
		// Known but rewardless (expiry, cancellation): the wallet is
		// neither read nor written. Intentional early exit.
		return OutcomeSkipped, nil
	}

	wallet, err := e.store.CreditWallet(ctx, ev.UserID, r, at)
	if err != nil {
		return OutcomeFailed, err
	}

	// Recompute level/tier from the post-increment total and stamp it.
	// The stored columns are caches of progression's pure functions and
	// must follow every mutation.
	level := progression.LevelForXP(wallet.XPTotal)
	tier := progression.TierForLevel(level)
	leveledUp := level > wallet.Level
	if level != wallet.Level || tier != wallet.Tier {
		if err := e.store.SetProgression(ctx, ev.UserID, level, tier, wallet.XPTotal); err != nil {
			return OutcomeFailed, err
		}
		wallet.Level = level
		wallet.Tier = tier
	}

	sourceID := eventSourceID(ev.Data)
	for _, c := range []struct {
		kind  model.RewardKind
		delta int64
	}{
		{model.KindXP, r.XP},
		{model.KindPoints, r.Points},
		{model.KindTickets, r.Tickets},
	} {
		if c.delta == 0 {
			continue
		}
		entry := &model.LedgerEntry{
			ID:          uuid.New().String(),
			UserID:      ev.UserID,
			Kind:        c.kind,
			Delta:       c.delta,
			Reason:      string(ev.Type),
			SourceID:    sourceID,
			Description: fmt.Sprintf("+%d %s from %s", c.delta, c.kind, ev.Type),
			CreatedAt:   at,
		}
		if err := e.store.InsertLedgerEntry(ctx, entry); err != nil {
			return OutcomeFailed, err
		}
	}

	if leveledUp {
		metrics.LevelUps.Inc()
	}

	slog.Info("reward credited",
		"event_type", ev.Type,
		"user", ev.UserID,
		"xp", r.XP,
		"points", r.Points,
		"tickets", r.Tickets,
		"level", level,
		"tier", tier,
	)

	if e.hub != nil {
		e.hub.Broadcast(WalletUpdate{
			Type:         "reward_credited",
			UserID:       ev.UserID,
			Reason:       string(ev.Type),
			XPDelta:      r.XP,
			PointsDelta:  r.Points,
			TicketsDelta: r.Tickets,
			XPTotal:      wallet.XPTotal,
			Level:        level,
			Tier:         tier,
			LeveledUp:    leveledUp,
		})
	}

	return OutcomeApplied, nil
}

// logEvent appends the raw event to the audit log. Failures are logged and
// ignored.
func (e *Engine) logEvent(ctx context.Context, ev Event, at time.Time) {
	var payload json.RawMessage
	if len(ev.Data) > 0 {
		if data, err := json.Marshal(ev.Data); err == nil {
			payload = data
		}
	}

	err := e.store.InsertEventLog(ctx, &model.EventLog{
		ID:        uuid.New().String(),
		UserID:    ev.UserID,
		EventType: string(ev.Type),
		EventData: payload,
		CreatedAt: at,
	})
	if err != nil {
		slog.Warn("event audit log write failed",
			"event_type", ev.Type,
			"user", ev.UserID,
			"err", err,
		)
	}
}

// eventSourceID extracts the correlating id from an event payload:
// orderId first, then sourceId, else empty.
func eventSourceID(data map[string]any) string {
	if v, ok := data["orderId"].(string); ok && v != "" {
		return v
	}
	if v, ok := data["sourceId"].(string); ok && v != "" {
		return v
	}
	return ""
}
