// Package store defines the persistence interface for the rewards engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// wallet cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/roamly/rewards-engine/internal/model"
	"github.com/roamly/rewards-engine/internal/reward"
)

// ErrWalletNotFound is returned by GetWallet when the user has never been
// credited. The engine creates wallets lazily on first credit.
var ErrWalletNotFound = errors.New("store: wallet not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache for wallet snapshots.
type Store interface {
	// --- Wallet snapshot ---

	// GetWallet retrieves the wallet snapshot for a user.
	// Returns ErrWalletNotFound if the user has no wallet yet.
	GetWallet(ctx context.Context, userID string) (*model.Wallet, error)

	// CreditWallet atomically applies a reward's deltas to the user's
	// wallet, creating it if absent, and returns the post-increment
	// snapshot. The increments must be executed by the store itself
	// (never read-modify-write in the application) so concurrent credits
	// for one user cannot lose updates.
	CreditWallet(ctx context.Context, userID string, r reward.Reward, at time.Time) (*model.Wallet, error)

	// SetProgression stamps the level/tier derived from an observed
	// xp_total. Implementations must make the write conditional on
	// xp_total still being observedXP, so a concurrent credit (whose own
	// stamp derives from a higher total) can never be regressed.
	SetProgression(ctx context.Context, userID string, level int, tier model.Tier, observedXP int64) error

	// UpdateCheckin records a daily check-in: streak counter and
	// timestamp. Owned by the check-in caller, not the engine.
	UpdateCheckin(ctx context.Context, userID string, streakDays int, at time.Time) error

	// --- Immutable ledger ---

	// InsertLedgerEntry appends an immutable reward-credit record.
	InsertLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error

	// LedgerEntriesByUser returns a user's reward history, newest first.
	// A limit <= 0 means no limit.
	LedgerEntriesByUser(ctx context.Context, userID string, limit int) ([]model.LedgerEntry, error)

	// --- Audit log ---

	// InsertEventLog appends a raw-event audit row. Best-effort: callers
	// log failures and continue.
	InsertEventLog(ctx context.Context, entry *model.EventLog) error
}
