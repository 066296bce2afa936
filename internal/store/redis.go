package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roamly/rewards-engine/internal/model"
	"github.com/roamly/rewards-engine/internal/reward"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for wallet snapshots. Writes go to the primary store and refresh or
// invalidate the cache; reads check Redis first then fall back to the
// primary. The ledger and audit log are never cached — they are append-only
// and read rarely.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Read-through ---

func (s *CachedStore) GetWallet(ctx context.Context, userID string) (*model.Wallet, error) {
	data, err := s.rdb.Get(ctx, walletKey(userID)).Bytes()
	if err == nil {
		var w model.Wallet
		if json.Unmarshal(data, &w) == nil {
			return &w, nil
		}
	}

	// Cache miss: read from primary. Not-found is not cached; the next
	// credit creates the row.
	w, err := s.primary.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.cacheWallet(ctx, w)
	return w, nil
}

// --- Write-through (write to primary, refresh or invalidate cache) ---

func (s *CachedStore) CreditWallet(ctx context.Context, userID string, r reward.Reward, at time.Time) (*model.Wallet, error) {
	w, err := s.primary.CreditWallet(ctx, userID, r, at)
	if err != nil {
		return nil, err
	}
	// Invalidate rather than cache: the level/tier stamp lands after the
	// credit, so the snapshot in hand may be one step behind.
	s.rdb.Del(ctx, walletKey(userID))
	return w, nil
}

func (s *CachedStore) SetProgression(ctx context.Context, userID string, level int, tier model.Tier, observedXP int64) error {
	if err := s.primary.SetProgression(ctx, userID, level, tier, observedXP); err != nil {
		return err
	}
	s.rdb.Del(ctx, walletKey(userID))
	return nil
}

func (s *CachedStore) UpdateCheckin(ctx context.Context, userID string, streakDays int, at time.Time) error {
	if err := s.primary.UpdateCheckin(ctx, userID, streakDays, at); err != nil {
		return err
	}
	s.rdb.Del(ctx, walletKey(userID))
	return nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) InsertLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error {
	return s.primary.InsertLedgerEntry(ctx, entry)
}

func (s *CachedStore) LedgerEntriesByUser(ctx context.Context, userID string, limit int) ([]model.LedgerEntry, error) {
	return s.primary.LedgerEntriesByUser(ctx, userID, limit)
}

func (s *CachedStore) InsertEventLog(ctx context.Context, entry *model.EventLog) error {
	return s.primary.InsertEventLog(ctx, entry)
}

// --- Cache helpers ---

func (s *CachedStore) cacheWallet(ctx context.Context, w *model.Wallet) {
	if data, err := json.Marshal(w); err == nil {
		s.rdb.Set(ctx, walletKey(w.UserID), data, s.ttl)
	}
}

func walletKey(userID string) string { return fmt.Sprintf("wallet:%s", userID) }
