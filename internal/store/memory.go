package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/roamly/rewards-engine/internal/model"
	"github.com/roamly/rewards-engine/internal/reward"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	wallets map[string]*model.Wallet
	ledger  []model.LedgerEntry
	events  []model.EventLog
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wallets: make(map[string]*model.Wallet),
	}
}

func (s *MemoryStore) GetWallet(_ context.Context, userID string) (*model.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[userID]
	if !ok {
		return nil, ErrWalletNotFound
	}
	copy := *w
	return &copy, nil
}

func (s *MemoryStore) CreditWallet(_ context.Context, userID string, r reward.Reward, at time.Time) (*model.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[userID]
	if !ok {
		w = &model.Wallet{
			UserID: userID,
			Level:  1,
			Tier:   model.TierBronze,
		}
		s.wallets[userID] = w
	}

	w.XPTotal += r.XP
	w.PointsBalance += r.Points
	w.PointsEarnedTotal += r.Points
	w.TicketsBalance += r.Tickets
	w.UpdatedAt = at

	copy := *w
	return &copy, nil
}

func (s *MemoryStore) SetProgression(_ context.Context, userID string, level int, tier model.Tier, observedXP int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[userID]
	if !ok || w.XPTotal != observedXP {
		// Same semantics as the guarded SQL update: stale observation no-ops.
		return nil
	}
	w.Level = level
	w.Tier = tier
	return nil
}

func (s *MemoryStore) UpdateCheckin(_ context.Context, userID string, streakDays int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[userID]
	if !ok {
		w = &model.Wallet{
			UserID: userID,
			Level:  1,
			Tier:   model.TierBronze,
		}
		s.wallets[userID] = w
	}
	checkin := at
	w.StreakDays = streakDays
	w.LastCheckin = &checkin
	w.UpdatedAt = at
	return nil
}

func (s *MemoryStore) InsertLedgerEntry(_ context.Context, entry *model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger = append(s.ledger, *entry)
	return nil
}

func (s *MemoryStore) LedgerEntriesByUser(_ context.Context, userID string, limit int) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.LedgerEntry
	for _, e := range s.ledger {
		if e.UserID == userID {
			result = append(result, e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStore) InsertEventLog(_ context.Context, entry *model.EventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, *entry)
	return nil
}

// EventLogsByUser returns audit rows for a user. Test helper; not part of
// the Store interface.
func (s *MemoryStore) EventLogsByUser(userID string) []model.EventLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.EventLog
	for _, e := range s.events {
		if e.UserID == userID {
			result = append(result, e)
		}
	}
	return result
}
