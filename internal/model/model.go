// Package model defines the core domain types shared across the rewards
// engine. All reward quantities are whole integers — XP, points, and tickets
// have no fractional denominations.
package model

import (
	"encoding/json"
	"time"
)

// Tier is the coarse loyalty bracket derived from level.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// RewardKind identifies which balance a ledger entry credits.
type RewardKind string

const (
	KindXP      RewardKind = "xp"
	KindPoints  RewardKind = "points"
	KindTickets RewardKind = "tickets"
)

// Wallet is the per-user mutable snapshot of current reward balances.
// XPTotal and PointsEarnedTotal only ever increase; Level and Tier are
// always recomputed from XPTotal on mutation, never drifted independently.
type Wallet struct {
	UserID            string     `json:"user_id" db:"user_id"`
	XPTotal           int64      `json:"xp_total" db:"xp_total"`
	Level             int        `json:"level" db:"level"`
	Tier              Tier       `json:"tier" db:"tier"`
	PointsBalance     int64      `json:"points_balance" db:"points_balance"`
	PointsEarnedTotal int64      `json:"points_earned_total" db:"points_earned_total"`
	TicketsBalance    int64      `json:"tickets_balance" db:"tickets_balance"`
	StreakDays        int        `json:"streak_days" db:"streak_days"`
	LastCheckin       *time.Time `json:"last_checkin,omitempty" db:"last_checkin"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// LedgerEntry is an immutable record of one reward-component credit.
// Once created, these are never modified or deleted.
// Schema: {user, kind, delta, reason, source, timestamp}
type LedgerEntry struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	Kind        RewardKind `json:"type" db:"type"`
	Delta       int64      `json:"delta" db:"delta"` // signed; engine writes are positive
	Reason      string     `json:"reason" db:"reason"`
	SourceID    string     `json:"source_id,omitempty" db:"source_id"`
	Description string     `json:"description" db:"description"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// EventLog is a best-effort audit row recording a raw inbound event,
// independent of whether the event carried a reward.
type EventLog struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	EventType string          `json:"event_type" db:"event_type"`
	EventData json.RawMessage `json:"event_data,omitempty" db:"event_data"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
