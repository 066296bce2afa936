package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roamly/rewards-engine/internal/model"
	"github.com/roamly/rewards-engine/internal/reward"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Wallet credits are single-statement upsert-increments so concurrent
// credits for the same user serialize at the row level instead of racing
// in the application.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const walletColumns = `user_id, xp_total, level, tier, points_balance,
	points_earned_total, tickets_balance, streak_days, last_checkin, updated_at`

func (s *PostgresStore) GetWallet(ctx context.Context, userID string) (*model.Wallet, error) {
	var w model.Wallet
	err := s.pool.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM user_wallet WHERE user_id = $1`, userID).
		Scan(&w.UserID, &w.XPTotal, &w.Level, &w.Tier, &w.PointsBalance,
			&w.PointsEarnedTotal, &w.TicketsBalance, &w.StreakDays,
			&w.LastCheckin, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet %s: %w", userID, err)
	}
	return &w, nil
}

func (s *PostgresStore) CreditWallet(ctx context.Context, userID string, r reward.Reward, at time.Time) (*model.Wallet, error) {
	// New wallets start at level 1 / bronze; the engine stamps the derived
	// level afterwards via SetProgression. On conflict the increments run
	// inside the statement, so there is no read-modify-write window.
	var w model.Wallet
	err := s.pool.QueryRow(ctx,
		`INSERT INTO user_wallet (user_id, xp_total, level, tier, points_balance,
		                          points_earned_total, tickets_balance, streak_days, updated_at)
		 VALUES ($1, $2, 1, 'bronze', $3, $3, $4, 0, $5)
		 ON CONFLICT (user_id) DO UPDATE SET
		     xp_total            = user_wallet.xp_total + EXCLUDED.xp_total,
		     points_balance      = user_wallet.points_balance + EXCLUDED.points_balance,
		     points_earned_total = user_wallet.points_earned_total + EXCLUDED.points_earned_total,
		     tickets_balance     = user_wallet.tickets_balance + EXCLUDED.tickets_balance,
		     updated_at          = EXCLUDED.updated_at
		 RETURNING `+walletColumns,
		userID, r.XP, r.Points, r.Tickets, at).
		Scan(&w.UserID, &w.XPTotal, &w.Level, &w.Tier, &w.PointsBalance,
			&w.PointsEarnedTotal, &w.TicketsBalance, &w.StreakDays,
			&w.LastCheckin, &w.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("credit wallet %s: %w", userID, err)
	}
	return &w, nil
}

func (s *PostgresStore) SetProgression(ctx context.Context, userID string, level int, tier model.Tier, observedXP int64) error {
	// Guarded on xp_total: if a concurrent credit already moved the total,
	// this stamp no-ops and that credit's own stamp (derived from the
	// higher total) wins.
	_, err := s.pool.Exec(ctx,
		`UPDATE user_wallet SET level = $2, tier = $3
		 WHERE user_id = $1 AND xp_total = $4`,
		userID, level, tier, observedXP)
	if err != nil {
		return fmt.Errorf("set progression %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) UpdateCheckin(ctx context.Context, userID string, streakDays int, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_wallet (user_id, xp_total, level, tier, points_balance,
		                          points_earned_total, tickets_balance, streak_days, last_checkin, updated_at)
		 VALUES ($1, 0, 1, 'bronze', 0, 0, 0, $2, $3, $3)
		 ON CONFLICT (user_id) DO UPDATE SET
		     streak_days  = EXCLUDED.streak_days,
		     last_checkin = EXCLUDED.last_checkin,
		     updated_at   = EXCLUDED.updated_at`,
		userID, streakDays, at)
	if err != nil {
		return fmt.Errorf("update checkin %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO wallet_transactions (id, user_id, type, delta, reason, source_id, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.UserID, e.Kind, e.Delta, e.Reason, e.SourceID, e.Description, e.CreatedAt)
	return err
}

func (s *PostgresStore) LedgerEntriesByUser(ctx context.Context, userID string, limit int) ([]model.LedgerEntry, error) {
	query := `SELECT id, user_id, type, delta, reason, source_id, description, created_at
	          FROM wallet_transactions WHERE user_id = $1 ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.Delta, &e.Reason,
			&e.SourceID, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) InsertEventLog(ctx context.Context, e *model.EventLog) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO event_logs (id, user_id, event_type, event_data, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.UserID, e.EventType, e.EventData, e.CreatedAt)
	return err
}
