// Package checkin implements the daily check-in caller of the rewards
// engine. The engine itself has no concept of "already rewarded today" —
// calendar-day deduplication and the streak counter are owned here, decided
// before Emit is ever invoked.
package checkin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/roamly/rewards-engine/internal/metrics"
	"github.com/roamly/rewards-engine/internal/model"
	"github.com/roamly/rewards-engine/internal/reward"
	"github.com/roamly/rewards-engine/internal/rewards"
	"github.com/roamly/rewards-engine/internal/store"
)

// ErrAlreadyCheckedIn is returned when the user has already checked in
// during the current UTC calendar day.
var ErrAlreadyCheckedIn = errors.New("checkin: already checked in today")

// Service performs daily check-ins: dedup, streak maintenance, then a
// checkin.daily event to the engine.
type Service struct {
	store  store.Store
	engine *rewards.Engine
	now    func() time.Time
}

// NewService creates a check-in service.
func NewService(st store.Store, engine *rewards.Engine) *Service {
	return &Service{
		store:  st,
		engine: engine,
		now:    time.Now,
	}
}

// CheckIn records a daily check-in for the user and emits the reward event.
// Days are UTC calendar days: a streak continues if the previous check-in
// was yesterday, otherwise it resets to 1.
func (s *Service) CheckIn(ctx context.Context, userID string) (*model.Wallet, error) {
	now := s.now().UTC()

	wallet, err := s.store.GetWallet(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrWalletNotFound) {
		return nil, fmt.Errorf("checkin: load wallet: %w", err)
	}

	streak := 1
	if wallet != nil && wallet.LastCheckin != nil {
		last := wallet.LastCheckin.UTC()
		switch {
		case sameDay(last, now):
			return nil, ErrAlreadyCheckedIn
		case sameDay(last.AddDate(0, 0, 1), now):
			streak = wallet.StreakDays + 1
		}
	}

	if err := s.store.UpdateCheckin(ctx, userID, streak, now); err != nil {
		return nil, fmt.Errorf("checkin: update streak: %w", err)
	}

	// Dedup already happened above; the engine credits unconditionally.
	s.engine.Emit(ctx, rewards.Event{
		Type:      reward.EventDailyCheckin,
		UserID:    userID,
		Timestamp: now,
	})

	updated, err := s.store.GetWallet(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("checkin: reload wallet: %w", err)
	}
	return updated, nil
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// --- HTTP handler ---

// Request is the JSON body for POST /api/v1/checkin.
type Request struct {
	UserID string `json:"user_id"`
}

// Handle handles POST /api/v1/checkin
// Responds 409 when the user already checked in today.
func (s *Service) Handle(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	wallet, err := s.CheckIn(r.Context(), req.UserID)
	if errors.Is(err, ErrAlreadyCheckedIn) {
		metrics.CheckinsTotal.WithLabelValues("duplicate").Inc()
		writeError(w, "already checked in today", http.StatusConflict)
		return
	}
	if err != nil {
		slog.Error("checkin failed", "user", req.UserID, "err", err)
		writeError(w, "checkin failed", http.StatusInternalServerError)
		return
	}

	metrics.CheckinsTotal.WithLabelValues("accepted").Inc()
	slog.Info("daily checkin", "user", req.UserID, "streak", wallet.StreakDays)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(wallet)
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
