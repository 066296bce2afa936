package rewards

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/roamly/rewards-engine/internal/model"
	"github.com/roamly/rewards-engine/internal/progression"
	"github.com/roamly/rewards-engine/internal/store"
)

// Service exposes the engine and wallet queries over HTTP. This is the thin
// in-process boundary the engine's callers (checkout completion, webhook
// handlers, referral validation, subscription lifecycle) go through.
type Service struct {
	engine *Engine
	store  store.Store
}

// NewService creates the HTTP service around an engine and its store.
func NewService(engine *Engine, st store.Store) *Service {
	return &Service{engine: engine, store: st}
}

// WalletResponse is the wallet snapshot plus derived progression detail.
type WalletResponse struct {
	model.Wallet
	XPIntoLevel   int64           `json:"xp_into_level"`
	XPToNextLevel int64           `json:"xp_to_next_level"`
	LevelProgress decimal.Decimal `json:"level_progress"` // percent toward next level
}

// EmitEvent handles POST /api/v1/events
// Accepts the event and returns immediately; reward crediting is
// fire-and-forget and its failures are never surfaced here.
func (s *Service) EmitEvent(w http.ResponseWriter, r *http.Request) {
	var ev Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if ev.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if !s.engine.Known(ev.Type) {
		writeError(w, "unknown event type: "+string(ev.Type), http.StatusBadRequest)
		return
	}

	s.engine.Emit(r.Context(), ev)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

// GetWallet handles GET /api/v1/wallets/{userID}
// A user with no credits yet gets a default level-1 snapshot rather than 404.
func (s *Service) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	wallet, err := s.store.GetWallet(r.Context(), userID)
	if errors.Is(err, store.ErrWalletNotFound) {
		wallet = &model.Wallet{
			UserID:    userID,
			Level:     1,
			Tier:      model.TierBronze,
			UpdatedAt: time.Now().UTC(),
		}
	} else if err != nil {
		writeError(w, "failed to load wallet", http.StatusInternalServerError)
		return
	}

	resp := WalletResponse{
		Wallet:        *wallet,
		XPIntoLevel:   wallet.XPTotal - progression.XPForLevel(wallet.Level),
		XPToNextLevel: progression.XPForLevel(wallet.Level+1) - wallet.XPTotal,
		LevelProgress: progression.LevelProgress(wallet.XPTotal),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetTransactions handles GET /api/v1/wallets/{userID}/transactions
// Returns the user's reward ledger, newest first. Optional ?limit= capped
// at 500, default 50.
func (s *Service) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		if n > 500 {
			n = 500
		}
		limit = n
	}

	entries, err := s.store.LedgerEntriesByUser(r.Context(), userID, limit)
	if err != nil {
		writeError(w, "failed to load transactions", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
