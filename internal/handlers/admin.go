package handlers

import (
	"net/http"
	"strconv"

	"coinflip/internal/models"
	"coinflip/internal/money"
	"coinflip/internal/store"
)

type reconcileResponse struct {
	Consistent bool                          `json:"consistent"`
	Accounts   []store.AccountBalanceSummary `json:"accounts"`
}

type statsResponse struct {
	store.GameStats
	ConnectedUsers int `json:"connected_users"`
}

type gameConfigResponse struct {
	StakeTiers           []string `json:"stake_tiers"`
	Capacity             int      `json:"capacity"`
	WinMultiplier        string   `json:"win_multiplier"`
	LossRefundMultiplier string   `json:"loss_refund_multiplier"`
	SingleFlipMultiplier string   `json:"single_flip_multiplier"`
	HouseMargin          string   `json:"house_margin"`
	MinBet               int64    `json:"min_bet"`
	MaxBet               int64    `json:"max_bet"`
	CoinsPerCurrencyUnit int64    `json:"coins_per_currency_unit"`
	GameExpiry           string   `json:"game_expiry"`
	SweepInterval        string   `json:"sweep_interval"`
}

// Reconcile lists accounts whose stored balance differs from their ledger
// sum. all=true includes balanced accounts.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	includeBalanced, _ := strconv.ParseBool(r.URL.Query().Get("all"))
	accounts, err := h.reconciler.Reconcile(r.Context(), includeBalanced)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	consistent := true
	for _, account := range accounts {
		if account.Difference != 0 {
			consistent = false
			break
		}
	}
	if accounts == nil {
		accounts = []store.AccountBalanceSummary{}
	}
	respondJSON(w, http.StatusOK, reconcileResponse{Consistent: consistent, Accounts: accounts})
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	logs, err := h.audit.List(r.Context(), r.URL.Query().Get("entity_type"), limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	respondJSON(w, http.StatusOK, logs)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	connected := 0
	if h.hub != nil {
		connected = h.hub.ConnectedUsers()
	}
	respondJSON(w, http.StatusOK, statsResponse{GameStats: stats, ConnectedUsers: connected})
}

func (h *Handler) GameConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.games.Config()
	tiers := make([]string, 0, len(cfg.StakeTiers))
	for _, tier := range cfg.StakeTiers {
		tiers = append(tiers, money.FormatMinor(tier))
	}
	respondJSON(w, http.StatusOK, gameConfigResponse{
		StakeTiers:           tiers,
		Capacity:             cfg.Capacity,
		WinMultiplier:        cfg.WinMultiplier.String(),
		LossRefundMultiplier: cfg.LossRefundMultiplier.String(),
		SingleFlipMultiplier: cfg.SingleFlipMultiplier.String(),
		HouseMargin:          cfg.HouseMargin().String(),
		MinBet:               cfg.MinBet,
		MaxBet:               cfg.MaxBet,
		CoinsPerCurrencyUnit: cfg.CoinsPerCurrencyUnit,
		GameExpiry:           cfg.GameExpiry.String(),
		SweepInterval:        cfg.SweepInterval.String(),
	})
}
