package handlers

import (
	"net/http"

	"coinflip/internal/middleware"
	"coinflip/internal/models"
	"coinflip/internal/money"
	"coinflip/internal/validator"
)

type balanceResponse struct {
	UserID  string `json:"user_id"`
	Unit    string `json:"unit"`
	Balance int64  `json:"balance"`
	Display string `json:"display"`
}

type historyResponse struct {
	Entries []models.LedgerEntry `json:"entries"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

type withdrawRequest struct {
	Amount    string `json:"amount"`
	RequestID string `json:"request_id"`
}

type buyCoinsRequest struct {
	Amount string `json:"amount"`
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	unit, err := money.ParseUnit(r.URL.Query().Get("unit"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_unit")
		return
	}
	balance, err := h.wallet.GetBalance(r.Context(), userID, unit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, balanceResponse{
		UserID:  userID,
		Unit:    string(unit),
		Balance: balance,
		Display: money.Format(unit, balance),
	})
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit, offset := pagination(r)
	entries, err := h.wallet.History(r.Context(), userID, r.URL.Query().Get("kind"), limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	respondJSON(w, http.StatusOK, historyResponse{Entries: entries, Limit: limit, Offset: offset})
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req withdrawRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	if err := validator.ValidateReference(req.RequestID); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_reference")
		return
	}
	entry, err := h.wallet.Withdraw(r.Context(), userID, amount, req.RequestID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

func (h *Handler) BuyCoins(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req buyCoinsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	purchase, err := h.wallet.BuyCoins(r.Context(), userID, amount)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, purchase)
}
