package handlers

import (
	"net/http"
	"strings"

	"coinflip/internal/middleware"
	"coinflip/internal/models"
	"coinflip/internal/services"
	"coinflip/internal/validator"
	"coinflip/internal/websocket"

	"github.com/go-chi/chi/v5"
)

type joinRequest struct {
	Stake string `json:"stake"`
}

type flipRequest struct {
	Choice     string `json:"choice"`
	Bet        int64  `json:"bet"`
	Multiplier string `json:"multiplier"`
}

func (h *Handler) WaitingGames(w http.ResponseWriter, r *http.Request) {
	var stake int64
	if raw := strings.TrimSpace(r.URL.Query().Get("stake")); raw != "" {
		parsed, err := parseAmountMinor(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_stake")
			return
		}
		stake = parsed
	}
	games, err := h.games.WaitingGames(r.Context(), stake)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if games == nil {
		games = []models.Game{}
	}
	respondJSON(w, http.StatusOK, games)
}

func (h *Handler) JoinGame(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req joinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	stake, err := parseAmountMinor(req.Stake)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_stake")
		return
	}
	result, err := h.games.JoinGame(r.Context(), userID, stake)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	if err := validator.ValidateGameID(gameID); err != nil {
		respondError(w, http.StatusNotFound, "not_found")
		return
	}
	detail, err := h.games.GameDetail(r.Context(), gameID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (h *Handler) GameResult(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	gameID := chi.URLParam(r, "id")
	if err := validator.ValidateGameID(gameID); err != nil {
		respondError(w, http.StatusNotFound, "not_found")
		return
	}
	result, err := h.games.ClaimSettlementResult(r.Context(), gameID, userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) PlayFlip(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req flipRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	multiplier, err := parseMultiplier(req.Multiplier)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_multiplier")
		return
	}
	result, err := h.games.PlaySingleFlip(r.Context(), services.FlipRequest{
		UserID:     userID,
		Choice:     req.Choice,
		Bet:        req.Bet,
		Multiplier: multiplier,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

func (h *Handler) WSUpdates(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	websocket.ServeWS(w, r, h.hub, userID)
}
