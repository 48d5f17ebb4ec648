package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"coinflip/internal/db"
	"coinflip/internal/services"

	log "github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 16

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code string) {
	respondJSON(w, status, map[string]string{"error": code})
}

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{services.ErrInsufficientFunds, http.StatusBadRequest, "insufficient_funds"},
	{services.ErrGameFull, http.StatusConflict, "game_full"},
	{services.ErrAlreadyJoined, http.StatusConflict, "already_joined"},
	{services.ErrInvalidStake, http.StatusBadRequest, "invalid_stake"},
	{services.ErrInvalidBet, http.StatusBadRequest, "invalid_bet"},
	{services.ErrInvalidChoice, http.StatusBadRequest, "invalid_choice"},
	{services.ErrInvalidMultiplier, http.StatusBadRequest, "invalid_multiplier"},
	{services.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{services.ErrInvalidKind, http.StatusBadRequest, "invalid_kind"},
	{services.ErrMissingReference, http.StatusBadRequest, "missing_reference"},
	{services.ErrDuplicateReference, http.StatusConflict, "duplicate_reference"},
	{services.ErrGameNotSettled, http.StatusConflict, "game_not_settled"},
	{services.ErrGameNotFull, http.StatusConflict, "game_not_full"},
	{services.ErrGameCancelled, http.StatusConflict, "game_cancelled"},
	{services.ErrAlreadySettled, http.StatusConflict, "already_settled"},
	{services.ErrNotParticipant, http.StatusForbidden, "not_participant"},
	{services.ErrNotFound, http.StatusNotFound, "not_found"},
	{db.ErrStorageUnavailable, http.StatusServiceUnavailable, "storage_unavailable"},
}

// respondServiceError maps domain errors to their public code. Anything
// unrecognised is logged and reported as internal.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, mapping := range errorCodes {
		if errors.Is(err, mapping.err) {
			respondError(w, mapping.status, mapping.code)
			return
		}
	}
	log.WithError(err).WithFields(log.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).Error("unhandled service error")
	respondError(w, http.StatusInternalServerError, "internal_error")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload")
		return false
	}
	return true
}

// pagination reads page (1-based) and limit, falling back to defaults on bad input.
func pagination(r *http.Request) (limit, offset int) {
	limit = 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = min(parsed, 100)
		}
	}
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			page = parsed
		}
	}
	return limit, (page - 1) * limit
}
