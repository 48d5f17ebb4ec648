package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"coinflip/internal/services"
	"coinflip/internal/validator"

	log "github.com/sirupsen/logrus"
)

const signatureHeader = "X-Signature"

type paymentWebhookRequest struct {
	Reference string `json:"reference"`
	UserID    string `json:"user_id"`
	Amount    string `json:"amount"`
}

// PaymentWebhook records a confirmed deposit from the payment gateway. A
// replayed reference is acknowledged without crediting again.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	if !validSignature(h.cfg.WebhookSecret, body, r.Header.Get(signatureHeader)) {
		respondError(w, http.StatusUnauthorized, "invalid_signature")
		return
	}
	var req paymentWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	if err := validator.ValidateReference(req.Reference); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_reference")
		return
	}
	if err := validator.ValidateUserID(req.UserID); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_user_id")
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	deposit, err := h.wallet.RecordExternalDeposit(r.Context(), req.UserID, amount, req.Reference)
	if errors.Is(err, services.ErrDuplicateReference) {
		log.WithFields(log.Fields{"reference": req.Reference, "user_id": req.UserID}).Info("duplicate payment webhook ignored")
		respondJSON(w, http.StatusOK, map[string]string{"status": "duplicate", "reference": req.Reference})
		return
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, deposit)
}

func validSignature(secret string, body []byte, signature string) bool {
	expected, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(expected) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}
