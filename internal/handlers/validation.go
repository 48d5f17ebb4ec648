package handlers

import (
	"errors"
	"strings"

	"coinflip/internal/money"

	"github.com/shopspring/decimal"
)

var (
	errInvalidAmount     = errors.New("invalid amount")
	errInvalidMultiplier = errors.New("invalid multiplier")
)

func parseAmountMinor(raw string) (int64, error) {
	amount, err := money.ParseMinor(raw)
	if err != nil || amount <= 0 {
		return 0, errInvalidAmount
	}
	return amount, nil
}

// parseMultiplier returns nil when the client leaves the multiplier out.
func parseMultiplier(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	multiplier, err := decimal.NewFromString(raw)
	if err != nil || multiplier.IsNegative() || multiplier.Exponent() < -6 {
		return nil, errInvalidMultiplier
	}
	return &multiplier, nil
}
