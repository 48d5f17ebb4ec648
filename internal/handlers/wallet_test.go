package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"coinflip/internal/models"
	"coinflip/internal/money"
	"coinflip/internal/services"
)

func TestGetBalanceDefaultsToCurrency(t *testing.T) {
	h := newTestHandler(testDeps{wallet: stubWallet{
		getBalanceFn: func(_ context.Context, userID string, unit money.Unit) (int64, error) {
			if userID != "user-1" || unit != money.Currency {
				t.Fatalf("unexpected lookup %s %s", userID, unit)
			}
			return 750, nil
		},
	}})
	rr := serve(t, h, http.MethodGet, "/wallet/balance", "", "user-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp balanceResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.Balance != 750 || resp.Display != "7.50" || resp.Unit != "currency" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestGetBalanceInvalidUnit(t *testing.T) {
	rr := serve(t, newTestHandler(testDeps{}), http.MethodGet, "/wallet/balance?unit=gold", "", "user-1")
	assertErrorCode(t, rr, http.StatusBadRequest, "invalid_unit")
}

func TestListTransactionsPassesFilters(t *testing.T) {
	h := newTestHandler(testDeps{wallet: stubWallet{
		historyFn: func(_ context.Context, userID, kind string, limit, offset int) ([]models.LedgerEntry, error) {
			if kind != "game_entry" || limit != 5 || offset != 5 {
				t.Fatalf("unexpected filters %s %d %d", kind, limit, offset)
			}
			return []models.LedgerEntry{{ID: "e1", Kind: kind, Amount: -250}}, nil
		},
	}})
	rr := serve(t, h, http.MethodGet, "/wallet/transactions?kind=game_entry&page=2&limit=5", "", "user-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp historyResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(resp.Entries) != 1 || resp.Entries[0].Amount != -250 {
		t.Fatalf("unexpected entries %+v", resp.Entries)
	}
}

func TestListTransactionsUnknownKind(t *testing.T) {
	h := newTestHandler(testDeps{wallet: stubWallet{
		historyFn: func(context.Context, string, string, int, int) ([]models.LedgerEntry, error) {
			return nil, services.ErrInvalidKind
		},
	}})
	rr := serve(t, h, http.MethodGet, "/wallet/transactions?kind=bonus", "", "user-1")
	assertErrorCode(t, rr, http.StatusBadRequest, "invalid_kind")
}

func TestWithdraw(t *testing.T) {
	h := newTestHandler(testDeps{wallet: stubWallet{
		withdrawFn: func(_ context.Context, userID string, amount int64, requestID string) (models.LedgerEntry, error) {
			if amount != 500 || requestID != "req-1" {
				t.Fatalf("unexpected withdraw %d %s", amount, requestID)
			}
			return models.LedgerEntry{ID: "e1", Amount: -500, BalanceAfter: 250}, nil
		},
	}})
	rr := serve(t, h, http.MethodPost, "/wallet/withdraw", `{"amount":"5.00","request_id":"req-1"}`, "user-1")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestWithdrawValidation(t *testing.T) {
	h := newTestHandler(testDeps{wallet: stubWallet{
		withdrawFn: func(context.Context, string, int64, string) (models.LedgerEntry, error) {
			t.Fatalf("withdraw should not be called")
			return models.LedgerEntry{}, nil
		},
	}})
	cases := []struct {
		body string
		code string
	}{
		{`{"amount":"abc","request_id":"req-1"}`, "invalid_amount"},
		{`{"amount":"-1.00","request_id":"req-1"}`, "invalid_amount"},
		{`{"amount":"1.00"}`, "invalid_reference"},
		{`{"amount":"1.00","request_id":"r","extra":1}`, "invalid_payload"},
		{`not json`, "invalid_payload"},
	}
	for _, tc := range cases {
		rr := serve(t, h, http.MethodPost, "/wallet/withdraw", tc.body, "user-1")
		assertErrorCode(t, rr, http.StatusBadRequest, tc.code)
	}
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	h := newTestHandler(testDeps{wallet: stubWallet{
		withdrawFn: func(context.Context, string, int64, string) (models.LedgerEntry, error) {
			return models.LedgerEntry{}, services.ErrInsufficientFunds
		},
	}})
	rr := serve(t, h, http.MethodPost, "/wallet/withdraw", `{"amount":"5.00","request_id":"req-1"}`, "user-1")
	assertErrorCode(t, rr, http.StatusBadRequest, "insufficient_funds")
}

func TestBuyCoins(t *testing.T) {
	h := newTestHandler(testDeps{wallet: stubWallet{
		buyCoinsFn: func(_ context.Context, userID string, amountMinor int64) (services.CoinPurchase, error) {
			if amountMinor != 100 {
				t.Fatalf("expected 100 minor units, got %d", amountMinor)
			}
			return services.CoinPurchase{ID: "p1", CurrencySpent: 100, CoinsBought: 100}, nil
		},
	}})
	rr := serve(t, h, http.MethodPost, "/wallet/coins", `{"amount":"1.00"}`, "user-1")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
}
