package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"coinflip/internal/auth"
	"coinflip/internal/config"
	"coinflip/internal/models"
	"coinflip/internal/money"
	"coinflip/internal/services"
	"coinflip/internal/store"
	"coinflip/internal/websocket"
)

const (
	testSecret        = "secret"
	testWebhookSecret = "webhook-secret"
	testAdminID       = "admin-1"
	testGameID        = "9b2f8c1e-3d4a-4f6b-8a2c-1e2d3f4a5b6c"
)

type stubWallet struct {
	getBalanceFn func(ctx context.Context, userID string, unit money.Unit) (int64, error)
	historyFn    func(ctx context.Context, userID, kind string, limit, offset int) ([]models.LedgerEntry, error)
	withdrawFn   func(ctx context.Context, userID string, amount int64, requestID string) (models.LedgerEntry, error)
	buyCoinsFn   func(ctx context.Context, userID string, amountMinor int64) (services.CoinPurchase, error)
	depositFn    func(ctx context.Context, userID string, amount int64, reference string) (services.Deposit, error)
}

func (s stubWallet) GetBalance(ctx context.Context, userID string, unit money.Unit) (int64, error) {
	if s.getBalanceFn == nil {
		return 0, nil
	}
	return s.getBalanceFn(ctx, userID, unit)
}

func (s stubWallet) History(ctx context.Context, userID, kind string, limit, offset int) ([]models.LedgerEntry, error) {
	if s.historyFn == nil {
		return nil, nil
	}
	return s.historyFn(ctx, userID, kind, limit, offset)
}

func (s stubWallet) Withdraw(ctx context.Context, userID string, amount int64, requestID string) (models.LedgerEntry, error) {
	if s.withdrawFn == nil {
		return models.LedgerEntry{}, nil
	}
	return s.withdrawFn(ctx, userID, amount, requestID)
}

func (s stubWallet) BuyCoins(ctx context.Context, userID string, amountMinor int64) (services.CoinPurchase, error) {
	if s.buyCoinsFn == nil {
		return services.CoinPurchase{}, nil
	}
	return s.buyCoinsFn(ctx, userID, amountMinor)
}

func (s stubWallet) RecordExternalDeposit(ctx context.Context, userID string, amount int64, reference string) (services.Deposit, error) {
	if s.depositFn == nil {
		return services.Deposit{}, nil
	}
	return s.depositFn(ctx, userID, amount, reference)
}

type stubGames struct {
	joinFn    func(ctx context.Context, userID string, stake int64) (services.JoinResult, error)
	flipFn    func(ctx context.Context, req services.FlipRequest) (services.FlipResult, error)
	resultFn  func(ctx context.Context, gameID, userID string) (services.GameResult, error)
	waitingFn func(ctx context.Context, stake int64) ([]models.Game, error)
	detailFn  func(ctx context.Context, gameID string) (services.GameDetail, error)
}

func (s stubGames) Config() config.GameConfig {
	return config.DefaultGame()
}

func (s stubGames) JoinGame(ctx context.Context, userID string, stake int64) (services.JoinResult, error) {
	if s.joinFn == nil {
		return services.JoinResult{}, nil
	}
	return s.joinFn(ctx, userID, stake)
}

func (s stubGames) PlaySingleFlip(ctx context.Context, req services.FlipRequest) (services.FlipResult, error) {
	if s.flipFn == nil {
		return services.FlipResult{}, nil
	}
	return s.flipFn(ctx, req)
}

func (s stubGames) ClaimSettlementResult(ctx context.Context, gameID, userID string) (services.GameResult, error) {
	if s.resultFn == nil {
		return services.GameResult{}, nil
	}
	return s.resultFn(ctx, gameID, userID)
}

func (s stubGames) WaitingGames(ctx context.Context, stake int64) ([]models.Game, error) {
	if s.waitingFn == nil {
		return nil, nil
	}
	return s.waitingFn(ctx, stake)
}

func (s stubGames) GameDetail(ctx context.Context, gameID string) (services.GameDetail, error) {
	if s.detailFn == nil {
		return services.GameDetail{}, nil
	}
	return s.detailFn(ctx, gameID)
}

type stubReconciler struct {
	reconcileFn func(ctx context.Context, includeBalanced bool) ([]store.AccountBalanceSummary, error)
}

func (s stubReconciler) Reconcile(ctx context.Context, includeBalanced bool) ([]store.AccountBalanceSummary, error) {
	if s.reconcileFn == nil {
		return nil, nil
	}
	return s.reconcileFn(ctx, includeBalanced)
}

type stubAudit struct {
	listFn func(ctx context.Context, entityType string, limit, offset int) ([]models.AuditLog, error)
}

func (s stubAudit) List(ctx context.Context, entityType string, limit, offset int) ([]models.AuditLog, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, entityType, limit, offset)
}

type stubStats struct {
	statsFn func(ctx context.Context) (store.GameStats, error)
}

func (s stubStats) Stats(ctx context.Context) (store.GameStats, error) {
	if s.statsFn == nil {
		return store.GameStats{}, nil
	}
	return s.statsFn(ctx)
}

type testDeps struct {
	wallet     stubWallet
	games      stubGames
	reconciler stubReconciler
	audit      stubAudit
	stats      stubStats
}

func newTestHandler(deps testDeps) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      testSecret,
		AllowedOrigins: "*",
		WebhookSecret:  testWebhookSecret,
		AdminUserIDs:   []string{testAdminID},
		Game:           config.DefaultGame(),
	}
	return New(cfg, deps.wallet, deps.games, deps.reconciler, deps.audit, deps.stats, websocket.NewHub())
}

// serve routes the request through the full router. An empty userID sends
// no Authorization header.
func serve(t *testing.T, h *Handler, method, path, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		token, err := auth.GenerateToken(testSecret, userID, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}

func signPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func assertErrorCode(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
	want := `{"error":"` + code + `"}`
	if got := string(bytes.TrimSpace(rr.Body.Bytes())); got != want {
		t.Fatalf("expected body %s, got %s", want, got)
	}
}
