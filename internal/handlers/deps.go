package handlers

import (
	"context"

	"coinflip/internal/config"
	"coinflip/internal/models"
	"coinflip/internal/money"
	"coinflip/internal/services"
	"coinflip/internal/store"
)

type Wallet interface {
	GetBalance(ctx context.Context, userID string, unit money.Unit) (int64, error)
	History(ctx context.Context, userID, kind string, limit, offset int) ([]models.LedgerEntry, error)
	Withdraw(ctx context.Context, userID string, amount int64, requestID string) (models.LedgerEntry, error)
	BuyCoins(ctx context.Context, userID string, amountMinor int64) (services.CoinPurchase, error)
	RecordExternalDeposit(ctx context.Context, userID string, amount int64, reference string) (services.Deposit, error)
}

type Games interface {
	Config() config.GameConfig
	JoinGame(ctx context.Context, userID string, stake int64) (services.JoinResult, error)
	PlaySingleFlip(ctx context.Context, req services.FlipRequest) (services.FlipResult, error)
	ClaimSettlementResult(ctx context.Context, gameID, userID string) (services.GameResult, error)
	WaitingGames(ctx context.Context, stake int64) ([]models.Game, error)
	GameDetail(ctx context.Context, gameID string) (services.GameDetail, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, includeBalanced bool) ([]store.AccountBalanceSummary, error)
}

type AuditLister interface {
	List(ctx context.Context, entityType string, limit, offset int) ([]models.AuditLog, error)
}

type StatsReader interface {
	Stats(ctx context.Context) (store.GameStats, error)
}
