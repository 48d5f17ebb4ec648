package services

import (
	"context"
	"time"

	"coinflip/internal/models"
	"coinflip/internal/store"
)

type AccountStore interface {
	Ensure(ctx context.Context, tx store.Execer, id, userID, unit string) error
	GetByUserAndUnit(ctx context.Context, userID, unit string) (models.Account, error)
	GetForUpdate(ctx context.Context, tx store.Getter, userID, unit string) (models.Account, error)
	UpdateBalance(ctx context.Context, tx store.Execer, accountID string, balance int64) error
}

type LedgerStore interface {
	Insert(ctx context.Context, tx store.Execer, entry models.LedgerEntry) error
	GetByReference(ctx context.Context, q store.Getter, kind, referenceID, userID string) (models.LedgerEntry, error)
	ListByUser(ctx context.Context, userID, kind string, limit, offset int) ([]models.LedgerEntry, error)
}

type GameStore interface {
	Create(ctx context.Context, tx store.Execer, game models.Game) error
	FindWaitingForUpdate(ctx context.Context, tx store.Getter, stake int64, unit string, capacity int) (models.Game, error)
	GetForUpdate(ctx context.Context, tx store.Getter, gameID string) (models.Game, error)
	GetByID(ctx context.Context, gameID string) (models.Game, error)
	IncrementPlayers(ctx context.Context, tx store.Getter, gameID string) (int, error)
	MarkCompleted(ctx context.Context, tx store.Execer, gameID, winnerID string) (int64, error)
	MarkCancelled(ctx context.Context, tx store.Execer, gameID string) (int64, error)
	ListWaiting(ctx context.Context, stake int64, unit string) ([]models.Game, error)
	ListFullWaiting(ctx context.Context, limit int) ([]string, error)
	ListExpired(ctx context.Context, createdBefore time.Time, limit int) ([]string, error)
}

type ParticipantStore interface {
	Insert(ctx context.Context, tx store.Execer, gameID, userID string, amountPaid int64) error
	Exists(ctx context.Context, tx store.Getter, gameID, userID string) (bool, error)
	ListByGame(ctx context.Context, q store.Selecter, gameID string) ([]models.Participant, error)
	Get(ctx context.Context, gameID, userID string) (models.Participant, error)
	SetOutcome(ctx context.Context, tx store.Execer, gameID, userID string, amountWon int64, isWinner bool) (int64, error)
}

type FlipStore interface {
	Insert(ctx context.Context, tx store.Execer, flip models.Flip) error
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

// Notifier is told about committed state changes. Implementations must not block.
type Notifier interface {
	GameSettled(settlement Settlement)
	GameCancelled(cancellation Cancellation)
	BalanceChanged(userID, unit string, balance int64)
}

type nopNotifier struct{}

func (nopNotifier) GameSettled(Settlement) {}

func (nopNotifier) GameCancelled(Cancellation) {}

func (nopNotifier) BalanceChanged(string, string, int64) {}

func orNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
