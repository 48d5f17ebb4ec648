package models

import "time"

const (
	KindDeposit    = "deposit"
	KindWithdrawal = "withdrawal"
	KindGameEntry  = "game_entry"
	KindGameWin    = "game_win"
	KindGameLoss   = "game_loss"
	KindRefund     = "refund"
	KindBet        = "bet"
)

const (
	EntryPending   = "pending"
	EntryCompleted = "completed"
	EntryFailed    = "failed"
)

const (
	GameWaiting   = "waiting"
	GameCompleted = "completed"
	GameCancelled = "cancelled"
)

var EntryKinds = []string{KindDeposit, KindWithdrawal, KindGameEntry, KindGameWin, KindGameLoss, KindRefund, KindBet}

func IsEntryKind(kind string) bool {
	for _, k := range EntryKinds {
		if k == kind {
			return true
		}
	}
	return false
}

type Account struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Unit      string    `db:"unit" json:"unit"`
	Balance   int64     `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type LedgerEntry struct {
	ID            string    `db:"id" json:"id"`
	AccountID     string    `db:"account_id" json:"account_id"`
	UserID        string    `db:"user_id" json:"user_id"`
	Unit          string    `db:"unit" json:"unit"`
	Kind          string    `db:"kind" json:"kind"`
	Amount        int64     `db:"amount" json:"amount"`
	BalanceBefore int64     `db:"balance_before" json:"balance_before"`
	BalanceAfter  int64     `db:"balance_after" json:"balance_after"`
	Status        string    `db:"status" json:"status"`
	ReferenceID   *string   `db:"reference_id" json:"reference_id,omitempty"`
	Metadata      string    `db:"metadata" json:"metadata"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

type Game struct {
	ID          string     `db:"id" json:"id"`
	Stake       int64      `db:"stake" json:"stake"`
	Unit        string     `db:"unit" json:"unit"`
	Capacity    int        `db:"capacity" json:"capacity"`
	PlayerCount int        `db:"player_count" json:"player_count"`
	Status      string     `db:"status" json:"status"`
	WinnerID    *string    `db:"winner_id" json:"winner_id,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

func (g Game) IsFull() bool {
	return g.PlayerCount >= g.Capacity
}

type Participant struct {
	GameID     string    `db:"game_id" json:"game_id"`
	UserID     string    `db:"user_id" json:"user_id"`
	AmountPaid int64     `db:"amount_paid" json:"amount_paid"`
	AmountWon  *int64    `db:"amount_won" json:"amount_won,omitempty"`
	IsWinner   bool      `db:"is_winner" json:"is_winner"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type Flip struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Choice     string    `db:"choice" json:"choice"`
	Outcome    string    `db:"outcome" json:"outcome"`
	Bet        int64     `db:"bet" json:"bet"`
	Multiplier string    `db:"multiplier" json:"multiplier"`
	Payout     int64     `db:"payout" json:"payout"`
	Won        bool      `db:"won" json:"won"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type AuditLog struct {
	ID          string    `db:"id" json:"id"`
	ActorUserID *string   `db:"actor_user_id" json:"actor_user_id,omitempty"`
	Action      string    `db:"action" json:"action"`
	EntityType  string    `db:"entity_type" json:"entity_type"`
	EntityID    string    `db:"entity_id" json:"entity_id"`
	Data        string    `db:"data" json:"data"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
