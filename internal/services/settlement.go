package services

import (
	"context"
	"fmt"

	"coinflip/internal/config"
	"coinflip/internal/models"
	"coinflip/internal/money"
	"coinflip/internal/outcome"
	"coinflip/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type Payout struct {
	UserID   string `json:"user_id"`
	Paid     int64  `json:"paid"`
	Won      int64  `json:"won"`
	IsWinner bool   `json:"is_winner"`
	Balance  int64  `json:"balance"`
}

type Settlement struct {
	Game      models.Game `json:"game"`
	WinnerID  string      `json:"winner_id"`
	Payouts   []Payout    `json:"payouts"`
	Collected int64       `json:"collected"`
	PaidOut   int64       `json:"paid_out"`
}

type Refund struct {
	UserID  string `json:"user_id"`
	Amount  int64  `json:"amount"`
	Balance int64  `json:"balance"`
}

type Cancellation struct {
	Game    models.Game `json:"game"`
	Refunds []Refund    `json:"refunds"`
}

// SettlementEngine owns the terminal transitions of a game: completed with a
// winner, or cancelled with refunds.
type SettlementEngine struct {
	ledger       *Ledger
	games        GameStore
	participants ParticipantStore
	audit        AuditStore
	generator    outcome.Generator
	notifier     Notifier
	cfg          config.GameConfig
}

func NewSettlementEngine(ledger *Ledger, games GameStore, participants ParticipantStore, audit AuditStore, generator outcome.Generator, notifier Notifier, cfg config.GameConfig) *SettlementEngine {
	return &SettlementEngine{
		ledger:       ledger,
		games:        games,
		participants: participants,
		audit:        audit,
		generator:    generator,
		notifier:     orNop(notifier),
		cfg:          cfg,
	}
}

// Settle picks a winner for a full game and credits every participant. It
// succeeds at most once per game; later calls return ErrAlreadySettled.
func (e *SettlementEngine) Settle(ctx context.Context, gameID string) (Settlement, error) {
	var result Settlement
	err := e.ledger.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		result, err = e.settle(ctx, tx, gameID)
		return err
	})
	if err != nil {
		return Settlement{}, err
	}
	e.notifier.GameSettled(result)
	for _, payout := range result.Payouts {
		if payout.Won > 0 {
			e.notifier.BalanceChanged(payout.UserID, result.Game.Unit, payout.Balance)
		}
	}
	return result, nil
}

func (e *SettlementEngine) settle(ctx context.Context, tx store.Tx, gameID string) (Settlement, error) {
	game, err := e.games.GetForUpdate(ctx, tx, gameID)
	if store.IsNotFound(err) {
		return Settlement{}, ErrNotFound
	}
	if err != nil {
		return Settlement{}, fmt.Errorf("lock game: %w", err)
	}
	switch game.Status {
	case models.GameCompleted:
		return Settlement{}, ErrAlreadySettled
	case models.GameCancelled:
		return Settlement{}, ErrGameCancelled
	}
	if !game.IsFull() {
		return Settlement{}, ErrGameNotFull
	}

	participants, err := e.participants.ListByGame(ctx, tx, gameID)
	if err != nil {
		return Settlement{}, fmt.Errorf("list participants: %w", err)
	}
	if len(participants) != game.Capacity {
		return Settlement{}, fmt.Errorf("game %s has %d participants for %d seats", gameID, len(participants), game.Capacity)
	}

	winnerIdx, err := e.generator.PickWinner(len(participants))
	if err != nil {
		return Settlement{}, fmt.Errorf("pick winner: %w", err)
	}
	payouts := computePayouts(participants, winnerIdx, e.cfg.WinMultiplier, e.cfg.LossRefundMultiplier)
	collected, paidOut, err := ensureWithinPool(payouts, e.cfg.WinMultiplier, e.cfg.LossRefundMultiplier)
	if err != nil {
		return Settlement{}, err
	}

	unit := money.Unit(game.Unit)
	for i := range payouts {
		p := &payouts[i]
		if p.Won > 0 {
			kind := models.KindGameLoss
			if p.IsWinner {
				kind = models.KindGameWin
			}
			entry, err := e.ledger.Adjust(ctx, tx, AdjustRequest{
				UserID:      p.UserID,
				Unit:        unit,
				Delta:       p.Won,
				Kind:        kind,
				ReferenceID: gameID,
			})
			if err != nil {
				return Settlement{}, fmt.Errorf("credit %s: %w", p.UserID, err)
			}
			p.Balance = entry.BalanceAfter
		}
		rows, err := e.participants.SetOutcome(ctx, tx, gameID, p.UserID, p.Won, p.IsWinner)
		if err != nil {
			return Settlement{}, fmt.Errorf("record outcome: %w", err)
		}
		if rows == 0 {
			return Settlement{}, ErrAlreadySettled
		}
	}

	winnerID := payouts[winnerIdx].UserID
	rows, err := e.games.MarkCompleted(ctx, tx, gameID, winnerID)
	if err != nil {
		return Settlement{}, fmt.Errorf("complete game: %w", err)
	}
	if rows == 0 {
		return Settlement{}, ErrAlreadySettled
	}
	if err := e.audit.Log(ctx, tx, "", "game_settled", "game", gameID, auditData(map[string]any{
		"winner_id": winnerID,
		"collected": collected,
		"paid_out":  paidOut,
	})); err != nil {
		return Settlement{}, fmt.Errorf("audit settlement: %w", err)
	}

	game.Status = models.GameCompleted
	game.WinnerID = &winnerID
	return Settlement{
		Game:      game,
		WinnerID:  winnerID,
		Payouts:   payouts,
		Collected: collected,
		PaidOut:   paidOut,
	}, nil
}

// Cancel refunds every participant of a waiting game that never filled.
func (e *SettlementEngine) Cancel(ctx context.Context, gameID string) (Cancellation, error) {
	var result Cancellation
	err := e.ledger.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		result, err = e.cancel(ctx, tx, gameID)
		return err
	})
	if err != nil {
		return Cancellation{}, err
	}
	e.notifier.GameCancelled(result)
	for _, refund := range result.Refunds {
		e.notifier.BalanceChanged(refund.UserID, result.Game.Unit, refund.Balance)
	}
	return result, nil
}

func (e *SettlementEngine) cancel(ctx context.Context, tx store.Tx, gameID string) (Cancellation, error) {
	game, err := e.games.GetForUpdate(ctx, tx, gameID)
	if store.IsNotFound(err) {
		return Cancellation{}, ErrNotFound
	}
	if err != nil {
		return Cancellation{}, fmt.Errorf("lock game: %w", err)
	}
	switch {
	case game.Status == models.GameCompleted:
		return Cancellation{}, ErrAlreadySettled
	case game.Status == models.GameCancelled:
		return Cancellation{}, ErrGameCancelled
	case game.IsFull():
		return Cancellation{}, ErrGameFull
	}

	rows, err := e.games.MarkCancelled(ctx, tx, gameID)
	if err != nil {
		return Cancellation{}, fmt.Errorf("cancel game: %w", err)
	}
	if rows == 0 {
		return Cancellation{}, ErrAlreadySettled
	}

	participants, err := e.participants.ListByGame(ctx, tx, gameID)
	if err != nil {
		return Cancellation{}, fmt.Errorf("list participants: %w", err)
	}
	refunds := make([]Refund, 0, len(participants))
	for _, p := range participants {
		entry, err := e.ledger.Adjust(ctx, tx, AdjustRequest{
			UserID:      p.UserID,
			Unit:        money.Unit(game.Unit),
			Delta:       p.AmountPaid,
			Kind:        models.KindRefund,
			ReferenceID: gameID,
		})
		if err != nil {
			return Cancellation{}, fmt.Errorf("refund %s: %w", p.UserID, err)
		}
		if _, err := e.participants.SetOutcome(ctx, tx, gameID, p.UserID, p.AmountPaid, false); err != nil {
			return Cancellation{}, fmt.Errorf("record refund: %w", err)
		}
		refunds = append(refunds, Refund{UserID: p.UserID, Amount: p.AmountPaid, Balance: entry.BalanceAfter})
	}
	if err := e.audit.Log(ctx, tx, "", "game_cancelled", "game", gameID, auditData(map[string]any{
		"participants": len(participants),
	})); err != nil {
		return Cancellation{}, fmt.Errorf("audit cancellation: %w", err)
	}

	game.Status = models.GameCancelled
	return Cancellation{Game: game, Refunds: refunds}, nil
}

// computePayouts pays the winner stake*win and everyone else stake*refund, floored.
func computePayouts(participants []models.Participant, winnerIdx int, win, refund decimal.Decimal) []Payout {
	payouts := make([]Payout, len(participants))
	for i, p := range participants {
		multiplier := refund
		if i == winnerIdx {
			multiplier = win
		}
		payouts[i] = Payout{
			UserID:   p.UserID,
			Paid:     p.AmountPaid,
			Won:      money.ApplyMultiplier(p.AmountPaid, multiplier),
			IsWinner: i == winnerIdx,
		}
	}
	return payouts
}

// ensureWithinPool checks a round against its designed payout: one winner, and
// nothing paid beyond stake*win for the winner plus stake*refund for the rest.
// The designed payout exceeds the collected stakes only when the configured
// multipliers give the house a negative margin.
func ensureWithinPool(payouts []Payout, win, refund decimal.Decimal) (collected, paidOut int64, err error) {
	var designed int64
	winners := 0
	for _, p := range payouts {
		collected += p.Paid
		paidOut += p.Won
		if p.IsWinner {
			winners++
			designed += money.ApplyMultiplier(p.Paid, win)
		} else {
			designed += money.ApplyMultiplier(p.Paid, refund)
		}
	}
	if winners != 1 {
		return 0, 0, fmt.Errorf("%w: %d winners", ErrPoolExceeded, winners)
	}
	if paidOut > designed {
		return 0, 0, fmt.Errorf("%w: paid %d, designed %d of %d collected", ErrPoolExceeded, paidOut, designed, collected)
	}
	return collected, paidOut, nil
}

// PayoutForFlip is the single-player policy: bet*multiplier on a win, nothing on a loss.
func PayoutForFlip(bet int64, won bool, multiplier decimal.Decimal) int64 {
	if !won {
		return 0
	}
	return money.ApplyMultiplier(bet, multiplier)
}
