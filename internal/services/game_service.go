package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coinflip/internal/config"
	"coinflip/internal/db"
	"coinflip/internal/models"
	"coinflip/internal/money"
	"coinflip/internal/outcome"
	"coinflip/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// GameService is the entry point the transport layer calls.
type GameService struct {
	ledger       *Ledger
	matchmaker   *Matchmaker
	engine       *SettlementEngine
	games        GameStore
	participants ParticipantStore
	flips        FlipStore
	generator    outcome.Generator
	notifier     Notifier
	cfg          config.GameConfig
}

type JoinResult struct {
	Admission
	Settlement *Settlement `json:"settlement,omitempty"`
}

type FlipRequest struct {
	UserID     string
	Choice     string
	Bet        int64
	Multiplier *decimal.Decimal
}

type FlipResult struct {
	ID         string `json:"id"`
	Choice     string `json:"choice"`
	Outcome    string `json:"outcome"`
	Won        bool   `json:"won"`
	Bet        int64  `json:"bet"`
	Payout     int64  `json:"payout"`
	Multiplier string `json:"multiplier"`
	Balance    int64  `json:"balance"`
}

type GameResult struct {
	GameID      string  `json:"game_id"`
	Status      string  `json:"status"`
	WinnerID    string  `json:"winner_id"`
	IsWinner    bool    `json:"is_winner"`
	AmountPaid  int64   `json:"amount_paid"`
	AmountWon   int64   `json:"amount_won"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

type GameDetail struct {
	Game         models.Game          `json:"game"`
	Participants []models.Participant `json:"participants"`
}

func NewGameService(ledger *Ledger, matchmaker *Matchmaker, engine *SettlementEngine, games GameStore, participants ParticipantStore, flips FlipStore, generator outcome.Generator, notifier Notifier, cfg config.GameConfig) *GameService {
	return &GameService{
		ledger:       ledger,
		matchmaker:   matchmaker,
		engine:       engine,
		games:        games,
		participants: participants,
		flips:        flips,
		generator:    generator,
		notifier:     orNop(notifier),
		cfg:          cfg,
	}
}

func (s *GameService) Config() config.GameConfig {
	return s.cfg
}

// JoinGame seats the user and, when that seat filled the game, settles it
// before returning. A failed settlement leaves the join committed; the
// sweeper settles the game later.
func (s *GameService) JoinGame(ctx context.Context, userID string, stake int64) (JoinResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		admission Admission
		err       error
	)
	for attempt := 0; ; attempt++ {
		admission, err = s.matchmaker.JoinOrCreate(ctx, userID, stake)
		if !retryableJoin(err) || attempt >= s.cfg.JoinRetries || ctx.Err() != nil {
			break
		}
		log.WithFields(log.Fields{"user_id": userID, "stake": stake, "attempt": attempt + 1, "error": err}).Debug("join lost a race, retrying")
	}
	if err != nil {
		return JoinResult{}, err
	}
	s.notifier.BalanceChanged(userID, admission.Game.Unit, admission.Balance)

	result := JoinResult{Admission: admission}
	if !admission.Filled {
		return result, nil
	}

	// The join is committed; settling must not depend on the caller staying connected.
	settleCtx, settleCancel := s.withTimeout(context.WithoutCancel(ctx))
	defer settleCancel()
	settlement, err := s.engine.Settle(settleCtx, admission.Game.ID)
	switch {
	case err == nil:
		result.Settlement = &settlement
		result.Game = settlement.Game
	case isRaceLoss(err):
		log.WithField("game_id", admission.Game.ID).Info("game settled by another caller")
	default:
		log.WithError(err).WithField("game_id", admission.Game.ID).Warn("settlement failed, left for sweeper")
	}
	return result, nil
}

// PlaySingleFlip debits the bet, flips, and credits any payout in one transaction.
func (s *GameService) PlaySingleFlip(ctx context.Context, req FlipRequest) (FlipResult, error) {
	choice, err := outcome.ParseSide(req.Choice)
	if err != nil {
		return FlipResult{}, ErrInvalidChoice
	}
	if req.Bet < s.cfg.MinBet || req.Bet > s.cfg.MaxBet {
		return FlipResult{}, ErrInvalidBet
	}
	multiplier := s.cfg.SingleFlipMultiplier
	if req.Multiplier != nil && !req.Multiplier.Equal(multiplier) {
		return FlipResult{}, ErrInvalidMultiplier
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var result FlipResult
	err = s.ledger.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		flipID := uuid.NewString()
		debit, err := s.ledger.Adjust(ctx, tx, AdjustRequest{
			UserID:      req.UserID,
			Unit:        money.Coins,
			Delta:       -req.Bet,
			Kind:        models.KindBet,
			ReferenceID: flipID,
		})
		if err != nil {
			return err
		}
		side, err := s.generator.Flip()
		if err != nil {
			return fmt.Errorf("flip: %w", err)
		}
		won := side == choice
		payout := PayoutForFlip(req.Bet, won, multiplier)
		balance := debit.BalanceAfter
		if payout > 0 {
			credit, err := s.ledger.Adjust(ctx, tx, AdjustRequest{
				UserID:      req.UserID,
				Unit:        money.Coins,
				Delta:       payout,
				Kind:        models.KindGameWin,
				ReferenceID: flipID,
			})
			if err != nil {
				return err
			}
			balance = credit.BalanceAfter
		}
		flip := models.Flip{
			ID:         flipID,
			UserID:     req.UserID,
			Choice:     string(choice),
			Outcome:    string(side),
			Bet:        req.Bet,
			Multiplier: multiplier.String(),
			Payout:     payout,
			Won:        won,
		}
		if err := s.flips.Insert(ctx, tx, flip); err != nil {
			return fmt.Errorf("record flip: %w", err)
		}
		result = FlipResult{
			ID:         flipID,
			Choice:     flip.Choice,
			Outcome:    flip.Outcome,
			Won:        won,
			Bet:        req.Bet,
			Payout:     payout,
			Multiplier: flip.Multiplier,
			Balance:    balance,
		}
		return nil
	})
	if err != nil {
		return FlipResult{}, err
	}
	s.notifier.BalanceChanged(req.UserID, string(money.Coins), result.Balance)
	return result, nil
}

// ClaimSettlementResult reports what the user received from a game. It never
// moves money; payouts are credited at settlement.
func (s *GameService) ClaimSettlementResult(ctx context.Context, gameID, userID string) (GameResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	game, err := s.games.GetByID(ctx, gameID)
	if store.IsNotFound(err) {
		return GameResult{}, ErrNotFound
	}
	if err != nil {
		return GameResult{}, err
	}
	participant, err := s.participants.Get(ctx, gameID, userID)
	if store.IsNotFound(err) {
		return GameResult{}, ErrNotParticipant
	}
	if err != nil {
		return GameResult{}, err
	}
	switch game.Status {
	case models.GameCancelled:
		return GameResult{}, ErrGameCancelled
	case models.GameCompleted:
	default:
		return GameResult{}, ErrGameNotSettled
	}

	result := GameResult{
		GameID:     game.ID,
		Status:     game.Status,
		IsWinner:   participant.IsWinner,
		AmountPaid: participant.AmountPaid,
	}
	if game.WinnerID != nil {
		result.WinnerID = *game.WinnerID
	}
	if participant.AmountWon != nil {
		result.AmountWon = *participant.AmountWon
	}
	if game.CompletedAt != nil {
		completed := game.CompletedAt.UTC().Format(time.RFC3339)
		result.CompletedAt = &completed
	}
	return result, nil
}

// WaitingGames lists open games, every tier when stake is zero.
func (s *GameService) WaitingGames(ctx context.Context, stake int64) ([]models.Game, error) {
	if stake != 0 && !s.cfg.IsStakeTier(stake) {
		return nil, ErrInvalidStake
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.games.ListWaiting(ctx, stake, string(money.Currency))
}

// GameDetail returns a completed game with its seats. The roster of an
// open or cancelled game is not exposed.
func (s *GameService) GameDetail(ctx context.Context, gameID string) (GameDetail, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	game, err := s.games.GetByID(ctx, gameID)
	if store.IsNotFound(err) {
		return GameDetail{}, ErrNotFound
	}
	if err != nil {
		return GameDetail{}, err
	}
	switch game.Status {
	case models.GameCompleted:
	case models.GameCancelled:
		return GameDetail{}, ErrGameCancelled
	default:
		return GameDetail{}, ErrGameNotSettled
	}
	participants, err := s.participants.ListByGame(ctx, nil, gameID)
	if err != nil {
		return GameDetail{}, err
	}
	return GameDetail{Game: game, Participants: participants}, nil
}

// retryableJoin reports failures that rolled back without committing anything:
// the seat went to another player, or the transaction kept losing serialization races.
func retryableJoin(err error) bool {
	return errors.Is(err, ErrGameFull) || errors.Is(err, db.ErrContention)
}

func (s *GameService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.OperationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.OperationTimeout)
}
