package services

import (
	"context"
	"errors"
	"fmt"

	"coinflip/internal/config"
	"coinflip/internal/models"
	"coinflip/internal/money"
	"coinflip/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Admission is a committed seat in a game. Filled is true for exactly one
// admission per game: the one that took the last seat.
type Admission struct {
	Game        models.Game        `json:"game"`
	Participant models.Participant `json:"participant"`
	Filled      bool               `json:"filled"`
	Balance     int64              `json:"balance"`
}

type Matchmaker struct {
	ledger       *Ledger
	games        GameStore
	participants ParticipantStore
	cfg          config.GameConfig
}

func NewMatchmaker(ledger *Ledger, games GameStore, participants ParticipantStore, cfg config.GameConfig) *Matchmaker {
	return &Matchmaker{ledger: ledger, games: games, participants: participants, cfg: cfg}
}

// JoinOrCreate debits the stake and takes a seat in the oldest open game for
// the tier, opening a new game when none is open. Debit and seat commit together.
func (m *Matchmaker) JoinOrCreate(ctx context.Context, userID string, stake int64) (Admission, error) {
	if !m.cfg.IsStakeTier(stake) {
		return Admission{}, ErrInvalidStake
	}
	var admission Admission
	err := m.ledger.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		admission, err = m.admit(ctx, tx, userID, stake)
		return err
	})
	if err != nil {
		return Admission{}, err
	}
	return admission, nil
}

func (m *Matchmaker) admit(ctx context.Context, tx store.Tx, userID string, stake int64) (Admission, error) {
	unit := string(money.Currency)
	game, err := m.games.FindWaitingForUpdate(ctx, tx, stake, unit, m.cfg.Capacity)
	switch {
	case store.IsNotFound(err):
		game = models.Game{
			ID:       uuid.NewString(),
			Stake:    stake,
			Unit:     unit,
			Capacity: m.cfg.Capacity,
			Status:   models.GameWaiting,
		}
		if err := m.games.Create(ctx, tx, game); err != nil {
			return Admission{}, fmt.Errorf("create game: %w", err)
		}
	case err != nil:
		return Admission{}, fmt.Errorf("find waiting game: %w", err)
	}

	joined, err := m.participants.Exists(ctx, tx, game.ID, userID)
	if err != nil {
		return Admission{}, fmt.Errorf("check participant: %w", err)
	}
	if joined {
		return Admission{}, ErrAlreadyJoined
	}

	entry, err := m.ledger.Adjust(ctx, tx, AdjustRequest{
		UserID:      userID,
		Unit:        money.Currency,
		Delta:       -stake,
		Kind:        models.KindGameEntry,
		ReferenceID: game.ID,
	})
	if errors.Is(err, ErrDuplicateReference) {
		return Admission{}, ErrAlreadyJoined
	}
	if err != nil {
		return Admission{}, err
	}

	count, err := m.games.IncrementPlayers(ctx, tx, game.ID)
	if store.IsNotFound(err) {
		return Admission{}, ErrGameFull
	}
	if err != nil {
		return Admission{}, fmt.Errorf("claim seat: %w", err)
	}

	if err := m.participants.Insert(ctx, tx, game.ID, userID, stake); err != nil {
		if store.IsUniqueViolation(err) {
			return Admission{}, ErrAlreadyJoined
		}
		return Admission{}, fmt.Errorf("insert participant: %w", err)
	}

	game.PlayerCount = count
	return Admission{
		Game: game,
		Participant: models.Participant{
			GameID:     game.ID,
			UserID:     userID,
			AmountPaid: stake,
		},
		Filled:  count == game.Capacity,
		Balance: entry.BalanceAfter,
	}, nil
}
