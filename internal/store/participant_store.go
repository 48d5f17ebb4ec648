package store

import (
	"context"

	"coinflip/internal/models"
)

const participantColumns = `game_id, user_id, amount_paid, amount_won, is_winner, created_at`

type ParticipantStore struct {
	db DB
}

func NewParticipantStore(db DB) *ParticipantStore {
	return &ParticipantStore{db: db}
}

func (s *ParticipantStore) Insert(ctx context.Context, tx Execer, gameID, userID string, amountPaid int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO game_participants (game_id, user_id, amount_paid)
		VALUES ($1, $2, $3)
	`, gameID, userID, amountPaid)
	return err
}

func (s *ParticipantStore) Exists(ctx context.Context, tx Getter, gameID, userID string) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM game_participants WHERE game_id = $1 AND user_id = $2)
	`, gameID, userID)
	return exists, err
}

// ListByGame returns participants in join order. Pass a tx to read inside a settlement.
func (s *ParticipantStore) ListByGame(ctx context.Context, q Selecter, gameID string) ([]models.Participant, error) {
	if q == nil {
		q = s.db
	}
	var rows []models.Participant
	err := q.SelectContext(ctx, &rows, `
		SELECT `+participantColumns+`
		FROM game_participants
		WHERE game_id = $1
		ORDER BY created_at, user_id
	`, gameID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *ParticipantStore) Get(ctx context.Context, gameID, userID string) (models.Participant, error) {
	var row models.Participant
	err := s.db.GetContext(ctx, &row, `
		SELECT `+participantColumns+`
		FROM game_participants
		WHERE game_id = $1 AND user_id = $2
	`, gameID, userID)
	if err != nil {
		return models.Participant{}, err
	}
	return row, nil
}

// SetOutcome writes amount_won once; a second call affects no rows.
func (s *ParticipantStore) SetOutcome(ctx context.Context, tx Execer, gameID, userID string, amountWon int64, isWinner bool) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE game_participants
		SET amount_won = $1, is_winner = $2
		WHERE game_id = $3 AND user_id = $4 AND amount_won IS NULL
	`, amountWon, isWinner, gameID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
