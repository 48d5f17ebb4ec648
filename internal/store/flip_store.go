package store

import (
	"context"

	"coinflip/internal/models"
)

type FlipStore struct {
	db DB
}

func NewFlipStore(db DB) *FlipStore {
	return &FlipStore{db: db}
}

func (s *FlipStore) Insert(ctx context.Context, tx Execer, flip models.Flip) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO flips (id, user_id, choice, outcome, bet, multiplier, payout, won)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, flip.ID, flip.UserID, flip.Choice, flip.Outcome, flip.Bet, flip.Multiplier, flip.Payout, flip.Won)
	return err
}

func (s *FlipStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Flip, error) {
	var rows []models.Flip
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, choice, outcome, bet, multiplier, payout, won, created_at
		FROM flips
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
