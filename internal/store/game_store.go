package store

import (
	"context"
	"time"

	"coinflip/internal/models"
)

const gameColumns = `id, stake, unit, capacity, player_count, status, winner_id, created_at, completed_at`

type GameStore struct {
	db DB
}

// GameStats summarises completed games; Margin is what the house kept.
type GameStats struct {
	CompletedGames int64 `db:"completed_games" json:"completed_games"`
	CancelledGames int64 `db:"cancelled_games" json:"cancelled_games"`
	WaitingGames   int64 `db:"waiting_games" json:"waiting_games"`
	Collected      int64 `db:"collected" json:"collected"`
	PaidOut        int64 `db:"paid_out" json:"paid_out"`
	Margin         int64 `db:"margin" json:"margin"`
}

func NewGameStore(db DB) *GameStore {
	return &GameStore{db: db}
}

func (s *GameStore) Create(ctx context.Context, tx Execer, game models.Game) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO games (id, stake, unit, capacity, player_count, status)
		VALUES ($1, $2, $3, $4, 0, 'waiting')
	`, game.ID, game.Stake, game.Unit, game.Capacity)
	return err
}

// FindWaitingForUpdate locks the oldest open game for the tier. Returns sql.ErrNoRows when none is open.
func (s *GameStore) FindWaitingForUpdate(ctx context.Context, tx Getter, stake int64, unit string, capacity int) (models.Game, error) {
	var row models.Game
	err := tx.GetContext(ctx, &row, `
		SELECT `+gameColumns+`
		FROM games
		WHERE status = 'waiting' AND stake = $1 AND unit = $2 AND capacity = $3 AND player_count < capacity
		ORDER BY created_at, id
		LIMIT 1
		FOR UPDATE
	`, stake, unit, capacity)
	if err != nil {
		return models.Game{}, err
	}
	return row, nil
}

func (s *GameStore) GetForUpdate(ctx context.Context, tx Getter, gameID string) (models.Game, error) {
	var row models.Game
	err := tx.GetContext(ctx, &row, `
		SELECT `+gameColumns+`
		FROM games
		WHERE id = $1
		FOR UPDATE
	`, gameID)
	if err != nil {
		return models.Game{}, err
	}
	return row, nil
}

func (s *GameStore) GetByID(ctx context.Context, gameID string) (models.Game, error) {
	var row models.Game
	err := s.db.GetContext(ctx, &row, `
		SELECT `+gameColumns+`
		FROM games
		WHERE id = $1
	`, gameID)
	if err != nil {
		return models.Game{}, err
	}
	return row, nil
}

// IncrementPlayers claims one seat. Returns sql.ErrNoRows when the game is full or no longer waiting.
func (s *GameStore) IncrementPlayers(ctx context.Context, tx Getter, gameID string) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, `
		UPDATE games
		SET player_count = player_count + 1
		WHERE id = $1 AND status = 'waiting' AND player_count < capacity
		RETURNING player_count
	`, gameID)
	return count, err
}

func (s *GameStore) MarkCompleted(ctx context.Context, tx Execer, gameID, winnerID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE games
		SET status = 'completed', winner_id = $1, completed_at = NOW()
		WHERE id = $2 AND status = 'waiting' AND player_count = capacity
	`, winnerID, gameID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *GameStore) MarkCancelled(ctx context.Context, tx Execer, gameID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE games
		SET status = 'cancelled', completed_at = NOW()
		WHERE id = $1 AND status = 'waiting' AND player_count < capacity
	`, gameID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListWaiting lists joinable games, all tiers when stake is zero.
func (s *GameStore) ListWaiting(ctx context.Context, stake int64, unit string) ([]models.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE status = 'waiting' AND player_count < capacity AND unit = $1
	`
	args := []any{unit}
	if stake > 0 {
		query += " AND stake = $2"
		args = append(args, stake)
	}
	query += " ORDER BY stake, created_at, id"
	var rows []models.Game
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListFullWaiting returns games whose last seat was taken but which never settled.
func (s *GameStore) ListFullWaiting(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT id
		FROM games
		WHERE status = 'waiting' AND player_count = capacity
		ORDER BY created_at, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *GameStore) ListExpired(ctx context.Context, createdBefore time.Time, limit int) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT id
		FROM games
		WHERE status = 'waiting' AND player_count < capacity AND created_at < $1
		ORDER BY created_at, id
		LIMIT $2
	`, createdBefore, limit)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *GameStore) Stats(ctx context.Context) (GameStats, error) {
	var stats GameStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT
			(SELECT COUNT(*) FROM games WHERE status = 'completed') AS completed_games,
			(SELECT COUNT(*) FROM games WHERE status = 'cancelled') AS cancelled_games,
			(SELECT COUNT(*) FROM games WHERE status = 'waiting') AS waiting_games,
			COALESCE(SUM(p.amount_paid), 0) AS collected,
			COALESCE(SUM(p.amount_won), 0) AS paid_out,
			COALESCE(SUM(p.amount_paid), 0) - COALESCE(SUM(p.amount_won), 0) AS margin
		FROM game_participants p
		JOIN games g ON g.id = p.game_id
		WHERE g.status = 'completed'
	`)
	return stats, err
}
