package store

import (
	"context"
	"strconv"

	"coinflip/internal/models"
)

type LedgerStore struct {
	db DB
}

func NewLedgerStore(db DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) Insert(ctx context.Context, tx Execer, entry models.LedgerEntry) error {
	metadata := entry.Metadata
	if metadata == "" {
		metadata = "{}"
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, account_id, user_id, unit, kind, amount, balance_before, balance_after, status, reference_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, entry.ID, entry.AccountID, entry.UserID, entry.Unit, entry.Kind, entry.Amount,
		entry.BalanceBefore, entry.BalanceAfter, entry.Status, entry.ReferenceID, metadata)
	return err
}

func (s *LedgerStore) SumByAccount(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE account_id = $1 AND status = 'completed'
	`, accountID)
	return sum, err
}

// GetByReference finds the entry of kind recorded against referenceID, scoped to userID when set.
func (s *LedgerStore) GetByReference(ctx context.Context, q Getter, kind, referenceID, userID string) (models.LedgerEntry, error) {
	query := `
		SELECT id, account_id, user_id, unit, kind, amount, balance_before, balance_after, status, reference_id, metadata, created_at
		FROM ledger_entries
		WHERE kind = $1 AND reference_id = $2
	`
	args := []any{kind, referenceID}
	if userID != "" {
		query += " AND user_id = $3"
		args = append(args, userID)
	}
	query += " LIMIT 1"
	var row models.LedgerEntry
	if err := q.GetContext(ctx, &row, query, args...); err != nil {
		return models.LedgerEntry{}, err
	}
	return row, nil
}

func (s *LedgerStore) ListByUser(ctx context.Context, userID, kind string, limit, offset int) ([]models.LedgerEntry, error) {
	query := `
		SELECT id, account_id, user_id, unit, kind, amount, balance_before, balance_after, status, reference_id, metadata, created_at
		FROM ledger_entries
		WHERE user_id = $1
	`
	args := []any{userID}
	param := 2
	if kind != "" {
		query += " AND kind = $2"
		args = append(args, kind)
		param = 3
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT $" + strconv.Itoa(param) + " OFFSET $" + strconv.Itoa(param+1)
	args = append(args, limit, offset)
	var rows []models.LedgerEntry
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *LedgerStore) ListByReference(ctx context.Context, referenceID string) ([]models.LedgerEntry, error) {
	var rows []models.LedgerEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, account_id, user_id, unit, kind, amount, balance_before, balance_after, status, reference_id, metadata, created_at
		FROM ledger_entries
		WHERE reference_id = $1
		ORDER BY created_at, id
	`, referenceID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
