package store

import (
	"context"

	"coinflip/internal/models"
)

type AccountStore struct {
	db DB
}

// AccountBalanceSummary compares the stored balance with the sum of its ledger entries.
type AccountBalanceSummary struct {
	ID                string `db:"id" json:"id"`
	UserID            string `db:"user_id" json:"user_id"`
	Unit              string `db:"unit" json:"unit"`
	StoredBalance     int64  `db:"stored_balance" json:"stored_balance"`
	CalculatedBalance int64  `db:"calculated_balance" json:"calculated_balance"`
	Difference        int64  `db:"difference" json:"difference"`
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

// Ensure creates the (user, unit) account at zero if it does not exist yet.
func (s *AccountStore) Ensure(ctx context.Context, tx Execer, id, userID, unit string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, unit, balance)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (user_id, unit) DO NOTHING
	`, id, userID, unit)
	return err
}

func (s *AccountStore) GetByUserAndUnit(ctx context.Context, userID, unit string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, unit, balance, created_at, updated_at
		FROM accounts
		WHERE user_id = $1 AND unit = $2
	`, userID, unit)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetForUpdate(ctx context.Context, tx Getter, userID, unit string) (models.Account, error) {
	var row models.Account
	err := tx.GetContext(ctx, &row, `
		SELECT id, user_id, unit, balance, created_at, updated_at
		FROM accounts
		WHERE user_id = $1 AND unit = $2
		FOR UPDATE
	`, userID, unit)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) UpdateBalance(ctx context.Context, tx Execer, accountID string, balance int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, updated_at = NOW()
		WHERE id = $2
	`, balance, accountID)
	return err
}

func (s *AccountStore) ListByUser(ctx context.Context, userID string) ([]models.Account, error) {
	var rows []models.Account
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, unit, balance, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
		ORDER BY unit
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Reconcile returns every account whose stored balance disagrees with its ledger,
// or all accounts when includeBalanced is set.
func (s *AccountStore) Reconcile(ctx context.Context, includeBalanced bool) ([]AccountBalanceSummary, error) {
	query := `
		SELECT a.id,
		       a.user_id,
		       a.unit,
		       a.balance AS stored_balance,
		       COALESCE(SUM(l.amount), 0) AS calculated_balance,
		       (a.balance - COALESCE(SUM(l.amount), 0)) AS difference
		FROM accounts a
		LEFT JOIN ledger_entries l ON l.account_id = a.id AND l.status = 'completed'
		GROUP BY a.id, a.user_id, a.unit, a.balance
	`
	if !includeBalanced {
		query += " HAVING a.balance <> COALESCE(SUM(l.amount), 0)"
	}
	query += " ORDER BY a.user_id, a.unit"
	var rows []AccountBalanceSummary
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}
