package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"coinflip/internal/db"
	"coinflip/internal/models"
	"coinflip/internal/money"
	"coinflip/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Ledger is the only writer of account balances. Every change is a balance
// update plus one ledger entry in the same transaction.
type Ledger struct {
	txRunner             db.TxRunner
	accounts             AccountStore
	entries              LedgerStore
	audit                AuditStore
	notifier             Notifier
	coinsPerCurrencyUnit int64
}

type AdjustRequest struct {
	UserID      string
	Unit        money.Unit
	Delta       int64
	Kind        string
	ReferenceID string
	Metadata    map[string]string
}

type Deposit struct {
	EntryID   string `json:"entry_id"`
	UserID    string `json:"user_id"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Balance   int64  `json:"balance"`
}

type CoinPurchase struct {
	ID              string `json:"id"`
	CurrencySpent   int64  `json:"currency_spent"`
	CoinsBought     int64  `json:"coins_bought"`
	CurrencyBalance int64  `json:"currency_balance"`
	CoinBalance     int64  `json:"coin_balance"`
}

func NewLedger(txRunner db.TxRunner, accounts AccountStore, entries LedgerStore, audit AuditStore, notifier Notifier, coinsPerCurrencyUnit int64) *Ledger {
	return &Ledger{
		txRunner:             txRunner,
		accounts:             accounts,
		entries:              entries,
		audit:                audit,
		notifier:             orNop(notifier),
		coinsPerCurrencyUnit: coinsPerCurrencyUnit,
	}
}

// WithTransaction is the boundary other components compose their writes in.
func (l *Ledger) WithTransaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return l.txRunner.WithTx(ctx, fn)
}

// Adjust applies req.Delta to the (user, unit) account inside tx. The account
// row is locked for the rest of the transaction.
func (l *Ledger) Adjust(ctx context.Context, tx store.Tx, req AdjustRequest) (models.LedgerEntry, error) {
	if req.Delta == 0 {
		return models.LedgerEntry{}, ErrInvalidAmount
	}
	if !models.IsEntryKind(req.Kind) {
		return models.LedgerEntry{}, fmt.Errorf("%w: %q", ErrInvalidKind, req.Kind)
	}
	unit := string(req.Unit)
	if err := l.accounts.Ensure(ctx, tx, uuid.NewString(), req.UserID, unit); err != nil {
		return models.LedgerEntry{}, fmt.Errorf("ensure account: %w", err)
	}
	account, err := l.accounts.GetForUpdate(ctx, tx, req.UserID, unit)
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("lock account: %w", err)
	}
	if req.Delta > 0 && account.Balance > math.MaxInt64-req.Delta {
		return models.LedgerEntry{}, ErrInvalidAmount
	}
	after := account.Balance + req.Delta
	if after < 0 {
		return models.LedgerEntry{}, ErrInsufficientFunds
	}
	if err := l.accounts.UpdateBalance(ctx, tx, account.ID, after); err != nil {
		return models.LedgerEntry{}, fmt.Errorf("update balance: %w", err)
	}

	entry := models.LedgerEntry{
		ID:            uuid.NewString(),
		AccountID:     account.ID,
		UserID:        req.UserID,
		Unit:          unit,
		Kind:          req.Kind,
		Amount:        req.Delta,
		BalanceBefore: account.Balance,
		BalanceAfter:  after,
		Status:        models.EntryCompleted,
		Metadata:      encodeMetadata(req.Metadata),
	}
	if req.ReferenceID != "" {
		ref := req.ReferenceID
		entry.ReferenceID = &ref
	}
	if err := l.entries.Insert(ctx, tx, entry); err != nil {
		if store.IsUniqueViolation(err) {
			return models.LedgerEntry{}, ErrDuplicateReference
		}
		return models.LedgerEntry{}, fmt.Errorf("insert ledger entry: %w", err)
	}
	return entry, nil
}

// AdjustBalance runs Adjust in its own transaction.
func (l *Ledger) AdjustBalance(ctx context.Context, req AdjustRequest) (models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := l.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		entry, err = l.Adjust(ctx, tx, req)
		return err
	})
	if err != nil {
		return models.LedgerEntry{}, err
	}
	l.notifier.BalanceChanged(entry.UserID, entry.Unit, entry.BalanceAfter)
	return entry, nil
}

// GetBalance reads the committed balance. A user with no account has zero.
func (l *Ledger) GetBalance(ctx context.Context, userID string, unit money.Unit) (int64, error) {
	account, err := l.accounts.GetByUserAndUnit(ctx, userID, string(unit))
	if err != nil {
		if store.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return account.Balance, nil
}

// RecordExternalDeposit credits a confirmed payment once per external reference.
func (l *Ledger) RecordExternalDeposit(ctx context.Context, userID string, amount int64, reference string) (Deposit, error) {
	if amount <= 0 {
		return Deposit{}, ErrInvalidAmount
	}
	if reference == "" {
		return Deposit{}, ErrMissingReference
	}
	var entry models.LedgerEntry
	err := l.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		existing, err := l.entries.GetByReference(ctx, tx, models.KindDeposit, reference, "")
		if err == nil && existing.ID != "" {
			return ErrDuplicateReference
		}
		if err != nil && !store.IsNotFound(err) {
			return fmt.Errorf("lookup deposit: %w", err)
		}
		entry, err = l.Adjust(ctx, tx, AdjustRequest{
			UserID:      userID,
			Unit:        money.Currency,
			Delta:       amount,
			Kind:        models.KindDeposit,
			ReferenceID: reference,
			Metadata:    map[string]string{"source": "payment_gateway"},
		})
		if err != nil {
			return err
		}
		return l.audit.Log(ctx, tx, userID, "deposit", "ledger_entry", entry.ID, auditData(map[string]any{
			"reference": reference,
			"amount":    amount,
		}))
	})
	if err != nil {
		return Deposit{}, err
	}
	l.notifier.BalanceChanged(userID, entry.Unit, entry.BalanceAfter)
	return Deposit{
		EntryID:   entry.ID,
		UserID:    userID,
		Reference: reference,
		Amount:    amount,
		Balance:   entry.BalanceAfter,
	}, nil
}

// Withdraw debits currency. requestID makes client retries idempotent.
func (l *Ledger) Withdraw(ctx context.Context, userID string, amount int64, requestID string) (models.LedgerEntry, error) {
	if amount <= 0 {
		return models.LedgerEntry{}, ErrInvalidAmount
	}
	if requestID == "" {
		return models.LedgerEntry{}, ErrMissingReference
	}
	var entry models.LedgerEntry
	err := l.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		entry, err = l.Adjust(ctx, tx, AdjustRequest{
			UserID:      userID,
			Unit:        money.Currency,
			Delta:       -amount,
			Kind:        models.KindWithdrawal,
			ReferenceID: requestID,
		})
		if err != nil {
			return err
		}
		return l.audit.Log(ctx, tx, userID, "withdrawal", "ledger_entry", entry.ID, auditData(map[string]any{
			"request_id": requestID,
			"amount":     amount,
		}))
	})
	if err != nil {
		return models.LedgerEntry{}, err
	}
	l.notifier.BalanceChanged(userID, entry.Unit, entry.BalanceAfter)
	return entry, nil
}

// BuyCoins converts currency minor units to coins at the configured rate per 1.00.
func (l *Ledger) BuyCoins(ctx context.Context, userID string, amountMinor int64) (CoinPurchase, error) {
	if amountMinor <= 0 || amountMinor > math.MaxInt64/max(l.coinsPerCurrencyUnit, 1) {
		return CoinPurchase{}, ErrInvalidAmount
	}
	coins := amountMinor * l.coinsPerCurrencyUnit / 100
	if coins <= 0 {
		return CoinPurchase{}, ErrInvalidAmount
	}
	purchase := CoinPurchase{ID: uuid.NewString(), CurrencySpent: amountMinor, CoinsBought: coins}
	err := l.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		meta := map[string]string{"purchase_id": purchase.ID}
		debit, err := l.Adjust(ctx, tx, AdjustRequest{
			UserID: userID, Unit: money.Currency, Delta: -amountMinor,
			Kind: models.KindWithdrawal, ReferenceID: purchase.ID, Metadata: meta,
		})
		if err != nil {
			return err
		}
		credit, err := l.Adjust(ctx, tx, AdjustRequest{
			UserID: userID, Unit: money.Coins, Delta: coins,
			Kind: models.KindDeposit, ReferenceID: purchase.ID, Metadata: meta,
		})
		if err != nil {
			return err
		}
		purchase.CurrencyBalance = debit.BalanceAfter
		purchase.CoinBalance = credit.BalanceAfter
		return l.audit.Log(ctx, tx, userID, "coin_purchase", "ledger_entry", credit.ID, auditData(map[string]any{
			"currency_spent": amountMinor,
			"coins_bought":   coins,
		}))
	})
	if err != nil {
		return CoinPurchase{}, err
	}
	l.notifier.BalanceChanged(userID, string(money.Currency), purchase.CurrencyBalance)
	l.notifier.BalanceChanged(userID, string(money.Coins), purchase.CoinBalance)
	return purchase, nil
}

// History lists a user's entries newest first, optionally narrowed to one kind.
func (l *Ledger) History(ctx context.Context, userID, kind string, limit, offset int) ([]models.LedgerEntry, error) {
	if kind != "" && !models.IsEntryKind(kind) {
		return nil, ErrInvalidKind
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return l.entries.ListByUser(ctx, userID, kind, limit, offset)
}

func encodeMetadata(values map[string]string) string {
	if len(values) == 0 {
		return "{}"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func auditData(values map[string]any) string {
	data, err := json.Marshal(values)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func isRaceLoss(err error) bool {
	return errors.Is(err, ErrAlreadySettled) || errors.Is(err, ErrDuplicateReference)
}
