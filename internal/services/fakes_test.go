package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"coinflip/internal/config"
	"coinflip/internal/models"
	"coinflip/internal/outcome"
	"coinflip/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type fakeTxRunner struct {
	err   error
	state *memDB
}

// WithTx rolls the in-memory state back when fn fails.
func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	if f.state == nil {
		return fn(nil)
	}
	snapshot := f.state.clone()
	if err := fn(nil); err != nil {
		*f.state = *snapshot
		return err
	}
	return nil
}

type memDB struct {
	accounts     map[string]models.Account
	entries      []models.LedgerEntry
	games        map[string]models.Game
	participants map[string][]models.Participant
	flips        []models.Flip
	audits       []string
	clock        time.Time
}

func newMemDB() *memDB {
	return &memDB{
		accounts:     map[string]models.Account{},
		games:        map[string]models.Game{},
		participants: map[string][]models.Participant{},
		clock:        time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memDB) clone() *memDB {
	c := &memDB{
		accounts:     make(map[string]models.Account, len(m.accounts)),
		entries:      append([]models.LedgerEntry(nil), m.entries...),
		games:        make(map[string]models.Game, len(m.games)),
		participants: make(map[string][]models.Participant, len(m.participants)),
		flips:        append([]models.Flip(nil), m.flips...),
		audits:       append([]string(nil), m.audits...),
		clock:        m.clock,
	}
	for k, v := range m.accounts {
		c.accounts[k] = v
	}
	for k, v := range m.games {
		c.games[k] = v
	}
	for k, v := range m.participants {
		c.participants[k] = append([]models.Participant(nil), v...)
	}
	return c
}

func (m *memDB) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memDB) balance(userID, unit string) int64 {
	return m.accounts[userID+"|"+unit].Balance
}

func (m *memDB) ledgerSum(userID, unit string) int64 {
	var sum int64
	for _, e := range m.entries {
		if e.UserID == userID && e.Unit == unit {
			sum += e.Amount
		}
	}
	return sum
}

func (m *memDB) entriesOfKind(kind string) []models.LedgerEntry {
	var out []models.LedgerEntry
	for _, e := range m.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (m *memDB) fund(userID, unit string, amount int64) {
	key := userID + "|" + unit
	acc := m.accounts[key]
	if acc.ID == "" {
		acc = models.Account{ID: "acc-" + key, UserID: userID, Unit: unit}
	}
	ref := fmt.Sprintf("seed-%s-%d", key, len(m.entries))
	m.entries = append(m.entries, models.LedgerEntry{
		ID: ref, AccountID: acc.ID, UserID: userID, Unit: unit, Kind: models.KindDeposit,
		Amount: amount, BalanceBefore: acc.Balance, BalanceAfter: acc.Balance + amount,
		Status: models.EntryCompleted, ReferenceID: &ref,
	})
	acc.Balance += amount
	m.accounts[key] = acc
}

var uniqueViolation = &pq.Error{Code: "23505"}

type memAccounts struct{ db *memDB }

func (s memAccounts) Ensure(_ context.Context, _ store.Execer, id, userID, unit string) error {
	key := userID + "|" + unit
	if _, ok := s.db.accounts[key]; !ok {
		s.db.accounts[key] = models.Account{ID: id, UserID: userID, Unit: unit}
	}
	return nil
}

func (s memAccounts) GetByUserAndUnit(_ context.Context, userID, unit string) (models.Account, error) {
	acc, ok := s.db.accounts[userID+"|"+unit]
	if !ok {
		return models.Account{}, sql.ErrNoRows
	}
	return acc, nil
}

func (s memAccounts) GetForUpdate(ctx context.Context, _ store.Getter, userID, unit string) (models.Account, error) {
	return s.GetByUserAndUnit(ctx, userID, unit)
}

func (s memAccounts) UpdateBalance(_ context.Context, _ store.Execer, accountID string, balance int64) error {
	for k, acc := range s.db.accounts {
		if acc.ID == accountID {
			if balance < 0 {
				return &pq.Error{Code: "23514"}
			}
			acc.Balance = balance
			s.db.accounts[k] = acc
			return nil
		}
	}
	return sql.ErrNoRows
}

type memLedger struct{ db *memDB }

func (s memLedger) Insert(_ context.Context, _ store.Execer, entry models.LedgerEntry) error {
	if entry.BalanceAfter != entry.BalanceBefore+entry.Amount {
		return &pq.Error{Code: "23514"}
	}
	if entry.ReferenceID != nil {
		for _, e := range s.db.entries {
			if e.ReferenceID == nil || *e.ReferenceID != *entry.ReferenceID {
				continue
			}
			if e.Kind == entry.Kind && (e.AccountID == entry.AccountID || e.Kind == models.KindDeposit) {
				return uniqueViolation
			}
		}
	}
	s.db.tick()
	s.db.entries = append(s.db.entries, entry)
	return nil
}

func (s memLedger) GetByReference(_ context.Context, _ store.Getter, kind, referenceID, userID string) (models.LedgerEntry, error) {
	for _, e := range s.db.entries {
		if e.Kind == kind && e.ReferenceID != nil && *e.ReferenceID == referenceID && (userID == "" || e.UserID == userID) {
			return e, nil
		}
	}
	return models.LedgerEntry{}, sql.ErrNoRows
}

func (s memLedger) ListByUser(_ context.Context, userID, kind string, limit, offset int) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	for i := len(s.db.entries) - 1; i >= 0; i-- {
		e := s.db.entries[i]
		if e.UserID == userID && (kind == "" || e.Kind == kind) {
			out = append(out, e)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memGames struct{ db *memDB }

func (s memGames) Create(_ context.Context, _ store.Execer, game models.Game) error {
	if _, ok := s.db.games[game.ID]; ok {
		return uniqueViolation
	}
	game.Status = models.GameWaiting
	game.PlayerCount = 0
	game.CreatedAt = s.db.tick()
	s.db.games[game.ID] = game
	return nil
}

func (s memGames) sorted() []models.Game {
	games := make([]models.Game, 0, len(s.db.games))
	for _, g := range s.db.games {
		games = append(games, g)
	}
	sort.Slice(games, func(i, j int) bool {
		if !games[i].CreatedAt.Equal(games[j].CreatedAt) {
			return games[i].CreatedAt.Before(games[j].CreatedAt)
		}
		return games[i].ID < games[j].ID
	})
	return games
}

func (s memGames) FindWaitingForUpdate(_ context.Context, _ store.Getter, stake int64, unit string, capacity int) (models.Game, error) {
	for _, g := range s.sorted() {
		if g.Status == models.GameWaiting && g.Stake == stake && g.Unit == unit && g.Capacity == capacity && g.PlayerCount < g.Capacity {
			return g, nil
		}
	}
	return models.Game{}, sql.ErrNoRows
}

func (s memGames) GetForUpdate(ctx context.Context, _ store.Getter, gameID string) (models.Game, error) {
	return s.GetByID(ctx, gameID)
}

func (s memGames) GetByID(_ context.Context, gameID string) (models.Game, error) {
	g, ok := s.db.games[gameID]
	if !ok {
		return models.Game{}, sql.ErrNoRows
	}
	return g, nil
}

func (s memGames) IncrementPlayers(_ context.Context, _ store.Getter, gameID string) (int, error) {
	g, ok := s.db.games[gameID]
	if !ok || g.Status != models.GameWaiting || g.PlayerCount >= g.Capacity {
		return 0, sql.ErrNoRows
	}
	g.PlayerCount++
	s.db.games[gameID] = g
	return g.PlayerCount, nil
}

func (s memGames) MarkCompleted(_ context.Context, _ store.Execer, gameID, winnerID string) (int64, error) {
	g := s.db.games[gameID]
	if g.Status != models.GameWaiting || g.PlayerCount != g.Capacity {
		return 0, nil
	}
	now := s.db.tick()
	g.Status = models.GameCompleted
	g.WinnerID = &winnerID
	g.CompletedAt = &now
	s.db.games[gameID] = g
	return 1, nil
}

func (s memGames) MarkCancelled(_ context.Context, _ store.Execer, gameID string) (int64, error) {
	g := s.db.games[gameID]
	if g.Status != models.GameWaiting || g.PlayerCount >= g.Capacity {
		return 0, nil
	}
	now := s.db.tick()
	g.Status = models.GameCancelled
	g.CompletedAt = &now
	s.db.games[gameID] = g
	return 1, nil
}

func (s memGames) ListWaiting(_ context.Context, stake int64, unit string) ([]models.Game, error) {
	var out []models.Game
	for _, g := range s.sorted() {
		if g.Status == models.GameWaiting && g.PlayerCount < g.Capacity && g.Unit == unit && (stake == 0 || g.Stake == stake) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s memGames) ListFullWaiting(_ context.Context, limit int) ([]string, error) {
	var ids []string
	for _, g := range s.sorted() {
		if g.Status == models.GameWaiting && g.PlayerCount == g.Capacity && len(ids) < limit {
			ids = append(ids, g.ID)
		}
	}
	return ids, nil
}

func (s memGames) ListExpired(_ context.Context, createdBefore time.Time, limit int) ([]string, error) {
	var ids []string
	for _, g := range s.sorted() {
		if g.Status == models.GameWaiting && g.PlayerCount < g.Capacity && g.CreatedAt.Before(createdBefore) && len(ids) < limit {
			ids = append(ids, g.ID)
		}
	}
	return ids, nil
}

type memParticipants struct{ db *memDB }

func (s memParticipants) Insert(_ context.Context, _ store.Execer, gameID, userID string, amountPaid int64) error {
	for _, p := range s.db.participants[gameID] {
		if p.UserID == userID {
			return uniqueViolation
		}
	}
	s.db.participants[gameID] = append(s.db.participants[gameID], models.Participant{
		GameID: gameID, UserID: userID, AmountPaid: amountPaid, CreatedAt: s.db.tick(),
	})
	return nil
}

func (s memParticipants) Exists(_ context.Context, _ store.Getter, gameID, userID string) (bool, error) {
	for _, p := range s.db.participants[gameID] {
		if p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s memParticipants) ListByGame(_ context.Context, _ store.Selecter, gameID string) ([]models.Participant, error) {
	return append([]models.Participant(nil), s.db.participants[gameID]...), nil
}

func (s memParticipants) Get(_ context.Context, gameID, userID string) (models.Participant, error) {
	for _, p := range s.db.participants[gameID] {
		if p.UserID == userID {
			return p, nil
		}
	}
	return models.Participant{}, sql.ErrNoRows
}

func (s memParticipants) SetOutcome(_ context.Context, _ store.Execer, gameID, userID string, amountWon int64, isWinner bool) (int64, error) {
	rows := s.db.participants[gameID]
	for i := range rows {
		if rows[i].UserID == userID && rows[i].AmountWon == nil {
			won := amountWon
			rows[i].AmountWon = &won
			rows[i].IsWinner = isWinner
			return 1, nil
		}
	}
	return 0, nil
}

type memFlips struct{ db *memDB }

func (s memFlips) Insert(_ context.Context, _ store.Execer, flip models.Flip) error {
	s.db.flips = append(s.db.flips, flip)
	return nil
}

type memAudit struct{ db *memDB }

func (s memAudit) Log(_ context.Context, _ store.Execer, _, action, _, entityID, _ string) error {
	s.db.audits = append(s.db.audits, action+":"+entityID)
	return nil
}

// sequenceGenerator replays fixed outcomes.
type sequenceGenerator struct {
	winners []int
	sides   []outcome.Side
	err     error
}

func (g *sequenceGenerator) PickWinner(n int) (int, error) {
	if g.err != nil {
		return 0, g.err
	}
	if len(g.winners) == 0 {
		return 0, errors.New("no winner queued")
	}
	w := g.winners[0]
	g.winners = g.winners[1:]
	if w >= n {
		return 0, fmt.Errorf("queued winner %d out of range %d", w, n)
	}
	return w, nil
}

func (g *sequenceGenerator) Flip() (outcome.Side, error) {
	if g.err != nil {
		return "", g.err
	}
	if len(g.sides) == 0 {
		return "", errors.New("no side queued")
	}
	s := g.sides[0]
	g.sides = g.sides[1:]
	return s, nil
}

type recordingNotifier struct {
	settled   []Settlement
	cancelled []Cancellation
	balances  []string
}

func (n *recordingNotifier) GameSettled(s Settlement) {
	n.settled = append(n.settled, s)
}

func (n *recordingNotifier) GameCancelled(c Cancellation) {
	n.cancelled = append(n.cancelled, c)
}

func (n *recordingNotifier) BalanceChanged(userID, unit string, balance int64) {
	n.balances = append(n.balances, fmt.Sprintf("%s:%s:%d", userID, unit, balance))
}

type harness struct {
	db       *memDB
	gen      *sequenceGenerator
	notifier *recordingNotifier
	ledger   *Ledger
	mm       *Matchmaker
	engine   *SettlementEngine
	service  *GameService
	sweeper  *Sweeper
	cfg      config.GameConfig
}

func newHarness(cfg config.GameConfig) *harness {
	m := newMemDB()
	h := &harness{db: m, gen: &sequenceGenerator{}, notifier: &recordingNotifier{}, cfg: cfg}
	runner := fakeTxRunner{state: m}
	games := memGames{db: m}
	participants := memParticipants{db: m}
	audit := memAudit{db: m}
	h.ledger = NewLedger(runner, memAccounts{db: m}, memLedger{db: m}, audit, h.notifier, cfg.CoinsPerCurrencyUnit)
	h.mm = NewMatchmaker(h.ledger, games, participants, cfg)
	h.engine = NewSettlementEngine(h.ledger, games, participants, audit, h.gen, h.notifier, cfg)
	h.service = NewGameService(h.ledger, h.mm, h.engine, games, participants, memFlips{db: m}, h.gen, h.notifier, cfg)
	h.sweeper = NewSweeper(h.engine, games, cfg.SweepInterval, cfg.GameExpiry)
	h.sweeper.now = func() time.Time { return m.clock }
	return h
}

func smallGame(capacity int) config.GameConfig {
	cfg := config.DefaultGame()
	cfg.Capacity = capacity
	return cfg
}
