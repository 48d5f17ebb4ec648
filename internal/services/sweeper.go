package services

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

const sweepBatchSize = 100

// Sweeper settles games whose filling join committed without a settlement,
// and cancels games that waited longer than the configured expiry.
type Sweeper struct {
	engine   *SettlementEngine
	games    GameStore
	interval time.Duration
	expiry   time.Duration
	now      func() time.Time
}

func NewSweeper(engine *SettlementEngine, games GameStore, interval, expiry time.Duration) *Sweeper {
	return &Sweeper{
		engine:   engine,
		games:    games,
		interval: interval,
		expiry:   expiry,
		now:      time.Now,
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return nil
	}
	log.WithFields(log.Fields{"interval": s.interval, "expiry": s.expiry}).Info("sweeper started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			log.Info("sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	settled, err := s.SettlePending(ctx)
	if err != nil {
		log.WithError(err).Error("settle pending games")
	}
	expired, err := s.ExpireStale(ctx)
	if err != nil {
		log.WithError(err).Error("expire stale games")
	}
	if settled > 0 || expired > 0 {
		log.WithFields(log.Fields{"settled": settled, "cancelled": expired}).Info("sweep completed")
	}
}

// SettlePending settles full games that are still waiting.
func (s *Sweeper) SettlePending(ctx context.Context) (int, error) {
	ids, err := s.games.ListFullWaiting(ctx, sweepBatchSize)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, id := range ids {
		if _, err := s.engine.Settle(ctx, id); err != nil {
			if isRaceLoss(err) {
				continue
			}
			log.WithError(err).WithField("game_id", id).Warn("pending settlement failed")
			continue
		}
		settled++
	}
	return settled, nil
}

// ExpireStale cancels and refunds waiting games older than the expiry. A zero
// expiry keeps games open indefinitely.
func (s *Sweeper) ExpireStale(ctx context.Context) (int, error) {
	if s.expiry <= 0 {
		return 0, nil
	}
	ids, err := s.games.ListExpired(ctx, s.now().Add(-s.expiry), sweepBatchSize)
	if err != nil {
		return 0, err
	}
	cancelled := 0
	for _, id := range ids {
		if _, err := s.engine.Cancel(ctx, id); err != nil {
			if isRaceLoss(err) || errors.Is(err, ErrGameFull) || errors.Is(err, ErrGameCancelled) {
				continue
			}
			log.WithError(err).WithField("game_id", id).Warn("expiry cancellation failed")
			continue
		}
		cancelled++
	}
	return cancelled, nil
}
