package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coinflip/internal/config"
	"coinflip/internal/db"
	"coinflip/internal/events"
	"coinflip/internal/handlers"
	"coinflip/internal/logging"
	"coinflip/internal/outcome"
	"coinflip/internal/services"
	"coinflip/internal/store"
	"coinflip/internal/websocket"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	margin := cfg.Game.HouseMargin()
	fields := log.Fields{
		"capacity":     cfg.Game.Capacity,
		"win":          cfg.Game.WinMultiplier.String(),
		"refund":       cfg.Game.LossRefundMultiplier.String(),
		"house_margin": margin.String(),
	}
	if margin.IsNegative() {
		log.WithFields(fields).Warn("payout multipliers exceed the stakes collected; the house funds every full game")
	} else {
		log.WithFields(fields).Info("game configuration loaded")
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}
	defer database.Close()

	hub := websocket.NewHub()
	var bus events.Bus
	if cfg.NATSURL != "" {
		publisher, err := events.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.WithError(err).Warn("event bus unavailable, continuing with websocket notifications only")
		} else {
			defer publisher.Close()
			bus = publisher
		}
	}
	notifier := events.NewFanout(hub, bus)

	accounts := store.NewAccountStore(database)
	entries := store.NewLedgerStore(database)
	games := store.NewGameStore(database)
	participants := store.NewParticipantStore(database)
	flips := store.NewFlipStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	generator := outcome.NewCryptoGenerator()

	ledger := services.NewLedger(txRunner, accounts, entries, audit, notifier, cfg.Game.CoinsPerCurrencyUnit)
	matchmaker := services.NewMatchmaker(ledger, games, participants, cfg.Game)
	engine := services.NewSettlementEngine(ledger, games, participants, audit, generator, notifier, cfg.Game)
	gameService := services.NewGameService(ledger, matchmaker, engine, games, participants, flips, generator, notifier, cfg.Game)
	sweeper := services.NewSweeper(engine, games, cfg.Game.SweepInterval, cfg.Game.GameExpiry)

	handler := handlers.New(cfg, ledger, gameService, accounts, audit, games, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.WithField("addr", server.Addr).Info("coinflip API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		return sweeper.Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.WithError(err).Error("server stopped with error")
		os.Exit(1)
	}
	log.Info("server stopped")
}
