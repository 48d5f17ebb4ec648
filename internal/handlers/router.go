package handlers

import (
	"net/http"
	"strings"

	"coinflip/internal/config"
	"coinflip/internal/middleware"
	"coinflip/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	cfg        config.Config
	wallet     Wallet
	games      Games
	reconciler Reconciler
	audit      AuditLister
	stats      StatsReader
	hub        *websocket.Hub
}

func New(cfg config.Config, wallet Wallet, games Games, reconciler Reconciler, audit AuditLister, stats StatsReader, hub *websocket.Hub) *Handler {
	return &Handler{
		cfg:        cfg,
		wallet:     wallet,
		games:      games,
		reconciler: reconciler,
		audit:      audit,
		stats:      stats,
		hub:        hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestLogger)
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(h.cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Post("/payments/webhook", h.PaymentWebhook)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Get("/wallet/balance", h.GetBalance)
		r.Get("/wallet/transactions", h.ListTransactions)
		r.Post("/wallet/withdraw", h.Withdraw)
		r.Post("/wallet/coins", h.BuyCoins)

		r.Get("/games/waiting", h.WaitingGames)
		r.Post("/games/join", h.JoinGame)
		r.Get("/games/{id}", h.GetGame)
		r.Get("/games/{id}/result", h.GameResult)
		r.Post("/flips", h.PlayFlip)

		r.Get("/ws/updates", h.WSUpdates)
	})

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Use(middleware.RequireAdmin(h.cfg.IsAdmin))
		r.Get("/reconcile", h.Reconcile)
		r.Get("/audit", h.ListAuditLogs)
		r.Get("/stats", h.Stats)
		r.Get("/config", h.GameConfig)
	})
	return router
}

func allowedOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
