package events

import (
	"time"

	"coinflip/internal/money"
	"coinflip/internal/services"
	"coinflip/internal/websocket"

	log "github.com/sirupsen/logrus"
)

// UserSender delivers a push to every open connection of one user.
type UserSender interface {
	Send(userID string, msg websocket.Message)
}

// GameOutcome is the per-participant view pushed after settlement.
type GameOutcome struct {
	GameID    string `json:"game_id"`
	WinnerID  string `json:"winner_id"`
	IsWinner  bool   `json:"is_winner"`
	Paid      int64  `json:"paid"`
	Won       int64  `json:"won"`
	Balance   int64  `json:"balance"`
	Collected int64  `json:"collected"`
	PaidOut   int64  `json:"paid_out"`
}

type GameRefund struct {
	GameID  string `json:"game_id"`
	Amount  int64  `json:"amount"`
	Balance int64  `json:"balance"`
}

type BalanceChange struct {
	UserID  string `json:"user_id"`
	Unit    string `json:"unit"`
	Balance int64  `json:"balance"`
}

// Fanout forwards committed changes to connected clients and, when a bus is
// configured, to other services. Delivery failures are logged only.
type Fanout struct {
	users UserSender
	bus   Bus
	now   func() time.Time
}

var _ services.Notifier = (*Fanout)(nil)

func NewFanout(users UserSender, bus Bus) *Fanout {
	return &Fanout{users: users, bus: bus, now: time.Now}
}

func (f *Fanout) GameSettled(s services.Settlement) {
	if f.users != nil {
		for _, p := range s.Payouts {
			f.users.Send(p.UserID, websocket.Message{
				Type: websocket.TypeGameSettled,
				Data: GameOutcome{
					GameID:    s.Game.ID,
					WinnerID:  s.WinnerID,
					IsWinner:  p.IsWinner,
					Paid:      p.Paid,
					Won:       p.Won,
					Balance:   p.Balance,
					Collected: s.Collected,
					PaidOut:   s.PaidOut,
				},
			})
		}
	}
	f.publish(SubjectGameSettled, "game.settled", s)
}

func (f *Fanout) GameCancelled(c services.Cancellation) {
	if f.users != nil {
		for _, r := range c.Refunds {
			f.users.Send(r.UserID, websocket.Message{
				Type: websocket.TypeGameCancelled,
				Data: GameRefund{GameID: c.Game.ID, Amount: r.Amount, Balance: r.Balance},
			})
		}
	}
	f.publish(SubjectGameCancelled, "game.cancelled", c)
}

func (f *Fanout) BalanceChanged(userID, unit string, balance int64) {
	if f.users != nil {
		f.users.Send(userID, websocket.Message{
			Type: websocket.TypeBalance,
			Data: websocket.BalanceUpdate{
				Unit:    unit,
				Balance: balance,
				Display: money.Format(money.Unit(unit), balance),
			},
		})
	}
	f.publish(SubjectBalanceChanged, "balance.changed", BalanceChange{UserID: userID, Unit: unit, Balance: balance})
}

func (f *Fanout) publish(subject, eventType string, payload any) {
	if f.bus == nil {
		return
	}
	data, err := encodeEnvelope(eventType, payload, f.now())
	if err != nil {
		log.WithError(err).WithField("event_type", eventType).Error("encode event")
		return
	}
	if err := f.bus.Publish(subject, data); err != nil {
		log.WithError(err).WithField("subject", subject).Warn("publish event")
	}
}
