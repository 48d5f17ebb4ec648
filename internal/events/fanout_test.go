package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"coinflip/internal/models"
	"coinflip/internal/services"
	"coinflip/internal/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	userID string
	msg    websocket.Message
}

type recordingSender struct {
	sent []sentMessage
}

func (r *recordingSender) Send(userID string, msg websocket.Message) {
	r.sent = append(r.sent, sentMessage{userID: userID, msg: msg})
}

type published struct {
	subject string
	data    []byte
}

type recordingBus struct {
	err      error
	messages []published
}

func (b *recordingBus) Publish(subject string, data []byte) error {
	b.messages = append(b.messages, published{subject: subject, data: data})
	return b.err
}

func fixedFanout(users UserSender, bus Bus) *Fanout {
	f := NewFanout(users, bus)
	f.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return f
}

func TestGameSettledPushesEachParticipant(t *testing.T) {
	users := &recordingSender{}
	bus := &recordingBus{}
	f := fixedFanout(users, bus)

	f.GameSettled(services.Settlement{
		Game:      models.Game{ID: "game-1"},
		WinnerID:  "bob",
		Collected: 500,
		PaidOut:   575,
		Payouts: []services.Payout{
			{UserID: "alice", Paid: 250, Won: 200, Balance: 950},
			{UserID: "bob", Paid: 250, Won: 375, IsWinner: true, Balance: 1125},
		},
	})

	require.Len(t, users.sent, 2)
	assert.Equal(t, "alice", users.sent[0].userID)
	assert.Equal(t, websocket.TypeGameSettled, users.sent[0].msg.Type)
	outcome := users.sent[1].msg.Data.(GameOutcome)
	assert.True(t, outcome.IsWinner)
	assert.Equal(t, int64(375), outcome.Won)
	assert.Equal(t, "game-1", outcome.GameID)

	require.Len(t, bus.messages, 1)
	assert.Equal(t, SubjectGameSettled, bus.messages[0].subject)
	var env Envelope
	require.NoError(t, json.Unmarshal(bus.messages[0].data, &env))
	assert.Equal(t, "game.settled", env.EventType)
	assert.Equal(t, "coinflip", env.SourceService)
	assert.NotEmpty(t, env.EventID)
	assert.True(t, env.Timestamp.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))

	var payload services.Settlement
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "bob", payload.WinnerID)
	assert.Equal(t, int64(575), payload.PaidOut)
}

func TestGameCancelledPushesRefunds(t *testing.T) {
	users := &recordingSender{}
	bus := &recordingBus{}
	f := fixedFanout(users, bus)

	f.GameCancelled(services.Cancellation{
		Game:    models.Game{ID: "game-2"},
		Refunds: []services.Refund{{UserID: "alice", Amount: 250, Balance: 1000}},
	})

	require.Len(t, users.sent, 1)
	assert.Equal(t, websocket.TypeGameCancelled, users.sent[0].msg.Type)
	assert.Equal(t, GameRefund{GameID: "game-2", Amount: 250, Balance: 1000}, users.sent[0].msg.Data)
	require.Len(t, bus.messages, 1)
	assert.Equal(t, SubjectGameCancelled, bus.messages[0].subject)
}

func TestBalanceChangedFormatsDisplay(t *testing.T) {
	users := &recordingSender{}
	f := fixedFanout(users, nil)

	f.BalanceChanged("alice", "currency", 750)
	f.BalanceChanged("alice", "coins", 110)

	require.Len(t, users.sent, 2)
	assert.Equal(t, "7.50", users.sent[0].msg.Data.(websocket.BalanceUpdate).Display)
	assert.Equal(t, "110", users.sent[1].msg.Data.(websocket.BalanceUpdate).Display)
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	bus := &recordingBus{err: errors.New("nats down")}
	f := fixedFanout(nil, bus)

	assert.NotPanics(t, func() { f.BalanceChanged("alice", "coins", 5) })
	require.Len(t, bus.messages, 1)
	assert.Equal(t, SubjectBalanceChanged, bus.messages[0].subject)
}
