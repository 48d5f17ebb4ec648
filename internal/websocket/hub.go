package websocket

import (
	"encoding/json"
	"sync"

	log "github.com/sirupsen/logrus"
)

const (
	TypeBalance       = "balance"
	TypeGameSettled   = "game_settled"
	TypeGameCancelled = "game_cancelled"
)

// Message is the envelope every push shares; Data depends on Type.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type BalanceUpdate struct {
	Unit    string `json:"unit"`
	Balance int64  `json:"balance"`
	Display string `json:"display"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		return
	}
	delete(h.clients[userID], client)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// Send queues msg for every connection of userID. Slow clients drop messages
// rather than block the caller.
func (h *Hub) Send(userID string, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.WithError(err).WithField("type", msg.Type).Error("encode websocket message")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
			log.WithFields(log.Fields{"user_id": userID, "type": msg.Type}).Debug("websocket client buffer full, dropping message")
		}
	}
}

func (h *Hub) BroadcastBalance(userID string, update BalanceUpdate) {
	h.Send(userID, Message{Type: TypeBalance, Data: update})
}

func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
