// Package ws streams freshly computed GEX profiles to websocket
// subscribers, one group per symbol.
package ws

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Hub manages websocket connections and per-symbol subscriptions.
type Hub struct {
	clients    map[*Client]bool
	groups     map[string]map[*Client]bool // symbol -> clients
	register   chan *Client
	unregister chan *Client
	broadcast  chan *GroupMessage
	mu         sync.RWMutex
	logger     *zap.Logger
}

// GroupMessage is a payload destined for every subscriber of one symbol.
type GroupMessage struct {
	Symbol  string
	Payload []byte
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		groups:     make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *GroupMessage, 256),
		logger:     logger,
	}
}

// Run processes hub events. Call this in a goroutine.
// Returns when context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hub shutting down")
			h.shutdown()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if h.groups[client.symbol] == nil {
				h.groups[client.symbol] = make(map[*Client]bool)
			}
			h.groups[client.symbol][client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered",
				zap.String("connID", client.connID),
				zap.String("symbol", client.symbol),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				if clients, ok := h.groups[client.symbol]; ok {
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.groups, client.symbol)
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered",
				zap.String("connID", client.connID),
				zap.String("symbol", client.symbol),
			)

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.groups[msg.Symbol]; ok {
				for client := range clients {
					select {
					case client.send <- msg.Payload:
					default:
						// Buffer full, schedule disconnect
						go func(c *Client) {
							h.unregister <- c
						}(client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// shutdown gracefully closes all client connections.
func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.groups = make(map[string]map[*Client]bool)
}

// ActiveSymbols returns every symbol with at least one subscriber.
func (h *Hub) ActiveSymbols() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var symbols []string
	for symbol, clients := range h.groups {
		if len(clients) > 0 {
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}

// Broadcast sends a payload to all subscribers of a symbol.
func (h *Hub) Broadcast(symbol string, payload []byte) {
	h.broadcast <- &GroupMessage{Symbol: symbol, Payload: payload}
}
