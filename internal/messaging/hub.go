package messaging

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/swaasthya/saathi/internal/protocol"
)

var ErrNotConnected = errors.New("client not connected")

// Hub tracks websocket chat clients and delivers replies to them. Each
// client has one outbound queue drained by its connection's writer.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]chan any
	queue   int
}

func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Hub{clients: make(map[string]chan any), queue: queueSize}
}

// Attach registers clientID and returns its outbound queue plus a detach
// func. A second Attach for the same id replaces the first connection.
func (h *Hub) Attach(clientID string) (<-chan any, func()) {
	ch := make(chan any, h.queue)
	h.mu.Lock()
	if old, ok := h.clients[clientID]; ok {
		close(old)
	}
	h.clients[clientID] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if cur, ok := h.clients[clientID]; ok && cur == ch {
				delete(h.clients, clientID)
				close(ch)
			}
		})
	}
}

func (h *Hub) Connected(clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[clientID]
	return ok
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send queues reply for the client addressed by reply.To ("ws:<id>").
func (h *Hub) Send(ctx context.Context, reply Reply) error {
	clientID := strings.TrimPrefix(reply.To, WebSocketPrefix)
	msg := protocol.AssistantReply{
		Type:     protocol.TypeAssistantReply,
		ClientID: clientID,
		Body:     reply.Body,
		MediaURL: reply.MediaURL,
	}
	return h.push(ctx, clientID, msg)
}

// Notify queues a non-reply payload such as an error event.
func (h *Hub) Notify(ctx context.Context, clientID string, msg any) error {
	return h.push(ctx, clientID, msg)
}

func (h *Hub) push(ctx context.Context, clientID string, msg any) error {
	// The read lock is held across the send so detach cannot close the
	// channel underneath it.
	h.mu.RLock()
	defer h.mu.RUnlock()
	ch, ok := h.clients[clientID]
	if !ok {
		return ErrNotConnected
	}
	select {
	case ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
