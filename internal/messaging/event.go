// Package messaging carries chat events between users and the conversation
// controller over WhatsApp (Twilio) or a websocket.
package messaging

import (
	"context"
	"strings"
	"time"
)

// Address prefixes select the outbound channel for a user id.
const (
	WhatsAppPrefix  = "whatsapp:"
	WebSocketPrefix = "ws:"
)

// InboundEvent is one user message as delivered by a gateway.
type InboundEvent struct {
	ID               string    `json:"id"`
	From             string    `json:"from"`
	Body             string    `json:"body"`
	MediaURL         string    `json:"media_url,omitempty"`
	MediaContentType string    `json:"media_content_type,omitempty"`
	ReceivedAt       time.Time `json:"received_at"`
}

func (e InboundEvent) HasMedia() bool {
	return strings.TrimSpace(e.MediaURL) != ""
}

func (e InboundEvent) HasImage() bool {
	return e.HasMedia() && strings.HasPrefix(strings.ToLower(e.MediaContentType), "image/")
}

func (e InboundEvent) HasAudio() bool {
	return e.HasMedia() && strings.HasPrefix(strings.ToLower(e.MediaContentType), "audio/")
}

// Command returns the trimmed, lower-cased body.
func (e InboundEvent) Command() string {
	return strings.ToLower(strings.TrimSpace(e.Body))
}

// Reply is one outbound message; it carries text, one media URL, or both.
type Reply struct {
	To       string `json:"to"`
	Body     string `json:"body,omitempty"`
	MediaURL string `json:"media_url,omitempty"`
}

// Messenger delivers replies. Each Send is independent of any other.
type Messenger interface {
	Send(ctx context.Context, reply Reply) error
}

// MessengerFunc adapts a function to Messenger.
type MessengerFunc func(ctx context.Context, reply Reply) error

func (f MessengerFunc) Send(ctx context.Context, reply Reply) error {
	return f(ctx, reply)
}
