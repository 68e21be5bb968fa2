package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientMessage  MessageType = "client_message"
	TypeAssistantReply MessageType = "assistant_reply"
	TypeSystemEvent    MessageType = "system_event"
	TypeErrorEvent     MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientMessage is one chat turn from a websocket client. It mirrors the
// fields of a WhatsApp webhook delivery.
type ClientMessage struct {
	Type             MessageType `json:"type"`
	MessageID        string      `json:"message_id,omitempty"`
	Body             string      `json:"body"`
	MediaURL         string      `json:"media_url,omitempty"`
	MediaContentType string      `json:"media_content_type,omitempty"`
}

type AssistantReply struct {
	Type     MessageType `json:"type"`
	ClientID string      `json:"client_id"`
	Body     string      `json:"body,omitempty"`
	MediaURL string      `json:"media_url,omitempty"`
}

type SystemEvent struct {
	Type     MessageType `json:"type"`
	ClientID string      `json:"client_id"`
	Code     string      `json:"code"`
	Detail   string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	ClientID  string      `json:"client_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientMessage:
		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.Body) == "" && strings.TrimSpace(msg.MediaURL) == "" {
			return nil, errors.New("invalid client_message: body or media_url required")
		}
		if msg.MediaURL != "" && msg.MediaContentType == "" {
			return nil, errors.New("invalid client_message: media_content_type required with media_url")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// TypeOf reports the message type of a server or client payload.
func TypeOf(v any) (MessageType, bool) {
	switch m := v.(type) {
	case ClientMessage:
		return m.Type, true
	case AssistantReply:
		return m.Type, true
	case SystemEvent:
		return m.Type, true
	case ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
