package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Message is a single chat message inside a conversation.
type Message struct {
	ID       string    `db:"id" json:"id"`
	SenderID string    `db:"sender_id" json:"senderId"`
	Text     string    `db:"text" json:"text"`
	SentAt   time.Time `db:"sent_at" json:"sentAt"`
}

// InboundMessage is a normalized server push.
type InboundMessage struct {
	SenderID   string
	ReceiverID string
	Message    Message
}

// OutboundMessage is published to the server on send.
type OutboundMessage struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Text       string `json:"text"`
}

// Frame types exchanged over the chat socket.
const (
	FrameSubscribe = "subscribe"
	FrameSend      = "send"
	FrameMessage   = "message"
	FramePing      = "ping"
	FramePong      = "pong"
)

// Frame is the envelope for every websocket message.
type Frame struct {
	Type        string          `json:"type"`
	Destination string          `json:"destination,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// ProvisionalPrefix marks ids generated locally for optimistic sends.
const ProvisionalPrefix = "local-"

// IsProvisionalID reports whether id was generated locally.
func IsProvisionalID(id string) bool {
	return strings.HasPrefix(id, ProvisionalPrefix)
}
