package models

import "encoding/json"

// EventType discriminates cross-context events.
type EventType string

const (
	EventMessage EventType = "message"
	EventTyping  EventType = "typing"
)

// Event is what one session tells the others sharing its store.
// Origin is the id of the session that produced it.
type Event struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversationId"`
	Message        *Message  `json:"message,omitempty"`
	Origin         string    `json:"origin,omitempty"`
}

// Socket event names.
const (
	SocketMessageCreate  = "message:create"
	SocketMessageCreated = "message:created"
)

// Frame is the envelope exchanged over the real-time socket.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// MessagePayload is the data of both socket events. A message:create may
// carry just Body, in which case the server builds the message.
type MessagePayload struct {
	ConversationID string   `json:"conversationId"`
	Message        *Message `json:"message,omitempty"`
	Body           string   `json:"body,omitempty"`
	Origin         string   `json:"origin,omitempty"`
}
