package models

// AdminID is the fixed endpoint on the admin side of every conversation.
const AdminID = "admin"

// Role is the kind of counterparty a conversation is held with.
type Role string

const (
	RoleClient   Role = "client"
	RoleMarketer Role = "marketer"

	// RoleAll is only meaningful as a list filter.
	RoleAll Role = "all"
)

// Valid reports whether r is a role a conversation can carry.
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleMarketer
}

// Status is an advisory delivery marker on a message.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
)

// Conversation is a persisted thread between the admin and one counterparty.
// Timestamps are Unix milliseconds.
type Conversation struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Role      Role   `json:"role"`
	Unread    int    `json:"unread"`
	Last      string `json:"last"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Message is immutable once created, except for Status.
type Message struct {
	ID     string `json:"id"`
	From   string `json:"from"`
	To     string `json:"to"`
	Body   string `json:"body"`
	TS     int64  `json:"ts"`
	Status Status `json:"status,omitempty"`
}

// Outgoing reports whether the admin wrote the message.
func (m Message) Outgoing() bool {
	return m.From == AdminID
}
