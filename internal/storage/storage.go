// Package storage defines the persisted key/value namespace every session
// reads and writes. Backends live in the subpackages.
package storage

import (
	"context"
	"errors"
)

// Fixed record keys.
const (
	ConversationsKey = "pe_conversations_v1"
	MessagesKey      = "pe_conv_msgs_v1"
)

// ErrNotFound is returned by Get when a key has never been written.
var ErrNotFound = errors.New("storage: key not found")

// Store is a shared, unsynchronized, multi-writer key/value store.
// Concurrent read-modify-write cycles from different sessions are
// last-writer-wins.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}
