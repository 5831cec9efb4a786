// Package valkey stores chat records in Valkey so that sessions running in
// different processes share one namespace.
package valkey

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/valkey-io/valkey-go"

	"github.com/Vasu1712/adminchat/internal/storage"
)

// RecordStore implements storage.Store with plain GET/SET.
type RecordStore struct {
	client valkey.Client
	prefix string
	logger *slog.Logger
}

// NewClient connects to the given address.
func NewClient(addr string) (valkey.Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey at %s: %w", addr, err)
	}
	return client, nil
}

// NewRecordStore wraps an existing client. prefix is prepended to every key
// and may be empty.
func NewRecordStore(client valkey.Client, prefix string, logger *slog.Logger) *RecordStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordStore{
		client: client,
		prefix: prefix,
		logger: logger.With("component", "valkey_store"),
	}
}

func (s *RecordStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Do(ctx, s.client.B().Get().Key(s.prefix+key).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("valkey get %s: %w", key, err)
	}
	return value, nil
}

func (s *RecordStore) Set(ctx context.Context, key string, value []byte) error {
	cmd := s.client.B().Set().Key(s.prefix + key).Value(valkey.BinaryString(value)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set %s: %w", key, err)
	}
	s.logger.Debug("record written", "key", key, "bytes", len(value))
	return nil
}
