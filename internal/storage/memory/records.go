package memory

import (
	"context"
	"sync"

	"github.com/Vasu1712/adminchat/internal/storage"
)

// RecordStore keeps records in process memory. It backs single-process
// deployments and stands in for the shared store in tests.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string][]byte // key -> raw value
}

func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string][]byte),
	}
}

func (s *RecordStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.records[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (s *RecordStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	s.records[key] = stored
	return nil
}

// Keys lists the keys written so far, in no particular order.
func (s *RecordStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	return keys
}
