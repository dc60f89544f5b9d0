// Package memory provides an in-process implementation of the anomaly
// store, suitable for tests and single-node deployments.
package memory

import (
	"context"
	"sync"

	"github.com/terra-constellata/a2a-server-go/storage"
)

// Store implements storage.AnomalyStore with a mutex-guarded map plus an
// insertion-order index for recency listing.
type Store struct {
	mu      sync.RWMutex
	records map[string]storage.AnomalyRecord
	order   []string // message ids, oldest first; re-Put moves to newest
}

var _ storage.AnomalyStore = (*Store)(nil)

// New creates an empty in-memory anomaly store.
func New() *Store {
	return &Store{
		records: make(map[string]storage.AnomalyRecord),
	}
}

func (s *Store) Put(ctx context.Context, rec storage.AnomalyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.MessageID]; exists {
		for i, id := range s.order {
			if id == rec.MessageID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}

	s.records[rec.MessageID] = rec
	s.order = append(s.order, rec.MessageID)
	return nil
}

func (s *Store) Get(ctx context.Context, messageID string) (*storage.AnomalyRecord, error) {
	s.mu.RLock()
	rec, ok := s.records[messageID]
	s.mu.RUnlock()

	if !ok {
		return nil, storage.ErrNotFound
	}
	return &rec, nil
}

func (s *Store) List(ctx context.Context, limit int) ([]storage.AnomalyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}

	out := make([]storage.AnomalyRecord, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[s.order[i]])
	}
	return out, nil
}

func (s *Store) Close() error {
	return nil
}
