package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/okian/teambalance/pkg/metrics"
)

// MemoryStore keeps guild records in a map. Records are copied on the way in
// and out, so callers never share slices with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[string]GuildRecord
	settings settings
	closed   bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		records:  make(map[string]GuildRecord),
		settings: newSettings(opts),
	}
}

func (s *MemoryStore) Load(ctx context.Context, id string) (GuildRecord, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryLoadLatency(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if err := ValidateID(id); err != nil {
		return GuildRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return GuildRecord{}, ErrClosed
	}
	rec, ok := s.records[id]
	if !ok {
		return GuildRecord{}, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, rec GuildRecord) error {
	start := time.Now()
	defer func() {
		metrics.RecordRepositorySaveLatency(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if err := ValidateID(rec.ID); err != nil {
		return err
	}
	rec = rec.Clone()
	rec.UpdatedAt = s.settings.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.records[rec.ID] = rec
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
