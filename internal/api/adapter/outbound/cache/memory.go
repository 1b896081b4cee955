package cache

import (
	"context"
	"sync"

	"github.com/anthanhphan/go-model-share/internal/api/domain"
	"github.com/anthanhphan/go-model-share/internal/api/port"
)

// MemoryStore is an in-process CacheStore. Contents are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]sequencedRecord
	nextSeq uint64
}

var _ port.CacheStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]sequencedRecord)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.ModelRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.records[id]
	if !ok {
		return nil, port.ErrRecordNotFound
	}
	rec := item.record
	return &rec, nil
}

func (s *MemoryStore) Put(ctx context.Context, record domain.ModelRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.records[record.ID]
	if !ok {
		s.nextSeq++
		item.seq = s.nextSeq
	}
	item.record = record
	s.records[record.ID] = item
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]domain.ModelRecord, error) {
	s.mu.RLock()
	items := make([]sequencedRecord, 0, len(s.records))
	for _, item := range s.records {
		items = append(items, item)
	}
	s.mu.RUnlock()

	return orderRecords(items), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
