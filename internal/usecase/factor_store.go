package usecase

import (
	"sort"
	"sync"

	"FeedRelay/internal/domain/models"
	drepo "FeedRelay/internal/domain/repository"
)

// MemoryFactorStore keeps the latest factor snapshot per exchange and symbol.
// It is written by the feed loop and read by HTTP handlers. Put stores a
// copy, callers may keep mutating the snapshot they passed in.
type MemoryFactorStore struct {
	mu   sync.RWMutex
	last map[string]*models.FactorSnapshot
}

// NewMemoryFactorStore creates an empty store.
func NewMemoryFactorStore() drepo.FactorStore {
	return &MemoryFactorStore{last: make(map[string]*models.FactorSnapshot)}
}

func factorKey(exchange, symbol string) string { return exchange + ":" + symbol }

func (s *MemoryFactorStore) Put(f *models.FactorSnapshot) {
	if f == nil {
		return
	}
	cp := *f
	s.mu.Lock()
	s.last[factorKey(f.Exchange, f.Symbol)] = &cp
	s.mu.Unlock()
}

func (s *MemoryFactorStore) Get(exchange, symbol string) (*models.FactorSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.last[factorKey(exchange, symbol)]
	return f, ok
}

// List returns snapshots sorted by exchange then symbol.
func (s *MemoryFactorStore) List() []*models.FactorSnapshot {
	s.mu.RLock()
	out := make([]*models.FactorSnapshot, 0, len(s.last))
	for _, f := range s.last {
		out = append(out, f)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Exchange != out[j].Exchange {
			return out[i].Exchange < out[j].Exchange
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}
