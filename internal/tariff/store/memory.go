package store

import (
	"context"
	"sync"

	"vialidad/internal/tariff"
)

// InMemory is a fixture-friendly tariff store.
type InMemory struct {
	mu      sync.RWMutex
	entries []tariff.Entry
}

func NewInMemory(entries []tariff.Entry) *InMemory {
	return &InMemory{entries: entries}
}

func (s *InMemory) FindAll(_ context.Context) ([]tariff.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]tariff.Entry{}, s.entries...), nil
}
