// Package history reduces ERC-20 Transfer events into the session's
// transaction list: it decides which events concern the active account,
// formats them for display and keeps them ordered most-recent-first with
// unique transaction hashes.
package history

import (
	"sync"

	"tokendash/pkg/models"
)

// Store is an ordered, most-recent-first collection of records keyed by ID.
type Store struct {
	mu      sync.RWMutex
	records []models.TransactionRecord
	ids     map[string]struct{}
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{ids: make(map[string]struct{})}
}

// ReplaceAll discards every record and stores records in the given order.
// The input is trusted to be free of duplicates and is not deduplicated.
func (s *Store) ReplaceAll(records []models.TransactionRecord) {
	cp := make([]models.TransactionRecord, len(records))
	copy(cp, records)
	ids := make(map[string]struct{}, len(cp))
	for _, r := range cp {
		ids[r.ID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = cp
	s.ids = ids
}

// Prepend inserts r at the front unless a record with the same ID exists.
// It reports whether the record was inserted.
func (s *Store) Prepend(r models.TransactionRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[r.ID]; ok {
		return false
	}
	s.records = append([]models.TransactionRecord{r}, s.records...)
	s.ids[r.ID] = struct{}{}
	return true
}

// All returns a copy of the records in current order.
func (s *Store) All() []models.TransactionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]models.TransactionRecord, len(s.records))
	copy(cp, s.records)
	return cp
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear drops every record.
func (s *Store) Clear() {
	s.ReplaceAll(nil)
}
