package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
	"github.com/custodia-labs/convoharvest/internal/core/ports/driven"
)

// Ensure the artifact stores implement the interfaces.
var (
	_ driven.DocumentWriter = (*DocumentStore)(nil)
	_ driven.MetricsWriter  = (*MetricsStore)(nil)
)

// DocumentStore keeps conversation documents in memory.
type DocumentStore struct {
	mu    sync.RWMutex
	docs  map[string]domain.Conversation
	order []string
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs: make(map[string]domain.Conversation),
	}
}

// WriteDocument stores a copy of conv under participantID, replacing any
// earlier document for the same participant.
func (s *DocumentStore) WriteDocument(_ context.Context, participantID string, conv domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[participantID]; !ok {
		s.order = append(s.order, participantID)
	}
	s.docs[participantID] = slices.Clone(conv)
	return nil
}

// Get returns the document for a participant.
func (s *DocumentStore) Get(participantID string) (domain.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.docs[participantID]
	return conv, ok
}

// IDs returns participant IDs in first-write order.
func (s *DocumentStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// Count returns the number of stored documents.
func (s *DocumentStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// MetricsStore keeps the last written metrics table in memory.
type MetricsStore struct {
	mu     sync.RWMutex
	table  domain.MetricsTable
	writes int
}

// NewMetricsStore creates a new in-memory metrics store.
func NewMetricsStore() *MetricsStore {
	return &MetricsStore{}
}

// WriteMetrics replaces the stored table.
func (s *MetricsStore) WriteMetrics(_ context.Context, table domain.MetricsTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = slices.Clone(table)
	s.writes++
	return nil
}

// Table returns the last written table, or nil if none was written.
func (s *MetricsStore) Table() domain.MetricsTable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.table)
}

// Writes returns how many times the table was written.
func (s *MetricsStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
