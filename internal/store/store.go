package store

import (
	"sync"

	v1 "github.com/Warrelis/huba/internal/api/v1"
)

// Store is the in-memory leaf message log, partitioned by table.
// Append-only: no deletion or update paths exist.
//
// Concurrency contract: a batch becomes visible atomically, and a Snapshot
// taken by a reader never observes messages appended after it was taken.
// Appends copy nothing; snapshots copy only slice headers. Message slices
// grow under the write lock, and a previously captured header keeps
// referencing its original backing array, so readers stay consistent even
// when a concurrent append reallocates.
type Store struct {
	mu     sync.RWMutex
	tables map[string][]v1.LogMessage
}

func New() *Store {
	return &Store{tables: make(map[string][]v1.LogMessage)}
}

// IngestBatch validates and appends all messages of the batch, preserving
// arrival order. Malformed messages are rejected individually without
// aborting the rest of the batch; the response reports both counts.
func (s *Store) IngestBatch(batch *v1.LogBatch) *v1.IngestResponse {
	resp := &v1.IngestResponse{BatchID: batch.ID}

	accepted := make([]v1.LogMessage, 0, len(batch.Messages))
	for i, msg := range batch.Messages {
		if err := msg.Validate(); err != nil {
			resp.Rejected++
			resp.Errors = append(resp.Errors, v1.IngestError{Index: i, Error: err.Error()})
			continue
		}
		accepted = append(accepted, msg)
	}
	resp.Accepted = len(accepted)

	if len(accepted) == 0 {
		return resp
	}

	s.mu.Lock()
	for _, msg := range accepted {
		s.tables[msg.Table] = append(s.tables[msg.Table], msg)
	}
	s.mu.Unlock()

	return resp
}

// Snapshot captures a consistent read-only view of one table.
// Returns false when the table has never received a message.
func (s *Store) Snapshot(table string) (Snapshot, bool) {
	s.mu.RLock()
	msgs, ok := s.tables[table]
	s.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{messages: msgs}, true
}

// Tables lists the tables that have received at least one message.
func (s *Store) Tables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	return names
}

// MessageCount reports the stored message total across tables.
func (s *Store) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, msgs := range s.tables {
		total += len(msgs)
	}
	return total
}

// Snapshot is an immutable view of one table's messages in storage order.
type Snapshot struct {
	messages []v1.LogMessage
}

func (s Snapshot) Len() int { return len(s.messages) }

// Messages returns the snapshot contents in storage order. The returned
// slice must not be mutated.
func (s Snapshot) Messages() []v1.LogMessage { return s.messages }
