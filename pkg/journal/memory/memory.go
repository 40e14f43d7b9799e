package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/near-tools/txreplay-go/pkg/journal"
)

// MemoryJournal is an in-memory implementation of IJournal. All records are
// lost when the process exits; it backs tests and --no-journal runs.
// Thread-safe using sync.RWMutex. Copies records to prevent external mutation.
type MemoryJournal struct {
	mu sync.RWMutex

	// runID -> index -> Record
	runs map[string]map[int]*journal.Record

	closed bool
}

// NewMemoryJournal creates a new in-memory journal
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		runs: make(map[string]map[int]*journal.Record),
	}
}

// Append persists a new record
func (m *MemoryJournal) Append(record *journal.Record) error {
	if record == nil {
		return fmt.Errorf("cannot append nil Record")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("journal is closed")
	}

	run, exists := m.runs[record.RunID]
	if !exists {
		run = make(map[int]*journal.Record)
		m.runs[record.RunID] = run
	}
	if _, exists := run[record.Index]; exists {
		return fmt.Errorf("record %d already exists for run %s", record.Index, record.RunID)
	}

	copied := *record
	run[record.Index] = &copied
	return nil
}

// MarkOutcome updates the status and RPC response of an existing record
func (m *MemoryJournal) MarkOutcome(runID string, index int, status journal.Status, rpcResponse string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("journal is closed")
	}

	run, exists := m.runs[runID]
	if !exists {
		return fmt.Errorf("unknown run %s", runID)
	}
	record, exists := run[index]
	if !exists {
		return fmt.Errorf("no record %d for run %s", index, runID)
	}

	record.Status = status
	record.RPCResponse = rpcResponse
	return nil
}

// ListRun returns all records of a run sorted by index
func (m *MemoryJournal) ListRun(runID string) ([]*journal.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("journal is closed")
	}

	run := m.runs[runID]
	records := make([]*journal.Record, 0, len(run))
	for _, record := range run {
		copied := *record
		records = append(records, &copied)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Index < records[j].Index })
	return records, nil
}

// Close marks the journal closed. Idempotent.
func (m *MemoryJournal) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// HealthCheck verifies the journal is operational
func (m *MemoryJournal) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("journal is closed")
	}
	return nil
}
