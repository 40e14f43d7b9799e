package badger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/near-tools/txreplay-go/pkg/journal"
)

func newTestJournal(t *testing.T) *BadgerJournal {
	t.Helper()
	j, err := NewBadgerJournal(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func sampleRecord(runID string, index int) *journal.Record {
	return &journal.Record{
		RunID:       runID,
		Index:       index,
		Nonce:       uint64(index + 1),
		TxHash:      "hash",
		Status:      journal.StatusPending,
		SubmittedAt: time.Now().UTC(),
	}
}

func TestBadgerJournal(t *testing.T) {
	j := newTestJournal(t)

	require.NoError(t, j.HealthCheck())

	t.Run("Append, outcome and list round-trip", func(t *testing.T) {
		require.NoError(t, j.Append(sampleRecord("run-1", 0)))
		require.NoError(t, j.Append(sampleRecord("run-1", 1)))
		require.NoError(t, j.MarkOutcome("run-1", 0, journal.StatusSubmitted, "ok"))

		records, err := j.ListRun("run-1")
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, journal.StatusSubmitted, records[0].Status)
		assert.Equal(t, "ok", records[0].RPCResponse)
		assert.Equal(t, journal.StatusPending, records[1].Status)
	})

	t.Run("Duplicate append is rejected", func(t *testing.T) {
		require.Error(t, j.Append(sampleRecord("run-1", 0)))
	})

	t.Run("MarkOutcome on a missing record fails", func(t *testing.T) {
		require.Error(t, j.MarkOutcome("run-1", 42, journal.StatusFailed, ""))
	})

	t.Run("Runs are isolated by prefix", func(t *testing.T) {
		require.NoError(t, j.Append(sampleRecord("run-2", 0)))

		records, err := j.ListRun("run-2")
		require.NoError(t, err)
		assert.Len(t, records, 1)

		records, err = j.ListRun("run-1")
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("Unknown run lists empty", func(t *testing.T) {
		records, err := j.ListRun("no-such-run")
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestBadgerJournalPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	j, err := NewBadgerJournal(dir, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, j.Append(sampleRecord("run-1", 0)))
	require.NoError(t, j.MarkOutcome("run-1", 0, journal.StatusFailed, "node down"))
	require.NoError(t, j.Close())

	reopened, err := NewBadgerJournal(dir, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	records, err := reopened.ListRun("run-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, journal.StatusFailed, records[0].Status)
	assert.Equal(t, "node down", records[0].RPCResponse)
}

func TestBadgerJournalCloseIsIdempotent(t *testing.T) {
	j, err := NewBadgerJournal(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())
	require.Error(t, j.HealthCheck())
}
