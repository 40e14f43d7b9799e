package journal

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status of one journaled submission
type Status string

const (
	// StatusPending is set when the envelope is built but not yet submitted
	StatusPending Status = "pending"
	// StatusSubmitted means the node accepted the submission call
	StatusSubmitted Status = "submitted"
	// StatusFailed means submission failed; the run halted at this record
	StatusFailed Status = "failed"
)

// Record is one replayed transaction's journal entry. Together the records of
// a run tell the operator exactly where a halted replay stopped and which
// nonce to resume from.
type Record struct {
	RunID       string    `json:"run_id"`
	Index       int       `json:"index"`
	Nonce       uint64    `json:"nonce"`
	TxHash      string    `json:"tx_hash"`
	Status      Status    `json:"status"`
	RPCResponse string    `json:"rpc_response,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// IJournal records replay progress. Implementations must tolerate the
// strictly sequential single-writer access pattern of the Replay Driver;
// thread safety beyond that is not required but the provided backends are
// safe anyway.
type IJournal interface {
	// Append persists a new record. Index must not already exist for the run.
	Append(record *Record) error

	// MarkOutcome updates the status and RPC response of an existing record.
	// Returns an error if the record does not exist.
	MarkOutcome(runID string, index int, status Status, rpcResponse string) error

	// ListRun returns all records of a run sorted by index (ascending).
	// Returns an empty slice for an unknown run.
	ListRun(runID string) ([]*Record, error)

	// Close cleanly shuts down the journal. Idempotent.
	Close() error

	// HealthCheck verifies the journal is operational
	HealthCheck() error
}

// MarshalRecord serializes a record to JSON bytes
func MarshalRecord(r *Record) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("cannot marshal nil Record")
	}
	return json.Marshal(r)
}

// UnmarshalRecord deserializes a record from JSON bytes
func UnmarshalRecord(data []byte) (*Record, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal Record: %w", err)
	}
	return &r, nil
}
