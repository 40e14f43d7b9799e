package badger

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/near-tools/txreplay-go/pkg/journal"
)

// Key layout within Badger
const (
	keyPrefixRecord      = "record:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerJournal is a durable, disk-based journal. SyncWrites is enabled so a
// record survives even if the process dies right after the RPC call: the
// journal is the operator's source of truth for where a halted run stopped.
type BadgerJournal struct {
	db     *badgerdb.DB
	logger *zap.Logger
	mu     sync.Mutex
	closed bool
}

// NewBadgerJournal opens (or creates) a journal database at dataPath
func NewBadgerJournal(dataPath string, logger *zap.Logger) (*BadgerJournal, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger journal at %s: %w", absPath, err)
	}

	bj := &BadgerJournal{db: db, logger: logger}
	if err := bj.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	logger.Sugar().Infow("Badger journal initialized", "path", absPath)
	return bj, nil
}

func (b *BadgerJournal) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existing string
		err = item.Value(func(val []byte) error {
			existing = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}
		if existing != currentSchemaVersion {
			return fmt.Errorf("unsupported journal schema version: %s (expected: %s)", existing, currentSchemaVersion)
		}
		return nil
	})
}

func recordKey(runID string, index int) []byte {
	// zero-padded index keeps lexical key order equal to submission order
	return []byte(fmt.Sprintf("%s%s:%09d", keyPrefixRecord, runID, index))
}

// Append persists a new record
func (b *BadgerJournal) Append(record *journal.Record) error {
	if record == nil {
		return fmt.Errorf("cannot append nil Record")
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	data, err := journal.MarshalRecord(record)
	if err != nil {
		return err
	}

	key := recordKey(record.RunID, record.Index)
	return b.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("record %d already exists for run %s", record.Index, record.RunID)
		} else if err != badgerdb.ErrKeyNotFound {
			return fmt.Errorf("failed to check record existence: %w", err)
		}
		return txn.Set(key, data)
	})
}

// MarkOutcome updates the status and RPC response of an existing record
func (b *BadgerJournal) MarkOutcome(runID string, index int, status journal.Status, rpcResponse string) error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	key := recordKey(runID, index)
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key)
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("no record %d for run %s", index, runID)
		}
		if err != nil {
			return fmt.Errorf("failed to load record: %w", err)
		}

		var record *journal.Record
		err = item.Value(func(val []byte) error {
			record, err = journal.UnmarshalRecord(val)
			return err
		})
		if err != nil {
			return err
		}

		record.Status = status
		record.RPCResponse = rpcResponse
		data, err := journal.MarshalRecord(record)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

// ListRun returns all records of a run sorted by index
func (b *BadgerJournal) ListRun(runID string) ([]*journal.Record, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	prefix := []byte(keyPrefixRecord + runID + ":")
	var records []*journal.Record
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if !strings.HasPrefix(string(it.Item().Key()), string(prefix)) {
				continue
			}
			err := it.Item().Value(func(val []byte) error {
				record, err := journal.UnmarshalRecord(val)
				if err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list run %s: %w", runID, err)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Index < records[j].Index })
	if records == nil {
		records = make([]*journal.Record, 0)
	}
	return records, nil
}

// Close cleanly shuts down the journal. Idempotent.
func (b *BadgerJournal) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

// HealthCheck verifies the database is usable
func (b *BadgerJournal) HealthCheck() error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err != nil && err != badgerdb.ErrKeyNotFound {
			return fmt.Errorf("journal health check failed: %w", err)
		}
		return nil
	})
}

func (b *BadgerJournal) checkOpen() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("journal is closed")
	}
	return nil
}
