package replay

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/near-tools/txreplay-go/pkg/journal"
	"github.com/near-tools/txreplay-go/pkg/journal/memory"
	"github.com/near-tools/txreplay-go/pkg/keys"
	"github.com/near-tools/txreplay-go/pkg/resigner"
	"github.com/near-tools/txreplay-go/pkg/schema"
	"github.com/near-tools/txreplay-go/pkg/types"
)

// fakeClient implements RPCClient and records every submission
type fakeClient struct {
	blockHash   [32]byte
	nonce       uint64
	submissions [][]byte
	failAtIndex int // -1 = never fail
}

func (f *fakeClient) LatestBlockHash(_ context.Context) ([32]byte, error) {
	return f.blockHash, nil
}

func (f *fakeClient) ViewAccessKeyNonce(_ context.Context, _, _ string) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeClient) SubmitTransaction(_ context.Context, signedBytes []byte) (string, error) {
	if f.failAtIndex >= 0 && len(f.submissions) == f.failAtIndex {
		return "", fmt.Errorf("node rejected the transaction")
	}
	f.submissions = append(f.submissions, signedBytes)
	return fmt.Sprintf("tx-%d", len(f.submissions)), nil
}

func writeHistoryFixture(t *testing.T, nonces []uint64) string {
	t.Helper()
	original, err := keys.GenerateKeyPair()
	require.NoError(t, err)

	var capturedHash [32]byte
	for i := range capturedHash {
		capturedHash[i] = 0xEE
	}

	entries := ""
	for i, nonce := range nonces {
		if i > 0 {
			entries += ",\n"
		}
		entries += fmt.Sprintf(`  {
    "transaction": {
      "signer_id": "alice.near",
      "public_key": %q,
      "nonce": %d,
      "receiver_id": "receiver-%d.near",
      "block_hash": %q,
      "actions": [{"Transfer": {"deposit": "100"}}]
    },
    "signature": "ed25519:old-signature"
  }`, original.PublicKeyString(), nonce, i, base58.Encode(capturedHash[:]))
	}

	path := filepath.Join(t.TempDir(), "txs.json")
	require.NoError(t, os.WriteFile(path, []byte("[\n"+entries+"\n]"), 0o644))
	return path
}

func newTestDriver(t *testing.T, historyPath string, client RPCClient, j journal.IJournal) (*Driver, *keys.KeyPair) {
	t.Helper()
	registry, err := schema.NearSchemas()
	require.NoError(t, err)
	kp, err := keys.GenerateKeyPair()
	require.NoError(t, err)

	driver := NewDriver(Config{TxHistoryPath: historyPath}, kp,
		client, resigner.NewResigner(registry, zap.NewNop()), j, zap.NewNop())
	return driver, kp
}

func TestReplayEndToEnd(t *testing.T) {
	historyPath := writeHistoryFixture(t, []uint64{5, 6, 7})

	var baseBlockHash [32]byte
	for i := range baseBlockHash {
		baseBlockHash[i] = 0x42
	}
	client := &fakeClient{blockHash: baseBlockHash, nonce: 10, failAtIndex: -1}
	j := memory.NewMemoryJournal()

	driver, kp := newTestDriver(t, historyPath, client, j)

	summary, err := driver.Replay(context.Background())
	require.NoError(t, err)
	require.Len(t, client.submissions, 3)
	assert.Equal(t, 3, summary.Submitted)
	assert.Equal(t, uint64(10), summary.StartNonce)

	t.Run("Nonces are contiguous from the network-reported start", func(t *testing.T) {
		records, err := j.ListRun(summary.RunID)
		require.NoError(t, err)
		require.Len(t, records, 3)
		for i, record := range records {
			assert.Equal(t, uint64(11+i), record.Nonce)
			assert.Equal(t, journal.StatusSubmitted, record.Status)
		}
	})

	t.Run("Every submission carries the new key and a valid signature", func(t *testing.T) {
		for _, signedBytes := range client.submissions {
			// envelope layout: unsigned body, then key-type byte, then 64-byte signature
			require.Greater(t, len(signedBytes), 65)
			unsigned := signedBytes[:len(signedBytes)-65]
			assert.Equal(t, byte(types.KeyTypeED25519), signedBytes[len(unsigned)])

			var sig [64]byte
			copy(sig[:], signedBytes[len(unsigned)+1:])

			digest := sha256.Sum256(unsigned)
			assert.True(t, kp.Verify(digest[:], sig), "signature must verify over the submitted bytes' hash")
		}
	})

	t.Run("Submissions use the driver-fetched block hash", func(t *testing.T) {
		for i, signedBytes := range client.submissions {
			receiver := fmt.Sprintf("receiver-%d.near", i)
			// unsigned layout: signer, 33-byte key, 8-byte nonce, receiver,
			// then the 32-byte reference block hash
			offset := 4 + len("alice.near") + 33 + 8 + 4 + len(receiver)
			require.Greater(t, len(signedBytes), offset+32)
			assert.Equal(t, baseBlockHash[:], signedBytes[offset:offset+32])
		}
	})
}

func TestReplayHaltsOnSubmissionFailure(t *testing.T) {
	historyPath := writeHistoryFixture(t, []uint64{5, 6, 7})

	client := &fakeClient{nonce: 20, failAtIndex: 1}
	j := memory.NewMemoryJournal()
	driver, _ := newTestDriver(t, historyPath, client, j)

	summary, err := driver.Replay(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transaction 1")
	assert.Contains(t, err.Error(), "nonce 22")

	// only the first submission went through; nothing was skipped
	assert.Equal(t, 1, summary.Submitted)
	require.Len(t, client.submissions, 1)

	records, jerr := j.ListRun(summary.RunID)
	require.NoError(t, jerr)
	require.Len(t, records, 2)
	assert.Equal(t, journal.StatusSubmitted, records[0].Status)
	assert.Equal(t, journal.StatusFailed, records[1].Status)
	assert.Contains(t, records[1].RPCResponse, "rejected")
}

func TestReplayEmptyHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "txs.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))

	client := &fakeClient{nonce: 1, failAtIndex: -1}
	driver, _ := newTestDriver(t, path, client, memory.NewMemoryJournal())

	summary, err := driver.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Submitted)
	assert.Empty(t, client.submissions)
}

func TestReplayThrottleDoesNotReorder(t *testing.T) {
	historyPath := writeHistoryFixture(t, []uint64{1, 2, 3, 4})

	client := &fakeClient{nonce: 0, failAtIndex: -1}
	j := memory.NewMemoryJournal()

	registry, err := schema.NearSchemas()
	require.NoError(t, err)
	kp, err := keys.GenerateKeyPair()
	require.NoError(t, err)

	driver := NewDriver(Config{TxHistoryPath: historyPath, TPS: 1000}, kp,
		client, resigner.NewResigner(registry, zap.NewNop()), j, zap.NewNop())

	summary, err := driver.Replay(context.Background())
	require.NoError(t, err)

	records, err := j.ListRun(summary.RunID)
	require.NoError(t, err)
	require.Len(t, records, 4)
	for i, record := range records {
		assert.Equal(t, i, record.Index)
		assert.Equal(t, uint64(i+1), record.Nonce)
	}
}
