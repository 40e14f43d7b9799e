package resigner

import (
	"crypto/sha256"
	"fmt"

	"go.uber.org/zap"

	"github.com/near-tools/txreplay-go/pkg/keys"
	"github.com/near-tools/txreplay-go/pkg/schema"
	"github.com/near-tools/txreplay-go/pkg/serializer"
	"github.com/near-tools/txreplay-go/pkg/types"
)

// SigningError reports a failed digest or signature computation. When raised,
// no partial envelope is returned.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("resigner: signing failed: %v", e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// Result is a resigned transaction: the envelope, its canonical bytes ready
// for submission, and the digest the signature was computed over (which is
// also the transaction hash the network will report).
type Result struct {
	Signed      *types.SignedTransaction
	SignedBytes []byte
	TxHash      [32]byte
}

// Resigner rebinds captured transactions to a new signing identity. Each call
// is a pure transform over its inputs; the Resigner itself holds no state
// beyond its serializer.
type Resigner struct {
	serializer *serializer.BinarySerializer
	logger     *zap.Logger
}

// NewResigner creates a resigner over a validated schema registry
func NewResigner(registry *schema.Registry, logger *zap.Logger) *Resigner {
	return &Resigner{
		serializer: serializer.NewBinarySerializer(registry),
		logger:     logger,
	}
}

// Resign substitutes the signing identity of a captured transaction: the
// signer public key becomes kp's, the nonce becomes nonce, and the reference
// block hash becomes baseBlockHash (the target network only accepts hashes of
// recent blocks on its own chain, so the captured hash cannot be reused).
// Receiver, actions and all remaining fields carry over unchanged. The
// mutated body is serialized, hashed with SHA-256, signed, and wrapped into a
// freshly serialized signed envelope.
func (r *Resigner) Resign(captured *types.Transaction, kp *keys.KeyPair, nonce uint64, baseBlockHash [32]byte) (*Result, error) {
	tx := *captured
	tx.PublicKey = types.PublicKey{KeyType: types.KeyTypeED25519, Data: kp.PublicKey}
	tx.Nonce = nonce
	tx.BlockHash = baseBlockHash

	unsignedBytes, err := r.serializer.Serialize("Transaction", &tx)
	if err != nil {
		return nil, fmt.Errorf("resigner: %w", err)
	}

	digest := sha256.Sum256(unsignedBytes)

	sig, err := kp.Sign(digest[:])
	if err != nil {
		return nil, &SigningError{Err: err}
	}

	signed := &types.SignedTransaction{
		Transaction: tx,
		Signature:   types.Signature{KeyType: types.KeyTypeED25519, Data: sig},
	}

	signedBytes, err := r.serializer.Serialize("SignedTransaction", signed)
	if err != nil {
		return nil, fmt.Errorf("resigner: %w", err)
	}

	r.logger.Sugar().Debugw("Resigned transaction",
		"receiver", tx.ReceiverID,
		"nonce", nonce,
		"actions", len(tx.Actions),
		"size", len(signedBytes),
	)

	return &Result{
		Signed:      signed,
		SignedBytes: signedBytes,
		TxHash:      digest,
	}, nil
}
