package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// ED25519Prefix tags the curve in NEAR's human-readable key encodings
const ED25519Prefix = "ed25519:"

// KeyPair is an ed25519 signing identity with an implicit account ID. The
// account ID is derived from the public key, so no on-chain registration is
// needed before the key can sign. The secret key never leaves the process
// except through an explicit key-file write.
type KeyPair struct {
	PublicKey [32]byte

	secretKey ed25519.PrivateKey
}

// GenerateKeyPair creates a fresh ed25519 keypair from crypto/rand
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
	}

	kp := &KeyPair{secretKey: priv}
	copy(kp.PublicKey[:], pub)
	return kp, nil
}

// FromSecretKey reconstructs a keypair from its "ed25519:<base58>" secret key
// encoding (the 64-byte expanded form written to key files).
func FromSecretKey(encoded string) (*KeyPair, error) {
	raw, err := decodeCurvePayload(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid secret key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid secret key: want %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}

	priv := ed25519.PrivateKey(raw)
	kp := &KeyPair{secretKey: priv}
	copy(kp.PublicKey[:], priv.Public().(ed25519.PublicKey))
	return kp, nil
}

// AccountID returns the implicit account identifier: the lowercase hex of the
// raw public key.
func (kp *KeyPair) AccountID() string {
	return hex.EncodeToString(kp.PublicKey[:])
}

// PublicKeyString returns the curve-prefixed public key encoding used in
// transaction views and key files.
func (kp *KeyPair) PublicKeyString() string {
	return ED25519Prefix + base58.Encode(kp.PublicKey[:])
}

// RawPublicKeyString returns the base58 public key without the curve prefix,
// the form genesis validator and access-key records carry.
func (kp *KeyPair) RawPublicKeyString() string {
	return base58.Encode(kp.PublicKey[:])
}

// SecretKeyString returns the curve-prefixed secret key encoding
func (kp *KeyPair) SecretKeyString() string {
	return ED25519Prefix + base58.Encode(kp.secretKey)
}

// Sign produces the deterministic ed25519 signature over a 32-byte digest
func (kp *KeyPair) Sign(digest []byte) ([64]byte, error) {
	var sig [64]byte
	if len(digest) != sha256.Size {
		return sig, fmt.Errorf("digest must be %d bytes, got %d", sha256.Size, len(digest))
	}
	if len(kp.secretKey) != ed25519.PrivateKeySize {
		return sig, fmt.Errorf("secret key is malformed")
	}
	copy(sig[:], ed25519.Sign(kp.secretKey, digest))
	return sig, nil
}

// Verify reports whether sig is a valid signature by this keypair over digest
func (kp *KeyPair) Verify(digest []byte, sig [64]byte) bool {
	return ed25519.Verify(kp.PublicKey[:], digest, sig[:])
}

// ParsePublicKey decodes a public key from either the "ed25519:<base58>" or
// the raw base58 form.
func ParsePublicKey(encoded string) ([32]byte, error) {
	var pk [32]byte
	raw, err := decodeCurvePayload(encoded)
	if err != nil {
		return pk, fmt.Errorf("invalid public key %q: %w", encoded, err)
	}
	if len(raw) != len(pk) {
		return pk, fmt.Errorf("invalid public key %q: want %d bytes, got %d", encoded, len(pk), len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

func decodeCurvePayload(encoded string) ([]byte, error) {
	payload := encoded
	if idx := strings.IndexByte(encoded, ':'); idx >= 0 {
		curve := encoded[:idx+1]
		if curve != ED25519Prefix {
			return nil, fmt.Errorf("unsupported curve prefix %q", curve)
		}
		payload = encoded[idx+1:]
	}
	return base58.Decode(payload)
}
