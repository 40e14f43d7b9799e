package keys

import (
	"encoding/json"
	"fmt"
	"os"
)

// KeyFile is the on-disk identity record consumed by a node's home directory
// (node_key.json, validator_key.json).
type KeyFile struct {
	AccountID string `json:"account_id"`
	PublicKey string `json:"public_key"`
	SecretKey string `json:"secret_key"`
}

// KeyFile returns the serializable identity record for this keypair
func (kp *KeyPair) KeyFile() KeyFile {
	return KeyFile{
		AccountID: kp.AccountID(),
		PublicKey: kp.PublicKeyString(),
		SecretKey: kp.SecretKeyString(),
	}
}

// WriteKeyFile writes an identity record as indented JSON with owner-only
// permissions.
func WriteKeyFile(path string, kf KeyFile) error {
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal key file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write key file %s: %w", path, err)
	}
	return nil
}

// ReadKeyFile loads an identity record and reconstructs its keypair
func ReadKeyFile(path string) (*KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}

	var kf KeyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("failed to parse key file %s: %w", path, err)
	}

	kp, err := FromSecretKey(kf.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	if kf.PublicKey != "" && kf.PublicKey != kp.PublicKeyString() {
		return nil, fmt.Errorf("key file %s: public key does not match secret key", path)
	}
	return kp, nil
}
