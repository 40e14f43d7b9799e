package localnet

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/near-tools/txreplay-go/pkg/keys"
)

// Identity file names within the node home directory
const (
	NodeKeyFile      = "node_key.json"
	ValidatorKeyFile = "validator_key.json"
	GenesisFile      = "genesis.json"
)

// NodeDir returns the home directory of the provisioned node
func NodeDir(outputDir string) string {
	return filepath.Join(outputDir, "node0")
}

// PatchGenesis rewrites a captured genesis so that every validator and every
// AccessKey record carries the new keypair's public key (raw base58, no curve
// prefix — the form genesis records use), then writes the result into the
// node home directory. All other genesis content passes through untouched.
func PatchGenesis(genesisPath string, kp *keys.KeyPair, outputDir string, logger *zap.Logger) error {
	data, err := os.ReadFile(genesisPath)
	if err != nil {
		return errors.Wrapf(err, "failed to read genesis %s", genesisPath)
	}

	var genesis map[string]interface{}
	if err := json.Unmarshal(data, &genesis); err != nil {
		return errors.Wrapf(err, "failed to parse genesis %s", genesisPath)
	}

	newKey := kp.RawPublicKeyString()
	validatorCount, recordCount := 0, 0

	if validators, ok := genesis["validators"].([]interface{}); ok {
		for _, v := range validators {
			if validator, ok := v.(map[string]interface{}); ok {
				validator["public_key"] = newKey
				validatorCount++
			}
		}
	}
	if records, ok := genesis["records"].([]interface{}); ok {
		for _, r := range records {
			record, ok := r.(map[string]interface{})
			if !ok {
				continue
			}
			if accessKey, ok := record["AccessKey"].(map[string]interface{}); ok {
				accessKey["public_key"] = newKey
				recordCount++
			}
		}
	}

	nodeDir := NodeDir(outputDir)
	if err := os.MkdirAll(nodeDir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create node directory %s", nodeDir)
	}

	patched, err := json.MarshalIndent(genesis, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal patched genesis")
	}
	outPath := filepath.Join(nodeDir, GenesisFile)
	if err := os.WriteFile(outPath, patched, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write patched genesis %s", outPath)
	}

	logger.Sugar().Infow("Patched genesis",
		"path", outPath,
		"validators", validatorCount,
		"access_key_records", recordCount,
		"public_key", newKey,
	)
	return nil
}

// WriteNodeKeys writes the node and validator identity files for the new
// keypair into the node home directory.
func WriteNodeKeys(kp *keys.KeyPair, outputDir string, logger *zap.Logger) error {
	nodeDir := NodeDir(outputDir)
	if err := os.MkdirAll(nodeDir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create node directory %s", nodeDir)
	}

	kf := kp.KeyFile()
	for _, name := range []string{NodeKeyFile, ValidatorKeyFile} {
		path := filepath.Join(nodeDir, name)
		if err := keys.WriteKeyFile(path, kf); err != nil {
			return errors.Wrapf(err, "failed to write %s", name)
		}
	}

	logger.Sugar().Infow("Wrote node identity files",
		"dir", nodeDir,
		"account_id", kf.AccountID,
		"public_key", kf.PublicKey,
	)
	return nil
}

// LoadNodeKeys reloads the identity written by a previous provisioning run
func LoadNodeKeys(outputDir string) (*keys.KeyPair, error) {
	path := filepath.Join(NodeDir(outputDir), ValidatorKeyFile)
	kp, err := keys.ReadKeyFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load node identity")
	}
	return kp, nil
}
