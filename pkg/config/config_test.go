package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *ReplayConfig {
	return &ReplayConfig{
		TxHistoryPath: "txs.json",
		GenesisPath:   "genesis.json",
		OutputDir:     "/tmp/replay-home",
	}
}

func TestReplayConfigValidate(t *testing.T) {
	t.Run("Fills defaults", func(t *testing.T) {
		cfg := validConfig()
		require.NoError(t, cfg.Validate())
		assert.Equal(t, DefaultNodeAddr, cfg.NodeAddr)
		assert.Equal(t, filepath.Join("/tmp/replay-home", "replay-journal"), cfg.JournalDir)
	})

	t.Run("Requires the transaction history path", func(t *testing.T) {
		cfg := validConfig()
		cfg.TxHistoryPath = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("Requires the genesis path unless setup is skipped", func(t *testing.T) {
		cfg := validConfig()
		cfg.GenesisPath = ""
		require.Error(t, cfg.Validate())

		cfg.SkipSetup = true
		require.NoError(t, cfg.Validate())
	})

	t.Run("Requires the output directory", func(t *testing.T) {
		cfg := validConfig()
		cfg.OutputDir = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("Rejects a negative rate", func(t *testing.T) {
		cfg := validConfig()
		cfg.TPS = -1
		require.Error(t, cfg.Validate())
	})

	t.Run("Keeps an explicit journal directory", func(t *testing.T) {
		cfg := validConfig()
		cfg.JournalDir = "/var/lib/replay"
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "/var/lib/replay", cfg.JournalDir)
	})
}
