package config

import (
	"fmt"
	"path/filepath"
)

// Environment variable names for the replay tool
const (
	EnvReplayTxJSON     = "REPLAY_TX_JSON"
	EnvReplayGenesis    = "REPLAY_GENESIS"
	EnvReplayOutputDir  = "REPLAY_OUTPUT_DIR"
	EnvReplayNodeAddr   = "REPLAY_NODE_ADDR"
	EnvReplayTPS        = "REPLAY_TPS"
	EnvReplayJournalDir = "REPLAY_JOURNAL_DIR"
	EnvReplayNoJournal  = "REPLAY_NO_JOURNAL"
	EnvReplayWait       = "REPLAY_WAIT"
	EnvReplaySkipSetup  = "REPLAY_SKIP_SETUP"
	EnvReplayVerbose    = "REPLAY_VERBOSE"
)

// DefaultNodeAddr is the conventional localnet RPC endpoint
const DefaultNodeAddr = "127.0.0.1:3030"

// ReplayConfig is the complete configuration for one replay run. It is built
// once from CLI flags/environment and passed into the components explicitly;
// nothing reads process-wide state after startup.
type ReplayConfig struct {
	// Inputs
	TxHistoryPath string `json:"tx_history_path"`
	GenesisPath   string `json:"genesis_path"`
	OutputDir     string `json:"output_dir"`

	// Target node
	NodeAddr      string `json:"node_addr"`
	WaitForCommit bool   `json:"wait_for_commit"`

	// Submission pacing; 0 means unthrottled
	TPS float64 `json:"tps"`

	// Journal
	JournalDir string `json:"journal_dir"`
	NoJournal  bool   `json:"no_journal"`

	// SkipSetup replays against an already-provisioned localnet, reloading
	// the identity from the previously written validator key file.
	SkipSetup bool `json:"skip_setup"`

	Verbose bool `json:"verbose"`
}

// Validate checks required fields and fills derived defaults
func (c *ReplayConfig) Validate() error {
	if c.TxHistoryPath == "" {
		return fmt.Errorf("transaction history path cannot be empty")
	}
	if c.GenesisPath == "" && !c.SkipSetup {
		return fmt.Errorf("genesis path cannot be empty")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if c.NodeAddr == "" {
		c.NodeAddr = DefaultNodeAddr
	}
	if c.TPS < 0 {
		return fmt.Errorf("tps must be >= 0, got %f", c.TPS)
	}
	if c.JournalDir == "" {
		c.JournalDir = filepath.Join(c.OutputDir, "replay-journal")
	}
	return nil
}
