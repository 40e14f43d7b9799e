package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/near-tools/txreplay-go/pkg/clients/rpcClient"
	"github.com/near-tools/txreplay-go/pkg/config"
	"github.com/near-tools/txreplay-go/pkg/journal"
	badgerJournal "github.com/near-tools/txreplay-go/pkg/journal/badger"
	"github.com/near-tools/txreplay-go/pkg/journal/memory"
	"github.com/near-tools/txreplay-go/pkg/keys"
	"github.com/near-tools/txreplay-go/pkg/localnet"
	"github.com/near-tools/txreplay-go/pkg/logger"
	"github.com/near-tools/txreplay-go/pkg/replay"
	"github.com/near-tools/txreplay-go/pkg/resigner"
	"github.com/near-tools/txreplay-go/pkg/schema"
)

func main() {
	app := &cli.App{
		Name:  "txreplay",
		Usage: "Replay a captured transaction history against a fresh localnet",
		Description: `Provisions a localnet home directory with a freshly generated identity and
replays a captured transaction history against the running node.

Each captured transaction is re-bound to the new identity: its signer public
key and nonce are substituted, the body is re-serialized and re-hashed, and a
new signature is produced before submission. Transactions are submitted
strictly in capture order with contiguous nonces.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "tx-json",
				Usage:    "Path of the transaction history JSON",
				EnvVars:  []string{config.EnvReplayTxJSON},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "genesis",
				Usage:   "Path of the captured genesis JSON",
				EnvVars: []string{config.EnvReplayGenesis},
			},
			&cli.StringFlag{
				Name:     "output-dir",
				Usage:    "Path of the new node home directory",
				EnvVars:  []string{config.EnvReplayOutputDir},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "node-addr",
				Usage:   "RPC address of the target node",
				Value:   config.DefaultNodeAddr,
				EnvVars: []string{config.EnvReplayNodeAddr},
			},
			&cli.Float64Flag{
				Name:    "tps",
				Usage:   "Throttle submissions to this rate (0 = unthrottled)",
				Value:   0,
				EnvVars: []string{config.EnvReplayTPS},
			},
			&cli.StringFlag{
				Name:    "journal-dir",
				Usage:   "Directory for the durable replay journal (default: <output-dir>/replay-journal)",
				EnvVars: []string{config.EnvReplayJournalDir},
			},
			&cli.BoolFlag{
				Name:    "no-journal",
				Usage:   "Keep the replay journal in memory only",
				EnvVars: []string{config.EnvReplayNoJournal},
			},
			&cli.BoolFlag{
				Name:    "wait",
				Usage:   "Wait for each transaction to be committed (surfaces rejections synchronously)",
				EnvVars: []string{config.EnvReplayWait},
			},
			&cli.BoolFlag{
				Name:    "skip-setup",
				Usage:   "Skip genesis patching and reuse the identity already in <output-dir>/node0",
				EnvVars: []string{config.EnvReplaySkipSetup},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvReplayVerbose},
			},
		},
		Action: runReplay,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runReplay(c *cli.Context) error {
	cfg := &config.ReplayConfig{
		TxHistoryPath: c.String("tx-json"),
		GenesisPath:   c.String("genesis"),
		OutputDir:     c.String("output-dir"),
		NodeAddr:      c.String("node-addr"),
		TPS:           c.Float64("tps"),
		JournalDir:    c.String("journal-dir"),
		NoJournal:     c.Bool("no-journal"),
		WaitForCommit: c.Bool("wait"),
		SkipSetup:     c.Bool("skip-setup"),
		Verbose:       c.Bool("verbose"),
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Verbose})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	keyPair, err := provisionIdentity(cfg, l)
	if err != nil {
		return err
	}

	if !cfg.SkipSetup {
		promptToLaunchLocalnet()
	}

	registry, err := schema.NearSchemas()
	if err != nil {
		return fmt.Errorf("schema registry: %w", err)
	}

	j, err := openJournal(cfg, l)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()
	if err := j.HealthCheck(); err != nil {
		return fmt.Errorf("journal not operational: %w", err)
	}

	client := rpcClient.NewClient(&rpcClient.ClientConfig{
		NodeAddr:      cfg.NodeAddr,
		WaitForCommit: cfg.WaitForCommit,
	}, l)

	driver := replay.NewDriver(replay.Config{
		TxHistoryPath: cfg.TxHistoryPath,
		TPS:           cfg.TPS,
	}, keyPair, client, resigner.NewResigner(registry, l), j, l)

	summary, err := driver.Replay(context.Background())
	if err != nil {
		if summary != nil {
			l.Sugar().Errorw("Replay halted",
				"run_id", summary.RunID,
				"submitted", summary.Submitted,
				"total", summary.Total,
			)
		}
		return err
	}

	l.Sugar().Infow("Replay finished",
		"run_id", summary.RunID,
		"submitted", summary.Submitted,
		"start_nonce", summary.StartNonce,
	)
	return nil
}

// provisionIdentity generates the replacement identity and provisions the
// node home directory, or reloads the identity from a previous run.
func provisionIdentity(cfg *config.ReplayConfig, l *zap.Logger) (*keys.KeyPair, error) {
	if cfg.SkipSetup {
		keyPair, err := localnet.LoadNodeKeys(cfg.OutputDir)
		if err != nil {
			return nil, err
		}
		l.Sugar().Infow("Reusing existing identity", "account_id", keyPair.AccountID())
		return keyPair, nil
	}

	keyPair, err := keys.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	l.Sugar().Infow("Generated replacement identity",
		"account_id", keyPair.AccountID(),
		"public_key", keyPair.PublicKeyString(),
	)

	if err := localnet.PatchGenesis(cfg.GenesisPath, keyPair, cfg.OutputDir, l); err != nil {
		return nil, err
	}
	if err := localnet.WriteNodeKeys(keyPair, cfg.OutputDir, l); err != nil {
		return nil, err
	}
	return keyPair, nil
}

func openJournal(cfg *config.ReplayConfig, l *zap.Logger) (journal.IJournal, error) {
	if cfg.NoJournal {
		l.Sugar().Warnw("Journal disabled; replay progress will not survive the process")
		return memory.NewMemoryJournal(), nil
	}
	j, err := badgerJournal.NewBadgerJournal(cfg.JournalDir, l)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return j, nil
}

func promptToLaunchLocalnet() {
	fmt.Print("Please launch your localnet node now and press enter to continue...")
	_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
}
