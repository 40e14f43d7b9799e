package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/near-tools/txreplay-go/pkg/journal"
	"github.com/near-tools/txreplay-go/pkg/keys"
	"github.com/near-tools/txreplay-go/pkg/resigner"
	"github.com/near-tools/txreplay-go/pkg/types"
)

// RPCClient is the submission channel to the target network
type RPCClient interface {
	LatestBlockHash(ctx context.Context) ([32]byte, error)
	ViewAccessKeyNonce(ctx context.Context, accountID, publicKey string) (uint64, error)
	SubmitTransaction(ctx context.Context, signedBytes []byte) (string, error)
}

// Config holds the driver's knobs
type Config struct {
	// TxHistoryPath is the JSON capture to replay
	TxHistoryPath string

	// TPS throttles submissions; 0 means unthrottled. Throttling never
	// reorders: the driver stays strictly sequential.
	TPS float64
}

// Summary reports what a completed (or halted) run did
type Summary struct {
	RunID      string
	StartNonce uint64
	Submitted  int
	Total      int
}

// Driver replays a captured transaction history against the target network,
// strictly in capture order. It owns the nonce cursor for the run; nothing
// else touches it. Submissions are sequential because per-account nonces form
// a network-enforced total order: a gap or repeat is rejected.
type Driver struct {
	cfg      Config
	keyPair  *keys.KeyPair
	client   RPCClient
	resigner *resigner.Resigner
	journal  journal.IJournal
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewDriver creates a replay driver. All collaborators are injected; the
// driver has no process-wide state.
func NewDriver(cfg Config, keyPair *keys.KeyPair, client RPCClient, re *resigner.Resigner, j journal.IJournal, logger *zap.Logger) *Driver {
	var limiter *rate.Limiter
	if cfg.TPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.TPS), 1)
	}

	return &Driver{
		cfg:      cfg,
		keyPair:  keyPair,
		client:   client,
		resigner: re,
		journal:  j,
		limiter:  limiter,
		logger:   logger,
	}
}

// Replay loads the history and resubmits every transaction under the driver's
// identity. The nonce cursor starts at the network-reported nonce and each
// submission uses exactly the previous nonce plus one. The first failure
// halts the run: skipping would desynchronize the nonce sequence from the
// history, and retrying is unsafe because an accepted-but-unacknowledged
// submission burns the nonce. The returned summary names the run ID so the
// operator can inspect the journal and rerun from a consistent point.
func (d *Driver) Replay(ctx context.Context) (*Summary, error) {
	history, err := types.LoadHistory(d.cfg.TxHistoryPath)
	if err != nil {
		return nil, err
	}

	baseBlockHash, err := d.client.LatestBlockHash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch base block hash: %w", err)
	}
	nonce, err := d.client.ViewAccessKeyNonce(ctx, d.keyPair.AccountID(), d.keyPair.PublicKeyString())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch current nonce: %w", err)
	}

	summary := &Summary{
		RunID:      uuid.NewString(),
		StartNonce: nonce,
		Total:      len(history),
	}

	d.logger.Sugar().Infow("Starting replay",
		"run_id", summary.RunID,
		"transactions", len(history),
		"start_nonce", nonce,
		"account_id", d.keyPair.AccountID(),
	)

	for i := range history {
		nonce++

		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return summary, fmt.Errorf("replay canceled at transaction %d: %w", i, err)
			}
		}

		result, err := d.resigner.Resign(&history[i].Transaction, d.keyPair, nonce, baseBlockHash)
		if err != nil {
			return summary, fmt.Errorf("transaction %d: %w", i, err)
		}

		txHash := base58.Encode(result.TxHash[:])
		if err := d.journal.Append(&journal.Record{
			RunID:       summary.RunID,
			Index:       i,
			Nonce:       nonce,
			TxHash:      txHash,
			Status:      journal.StatusPending,
			SubmittedAt: time.Now().UTC(),
		}); err != nil {
			return summary, fmt.Errorf("transaction %d: journal append failed: %w", i, err)
		}

		response, err := d.client.SubmitTransaction(ctx, result.SignedBytes)
		if err != nil {
			if jerr := d.journal.MarkOutcome(summary.RunID, i, journal.StatusFailed, err.Error()); jerr != nil {
				d.logger.Sugar().Warnw("Failed to journal submission failure", "index", i, "error", jerr)
			}
			return summary, fmt.Errorf("transaction %d (nonce %d): %w", i, nonce, err)
		}

		if err := d.journal.MarkOutcome(summary.RunID, i, journal.StatusSubmitted, response); err != nil {
			return summary, fmt.Errorf("transaction %d: journal update failed: %w", i, err)
		}
		summary.Submitted++

		d.logger.Sugar().Debugw("Submitted transaction",
			"index", i,
			"nonce", nonce,
			"tx_hash", txHash,
			"receiver", history[i].Transaction.ReceiverID,
		)
	}

	d.logger.Sugar().Infow("Replay complete",
		"run_id", summary.RunID,
		"submitted", summary.Submitted,
	)
	return summary, nil
}
