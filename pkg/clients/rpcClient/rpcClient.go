package rpcClient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SubmissionError reports a transaction submission the target network did not
// accept: a transport failure, an RPC-level error, or an execution failure
// when waiting for commit. Submission is nonce-sequenced, so the caller must
// not blindly retry.
type SubmissionError struct {
	Method string
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("rpc: %s failed: %v", e.Method, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// ClientConfig holds the configuration for the node RPC client
type ClientConfig struct {
	// NodeAddr is the host:port (or full URL) of the target node's RPC endpoint
	NodeAddr string

	// WaitForCommit submits with broadcast_tx_commit so rejections surface
	// synchronously; the default broadcast_tx_async returns after routing.
	WaitForCommit bool

	Timeout time.Duration
}

// Client speaks JSON-RPC 2.0 to a single node. All calls block; the HTTP
// timeout is the only cancellation beyond the caller's context.
type Client struct {
	baseURL       string
	waitForCommit bool
	httpClient    *http.Client
	logger        *zap.Logger
}

// NewClient creates an RPC client for the given node address
func NewClient(cfg *ClientConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	baseURL := cfg.NodeAddr
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	return &Client{
		baseURL:       baseURL,
		waitForCommit: cfg.WaitForCommit,
		httpClient:    &http.Client{Timeout: timeout},
		logger:        logger,
	}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("%s (code %d): %s", e.Message, e.Code, string(e.Data))
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      "txreplay",
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s request", method)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "failed to build %s request", method)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s request to %s failed", method, c.baseURL)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s response", method)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("%s returned HTTP %d: %s", method, resp.StatusCode, truncate(data))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return errors.Wrapf(err, "failed to parse %s response", method)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return errors.Wrapf(err, "failed to parse %s result", method)
		}
	}
	return nil
}

// LatestBlockHash fetches the hash of the latest final block. The driver uses
// it once per run as the reference block hash for every resigned transaction.
func (c *Client) LatestBlockHash(ctx context.Context) ([32]byte, error) {
	var hash [32]byte
	var result struct {
		Header struct {
			Hash string `json:"hash"`
		} `json:"header"`
	}
	if err := c.call(ctx, "block", map[string]interface{}{"finality": "final"}, &result); err != nil {
		return hash, err
	}

	raw, err := base58.Decode(result.Header.Hash)
	if err != nil {
		return hash, errors.Wrapf(err, "invalid block hash %q", result.Header.Hash)
	}
	if len(raw) != len(hash) {
		return hash, errors.Errorf("invalid block hash %q: want %d bytes, got %d", result.Header.Hash, len(hash), len(raw))
	}
	copy(hash[:], raw)

	c.logger.Sugar().Debugw("Fetched latest block hash", "hash", result.Header.Hash)
	return hash, nil
}

// ViewAccessKeyNonce returns the current nonce of an access key. The first
// replayed transaction uses this value plus one.
func (c *Client) ViewAccessKeyNonce(ctx context.Context, accountID, publicKey string) (uint64, error) {
	var result struct {
		Nonce uint64 `json:"nonce"`
		Error string `json:"error"`
	}
	params := map[string]interface{}{
		"request_type": "view_access_key",
		"finality":     "optimistic",
		"account_id":   accountID,
		"public_key":   publicKey,
	}
	if err := c.call(ctx, "query", params, &result); err != nil {
		return 0, err
	}
	// query errors (unknown account, unknown key) come back inside the result
	if result.Error != "" {
		return 0, errors.Errorf("view_access_key %s for %s: %s", publicKey, accountID, result.Error)
	}

	c.logger.Sugar().Debugw("Fetched access key nonce", "account_id", accountID, "nonce", result.Nonce)
	return result.Nonce, nil
}

// SubmitTransaction submits a serialized signed envelope. It returns the
// transaction hash the node reports. Any failure is a SubmissionError; the
// client never retries because a retried-but-accepted submission would burn
// the nonce.
func (c *Client) SubmitTransaction(ctx context.Context, signedBytes []byte) (string, error) {
	encoded := base64.StdEncoding.EncodeToString(signedBytes)

	if !c.waitForCommit {
		var txHash string
		if err := c.call(ctx, "broadcast_tx_async", []string{encoded}, &txHash); err != nil {
			return "", &SubmissionError{Method: "broadcast_tx_async", Err: err}
		}
		return txHash, nil
	}

	var result struct {
		Status      map[string]json.RawMessage `json:"status"`
		Transaction struct {
			Hash string `json:"hash"`
		} `json:"transaction"`
	}
	if err := c.call(ctx, "broadcast_tx_commit", []string{encoded}, &result); err != nil {
		return "", &SubmissionError{Method: "broadcast_tx_commit", Err: err}
	}
	if failure, ok := result.Status["Failure"]; ok {
		return "", &SubmissionError{
			Method: "broadcast_tx_commit",
			Err:    errors.Errorf("transaction execution failed: %s", string(failure)),
		}
	}
	return result.Transaction.Hash, nil
}

func truncate(data []byte) string {
	const max = 512
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
