package types

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/mr-tron/base58"

	"github.com/near-tools/txreplay-go/pkg/keys"
)

// CapturedTransaction is one element of a transaction history capture. The
// original signature is kept only for display; replay discards it and signs
// the mutated body afresh.
type CapturedTransaction struct {
	Transaction Transaction
	Signature   string
}

type capturedView struct {
	Transaction transactionView `json:"transaction"`
	Signature   string          `json:"signature"`
}

// transactionView mirrors the RPC JSON form of a transaction. Binary fields
// are base64, amounts are decimal strings, keys and hashes base58.
type transactionView struct {
	SignerID   string            `json:"signer_id"`
	PublicKey  string            `json:"public_key"`
	Nonce      uint64            `json:"nonce"`
	ReceiverID string            `json:"receiver_id"`
	BlockHash  string            `json:"block_hash"`
	Actions    []json.RawMessage `json:"actions"`
}

// LoadHistory reads a JSON capture file: an ordered array of signed
// transactions. The returned slice preserves the capture order, which is the
// required resubmission order.
func LoadHistory(path string) ([]CapturedTransaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transaction history %s: %w", path, err)
	}

	var views []capturedView
	if err := json.Unmarshal(data, &views); err != nil {
		return nil, fmt.Errorf("failed to parse transaction history %s: %w", path, err)
	}

	history := make([]CapturedTransaction, 0, len(views))
	for i, view := range views {
		tx, err := view.Transaction.toTransaction()
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		history = append(history, CapturedTransaction{
			Transaction: tx,
			Signature:   view.Signature,
		})
	}
	return history, nil
}

func (v transactionView) toTransaction() (Transaction, error) {
	var tx Transaction

	pk, err := keys.ParsePublicKey(v.PublicKey)
	if err != nil {
		return tx, err
	}

	blockHash, err := decodeHash(v.BlockHash)
	if err != nil {
		return tx, fmt.Errorf("invalid block_hash: %w", err)
	}

	actions := make([]Action, 0, len(v.Actions))
	for i, raw := range v.Actions {
		action, err := decodeAction(raw)
		if err != nil {
			return tx, fmt.Errorf("action %d: %w", i, err)
		}
		actions = append(actions, action)
	}

	tx = Transaction{
		SignerID:   v.SignerID,
		PublicKey:  PublicKey{KeyType: KeyTypeED25519, Data: pk},
		Nonce:      v.Nonce,
		ReceiverID: v.ReceiverID,
		BlockHash:  blockHash,
		Actions:    actions,
	}
	return tx, nil
}

// decodeAction parses one action view: either a bare variant name
// ("CreateAccount") or a single-key object ({"Transfer": {...}}).
func decodeAction(raw json.RawMessage) (Action, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return actionFromName(name, nil)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("action is neither a name nor an object: %w", err)
	}
	if len(obj) != 1 {
		return nil, fmt.Errorf("action object must have exactly one key, got %d", len(obj))
	}
	for name, payload := range obj {
		return actionFromName(name, payload)
	}
	return nil, fmt.Errorf("empty action object")
}

func actionFromName(name string, payload json.RawMessage) (Action, error) {
	switch name {
	case "CreateAccount":
		return CreateAccount{}, nil

	case "DeployContract":
		var view struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal(payload, &view); err != nil {
			return nil, fmt.Errorf("invalid DeployContract: %w", err)
		}
		code, err := base64.StdEncoding.DecodeString(view.Code)
		if err != nil {
			return nil, fmt.Errorf("invalid DeployContract code: %w", err)
		}
		return DeployContract{Code: code}, nil

	case "FunctionCall":
		var view struct {
			MethodName string `json:"method_name"`
			Args       string `json:"args"`
			Gas        uint64 `json:"gas"`
			Deposit    string `json:"deposit"`
		}
		if err := json.Unmarshal(payload, &view); err != nil {
			return nil, fmt.Errorf("invalid FunctionCall: %w", err)
		}
		args, err := base64.StdEncoding.DecodeString(view.Args)
		if err != nil {
			return nil, fmt.Errorf("invalid FunctionCall args: %w", err)
		}
		deposit, err := decodeBalance(view.Deposit)
		if err != nil {
			return nil, fmt.Errorf("invalid FunctionCall deposit: %w", err)
		}
		return FunctionCall{MethodName: view.MethodName, Args: args, Gas: view.Gas, Deposit: deposit}, nil

	case "Transfer":
		var view struct {
			Deposit string `json:"deposit"`
		}
		if err := json.Unmarshal(payload, &view); err != nil {
			return nil, fmt.Errorf("invalid Transfer: %w", err)
		}
		deposit, err := decodeBalance(view.Deposit)
		if err != nil {
			return nil, fmt.Errorf("invalid Transfer deposit: %w", err)
		}
		return Transfer{Deposit: deposit}, nil

	case "Stake":
		var view struct {
			Stake     string `json:"stake"`
			PublicKey string `json:"public_key"`
		}
		if err := json.Unmarshal(payload, &view); err != nil {
			return nil, fmt.Errorf("invalid Stake: %w", err)
		}
		stake, err := decodeBalance(view.Stake)
		if err != nil {
			return nil, fmt.Errorf("invalid Stake amount: %w", err)
		}
		pk, err := keys.ParsePublicKey(view.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("invalid Stake key: %w", err)
		}
		return Stake{Stake: stake, PublicKey: PublicKey{KeyType: KeyTypeED25519, Data: pk}}, nil

	case "AddKey":
		var view struct {
			PublicKey string          `json:"public_key"`
			AccessKey json.RawMessage `json:"access_key"`
		}
		if err := json.Unmarshal(payload, &view); err != nil {
			return nil, fmt.Errorf("invalid AddKey: %w", err)
		}
		pk, err := keys.ParsePublicKey(view.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("invalid AddKey key: %w", err)
		}
		accessKey, err := decodeAccessKey(view.AccessKey)
		if err != nil {
			return nil, fmt.Errorf("invalid AddKey access_key: %w", err)
		}
		return AddKey{PublicKey: PublicKey{KeyType: KeyTypeED25519, Data: pk}, AccessKey: accessKey}, nil

	case "DeleteKey":
		var view struct {
			PublicKey string `json:"public_key"`
		}
		if err := json.Unmarshal(payload, &view); err != nil {
			return nil, fmt.Errorf("invalid DeleteKey: %w", err)
		}
		pk, err := keys.ParsePublicKey(view.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("invalid DeleteKey key: %w", err)
		}
		return DeleteKey{PublicKey: PublicKey{KeyType: KeyTypeED25519, Data: pk}}, nil

	case "DeleteAccount":
		var view struct {
			BeneficiaryID string `json:"beneficiary_id"`
		}
		if err := json.Unmarshal(payload, &view); err != nil {
			return nil, fmt.Errorf("invalid DeleteAccount: %w", err)
		}
		return DeleteAccount{BeneficiaryID: view.BeneficiaryID}, nil

	default:
		return nil, fmt.Errorf("unknown action %q", name)
	}
}

func decodeAccessKey(raw json.RawMessage) (AccessKey, error) {
	var view struct {
		Nonce      uint64          `json:"nonce"`
		Permission json.RawMessage `json:"permission"`
	}
	if err := json.Unmarshal(raw, &view); err != nil {
		return AccessKey{}, err
	}

	var name string
	if err := json.Unmarshal(view.Permission, &name); err == nil {
		if name != "FullAccess" {
			return AccessKey{}, fmt.Errorf("unknown permission %q", name)
		}
		return AccessKey{Nonce: view.Nonce, Permission: FullAccessPermission{}}, nil
	}

	var obj struct {
		FunctionCall *struct {
			Allowance   *string  `json:"allowance"`
			ReceiverID  string   `json:"receiver_id"`
			MethodNames []string `json:"method_names"`
		} `json:"FunctionCall"`
	}
	if err := json.Unmarshal(view.Permission, &obj); err != nil || obj.FunctionCall == nil {
		return AccessKey{}, fmt.Errorf("unrecognized permission %s", string(view.Permission))
	}

	perm := FunctionCallPermission{
		ReceiverID:  obj.FunctionCall.ReceiverID,
		MethodNames: obj.FunctionCall.MethodNames,
	}
	if obj.FunctionCall.Allowance != nil {
		allowance, err := decodeBalance(*obj.FunctionCall.Allowance)
		if err != nil {
			return AccessKey{}, fmt.Errorf("invalid allowance: %w", err)
		}
		perm.Allowance = allowance
	}
	return AccessKey{Nonce: view.Nonce, Permission: perm}, nil
}

func decodeBalance(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("not a decimal amount: %q", s)
	}
	return n, nil
}

func decodeHash(s string) ([32]byte, error) {
	var h [32]byte
	raw, err := base58.Decode(s)
	if err != nil {
		return h, err
	}
	if len(raw) != len(h) {
		return h, fmt.Errorf("want %d bytes, got %d", len(h), len(raw))
	}
	copy(h[:], raw)
	return h, nil
}
