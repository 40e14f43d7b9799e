package types

import (
	"math/big"
)

// Key type discriminants in the protocol's crypto enums
const (
	KeyTypeED25519 uint8 = 0
)

// PublicKey is a curve-tagged public key as it appears on the wire
type PublicKey struct {
	KeyType uint8
	Data    [32]byte
}

// Signature is a curve-tagged signature over a transaction digest
type Signature struct {
	KeyType uint8
	Data    [64]byte
}

// Transaction is the unsigned transaction body. BlockHash references a recent
// block on the target chain; Nonce must strictly increase per signer account.
type Transaction struct {
	SignerID   string
	PublicKey  PublicKey
	Nonce      uint64
	ReceiverID string
	BlockHash  [32]byte
	Actions    []Action
}

// SignedTransaction is the envelope submitted to the network: the unsigned
// body plus a signature over the SHA-256 of its canonical serialization.
type SignedTransaction struct {
	Transaction Transaction
	Signature   Signature
}

// Action is one operation carried by a transaction. It is a closed union; the
// variant name selects the wire discriminant via the schema registry.
type Action interface {
	VariantName() string
	isAction()
}

type CreateAccount struct{}

type DeployContract struct {
	Code []byte
}

type FunctionCall struct {
	MethodName string
	Args       []byte
	Gas        uint64
	Deposit    *big.Int
}

type Transfer struct {
	Deposit *big.Int
}

type Stake struct {
	Stake     *big.Int
	PublicKey PublicKey
}

type AddKey struct {
	PublicKey PublicKey
	AccessKey AccessKey
}

type DeleteKey struct {
	PublicKey PublicKey
}

type DeleteAccount struct {
	BeneficiaryID string
}

func (CreateAccount) VariantName() string  { return "CreateAccount" }
func (DeployContract) VariantName() string { return "DeployContract" }
func (FunctionCall) VariantName() string   { return "FunctionCall" }
func (Transfer) VariantName() string       { return "Transfer" }
func (Stake) VariantName() string          { return "Stake" }
func (AddKey) VariantName() string         { return "AddKey" }
func (DeleteKey) VariantName() string      { return "DeleteKey" }
func (DeleteAccount) VariantName() string  { return "DeleteAccount" }

func (CreateAccount) isAction()  {}
func (DeployContract) isAction() {}
func (FunctionCall) isAction()   {}
func (Transfer) isAction()       {}
func (Stake) isAction()          {}
func (AddKey) isAction()         {}
func (DeleteKey) isAction()      {}
func (DeleteAccount) isAction()  {}

// AccessKey grants a public key signing rights on an account
type AccessKey struct {
	Nonce      uint64
	Permission AccessKeyPermission
}

// AccessKeyPermission is the access-key permission union
type AccessKeyPermission interface {
	VariantName() string
	isAccessKeyPermission()
}

// FunctionCallPermission limits a key to gas-only calls against one receiver.
// A nil Allowance means unlimited.
type FunctionCallPermission struct {
	Allowance   *big.Int
	ReceiverID  string
	MethodNames []string
}

type FullAccessPermission struct{}

func (FunctionCallPermission) VariantName() string { return "FunctionCall" }
func (FullAccessPermission) VariantName() string   { return "FullAccess" }

func (FunctionCallPermission) isAccessKeyPermission() {}
func (FullAccessPermission) isAccessKeyPermission()   {}
