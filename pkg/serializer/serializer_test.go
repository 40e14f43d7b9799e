package serializer

import (
	"bytes"
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/near-tools/txreplay-go/pkg/schema"
	"github.com/near-tools/txreplay-go/pkg/types"
)

func nearSerializer(t *testing.T) *BinarySerializer {
	t.Helper()
	registry, err := schema.NearSchemas()
	require.NoError(t, err)
	return NewBinarySerializer(registry)
}

// test-side byte assembly, independent of the serializer's own writers

func u32le(n uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], n)
	return b[:]
}

func u64le(n uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], n)
	return b[:]
}

func u128le(n int64) []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint64(b[:8], uint64(n))
	return b
}

func prefixed(s string) []byte {
	return append(u32le(uint32(len(s))), []byte(s)...)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestSerializeTransaction(t *testing.T) {
	s := nearSerializer(t)

	var pk [32]byte
	for i := range pk {
		pk[i] = byte(i)
	}
	var blockHash [32]byte
	for i := range blockHash {
		blockHash[i] = 0xAA
	}

	tx := types.Transaction{
		SignerID:   "alice.near",
		PublicKey:  types.PublicKey{KeyType: types.KeyTypeED25519, Data: pk},
		Nonce:      42,
		ReceiverID: "bob.near",
		BlockHash:  blockHash,
		Actions: []types.Action{
			types.Transfer{Deposit: big.NewInt(100)},
			types.CreateAccount{},
		},
	}

	got, err := s.Serialize("Transaction", &tx)
	require.NoError(t, err)

	expected := concat(
		prefixed("alice.near"),
		[]byte{0}, pk[:],
		u64le(42),
		prefixed("bob.near"),
		blockHash[:],
		u32le(2),
		[]byte{3}, u128le(100), // Transfer is discriminant 3
		[]byte{0}, // CreateAccount is discriminant 0, empty payload
	)
	assert.Equal(t, expected, got)
}

func TestSerializeDeterminism(t *testing.T) {
	s := nearSerializer(t)

	tx := types.Transaction{
		SignerID:   "carol.near",
		PublicKey:  types.PublicKey{KeyType: types.KeyTypeED25519},
		Nonce:      7,
		ReceiverID: "dave.near",
		Actions: []types.Action{
			types.FunctionCall{
				MethodName: "set_value",
				Args:       []byte(`{"value":1}`),
				Gas:        30_000_000_000_000,
				Deposit:    big.NewInt(0),
			},
		},
	}

	first, err := s.Serialize("Transaction", &tx)
	require.NoError(t, err)
	second, err := s.Serialize("Transaction", &tx)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, second), "identical input must produce identical bytes")
}

func TestSerializeAccessKey(t *testing.T) {
	s := nearSerializer(t)

	t.Run("FunctionCall permission without allowance", func(t *testing.T) {
		ak := types.AccessKey{
			Nonce: 7,
			Permission: types.FunctionCallPermission{
				ReceiverID:  "x",
				MethodNames: []string{"a", "bc"},
			},
		}
		got, err := s.Serialize("AccessKey", &ak)
		require.NoError(t, err)

		expected := concat(
			u64le(7),
			[]byte{0}, // FunctionCall is discriminant 0
			[]byte{0}, // allowance: None
			prefixed("x"),
			u32le(2),
			prefixed("a"),
			prefixed("bc"),
		)
		assert.Equal(t, expected, got)
	})

	t.Run("FunctionCall permission with allowance", func(t *testing.T) {
		ak := types.AccessKey{
			Permission: types.FunctionCallPermission{
				Allowance:  big.NewInt(5),
				ReceiverID: "x",
			},
		}
		got, err := s.Serialize("AccessKey", &ak)
		require.NoError(t, err)

		expected := concat(
			u64le(0),
			[]byte{0},
			[]byte{1}, u128le(5), // allowance: Some(5)
			prefixed("x"),
			u32le(0),
		)
		assert.Equal(t, expected, got)
	})

	t.Run("FullAccess permission", func(t *testing.T) {
		ak := types.AccessKey{Nonce: 1, Permission: types.FullAccessPermission{}}
		got, err := s.Serialize("AccessKey", &ak)
		require.NoError(t, err)
		assert.Equal(t, concat(u64le(1), []byte{1}), got)
	})
}

func TestSerializeErrors(t *testing.T) {
	t.Run("Should fail when the value is missing a schema field", func(t *testing.T) {
		registry, err := schema.NewRegistry(schema.Group{
			Structs: []schema.StructDef{
				{Name: "Widget", Fields: []schema.Field{{Name: "Missing", Type: schema.U64()}}},
			},
		})
		require.NoError(t, err)

		_, err = NewBinarySerializer(registry).Serialize("Widget", struct{ Present uint64 }{1})
		var encErr *EncodingError
		require.ErrorAs(t, err, &encErr)
		assert.Equal(t, "Widget", encErr.Struct)
		assert.Equal(t, "Missing", encErr.Field)
	})

	t.Run("Should fail on a declared/actual type mismatch", func(t *testing.T) {
		registry, err := schema.NewRegistry(schema.Group{
			Structs: []schema.StructDef{
				{Name: "Widget", Fields: []schema.Field{{Name: "Count", Type: schema.U64()}}},
			},
		})
		require.NoError(t, err)

		_, err = NewBinarySerializer(registry).Serialize("Widget", struct{ Count string }{"nope"})
		var encErr *EncodingError
		require.ErrorAs(t, err, &encErr)
	})

	t.Run("Should fail on an unknown struct name", func(t *testing.T) {
		s := nearSerializer(t)
		_, err := s.Serialize("NoSuchStruct", struct{}{})
		var encErr *EncodingError
		require.ErrorAs(t, err, &encErr)
	})

	t.Run("Should fail on nil and out-of-range u128 values", func(t *testing.T) {
		s := nearSerializer(t)

		_, err := s.Serialize("Transfer", &types.Transfer{})
		var encErr *EncodingError
		require.ErrorAs(t, err, &encErr)
		assert.Contains(t, encErr.Reason, "nil")

		_, err = s.Serialize("Transfer", &types.Transfer{Deposit: big.NewInt(-1)})
		require.ErrorAs(t, err, &encErr)

		huge := new(big.Int).Lsh(big.NewInt(1), 128)
		_, err = s.Serialize("Transfer", &types.Transfer{Deposit: huge})
		require.ErrorAs(t, err, &encErr)
	})

	t.Run("Should succeed on a fully populated structure", func(t *testing.T) {
		s := nearSerializer(t)
		_, err := s.Serialize("Transfer", &types.Transfer{Deposit: big.NewInt(1)})
		require.NoError(t, err)
	})
}

func TestSerializeU128Boundaries(t *testing.T) {
	s := nearSerializer(t)

	maxU128 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	got, err := s.Serialize("Transfer", &types.Transfer{Deposit: maxU128})
	require.NoError(t, err)

	expected := make([]byte, 16)
	for i := range expected {
		expected[i] = 0xFF
	}
	assert.Equal(t, expected, got)

	got, err = s.Serialize("Transfer", &types.Transfer{Deposit: big.NewInt(0)})
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 16), got)
}
