package clarity

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/sbtc-bridge/stacks"
)

func TestSerializeUInt(t *testing.T) {
	assert.Equal(t, "0100000000000000000000000000000064", hex.EncodeToString(Serialize(NewUInt(100))))
}

func TestSerializeBuffer(t *testing.T) {
	assert.Equal(t, "0200000003010203", hex.EncodeToString(Serialize(Buffer{1, 2, 3})))
	assert.Equal(t, "0200000000", hex.EncodeToString(Serialize(Buffer{})))
}

func TestSerializeBoolAndNone(t *testing.T) {
	assert.Equal(t, []byte{TypeBoolTrue}, Serialize(Bool(true)))
	assert.Equal(t, []byte{TypeBoolFalse}, Serialize(Bool(false)))
	assert.Equal(t, []byte{TypeOptionalNone}, Serialize(None{}))
}

func TestSerializePrincipal(t *testing.T) {
	addr, err := stacks.ParseAddress("SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7")
	require.NoError(t, err)

	std := Serialize(Principal{Address: addr})
	assert.Equal(t, "0516a46ff88886c2ef9762d970b4d2c63678835bd39d", hex.EncodeToString(std))

	contract := Serialize(Principal{Address: addr, ContractName: "abc"})
	assert.Equal(t, "0616a46ff88886c2ef9762d970b4d2c63678835bd39d03616263", hex.EncodeToString(contract))
}

func TestRoundTrip(t *testing.T) {
	addr, err := stacks.ParseAddress("ST2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKQYAC0RQ")
	require.NoError(t, err)

	u := new(big.Int).Lsh(big.NewInt(1), 127)
	values := []Value{
		UInt{V: u},
		Buffer{0xde, 0xad},
		Bool(true),
		Principal{Address: addr, ContractName: "sbtc"},
		None{},
		Some{V: NewUInt(7)},
		List{Buffer{1}, Buffer{2, 3}},
	}

	for _, v := range values {
		b := Serialize(v)
		back, rest, err := Deserialize(b)
		require.NoError(t, err)
		assert.Empty(t, rest)
		assert.Equal(t, b, Serialize(back))
	}
}

func TestDeserializeErrors(t *testing.T) {
	_, _, err := Deserialize(nil)
	assert.ErrorIs(t, err, ErrUnexpectedEOF)

	_, _, err = Deserialize([]byte{TypeUInt, 0, 0})
	assert.ErrorIs(t, err, ErrUnexpectedEOF)

	_, _, err = Deserialize([]byte{TypeBuffer, 0, 0, 0, 5, 1})
	assert.ErrorIs(t, err, ErrUnexpectedEOF)

	_, _, err = Deserialize([]byte{0x7f})
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestNewUIntFromBig(t *testing.T) {
	_, err := NewUIntFromBig(new(big.Int).Lsh(big.NewInt(1), 128))
	assert.ErrorIs(t, err, ErrUIntOverflow)

	_, err = NewUIntFromBig(big.NewInt(-1))
	assert.ErrorIs(t, err, ErrUIntOverflow)

	u, err := NewUIntFromBig(big.NewInt(42))
	assert.NoError(t, err)
	assert.Equal(t, int64(42), u.V.Int64())
}
