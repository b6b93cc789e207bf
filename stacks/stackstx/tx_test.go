package stackstx

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/sbtc-bridge/merkle"
	"github.com/TEENet-io/sbtc-bridge/stacks"
	"github.com/TEENet-io/sbtc-bridge/stacks/clarity"
)

func testContract(t *testing.T) stacks.Principal {
	p, err := stacks.ParsePrincipal("ST2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKQYAC0RQ.asset")
	require.NoError(t, err)
	return p
}

func newTestCall(t *testing.T, key *btcec.PrivateKey) *ContractCall {
	tx, err := NewContractCall(
		stacks.Testnet,
		key.PubKey(),
		testContract(t),
		FunctionSetPublicKey,
		SetPublicKeyArgs(key.PubKey().SerializeCompressed()),
		7, 1000,
	)
	require.NoError(t, err)
	return tx
}

func TestNewContractCallRejectsStandardPrincipal(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	addr := stacks.AddressFromPublicKey(stacks.Testnet.SingleSigVersion, key.PubKey())
	_, err = NewContractCall(stacks.Testnet, key.PubKey(), stacks.StandardPrincipal(addr), "f", nil, 0, 0)
	assert.Error(t, err)
}

func TestSerializeLayout(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	tx := newTestCall(t, key)

	b := tx.Serialize()
	assert.Equal(t, stacks.Testnet.TxVersion, b[0])
	assert.Equal(t, stacks.Testnet.ChainID, binary.BigEndian.Uint32(b[1:5]))
	assert.Equal(t, AuthTypeStandard, b[5])
	assert.Equal(t, HashModeP2PKH, b[6])
	assert.Equal(t, tx.Signer[:], b[7:27])
	assert.Equal(t, uint64(7), binary.BigEndian.Uint64(b[27:35]))
	assert.Equal(t, uint64(1000), binary.BigEndian.Uint64(b[35:43]))
	assert.Equal(t, PubKeyEncodingCompressed, b[43])

	// auth ends after the 65-byte signature
	off := 44 + RecoverableSignatureLength
	assert.Equal(t, []byte{AnchorModeAny, PostConditionModeAllow, 0, 0, 0, 0, PayloadTypeContractCall}, b[off:off+7])

	tail := b[off+7:]
	assert.Equal(t, tx.Contract.Address.Version, tail[0])
	assert.Equal(t, byte(len("asset")), tail[21])
	assert.Equal(t, "asset", string(tail[22:27]))
	assert.Equal(t, byte(len(FunctionSetPublicKey)), tail[27])
	assert.True(t, bytes.HasSuffix(b, clarity.Serialize(clarity.Buffer(key.PubKey().SerializeCompressed()))))
}

func TestSignAndRecover(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	tx := newTestCall(t, key)

	_, err = tx.RecoverSigner()
	assert.ErrorIs(t, err, ErrNotSigned)

	unsignedID := tx.TxID()
	require.NoError(t, tx.Sign(key))
	assert.True(t, tx.Signed())
	assert.LessOrEqual(t, tx.Signature[0], byte(3))
	assert.NotEqual(t, unsignedID, tx.TxID())

	pub, err := tx.RecoverSigner()
	require.NoError(t, err)
	assert.True(t, pub.IsEqual(key.PubKey()))
}

func TestSigHashIgnoresSignature(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	tx := newTestCall(t, key)

	before := tx.PresignSigHash()
	require.NoError(t, tx.Sign(key))
	assert.Equal(t, before, tx.PresignSigHash())

	tx.Fee++
	assert.NotEqual(t, before, tx.PresignSigHash())
}

func TestSignWithWrongKey(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	other, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	tx := newTestCall(t, key)
	assert.ErrorIs(t, tx.Sign(other), ErrSignerKeyMix)
}

func TestMintArgs(t *testing.T) {
	addr, err := stacks.ParseAddress("ST2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKQYAC0RQ")
	require.NoError(t, err)

	proof := &merkle.ProofData{
		ReversedTxID: bytes.Repeat([]byte{1}, 32),
		TxIndex:      2,
		BlockHeight:  100,
		BlockHeader:  make([]byte, 80),
		MerklePath:   []hexutil.Bytes{bytes.Repeat([]byte{2}, 32), bytes.Repeat([]byte{3}, 32)},
	}
	args := MintArgs(5000, stacks.StandardPrincipal(addr), proof)
	require.Len(t, args, 7)
	assert.Equal(t, clarity.NewUInt(5000), args[0])
	assert.Equal(t, clarity.Buffer(proof.ReversedTxID), args[2])
	assert.Len(t, args[4].(clarity.List), 2)
	assert.Equal(t, clarity.Buffer(proof.BlockHeader), args[6])
}
