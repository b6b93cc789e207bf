package sbtc

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func verifyInput(t *testing.T, tx *wire.MsgTx, pkScript []byte, amount int64) {
	fetcher := txscript.NewCannedPrevOutputFetcher(pkScript, amount)
	vm, err := txscript.NewEngine(pkScript, tx, 0, txscript.StandardVerifyFlags, nil,
		txscript.NewTxSigHashes(tx, fetcher), amount, fetcher)
	require.NoError(t, err)
	require.NoError(t, vm.Execute())
}

func TestDepositCommitReveal(t *testing.T) {
	_, peg := newP2WPKH(t)
	revealKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	reclaimKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	payload, err := (&DepositPayload{Recipient: testRecipient(t)}).Encode()
	require.NoError(t, err)
	envelope, err := Envelope(regtest, OpDeposit, payload)
	require.NoError(t, err)

	commitment, err := NewCommitment(envelope, revealKey.PubKey(), reclaimKey.PubKey())
	require.NoError(t, err)

	addr, err := commitment.Address(regtest)
	require.NoError(t, err)
	pkScript, err := commitment.PkScript()
	require.NoError(t, err)
	addrScript, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)
	assert.Equal(t, pkScript, addrScript)

	const commitAmount = 200_000
	outpoint := wire.OutPoint{Hash: chainhash.Hash{7}, Index: 1}
	reveal, err := DepositReveal(outpoint, commitAmount, 1_000, peg)
	require.NoError(t, err)
	require.NoError(t, commitment.SignReveal(reveal, commitAmount, revealKey))

	verifyInput(t, reveal, pkScript, commitAmount)

	got, err := ParseRevealWitness(reveal.TxIn[0].Witness)
	require.NoError(t, err)
	assert.Equal(t, envelope, got)

	d, err := ParseDepositTx(regtest, reveal, peg)
	require.NoError(t, err)
	assert.Equal(t, int64(commitAmount-1_000), d.Amount)
	assert.Equal(t, testRecipient(t), d.Recipient)
}

func TestWithdrawalCommitReveal(t *testing.T) {
	_, peg := newP2WPKH(t)
	_, recipient := newP2WPKH(t)
	owner, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	revealKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	recipientScript, err := txscript.PayToAddrScript(recipient)
	require.NoError(t, err)
	body, err := SignWithdrawalRequest(owner, 30_000, recipientScript, nil)
	require.NoError(t, err)
	envelope, err := Envelope(regtest, OpWithdrawalRequest, body.Encode())
	require.NoError(t, err)

	commitment, err := NewCommitment(envelope, revealKey.PubKey(), owner.PubKey())
	require.NoError(t, err)

	const commitAmount = 100_000
	reveal, err := WithdrawalReveal(wire.OutPoint{Index: 0}, commitAmount, 1_000, 3_000, recipient, peg)
	require.NoError(t, err)
	require.Len(t, reveal.TxOut, 2)
	assert.Equal(t, int64(commitAmount-1_000-3_000), reveal.TxOut[0].Value)
	assert.Equal(t, int64(3_000), reveal.TxOut[1].Value)

	require.NoError(t, commitment.SignReveal(reveal, commitAmount, revealKey))
	pkScript, err := commitment.PkScript()
	require.NoError(t, err)
	verifyInput(t, reveal, pkScript, commitAmount)

	w, err := ParseWithdrawalRequestTx(regtest, reveal, peg)
	require.NoError(t, err)
	assert.Equal(t, uint64(30_000), w.Amount)
	assert.Equal(t, int64(3_000), w.FulfillmentFee)

	_, err = WithdrawalReveal(wire.OutPoint{}, 3_500, 1_000, 3_000, recipient, peg)
	assert.ErrorIs(t, err, ErrRevealUnderflow)
}

func TestReclaimControlBlock(t *testing.T) {
	revealKey, _ := btcec.NewPrivateKey()
	reclaimKey, _ := btcec.NewPrivateKey()

	c, err := NewCommitment([]byte("id<xxxxxxxxxxxxxxxxxxxxx"), revealKey.PubKey(), reclaimKey.PubKey())
	require.NoError(t, err)

	cbBytes, err := c.ReclaimControlBlock()
	require.NoError(t, err)
	cb, err := txscript.ParseControlBlock(cbBytes)
	require.NoError(t, err)

	pkScript, _ := c.PkScript()
	assert.NoError(t, txscript.VerifyTaprootLeafCommitment(cb, pkScript[2:], c.ReclaimLeaf.Script))
}

func TestParseRevealWitnessRejects(t *testing.T) {
	_, err := ParseRevealWitness(nil)
	assert.ErrorIs(t, err, ErrNotRevealWitness)

	_, err = ParseRevealWitness(wire.TxWitness{{1}, {2}})
	assert.ErrorIs(t, err, ErrNotRevealWitness)

	revealKey, _ := btcec.NewPrivateKey()
	reclaimKey, _ := btcec.NewPrivateKey()
	c, err := NewCommitment([]byte("id<payload"), revealKey.PubKey(), reclaimKey.PubKey())
	require.NoError(t, err)
	cb, err := c.ReclaimControlBlock()
	require.NoError(t, err)

	// a reclaim spend carries no envelope
	_, err = ParseRevealWitness(wire.TxWitness{make([]byte, 64), c.ReclaimLeaf.Script, cb})
	assert.ErrorIs(t, err, ErrNotRevealWitness)
}
