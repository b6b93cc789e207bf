package btcsync

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/sbtc-bridge/sbtc"
	"github.com/TEENet-io/sbtc-bridge/stacks"
)

var regtest = &chaincfg.RegressionNetParams

func randomP2WPKH(t *testing.T) (*btcec.PrivateKey, btcutil.Address) {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	addr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(key.PubKey().SerializeCompressed()), regtest)
	require.NoError(t, err)
	return key, addr
}

func spend(seed byte, outs []*wire.TxOut) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: chainhash.Hash{seed}}, nil, nil))
	for _, out := range outs {
		tx.AddTxOut(out)
	}
	return tx
}

func TestScanBlock(t *testing.T) {
	_, peg := randomP2WPKH(t)
	_, otherPeg := randomP2WPKH(t)
	_, btcRecipient := randomP2WPKH(t)
	withdrawer, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	recipient, err := stacks.ParsePrincipal("ST2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKQYAC0RQ")
	require.NoError(t, err)

	coinbase := wire.NewMsgTx(1)
	coinbase.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: wire.MaxPrevOutIndex}, []byte{0x01, 0x05}, nil))
	// a coinbase that happens to carry a deposit envelope is still ignored
	cbOuts, err := sbtc.DepositOutputs(regtest, peg, 10_000, recipient, nil)
	require.NoError(t, err)
	coinbase.TxOut = cbOuts

	depositOuts, err := sbtc.DepositOutputs(regtest, peg, 25_000, recipient, []byte("hi"))
	require.NoError(t, err)
	deposit := spend(1, depositOuts)

	foreignOuts, err := sbtc.DepositOutputs(regtest, otherPeg, 25_000, recipient, nil)
	require.NoError(t, err)
	foreign := spend(2, foreignOuts)

	withdrawalOuts, err := sbtc.WithdrawalRequestOutputs(regtest, withdrawer, peg, btcRecipient, 30_000, 1_000, nil)
	require.NoError(t, err)
	withdrawal := spend(3, withdrawalOuts)

	var tip [sbtc.ChainTipLength]byte
	tip[0] = 1
	fulfillmentOuts, err := sbtc.FulfillmentOutputs(regtest, btcRecipient, 30_000, tip, nil)
	require.NoError(t, err)
	fulfillment := spend(4, fulfillmentOuts)

	garbageData, err := sbtc.NullDataOutput([]byte{'i', 'd', '<', 0x1a})
	require.NoError(t, err)
	garbage := spend(5, []*wire.TxOut{garbageData})

	pegScript, err := txscript.PayToAddrScript(peg)
	require.NoError(t, err)
	plain := spend(6, []*wire.TxOut{wire.NewTxOut(50_000, pegScript)})

	block := &wire.MsgBlock{
		Transactions: []*wire.MsgTx{coinbase, deposit, foreign, withdrawal, fulfillment, garbage, plain},
	}

	scan := NewScanner(peg, regtest).ScanBlock(5, block)

	require.Len(t, scan.Deposits, 1)
	assert.Equal(t, deposit.TxHash(), scan.Deposits[0].TxID)
	assert.Equal(t, int64(25_000), scan.Deposits[0].Amount)
	assert.Equal(t, []byte("hi"), scan.Deposits[0].Memo)

	require.Len(t, scan.Withdrawals, 1)
	assert.Equal(t, withdrawal.TxHash(), scan.Withdrawals[0].TxID)
	assert.Equal(t, uint64(30_000), scan.Withdrawals[0].Amount)

	require.Len(t, scan.Fulfillments, 1)
	assert.Equal(t, tip, scan.Fulfillments[0].ChainTip)
}

func TestScanEmptyBlock(t *testing.T) {
	_, peg := randomP2WPKH(t)
	scan := NewScanner(peg, regtest).ScanBlock(0, &wire.MsgBlock{})
	assert.Empty(t, scan.Deposits)
	assert.Empty(t, scan.Withdrawals)
	assert.Empty(t, scan.Fulfillments)
}
