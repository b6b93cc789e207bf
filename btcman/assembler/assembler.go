package assembler

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"

	"github.com/TEENet-io/sbtc-bridge/btcman/utxo"
	"github.com/TEENet-io/sbtc-bridge/sbtc"
	"github.com/TEENet-io/sbtc-bridge/stacks"
)

var ErrNegativeChange = errors.New("change_amount < 0")

type Assembler struct {
	ChainConfig *chaincfg.Params // which BTC chain it is on. (mainnet, testnet, regtest)
	Op          Unlocker         // signs the inputs
}

// craft appends the declared outputs in order, then the change (if > 0),
// then signs. The change amount is implied by
// sum(utxo) = sum(outputs) + fee_amount + change_amount
func (myAss *Assembler) craft(
	outputs []*wire.TxOut,
	prevOutputs []*utxo.UTXO,
	change_addr btcutil.Address,
	fee_amount int64,
) (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(wire.TxVersion)

	var spend int64
	for _, out := range outputs {
		tx.AddTxOut(out)
		spend += out.Value
	}

	sum := utxo.Total(prevOutputs)
	change_amount := sum - spend - fee_amount
	if change_amount < 0 {
		return nil, fmt.Errorf("%w, sum: %d, spend: %d, fee_amount: %d", ErrNegativeChange, sum, spend, fee_amount)
	}

	// if change == 0 no need to add this clause.
	if change_amount > 0 {
		var err error
		tx, err = AppendPayTo(tx, change_addr, change_amount)
		if err != nil {
			return nil, err
		}
	}

	return myAss.Op.Unlock(tx, prevOutputs)
}

// MakeFulfillmentTx pays a withdrawal out of the peg wallet:
// output #1 OP_RETURN fulfillment data, output #2 the recipient,
// output #3 change back to the peg wallet.
func (myAss *Assembler) MakeFulfillmentTx(
	recipient btcutil.Address,
	amount int64,
	chainTip stacks.BlockID,
	change_addr btcutil.Address,
	fee_amount int64,
	prevOutputs []*utxo.UTXO,
) (*wire.MsgTx, error) {
	outputs, err := sbtc.FulfillmentOutputs(myAss.ChainConfig, recipient, amount, chainTip, nil)
	if err != nil {
		return nil, err
	}
	return myAss.craft(outputs, prevOutputs, change_addr, fee_amount)
}

// MakeDepositTx is run by a depositor: output #1 OP_RETURN deposit data,
// output #2 the peg wallet, output #3 change.
func (myAss *Assembler) MakeDepositTx(
	pegWallet btcutil.Address,
	amount int64,
	recipient stacks.Principal,
	memo []byte,
	change_addr btcutil.Address,
	fee_amount int64,
	prevOutputs []*utxo.UTXO,
) (*wire.MsgTx, error) {
	outputs, err := sbtc.DepositOutputs(myAss.ChainConfig, pegWallet, amount, recipient, memo)
	if err != nil {
		return nil, err
	}
	return myAss.craft(outputs, prevOutputs, change_addr, fee_amount)
}

// MakeWithdrawalRequestTx is run by a withdrawer. key is the key holding the
// pegged funds on Stacks; it signs the request, not the inputs.
func (myAss *Assembler) MakeWithdrawalRequestTx(
	key *btcec.PrivateKey,
	pegWallet, recipient btcutil.Address,
	amount uint64,
	fulfillmentFee int64,
	change_addr btcutil.Address,
	fee_amount int64,
	prevOutputs []*utxo.UTXO,
) (*wire.MsgTx, error) {
	outputs, err := sbtc.WithdrawalRequestOutputs(myAss.ChainConfig, key, pegWallet, recipient, amount, fulfillmentFee, nil)
	if err != nil {
		return nil, err
	}
	return myAss.craft(outputs, prevOutputs, change_addr, fee_amount)
}

// MakeCommitTx funds the taproot commitment of a commit-reveal operation.
// The commitment output is always output #1.
func (myAss *Assembler) MakeCommitTx(
	commitment *sbtc.Commitment,
	amount int64,
	change_addr btcutil.Address,
	fee_amount int64,
	prevOutputs []*utxo.UTXO,
) (*wire.MsgTx, error) {
	pkScript, err := commitment.PkScript()
	if err != nil {
		return nil, err
	}
	if err := sbtc.CheckDust(pkScript, amount); err != nil {
		return nil, err
	}
	return myAss.craft([]*wire.TxOut{wire.NewTxOut(amount, pkScript)}, prevOutputs, change_addr, fee_amount)
}
