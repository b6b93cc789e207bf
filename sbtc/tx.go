package sbtc

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/TEENet-io/sbtc-bridge/stacks"
)

var (
	ErrNotPegTransaction = errors.New("transaction carries no peg envelope")
	ErrWrongOpcode       = errors.New("unexpected opcode")
	ErrMissingOutput     = errors.New("missing output")
	ErrNotToPegWallet    = errors.New("output does not pay the peg wallet")
	ErrUnknownRecipient  = errors.New("cannot extract recipient address")
)

// NullDataOutput wraps data in a zero-value OP_RETURN output.
func NullDataOutput(data []byte) (*wire.TxOut, error) {
	script, err := txscript.NullDataScript(data)
	if err != nil {
		return nil, err
	}
	return wire.NewTxOut(0, script), nil
}

// ExtractNullData returns the single push of an OP_RETURN script.
func ExtractNullData(pkScript []byte) ([]byte, bool) {
	if len(pkScript) == 0 || pkScript[0] != txscript.OP_RETURN {
		return nil, false
	}

	tokenizer := txscript.MakeScriptTokenizer(0, pkScript[1:])
	if !tokenizer.Next() {
		return nil, false
	}
	data := tokenizer.Data()
	if tokenizer.Next() || tokenizer.Err() != nil {
		return nil, false
	}
	return data, true
}

// ExtractEnvelope finds the peg envelope of tx. The envelope is either in an
// OP_RETURN at output 0, in which case the operation outputs start at index
// 1, or in the reveal witness of input 0 with the operation outputs from 0.
func ExtractEnvelope(params *chaincfg.Params, tx *wire.MsgTx) (Opcode, []byte, int, error) {
	if len(tx.TxOut) > 0 {
		if data, ok := ExtractNullData(tx.TxOut[0].PkScript); ok {
			op, payload, err := ParseEnvelope(params, data)
			return op, payload, 1, err
		}
	}

	if len(tx.TxIn) > 0 {
		if data, err := ParseRevealWitness(tx.TxIn[0].Witness); err == nil {
			op, payload, err := ParseEnvelope(params, data)
			return op, payload, 0, err
		}
	}

	return 0, nil, 0, ErrNotPegTransaction
}

// Deposit is a deposit found in a Bitcoin transaction.
type Deposit struct {
	TxID      chainhash.Hash
	Amount    int64
	Recipient stacks.Principal
	Memo      []byte
}

// ParseDepositTx reads a deposit whose payment output pays pegWallet at
// least the dust threshold.
func ParseDepositTx(params *chaincfg.Params, tx *wire.MsgTx, pegWallet btcutil.Address) (*Deposit, error) {
	op, payload, shift, err := ExtractEnvelope(params, tx)
	if err != nil {
		return nil, err
	}
	if op != OpDeposit {
		return nil, fmt.Errorf("%w: %s", ErrWrongOpcode, op)
	}

	body, err := DecodeDepositPayload(payload)
	if err != nil {
		return nil, err
	}

	if len(tx.TxOut) <= shift {
		return nil, fmt.Errorf("%w: deposit payment at %d", ErrMissingOutput, shift)
	}
	payment := tx.TxOut[shift]

	pegScript, err := txscript.PayToAddrScript(pegWallet)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(payment.PkScript, pegScript) {
		return nil, ErrNotToPegWallet
	}
	if err := CheckDust(payment.PkScript, payment.Value); err != nil {
		return nil, err
	}

	return &Deposit{
		TxID:      tx.TxHash(),
		Amount:    payment.Value,
		Recipient: body.Recipient,
		Memo:      body.Memo,
	}, nil
}

// DepositOutputs lays out [data][payment to peg wallet].
func DepositOutputs(params *chaincfg.Params, pegWallet btcutil.Address, amount int64, recipient stacks.Principal, memo []byte) ([]*wire.TxOut, error) {
	pegScript, err := txscript.PayToAddrScript(pegWallet)
	if err != nil {
		return nil, err
	}
	if err := CheckDust(pegScript, amount); err != nil {
		return nil, err
	}

	payload, err := (&DepositPayload{Recipient: recipient, Memo: memo}).Encode()
	if err != nil {
		return nil, err
	}
	data, err := Envelope(params, OpDeposit, payload)
	if err != nil {
		return nil, err
	}
	dataOut, err := NullDataOutput(data)
	if err != nil {
		return nil, err
	}

	return []*wire.TxOut{dataOut, wire.NewTxOut(amount, pegScript)}, nil
}

// WithdrawalRequest is a withdrawal request found in a Bitcoin transaction.
// Source is the Stacks account whose key signed the request.
type WithdrawalRequest struct {
	TxID            chainhash.Hash
	Amount          uint64
	Source          stacks.Principal
	Recipient       btcutil.Address
	RecipientScript []byte
	FulfillmentFee  int64
	Memo            []byte
}

// ParseWithdrawalRequestTx reads a request laid out as
// [data][recipient][fulfillment fee to peg wallet].
func ParseWithdrawalRequestTx(params *chaincfg.Params, tx *wire.MsgTx, pegWallet btcutil.Address) (*WithdrawalRequest, error) {
	op, payload, shift, err := ExtractEnvelope(params, tx)
	if err != nil {
		return nil, err
	}
	if op != OpWithdrawalRequest {
		return nil, fmt.Errorf("%w: %s", ErrWrongOpcode, op)
	}

	body, err := DecodeWithdrawalRequestPayload(payload)
	if err != nil {
		return nil, err
	}

	if len(tx.TxOut) <= shift+1 {
		return nil, fmt.Errorf("%w: withdrawal needs outputs %d and %d", ErrMissingOutput, shift, shift+1)
	}
	recipientOut, feeOut := tx.TxOut[shift], tx.TxOut[shift+1]

	_, addrs, _, err := txscript.ExtractPkScriptAddrs(recipientOut.PkScript, params)
	if err != nil || len(addrs) != 1 {
		return nil, ErrUnknownRecipient
	}

	pegScript, err := txscript.PayToAddrScript(pegWallet)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(feeOut.PkScript, pegScript) {
		return nil, ErrNotToPegWallet
	}
	if err := CheckDust(feeOut.PkScript, feeOut.Value); err != nil {
		return nil, err
	}

	pub, err := body.RecoverSigner(recipientOut.PkScript)
	if err != nil {
		return nil, err
	}
	source := stacks.AddressFromPublicKey(stacks.NetworkFor(params).SingleSigVersion, pub)

	return &WithdrawalRequest{
		TxID:            tx.TxHash(),
		Amount:          body.Amount,
		Source:          stacks.StandardPrincipal(source),
		Recipient:       addrs[0],
		RecipientScript: recipientOut.PkScript,
		FulfillmentFee:  feeOut.Value,
		Memo:            body.Memo,
	}, nil
}

// WithdrawalRequestOutputs lays out [data][recipient][fulfillment fee]. The
// recipient output carries the smallest non-dust amount; the payout itself
// comes with the fulfillment.
func WithdrawalRequestOutputs(
	params *chaincfg.Params,
	key *btcec.PrivateKey,
	pegWallet, recipient btcutil.Address,
	amount uint64,
	fulfillmentFee int64,
	memo []byte,
) ([]*wire.TxOut, error) {
	pegScript, err := txscript.PayToAddrScript(pegWallet)
	if err != nil {
		return nil, err
	}
	if err := CheckDust(pegScript, fulfillmentFee); err != nil {
		return nil, err
	}
	recipientScript, err := txscript.PayToAddrScript(recipient)
	if err != nil {
		return nil, err
	}

	body, err := SignWithdrawalRequest(key, amount, recipientScript, memo)
	if err != nil {
		return nil, err
	}
	data, err := Envelope(params, OpWithdrawalRequest, body.Encode())
	if err != nil {
		return nil, err
	}
	dataOut, err := NullDataOutput(data)
	if err != nil {
		return nil, err
	}

	recipientOut := wire.NewTxOut(0, recipientScript)
	recipientOut.Value = mempool.GetDustThreshold(recipientOut)

	return []*wire.TxOut{dataOut, recipientOut, wire.NewTxOut(fulfillmentFee, pegScript)}, nil
}

// WithdrawalFulfillment is a payout found in a Bitcoin transaction.
type WithdrawalFulfillment struct {
	TxID      chainhash.Hash
	ChainTip  [ChainTipLength]byte
	Recipient btcutil.Address
	Amount    int64
	Memo      []byte
}

// ParseWithdrawalFulfillmentTx reads [data][recipient][change].
func ParseWithdrawalFulfillmentTx(params *chaincfg.Params, tx *wire.MsgTx) (*WithdrawalFulfillment, error) {
	op, payload, shift, err := ExtractEnvelope(params, tx)
	if err != nil {
		return nil, err
	}
	if op != OpWithdrawalFulfillment {
		return nil, fmt.Errorf("%w: %s", ErrWrongOpcode, op)
	}

	body, err := DecodeWithdrawalFulfillmentPayload(payload)
	if err != nil {
		return nil, err
	}

	if len(tx.TxOut) <= shift {
		return nil, fmt.Errorf("%w: fulfillment payout at %d", ErrMissingOutput, shift)
	}
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(tx.TxOut[shift].PkScript, params)
	if err != nil || len(addrs) != 1 {
		return nil, ErrUnknownRecipient
	}

	return &WithdrawalFulfillment{
		TxID:      tx.TxHash(),
		ChainTip:  body.ChainTip,
		Recipient: addrs[0],
		Amount:    tx.TxOut[shift].Value,
		Memo:      body.Memo,
	}, nil
}

// FulfillmentOutputs lays out [data][payout to recipient]. Change is added by
// the wallet after these.
func FulfillmentOutputs(params *chaincfg.Params, recipient btcutil.Address, amount int64, chainTip [ChainTipLength]byte, memo []byte) ([]*wire.TxOut, error) {
	recipientScript, err := txscript.PayToAddrScript(recipient)
	if err != nil {
		return nil, err
	}
	if err := CheckDust(recipientScript, amount); err != nil {
		return nil, err
	}

	body := &WithdrawalFulfillmentPayload{ChainTip: chainTip, Memo: memo}
	data, err := Envelope(params, OpWithdrawalFulfillment, body.Encode())
	if err != nil {
		return nil, err
	}
	dataOut, err := NullDataOutput(data)
	if err != nil {
		return nil, err
	}

	return []*wire.TxOut{dataOut, wire.NewTxOut(amount, recipientScript)}, nil
}
