/*
This file contains the UTXO model shared by the rpc client and the assembler.
  - PubKeyScriptType: the locking script type, which decides how to sign.
  - UTXO: an unspent output of the peg wallet.
*/
package utxo

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

type PubKeyScriptType int

const (
	ANY_SCRIPT_T PubKeyScriptType = iota
	P2PKH_SCRIPT_T
	P2WPKH_SCRIPT_T
	P2TR_SCRIPT_T
)

func ScriptTypeOf(pkScript []byte) PubKeyScriptType {
	switch txscript.GetScriptClass(pkScript) {
	case txscript.PubKeyHashTy:
		return P2PKH_SCRIPT_T
	case txscript.WitnessV0PubKeyHashTy:
		return P2WPKH_SCRIPT_T
	case txscript.WitnessV1TaprootTy:
		return P2TR_SCRIPT_T
	default:
		return ANY_SCRIPT_T
	}
}

type UTXO struct {
	TxHash    chainhash.Hash
	Vout      uint32
	Amount    int64 // in satoshi
	PkScriptT PubKeyScriptType
	PkScript  []byte
}

func New(txHash chainhash.Hash, vout uint32, out *wire.TxOut) *UTXO {
	return &UTXO{
		TxHash:    txHash,
		Vout:      vout,
		Amount:    out.Value,
		PkScriptT: ScriptTypeOf(out.PkScript),
		PkScript:  out.PkScript,
	}
}

func (u *UTXO) OutPoint() *wire.OutPoint {
	return wire.NewOutPoint(&u.TxHash, u.Vout)
}

func (u *UTXO) TxOut() *wire.TxOut {
	return wire.NewTxOut(u.Amount, u.PkScript)
}

// AmountHuman returns the amount in BTC, eg. 1e8 (satoshi) = 1.0 (BTC).
func (u *UTXO) AmountHuman() float64 {
	return float64(u.Amount) / 1e8
}
