package assembler

/*
This file adds plain payment outputs.

Locking scripts need no private key, so they are the same for every
Unlocker implementation.
*/

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// AppendPayToAddress adds an output paying amount to dst_addr.
func AppendPayToAddress(tx *wire.MsgTx, dst_chain_cfg *chaincfg.Params, dst_addr string, amount int64) (*wire.MsgTx, error) {
	btcDstAddress, err := DecodeAddress(dst_addr, dst_chain_cfg)
	if err != nil {
		return nil, err
	}
	return AppendPayTo(tx, btcDstAddress, amount)
}

func AppendPayTo(tx *wire.MsgTx, dst btcutil.Address, amount int64) (*wire.MsgTx, error) {
	txOutScript, err := txscript.PayToAddrScript(dst)
	if err != nil {
		return nil, err
	}
	tx.AddTxOut(wire.NewTxOut(amount, txOutScript))
	return tx, nil
}
