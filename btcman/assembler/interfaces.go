/*
Unlocker is the interface the tx assembler signs through.

The outputs of a peg transaction are fixed by the sbtc package, so the
assembler only needs something that can add and sign the inputs.

Remember:
Always create the "lock" part firstly on Tx, then create the "unlock" part on Tx.
Otherwise the signatures commit to the wrong outputs.
*/
package assembler

import (
	"github.com/btcsuite/btcd/wire"

	"github.com/TEENet-io/sbtc-bridge/btcman/utxo"
)

// Unlocker adds prevOutputs as inputs of tx and signs each of them.
// eg. single private key signature, a hardware signer, etc.
type Unlocker interface {
	Unlock(tx *wire.MsgTx, prevOutputs []*utxo.UTXO) (*wire.MsgTx, error)
}
