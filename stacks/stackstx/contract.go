package stackstx

import (
	"github.com/TEENet-io/sbtc-bridge/merkle"
	"github.com/TEENet-io/sbtc-bridge/stacks"
	"github.com/TEENet-io/sbtc-bridge/stacks/clarity"
)

const (
	FunctionMint         = "mint!"
	FunctionBurn         = "burn!"
	FunctionSetPublicKey = "set-bitcoin-wallet-public-key"
)

// proofArgs lays out the inclusion proof the contract verifies against the
// burnchain header at the given height.
func proofArgs(proof *merkle.ProofData) []clarity.Value {
	path := make(clarity.List, 0, len(proof.MerklePath))
	for _, h := range proof.MerklePath {
		path = append(path, clarity.Buffer(h))
	}

	return []clarity.Value{
		clarity.Buffer(proof.ReversedTxID),
		clarity.NewUInt(uint64(proof.BlockHeight)),
		path,
		clarity.NewUInt(uint64(proof.TxIndex)),
		clarity.Buffer(proof.BlockHeader),
	}
}

// MintArgs are the arguments of the mint call:
// (amount, recipient, deposit txid, burn height, merkle path, tx index, header).
func MintArgs(amount uint64, recipient stacks.Principal, proof *merkle.ProofData) []clarity.Value {
	return append([]clarity.Value{
		clarity.NewUInt(amount),
		clarity.Principal(recipient),
	}, proofArgs(proof)...)
}

// BurnArgs mirror MintArgs with the withdrawal source as the owner.
func BurnArgs(amount uint64, owner stacks.Principal, proof *merkle.ProofData) []clarity.Value {
	return append([]clarity.Value{
		clarity.NewUInt(amount),
		clarity.Principal(owner),
	}, proofArgs(proof)...)
}

func SetPublicKeyArgs(compressedKey []byte) []clarity.Value {
	return []clarity.Value{clarity.Buffer(compressedKey)}
}
