package stacks

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/TEENet-io/sbtc-bridge/common"
)

// TxID identifies a Stacks transaction: sha512/256 of its serialization, in
// natural byte order (no reversal as on Bitcoin).
type TxID [32]byte

func (id TxID) String() string {
	return hexutil.Encode(id[:])
}

func (id TxID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *TxID) UnmarshalText(text []byte) error {
	b, err := common.HexStrToBytes32(string(text))
	if err != nil {
		return fmt.Errorf("invalid stacks txid: %v", err)
	}
	*id = b
	return nil
}

func ParseTxID(s string) (TxID, error) {
	var id TxID
	err := id.UnmarshalText([]byte(s))
	return id, err
}

// BlockID is the index block hash of a Stacks block. It is the chain tip
// embedded in withdrawal fulfillments.
type BlockID [32]byte

func (id BlockID) String() string {
	return hexutil.Encode(id[:])
}

func (id BlockID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *BlockID) UnmarshalText(text []byte) error {
	b, err := common.HexStrToBytes32(string(text))
	if err != nil {
		return fmt.Errorf("invalid stacks block id: %v", err)
	}
	*id = b
	return nil
}

// Network carries the per-network constants used in addresses and transactions.
type Network struct {
	Name                 string
	TxVersion            byte
	ChainID              uint32
	SingleSigVersion     byte
	MultiSigVersion      byte
	PeggedToBitcoinChain string
}

var (
	Mainnet = Network{
		Name:                 "mainnet",
		TxVersion:            0x00,
		ChainID:              0x00000001,
		SingleSigVersion:     AddressVersionMainnetSingleSig,
		MultiSigVersion:      AddressVersionMainnetMultiSig,
		PeggedToBitcoinChain: chaincfg.MainNetParams.Name,
	}
	Testnet = Network{
		Name:                 "testnet",
		TxVersion:            0x80,
		ChainID:              0x80000000,
		SingleSigVersion:     AddressVersionTestnetSingleSig,
		MultiSigVersion:      AddressVersionTestnetMultiSig,
		PeggedToBitcoinChain: chaincfg.TestNet3Params.Name,
	}
)

// NetworkFor picks the Stacks network anchored to the given Bitcoin network.
// Only Bitcoin mainnet maps to Stacks mainnet.
func NetworkFor(params *chaincfg.Params) Network {
	if common.IsMainNet(params) {
		return Mainnet
	}
	return Testnet
}
