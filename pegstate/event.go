package pegstate

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"github.com/TEENet-io/sbtc-bridge/stacks"
)

// Event is an observation fed to the state machine.
type Event interface {
	fmt.Stringer
	isEvent()
}

type ContractBlockHeight struct {
	StacksHeight  uint64
	BitcoinHeight uint64
}

type ContractPublicKeySetBroadcasted struct {
	TxID stacks.TxID
}

type StacksBlock struct {
	Height uint64
	ID     stacks.BlockID
}

type BitcoinBlock struct {
	Height uint64
	Block  *wire.MsgBlock
}

type MintBroadcasted struct {
	Deposit BitcoinTxID
	TxID    stacks.TxID
}

type BurnBroadcasted struct {
	Withdrawal BitcoinTxID
	TxID       stacks.TxID
}

type FulfillmentBroadcasted struct {
	Withdrawal BitcoinTxID
	TxID       BitcoinTxID
}

type StacksTransactionUpdate struct {
	TxID   stacks.TxID
	Status TxStatus
}

type BitcoinTransactionUpdate struct {
	TxID   BitcoinTxID
	Status TxStatus
}

func (ContractBlockHeight) isEvent()             {}
func (ContractPublicKeySetBroadcasted) isEvent() {}
func (StacksBlock) isEvent()                     {}
func (BitcoinBlock) isEvent()                    {}
func (MintBroadcasted) isEvent()                 {}
func (BurnBroadcasted) isEvent()                 {}
func (FulfillmentBroadcasted) isEvent()          {}
func (StacksTransactionUpdate) isEvent()         {}
func (BitcoinTransactionUpdate) isEvent()        {}

func (e ContractBlockHeight) String() string {
	return fmt.Sprintf("ContractBlockHeight(stacks=%d, bitcoin=%d)", e.StacksHeight, e.BitcoinHeight)
}

func (e ContractPublicKeySetBroadcasted) String() string {
	return fmt.Sprintf("ContractPublicKeySetBroadcasted(%s)", e.TxID)
}

func (e StacksBlock) String() string {
	return fmt.Sprintf("StacksBlock(%d)", e.Height)
}

func (e BitcoinBlock) String() string {
	return fmt.Sprintf("BitcoinBlock(%d)", e.Height)
}

func (e MintBroadcasted) String() string {
	return fmt.Sprintf("MintBroadcasted(%s)", e.TxID)
}

func (e BurnBroadcasted) String() string {
	return fmt.Sprintf("BurnBroadcasted(%s)", e.TxID)
}

func (e FulfillmentBroadcasted) String() string {
	return fmt.Sprintf("FulfillmentBroadcasted(%s)", e.TxID)
}

func (e StacksTransactionUpdate) String() string {
	return fmt.Sprintf("StacksTransactionUpdate(%s, %s)", e.TxID, e.Status)
}

func (e BitcoinTransactionUpdate) String() string {
	return fmt.Sprintf("BitcoinTransactionUpdate(%s, %s)", e.TxID, e.Status)
}
