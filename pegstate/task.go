package pegstate

import (
	"fmt"

	"github.com/TEENet-io/sbtc-bridge/stacks"
)

// Task is work handed to the network layer. Its result comes back as an
// Event.
type Task interface {
	fmt.Stringer
	isTask()
}

// GetContractBlockHeight asks for the Stacks height at which the peg
// contract was deployed and the Bitcoin height anchoring it.
type GetContractBlockHeight struct{}

// UpdateContractPublicKey sets the peg wallet key in the contract.
type UpdateContractPublicKey struct{}

type FetchBitcoinBlock struct {
	Height uint64
}

type FetchStacksBlock struct {
	Height uint64
}

type CreateMint struct {
	Deposit Deposit
}

type CreateBurn struct {
	Withdrawal WithdrawalInfo
}

// CreateFulfillment pays out a withdrawal whose burn is confirmed. ChainTip
// is the latest Stacks block the bridge has seen.
type CreateFulfillment struct {
	Withdrawal WithdrawalInfo
	ChainTip   stacks.BlockID
}

type CheckStacksTxStatus struct {
	TxID stacks.TxID
}

type CheckBitcoinTxStatus struct {
	TxID BitcoinTxID
}

func (GetContractBlockHeight) isTask()  {}
func (UpdateContractPublicKey) isTask() {}
func (FetchBitcoinBlock) isTask()       {}
func (FetchStacksBlock) isTask()        {}
func (CreateMint) isTask()              {}
func (CreateBurn) isTask()              {}
func (CreateFulfillment) isTask()       {}
func (CheckStacksTxStatus) isTask()     {}
func (CheckBitcoinTxStatus) isTask()    {}

func (GetContractBlockHeight) String() string  { return "GetContractBlockHeight" }
func (UpdateContractPublicKey) String() string { return "UpdateContractPublicKey" }

func (t FetchBitcoinBlock) String() string {
	return fmt.Sprintf("FetchBitcoinBlock(%d)", t.Height)
}

func (t FetchStacksBlock) String() string {
	return fmt.Sprintf("FetchStacksBlock(%d)", t.Height)
}

func (t CreateMint) String() string {
	return fmt.Sprintf("CreateMint(%s)", t.Deposit.TxID)
}

func (t CreateBurn) String() string {
	return fmt.Sprintf("CreateBurn(%s)", t.Withdrawal.TxID)
}

func (t CreateFulfillment) String() string {
	return fmt.Sprintf("CreateFulfillment(%s)", t.Withdrawal.TxID)
}

func (t CheckStacksTxStatus) String() string {
	return fmt.Sprintf("CheckStacksTxStatus(%s)", t.TxID)
}

func (t CheckBitcoinTxStatus) String() string {
	return fmt.Sprintf("CheckBitcoinTxStatus(%s)", t.TxID)
}
