package pegstate

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/TEENet-io/sbtc-bridge/sbtc"
	"github.com/TEENet-io/sbtc-bridge/stacks"
)

// BitcoinTxID is a Bitcoin transaction id. It prints and marshals in the
// usual reversed hex form.
type BitcoinTxID chainhash.Hash

func (id BitcoinTxID) String() string {
	return chainhash.Hash(id).String()
}

func (id BitcoinTxID) Hash() *chainhash.Hash {
	h := chainhash.Hash(id)
	return &h
}

func (id BitcoinTxID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *BitcoinTxID) UnmarshalText(text []byte) error {
	h, err := chainhash.NewHashFromStr(string(text))
	if err != nil {
		return err
	}
	*id = BitcoinTxID(*h)
	return nil
}

// TxStatus is what the bridge knows about a transaction it broadcast.
type TxStatus int

const (
	StatusBroadcasted TxStatus = iota
	StatusConfirmed
	StatusRejected
)

var txStatusNames = map[TxStatus]string{
	StatusBroadcasted: "broadcasted",
	StatusConfirmed:   "confirmed",
	StatusRejected:    "rejected",
}

func (s TxStatus) String() string {
	if name, ok := txStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("TxStatus(%d)", int(s))
}

// Terminal reports whether no further update is expected.
func (s TxStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusRejected
}

func (s TxStatus) MarshalText() ([]byte, error) {
	name, ok := txStatusNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown tx status %d", int(s))
	}
	return []byte(name), nil
}

func (s *TxStatus) UnmarshalText(text []byte) error {
	for status, name := range txStatusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown tx status %q", text)
}

// Phase of a TransactionRequest. Phases only move forward.
type Phase string

const (
	PhaseScheduled    Phase = "scheduled"
	PhaseCreated      Phase = "created"
	PhaseAcknowledged Phase = "acknowledged"
)

// Acknowledged is a request whose transaction has been broadcast.
type Acknowledged[T comparable] struct {
	TxID           T        `json:"txid"`
	Status         TxStatus `json:"status"`
	HasPendingTask bool     `json:"hasPendingTask"`
}

// TransactionRequest tracks one transaction the bridge itself creates on the
// chain whose transaction id type is T.
type TransactionRequest[T comparable] struct {
	Phase Phase `json:"phase"`
	// Height of the tracked chain at which a scheduled request is created.
	BlockHeight uint64           `json:"blockHeight,omitempty"`
	Ack         *Acknowledged[T] `json:"ack,omitempty"`
}

func Scheduled[T comparable](height uint64) *TransactionRequest[T] {
	return &TransactionRequest[T]{Phase: PhaseScheduled, BlockHeight: height}
}

// Due reports whether a scheduled request should be created at height.
func (r *TransactionRequest[T]) Due(height uint64) bool {
	return r != nil && r.Phase == PhaseScheduled && height >= r.BlockHeight
}

func (r *TransactionRequest[T]) markCreated() {
	if r.Phase != PhaseScheduled {
		violate("cannot create a %s request", r.Phase)
	}
	r.Phase = PhaseCreated
	r.BlockHeight = 0
}

func (r *TransactionRequest[T]) acknowledge(txid T) {
	if r.Phase != PhaseCreated {
		violate("cannot acknowledge a %s request", r.Phase)
	}
	r.Phase = PhaseAcknowledged
	r.Ack = &Acknowledged[T]{TxID: txid, Status: StatusBroadcasted}
}

// awaitingCheck is an acknowledged, unsettled request with no status check in
// flight.
func (r *TransactionRequest[T]) awaitingCheck() bool {
	return r != nil && r.Phase == PhaseAcknowledged && r.Ack.Status == StatusBroadcasted && !r.Ack.HasPendingTask
}

// Confirmed reports whether the request settled successfully.
func (r *TransactionRequest[T]) Confirmed() bool {
	return r != nil && r.Phase == PhaseAcknowledged && r.Ack.Status == StatusConfirmed
}

func (r *TransactionRequest[T]) matches(txid T) bool {
	return r != nil && r.Phase == PhaseAcknowledged && r.Ack.TxID == txid
}

// Deposit is one observed peg-in.
type Deposit struct {
	TxID        BitcoinTxID                       `json:"txid"`
	Amount      int64                             `json:"amount"`
	Recipient   stacks.Principal                  `json:"recipient"`
	Memo        hexutil.Bytes                     `json:"memo,omitempty"`
	BlockHeight uint64                            `json:"blockHeight"`
	Mint        *TransactionRequest[stacks.TxID] `json:"mint,omitempty"`
}

func newDeposit(d *sbtc.Deposit, height uint64) *Deposit {
	return &Deposit{
		TxID:        BitcoinTxID(d.TxID),
		Amount:      d.Amount,
		Recipient:   d.Recipient,
		Memo:        d.Memo,
		BlockHeight: height,
	}
}

// WithdrawalInfo is what a withdrawal request transaction carries.
type WithdrawalInfo struct {
	TxID        BitcoinTxID      `json:"txid"`
	Amount      uint64           `json:"amount"`
	Source      stacks.Principal `json:"source"`
	Recipient   string           `json:"recipient"` // bitcoin address
	BlockHeight uint64           `json:"blockHeight"`
}

// Withdrawal is one observed peg-out. Fulfillment exists only once Burn is
// confirmed.
type Withdrawal struct {
	Info        WithdrawalInfo                    `json:"info"`
	Burn        *TransactionRequest[stacks.TxID] `json:"burn,omitempty"`
	Fulfillment *TransactionRequest[BitcoinTxID]  `json:"fulfillment,omitempty"`
}

func newWithdrawal(w *sbtc.WithdrawalRequest, height uint64) *Withdrawal {
	return &Withdrawal{
		Info: WithdrawalInfo{
			TxID:        BitcoinTxID(w.TxID),
			Amount:      w.Amount,
			Source:      w.Source,
			Recipient:   w.Recipient.EncodeAddress(),
			BlockHeight: height,
		},
	}
}
