package pegstate

import (
	"encoding/json"
	"fmt"

	"github.com/TEENet-io/sbtc-bridge/stacks"
)

// Kind names a phase of the bridge lifecycle.
type Kind string

const (
	KindUninitialized          Kind = "uninitialized"
	KindContractDetected       Kind = "contractDetected"
	KindContractPublicKeySetup Kind = "contractPublicKeySetup"
	KindInitialized            Kind = "initialized"
)

// State is one of *Uninitialized, *ContractDetected, *ContractPublicKeySetup
// or *Initialized.
type State interface {
	Kind() Kind
}

type Uninitialized struct{}

// ContractDetected: the peg contract exists but does not know the peg
// wallet key yet.
type ContractDetected struct {
	StacksBlockHeight  uint64 `json:"stacksBlockHeight"`
	BitcoinBlockHeight uint64 `json:"bitcoinBlockHeight"`
}

type ContractPublicKeySetup struct {
	StacksBlockHeight  uint64                            `json:"stacksBlockHeight"`
	BitcoinBlockHeight uint64                            `json:"bitcoinBlockHeight"`
	PublicKeySetup     *TransactionRequest[stacks.TxID] `json:"publicKeySetup"`
}

// Initialized is the running bridge.
type Initialized struct {
	StacksBlockHeight  uint64         `json:"stacksBlockHeight"`
	BitcoinBlockHeight uint64         `json:"bitcoinBlockHeight"`
	StacksChainTip     stacks.BlockID `json:"stacksChainTip"`
	Deposits           []*Deposit     `json:"deposits"`
	Withdrawals        []*Withdrawal  `json:"withdrawals"`
}

func (*Uninitialized) Kind() Kind          { return KindUninitialized }
func (*ContractDetected) Kind() Kind       { return KindContractDetected }
func (*ContractPublicKeySetup) Kind() Kind { return KindContractPublicKeySetup }
func (*Initialized) Kind() Kind            { return KindInitialized }

// Marshal encodes a state as a JSON object with a "kind" discriminator next
// to the variant's own fields.
func Marshal(s State) ([]byte, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	kind, _ := json.Marshal(s.Kind())
	fields["kind"] = kind

	return json.Marshal(fields)
}

// Unmarshal decodes a document written by Marshal.
func Unmarshal(doc []byte) (State, error) {
	var head struct {
		Kind Kind `json:"kind"`
	}
	if err := json.Unmarshal(doc, &head); err != nil {
		return nil, err
	}

	var s State
	switch head.Kind {
	case KindUninitialized:
		s = &Uninitialized{}
	case KindContractDetected:
		s = &ContractDetected{}
	case KindContractPublicKeySetup:
		s = &ContractPublicKeySetup{}
	case KindInitialized:
		s = &Initialized{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, head.Kind)
	}

	if err := json.Unmarshal(doc, s); err != nil {
		return nil, err
	}
	return s, nil
}
