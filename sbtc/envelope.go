/*
Package sbtc encodes and decodes the peg operations carried by Bitcoin
transactions: deposits, withdrawal requests and withdrawal fulfillments.

Every operation is wrapped in the same envelope,

	magic(2) | opcode(1) | payload

which travels either as the single push of an OP_RETURN output at index 0, or
inside the data leaf of a taproot commit output that is later revealed.
*/
package sbtc

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
)

type Opcode byte

const (
	OpDeposit               Opcode = '<'
	OpWithdrawalRequest     Opcode = '>'
	OpWithdrawalFulfillment Opcode = '!'
	OpWalletHandoff         Opcode = 'H'
)

func (op Opcode) String() string {
	switch op {
	case OpDeposit:
		return "deposit"
	case OpWithdrawalRequest:
		return "withdrawal-request"
	case OpWithdrawalFulfillment:
		return "withdrawal-fulfillment"
	case OpWalletHandoff:
		return "wallet-handoff"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(op))
	}
}

const EnvelopeHeaderLength = 3

type Magic [2]byte

var (
	MagicMainnet = Magic{'X', '2'}
	MagicTestnet = Magic{'T', '2'}
	MagicSignet  = Magic{'S', '2'}
	MagicRegtest = Magic{'i', 'd'}
)

var (
	ErrEnvelopeTooShort = errors.New("envelope shorter than its header")
	ErrUnknownMagic     = errors.New("unknown network magic")
	ErrUnknownOpcode    = errors.New("unknown opcode")
	ErrUnknownNetwork   = errors.New("no magic bytes for network")
)

// MagicFor returns the magic bytes of a Bitcoin network.
func MagicFor(params *chaincfg.Params) (Magic, error) {
	switch params.Name {
	case chaincfg.MainNetParams.Name:
		return MagicMainnet, nil
	case chaincfg.TestNet3Params.Name:
		return MagicTestnet, nil
	case chaincfg.SigNetParams.Name:
		return MagicSignet, nil
	case chaincfg.RegressionNetParams.Name, chaincfg.SimNetParams.Name:
		return MagicRegtest, nil
	default:
		return Magic{}, fmt.Errorf("%w: %s", ErrUnknownNetwork, params.Name)
	}
}

// Envelope prefixes payload with the network magic and opcode.
func Envelope(params *chaincfg.Params, op Opcode, payload []byte) ([]byte, error) {
	magic, err := MagicFor(params)
	if err != nil {
		return nil, err
	}

	b := make([]byte, 0, EnvelopeHeaderLength+len(payload))
	b = append(b, magic[:]...)
	b = append(b, byte(op))
	return append(b, payload...), nil
}

// ParseEnvelope checks the magic against params and splits off the opcode.
// The returned payload aliases data.
func ParseEnvelope(params *chaincfg.Params, data []byte) (Opcode, []byte, error) {
	if len(data) < EnvelopeHeaderLength {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrEnvelopeTooShort, len(data))
	}

	magic, err := MagicFor(params)
	if err != nil {
		return 0, nil, err
	}
	if data[0] != magic[0] || data[1] != magic[1] {
		return 0, nil, fmt.Errorf("%w: %q", ErrUnknownMagic, data[:2])
	}

	op := Opcode(data[2])
	switch op {
	case OpDeposit, OpWithdrawalRequest, OpWithdrawalFulfillment, OpWalletHandoff:
		return op, data[EnvelopeHeaderLength:], nil
	default:
		return 0, nil, fmt.Errorf("%w: %s", ErrUnknownOpcode, op)
	}
}
