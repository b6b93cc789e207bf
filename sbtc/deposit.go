package sbtc

import (
	"errors"
	"fmt"

	"github.com/TEENet-io/sbtc-bridge/stacks"
)

// StandardPrincipalLength is version(1) | hash160(20).
const StandardPrincipalLength = 21

var (
	ErrPayloadTooShort      = errors.New("payload too short")
	ErrContractNameTooShort = errors.New("contract name truncated")
	ErrInvalidContractName  = errors.New("invalid contract name in payload")
)

// DepositPayload is the body of a deposit envelope:
//
//	version(1) | hash160(20) | [name-len(1) | name(N)] | memo
type DepositPayload struct {
	Recipient stacks.Principal
	Memo      []byte
}

// Encode serializes the payload. A standard principal without memo is the
// bare 21 bytes; with a memo a zero name length separates the two.
func (p *DepositPayload) Encode() ([]byte, error) {
	b := make([]byte, 0, StandardPrincipalLength+1+len(p.Recipient.ContractName)+len(p.Memo))
	b = append(b, p.Recipient.Address.Version)
	b = append(b, p.Recipient.Address.Hash160[:]...)

	if p.Recipient.IsContract() {
		if err := stacks.ValidateContractName(p.Recipient.ContractName); err != nil {
			return nil, err
		}
		b = append(b, byte(len(p.Recipient.ContractName)))
		b = append(b, p.Recipient.ContractName...)
	} else if len(p.Memo) > 0 {
		b = append(b, 0)
	}

	return append(b, p.Memo...), nil
}

// DecodeDepositPayload parses a deposit body. Bytes after the principal are
// the memo.
func DecodeDepositPayload(b []byte) (*DepositPayload, error) {
	if len(b) < StandardPrincipalLength {
		return nil, fmt.Errorf("%w: deposit needs %d bytes, got %d", ErrPayloadTooShort, StandardPrincipalLength, len(b))
	}

	var p DepositPayload
	p.Recipient.Address.Version = b[0]
	copy(p.Recipient.Address.Hash160[:], b[1:StandardPrincipalLength])

	rest := b[StandardPrincipalLength:]
	if len(rest) == 0 {
		return &p, nil
	}

	nameLen := int(rest[0])
	rest = rest[1:]
	if nameLen > len(rest) {
		return nil, fmt.Errorf("%w: want %d bytes, have %d", ErrContractNameTooShort, nameLen, len(rest))
	}

	if nameLen > 0 {
		name := string(rest[:nameLen])
		if err := stacks.ValidateContractName(name); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidContractName, err)
		}
		p.Recipient.ContractName = name
	}

	if memo := rest[nameLen:]; len(memo) > 0 {
		p.Memo = append([]byte{}, memo...)
	}
	return &p, nil
}
