/*
Package stacks holds the Stacks-side primitives the peg needs: addresses and
principals, transaction and block ids, and per-network constants.
*/
package stacks

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
)

const (
	AddressVersionMainnetSingleSig byte = 22 // 'P'
	AddressVersionMainnetMultiSig  byte = 20 // 'M'
	AddressVersionTestnetSingleSig byte = 26 // 'T'
	AddressVersionTestnetMultiSig  byte = 21 // 'N'
)

// Address is a standard Stacks address: a version byte and a hash160.
type Address struct {
	Version byte
	Hash160 [20]byte
}

// AddressFromPublicKey derives the single-sig address of a compressed key.
func AddressFromPublicKey(version byte, pub *btcec.PublicKey) Address {
	var a Address
	a.Version = version
	copy(a.Hash160[:], btcutil.Hash160(pub.SerializeCompressed()))
	return a
}

// String renders the address in c32check form, e.g. ST2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKQYAC0RQ.
func (a Address) String() string {
	s, err := c32CheckEncode(a.Version, a.Hash160[:])
	if err != nil {
		return fmt.Sprintf("S?%x", a.Hash160)
	}
	return "S" + s
}

func ParseAddress(s string) (Address, error) {
	var a Address
	if len(s) < 2 || (s[0] != 'S' && s[0] != 's') {
		return a, fmt.Errorf("%w: %s", ErrInvalidAddress, s)
	}

	version, data, err := c32CheckDecode(s[1:])
	if err != nil {
		return a, fmt.Errorf("%w: %s: %v", ErrInvalidAddress, s, err)
	}
	if len(data) != 20 {
		return a, fmt.Errorf("%w: %s: hash160 has %d bytes", ErrInvalidAddress, s, len(data))
	}

	a.Version = version
	copy(a.Hash160[:], data)
	return a, nil
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
