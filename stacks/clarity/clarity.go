/*
Package clarity serializes the Clarity values the peg passes as contract-call
arguments. Only the subset of types the sBTC contract uses is supported.
*/
package clarity

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/TEENet-io/sbtc-bridge/stacks"
)

// Type prefixes of the consensus serialization.
const (
	TypeInt               byte = 0x00
	TypeUInt              byte = 0x01
	TypeBuffer            byte = 0x02
	TypeBoolTrue          byte = 0x03
	TypeBoolFalse         byte = 0x04
	TypeStandardPrincipal byte = 0x05
	TypeContractPrincipal byte = 0x06
	TypeOptionalNone      byte = 0x09
	TypeOptionalSome      byte = 0x0a
	TypeList              byte = 0x0b
)

var (
	ErrUnexpectedEOF = errors.New("clarity: unexpected end of input")
	ErrUnknownType   = errors.New("clarity: unknown type prefix")
	ErrUIntOverflow  = errors.New("clarity: uint exceeds 128 bits")
)

// Value is a serializable Clarity value.
type Value interface {
	Serialize(buf *bytes.Buffer)
}

type UInt struct{ V *big.Int }

func NewUInt(v uint64) UInt {
	return UInt{V: new(big.Int).SetUint64(v)}
}

func NewUIntFromBig(v *big.Int) (UInt, error) {
	if v.Sign() < 0 || v.BitLen() > 128 {
		return UInt{}, ErrUIntOverflow
	}
	return UInt{V: new(big.Int).Set(v)}, nil
}

func (u UInt) Serialize(buf *bytes.Buffer) {
	var b [16]byte
	u.V.FillBytes(b[:])
	buf.WriteByte(TypeUInt)
	buf.Write(b[:])
}

type Buffer []byte

func (b Buffer) Serialize(buf *bytes.Buffer) {
	buf.WriteByte(TypeBuffer)
	_ = binary.Write(buf, binary.BigEndian, uint32(len(b)))
	buf.Write(b)
}

type Bool bool

func (v Bool) Serialize(buf *bytes.Buffer) {
	if v {
		buf.WriteByte(TypeBoolTrue)
	} else {
		buf.WriteByte(TypeBoolFalse)
	}
}

type Principal stacks.Principal

func (p Principal) Serialize(buf *bytes.Buffer) {
	if p.ContractName == "" {
		buf.WriteByte(TypeStandardPrincipal)
	} else {
		buf.WriteByte(TypeContractPrincipal)
	}
	buf.WriteByte(p.Address.Version)
	buf.Write(p.Address.Hash160[:])
	if p.ContractName != "" {
		buf.WriteByte(byte(len(p.ContractName)))
		buf.WriteString(p.ContractName)
	}
}

type List []Value

func (l List) Serialize(buf *bytes.Buffer) {
	buf.WriteByte(TypeList)
	_ = binary.Write(buf, binary.BigEndian, uint32(len(l)))
	for _, v := range l {
		v.Serialize(buf)
	}
}

// None is the empty optional.
type None struct{}

func (None) Serialize(buf *bytes.Buffer) {
	buf.WriteByte(TypeOptionalNone)
}

type Some struct{ V Value }

func (s Some) Serialize(buf *bytes.Buffer) {
	buf.WriteByte(TypeOptionalSome)
	s.V.Serialize(buf)
}

func Serialize(v Value) []byte {
	var buf bytes.Buffer
	v.Serialize(&buf)
	return buf.Bytes()
}

// Deserialize reads one value from the head of b and returns the remainder.
// Used to read back read-only call results and in tests.
func Deserialize(b []byte) (Value, []byte, error) {
	if len(b) == 0 {
		return nil, nil, ErrUnexpectedEOF
	}
	prefix, rest := b[0], b[1:]

	switch prefix {
	case TypeUInt:
		if len(rest) < 16 {
			return nil, nil, ErrUnexpectedEOF
		}
		return UInt{V: new(big.Int).SetBytes(rest[:16])}, rest[16:], nil
	case TypeBuffer:
		n, rest, err := readLen(rest)
		if err != nil {
			return nil, nil, err
		}
		if uint32(len(rest)) < n {
			return nil, nil, ErrUnexpectedEOF
		}
		return Buffer(append([]byte{}, rest[:n]...)), rest[n:], nil
	case TypeBoolTrue:
		return Bool(true), rest, nil
	case TypeBoolFalse:
		return Bool(false), rest, nil
	case TypeStandardPrincipal, TypeContractPrincipal:
		if len(rest) < 21 {
			return nil, nil, ErrUnexpectedEOF
		}
		var p Principal
		p.Address.Version = rest[0]
		copy(p.Address.Hash160[:], rest[1:21])
		rest = rest[21:]
		if prefix == TypeContractPrincipal {
			if len(rest) < 1 || len(rest) < 1+int(rest[0]) {
				return nil, nil, ErrUnexpectedEOF
			}
			p.ContractName = string(rest[1 : 1+int(rest[0])])
			rest = rest[1+int(rest[0]):]
		}
		return p, rest, nil
	case TypeOptionalNone:
		return None{}, rest, nil
	case TypeOptionalSome:
		v, rest, err := Deserialize(rest)
		if err != nil {
			return nil, nil, err
		}
		return Some{V: v}, rest, nil
	case TypeList:
		n, rest, err := readLen(rest)
		if err != nil {
			return nil, nil, err
		}
		list := make(List, 0, n)
		for i := uint32(0); i < n; i++ {
			var v Value
			v, rest, err = Deserialize(rest)
			if err != nil {
				return nil, nil, err
			}
			list = append(list, v)
		}
		return list, rest, nil
	default:
		return nil, nil, fmt.Errorf("%w: 0x%02x", ErrUnknownType, prefix)
	}
}

func readLen(b []byte) (uint32, []byte, error) {
	if len(b) < 4 {
		return 0, nil, ErrUnexpectedEOF
	}
	return binary.BigEndian.Uint32(b[:4]), b[4:], nil
}
