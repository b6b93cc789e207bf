package stacks

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Crockford base32, the alphabet of Stacks addresses.
const c32Alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var (
	ErrInvalidC32Char     = errors.New("invalid c32 character")
	ErrInvalidC32Checksum = errors.New("invalid c32check checksum")
	ErrInvalidAddress     = errors.New("invalid stacks address")
)

var c32Base = big.NewInt(32)

// c32Encode writes data as a big-endian base32 number. Every leading zero byte
// becomes one leading '0'.
func c32Encode(data []byte) string {
	num := new(big.Int).SetBytes(data)
	mod := new(big.Int)

	var out []byte
	for num.Sign() > 0 {
		num.DivMod(num, c32Base, mod)
		out = append(out, c32Alphabet[mod.Int64()])
	}
	for _, b := range data {
		if b != 0 {
			break
		}
		out = append(out, c32Alphabet[0])
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

func c32Normalize(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "O", "0")
	s = strings.ReplaceAll(s, "L", "1")
	return strings.ReplaceAll(s, "I", "1")
}

func c32Decode(s string) ([]byte, error) {
	s = c32Normalize(s)

	zeros := 0
	for zeros < len(s) && s[zeros] == '0' {
		zeros++
	}

	num := new(big.Int)
	for i := zeros; i < len(s); i++ {
		idx := strings.IndexByte(c32Alphabet, s[i])
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidC32Char, s[i])
		}
		num.Mul(num, c32Base)
		num.Add(num, big.NewInt(int64(idx)))
	}

	return append(make([]byte, zeros), num.Bytes()...), nil
}

func c32Checksum(version byte, data []byte) []byte {
	payload := append([]byte{version}, data...)
	return chainhash.DoubleHashB(payload)[:4]
}

// c32CheckEncode renders version and data as a c32check string, without the
// leading 'S' of addresses.
func c32CheckEncode(version byte, data []byte) (string, error) {
	if version >= 32 {
		return "", fmt.Errorf("%w: version %d out of range", ErrInvalidAddress, version)
	}
	payload := append(append([]byte{}, data...), c32Checksum(version, data)...)
	return string(c32Alphabet[version]) + c32Encode(payload), nil
}

func c32CheckDecode(s string) (byte, []byte, error) {
	s = c32Normalize(s)
	if len(s) < 2 {
		return 0, nil, ErrInvalidAddress
	}
	version := strings.IndexByte(c32Alphabet, s[0])
	if version < 0 {
		return 0, nil, fmt.Errorf("%w: %q", ErrInvalidC32Char, s[0])
	}

	payload, err := c32Decode(s[1:])
	if err != nil {
		return 0, nil, err
	}
	if len(payload) < 4 {
		return 0, nil, ErrInvalidAddress
	}

	data, checksum := payload[:len(payload)-4], payload[len(payload)-4:]
	if !bytes.Equal(checksum, c32Checksum(byte(version), data)) {
		return 0, nil, ErrInvalidC32Checksum
	}
	return byte(version), data, nil
}
