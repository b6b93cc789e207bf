package common

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// The returned string has No 0x prefix
func ByteSliceToPureHexStr(b []byte) string {
	return Trim0xPrefix(hexutil.Encode(b))
}

// HexStrToByteSlice decodes a hex string with or without the 0x prefix.
func HexStrToByteSlice(hexStr string) ([]byte, error) {
	return hexutil.Decode(Prepend0xPrefix(hexStr))
}

// HexStrToBytes32 decodes a 32-byte hex string (with/without prefix 0x).
func HexStrToBytes32(hexStr string) ([32]byte, error) {
	var bytes32 [32]byte
	b, err := HexStrToByteSlice(hexStr)
	if err != nil {
		return bytes32, err
	}
	if len(b) != 32 {
		return bytes32, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(bytes32[:], b)
	return bytes32, nil
}

// Trim 0x or 0X prefix off the string.
func Trim0xPrefix(str string) string {
	s := strings.TrimPrefix(str, "0x")
	return strings.TrimPrefix(s, "0X")
}

func Prepend0xPrefix(str string) string {
	if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
		return str
	}
	return "0x" + str
}

// ReverseBytes returns a reversed copy of b. Bitcoin hashes are displayed in
// the reverse of their serialized order.
func ReverseBytes(b []byte) []byte {
	r := make([]byte, len(b))
	for i := range b {
		r[len(b)-1-i] = b[i]
	}
	return r
}

// RandBytes32 generates [32]byte with random values
func RandBytes32() [32]byte {
	var b [32]byte
	n, err := rand.Read(b[:])

	if err != nil {
		return [32]byte{}
	}
	if n != 32 {
		return [32]byte{}
	}

	return b
}

func RandBytes(n int) []byte {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		return nil
	}
	return b
}

// Shorten shortens a hex string so that both sides have n characters and
// the rest is replaced with "..."
func Shorten(hexStr string, n int) string {
	str := Trim0xPrefix(hexStr)

	if len(str) <= n*2 {
		return Prepend0xPrefix(str)
	}
	return Prepend0xPrefix(str[:n] + "..." + str[len(str)-n:])
}
