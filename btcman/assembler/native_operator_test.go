package assembler

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	p1_legacy_priv_key_str = "cNSHjGk52rQ6iya8jdNT9VJ8dvvQ8kPAq5pcFHsYBYdDqahWuneH"
	p1_legacy_addr_str     = "mkVXZnqaaKt4puQNr4ovPHYg48mjguFCnT"

	p2_legacy_priv_key_str = "cQthTMaKUU9f6br1hMXdGFXHwGaAfFFerNkn632BpGE6KXhTMmGY"
	p2_legacy_addr_str     = "moHYHpgk4YgTCeLBmDE2teQ3qVLUtM95Fn"
)

func newOperator(t *testing.T, wif string) *NativeOperator {
	bs, err := NewNativeSigner(wif, &chaincfg.RegressionNetParams)
	require.NoError(t, err, "cannot create NativeSigner from private key %s", wif)

	op, err := NewNativeOperator(*bs)
	require.NoError(t, err)
	return op
}

func TestNativeOperatorAddresses(t *testing.T) {
	tests := []struct {
		wif  string
		addr string
	}{
		{p1_legacy_priv_key_str, p1_legacy_addr_str},
		{p2_legacy_priv_key_str, p2_legacy_addr_str},
	}

	for _, tt := range tests {
		op := newOperator(t, tt.wif)
		assert.Equal(t, tt.addr, op.P2PKH.EncodeAddress())
		assert.True(t, op.Owns(op.P2WPKH))
		assert.True(t, op.Owns(op.P2PKH))
	}

	p1, p2 := newOperator(t, p1_legacy_priv_key_str), newOperator(t, p2_legacy_priv_key_str)
	assert.False(t, p1.Owns(p2.P2PKH))
}

func TestNativeSignerWrongNetwork(t *testing.T) {
	_, err := NewNativeSigner(p1_legacy_priv_key_str, &chaincfg.MainNetParams)
	assert.Error(t, err)

	_, err = NewNativeSigner("not-a-key", &chaincfg.RegressionNetParams)
	assert.Error(t, err)
}

func TestDecodeAddressWrongNetwork(t *testing.T) {
	_, err := DecodeAddress(p1_legacy_addr_str, &chaincfg.MainNetParams)
	assert.Error(t, err)

	addr, err := DecodeAddress(p1_legacy_addr_str, &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	assert.Equal(t, p1_legacy_addr_str, addr.EncodeAddress())
}
