package common

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
)

func TestNetworkParams(t *testing.T) {
	cases := map[string]*chaincfg.Params{
		"mainnet": &chaincfg.MainNetParams,
		"testnet": &chaincfg.TestNet3Params,
		"signet":  &chaincfg.SigNetParams,
		"regtest": &chaincfg.RegressionNetParams,
		"":        &chaincfg.RegressionNetParams,
		"REGTEST": &chaincfg.RegressionNetParams,
	}
	for name, want := range cases {
		got, err := NetworkParams(name)
		assert.NoError(t, err, name)
		assert.Equal(t, want.Name, got.Name, name)
	}

	_, err := NetworkParams("litecoin")
	assert.Error(t, err)
}

func TestIsValidBtcAddress(t *testing.T) {
	assert.True(t, IsValidBtcAddress("mkVXZnqaaKt4puQNr4ovPHYg48mjguFCnT", &chaincfg.RegressionNetParams))
	assert.False(t, IsValidBtcAddress("not-an-address", &chaincfg.RegressionNetParams))
	assert.True(t, IsMainNet(MainNetParams()))
	assert.False(t, IsMainNet(&chaincfg.TestNet3Params))
}
