package assembler

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg"
)

var ErrWrongNetwork = errors.New("wrong network")

// DecodeWIF parses a wallet-import-format key as exported by bitcoin core.
func DecodeWIF(wifStr string) (*btcutil.WIF, error) {
	if len(base58.Decode(wifStr)) == 0 {
		return nil, errors.New("private key is not base58")
	}
	return btcutil.DecodeWIF(wifStr)
}

// DecodeAddress parses an address and rejects one of another network.
// btcutil alone accepts e.g. a testnet address on regtest.
func DecodeAddress(addressStr string, network *chaincfg.Params) (btcutil.Address, error) {
	address, err := btcutil.DecodeAddress(addressStr, network)
	if err != nil {
		return nil, err
	}
	if !address.IsForNet(network) {
		return nil, fmt.Errorf("%w: %s is not a %s address", ErrWrongNetwork, addressStr, network.Name)
	}
	return address, nil
}
