// NativeOperator signs with a local private key: the peg wallet key loaded
// from configuration. It spends P2PKH and P2WPKH outputs of that key.

package assembler

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/TEENet-io/sbtc-bridge/btcman/utxo"
)

// Basic single private key signer
type NativeSigner struct {
	ChainConfig *chaincfg.Params  // which BTC chain it is on. (mainnet, testnet, regtest)
	PrivKey     *btcec.PrivateKey // private key
	PubKey      *btcec.PublicKey  // public key accordingly
}

// Recover a basic signer from
// private key string (aka wallet-import-format, WIF)
// This is the standard private key string that bitcoin-core software exports.
func NewNativeSigner(priv_key_wif_str string, chain_config *chaincfg.Params) (*NativeSigner, error) {
	priv_key_wif, err := DecodeWIF(priv_key_wif_str)
	if err != nil {
		return nil, err
	}
	if !priv_key_wif.IsForNet(chain_config) {
		return nil, fmt.Errorf("private key is not for %s", chain_config.Name)
	}
	return &NativeSigner{chain_config, priv_key_wif.PrivKey, priv_key_wif.PrivKey.PubKey()}, nil
}

// NativeOperator receives funds via the legacy (P2PKH) or segwit (P2WPKH)
// address of its key.
type NativeOperator struct {
	NativeSigner
	P2PKH  *btcutil.AddressPubKeyHash        // legacy address
	P2WPKH *btcutil.AddressWitnessPubKeyHash // segwit address
}

func NewNativeOperator(bw NativeSigner) (*NativeOperator, error) {
	pkHash := btcutil.Hash160(bw.PubKey.SerializeCompressed())

	p2pkhAddr, err := btcutil.NewAddressPubKeyHash(pkHash, bw.ChainConfig)
	if err != nil {
		return nil, err
	}
	p2wpkhAddr, err := btcutil.NewAddressWitnessPubKeyHash(pkHash, bw.ChainConfig)
	if err != nil {
		return nil, err
	}
	return &NativeOperator{bw, p2pkhAddr, p2wpkhAddr}, nil
}

// Owns reports whether addr is one of the operator's addresses.
func (lo *NativeOperator) Owns(addr btcutil.Address) bool {
	s := addr.EncodeAddress()
	return s == lo.P2PKH.EncodeAddress() || s == lo.P2WPKH.EncodeAddress()
}

// Unlock adds every previous output as an input and signs it.
// Warning: the outputs of tx must be final before calling this.
func (lo *NativeOperator) Unlock(tx *wire.MsgTx, prevOutputs []*utxo.UTXO) (*wire.MsgTx, error) {
	first := len(tx.TxIn)
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for _, item := range prevOutputs {
		op := item.OutPoint()
		tx.AddTxIn(wire.NewTxIn(op, nil, nil))
		fetcher.AddPrevOut(*op, item.TxOut())
	}
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	for i, item := range prevOutputs {
		idx := first + i
		switch item.PkScriptT {
		case utxo.P2PKH_SCRIPT_T:
			script, err := txscript.SignatureScript(tx, idx, item.PkScript, txscript.SigHashAll, lo.PrivKey, true)
			if err != nil {
				return nil, err
			}
			tx.TxIn[idx].SignatureScript = script
		case utxo.P2WPKH_SCRIPT_T:
			witness, err := txscript.WitnessSignature(tx, sigHashes, idx, item.Amount, item.PkScript, txscript.SigHashAll, lo.PrivKey, true)
			if err != nil {
				return nil, err
			}
			tx.TxIn[idx].Witness = witness
		default:
			return nil, fmt.Errorf("cannot sign input %d: unsupported script type %d", idx, item.PkScriptT)
		}
	}
	return tx, nil
}
