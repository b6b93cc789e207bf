package rpc

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/sbtc-bridge/btcman/utxo"
	"github.com/TEENet-io/sbtc-bridge/sbtc"
)

const (
	CONFIRM_SAFE = 6 // minimum confirm threshold to consider Tx is finalized.
	MAX_CONFIRM  = 9999999
)

var ErrTxNotFound = errors.New("transaction not found")

type RpcClientConfig struct {
	ServerAddr string // ip address of server
	Port       string // port of server
	Username   string
	Pwd        string
}

// Wrapper of btc rpc client.
type RpcClient struct {
	ServerAddr string // ip address of server
	Port       string // port of server
	client     *rpcclient.Client
}

// Create a new RPC client which
// contains several useful functions
// to interact with bitcoin node.
func NewRpcClient(rcc *RpcClientConfig) (*RpcClient, error) {
	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         rcc.ServerAddr + ":" + rcc.Port,
		User:         rcc.Username,
		Pass:         rcc.Pwd,
		HTTPPostMode: true, // original bitcoin only supports HTTP POST mode
		DisableTLS:   true, // original bitcoin does not support TLS
	}, nil)

	if err != nil {
		return nil, err
	}

	return &RpcClient{rcc.ServerAddr, rcc.Port, client}, nil
}

// Close the rpc client
func (r *RpcClient) Close() {
	r.client.Shutdown()
}

// Fetch a raw tx with a given TxID.
// Enable -txindex on your bitcoin node before using this function.
func (r *RpcClient) GetTx(txHash *chainhash.Hash) (*btcutil.Tx, error) {
	return r.client.GetRawTransaction(txHash)
}

// Get the latest block height.
func (r *RpcClient) GetLatestBlockHeight() (int64, error) {
	return r.client.GetBlockCount()
}

func (r *RpcClient) GetBlockByHeight(height int64) (*wire.MsgBlock, error) {
	hash, err := r.client.GetBlockHash(height)
	if err != nil {
		return nil, err
	}
	return r.client.GetBlock(hash)
}

// WaitForBlock polls until the chain reaches height and returns that block.
func (r *RpcClient) WaitForBlock(ctx context.Context, height int64, interval time.Duration) (*wire.MsgBlock, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		latest, err := r.client.GetBlockCount()
		if err != nil {
			logger.WithField("height", height).Warnf("failed to get block count: %v", err)
		} else if latest >= height {
			return r.GetBlockByHeight(height)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// GetTxConfirmations returns the confirmations of a tx. ErrTxNotFound when
// neither the mempool nor the chain (with -txindex) knows it.
func (r *RpcClient) GetTxConfirmations(txHash *chainhash.Hash) (uint64, error) {
	res, err := r.client.GetRawTransactionVerbose(txHash)
	if err != nil {
		var rpcErr *btcjson.RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCNoTxInfo {
			return 0, fmt.Errorf("%w: %s", ErrTxNotFound, txHash)
		}
		return 0, err
	}
	return res.Confirmations, nil
}

// Get the UTXO(s) of an address.
// Notice: the address must be imported into the node's wallet.
func (r *RpcClient) GetUtxoList(myAddress btcutil.Address, minConf int) ([]*utxo.UTXO, error) {
	unspentOutputs, err := r.client.ListUnspentMinMaxAddresses(minConf, MAX_CONFIRM, []btcutil.Address{myAddress})
	if err != nil {
		return nil, err
	}

	var u []*utxo.UTXO
	for _, item := range unspentOutputs {
		txHash, err := chainhash.NewHashFromStr(item.TxID)
		if err != nil {
			return nil, err
		}
		pkScript, err := hex.DecodeString(item.ScriptPubKey)
		if err != nil {
			return nil, err
		}
		amount, err := btcutil.NewAmount(item.Amount)
		if err != nil {
			return nil, err
		}
		u = append(u, utxo.New(*txHash, item.Vout, wire.NewTxOut(int64(amount), pkScript)))
	}
	return u, nil
}

// Send raw transaction to bitcoin network.
func (r *RpcClient) SendRawTx(tx *wire.MsgTx) (*chainhash.Hash, error) {
	// allowHighFees=true: fees are set by our own estimator
	return r.client.SendRawTransaction(tx, true)
}

// FundAndSign lets the node wallet add inputs and change to tx, puts the
// outputs back in their declared order and signs with the wallet.
func (r *RpcClient) FundAndSign(tx *wire.MsgTx, changeAddr btcutil.Address) (*wire.MsgTx, error) {
	intended := make([]*wire.TxOut, len(tx.TxOut))
	copy(intended, tx.TxOut)

	change := changeAddr.EncodeAddress()
	funded, err := r.client.FundRawTransaction(tx, btcjson.FundRawTransactionOpts{ChangeAddress: &change}, nil)
	if err != nil {
		return nil, err
	}

	sbtc.ReorderOutputs(funded.Transaction, intended)

	signed, complete, err := r.client.SignRawTransactionWithWallet(funded.Transaction)
	if err != nil {
		return nil, err
	}
	if !complete {
		return nil, errors.New("wallet could not sign every input")
	}
	return signed, nil
}

// EstimateFeeRate returns the fee rate in sat/vbyte for confirmation within
// target blocks.
func (r *RpcClient) EstimateFeeRate(target int64) (int64, error) {
	res, err := r.client.EstimateSmartFee(target, nil)
	if err != nil {
		return 0, err
	}
	if res.FeeRate == nil {
		return 0, fmt.Errorf("no fee estimate: %v", res.Errors)
	}
	amount, err := btcutil.NewAmount(*res.FeeRate)
	if err != nil {
		return 0, err
	}
	// BTC/kvB to sat/vB
	return int64(amount) / 1000, nil
}

// Import a private key to the Bitcoin node's wallet.
// Note: Only imported keys are monitored by bitcoin core!
func (r *RpcClient) ImportPrivateKey(wif *btcutil.WIF, label string) error {
	return r.client.ImportPrivKeyRescan(wif, label, true)
}

// Generate a given number of blocks.
// This function is useful for testing purposes.
func (r *RpcClient) GenerateBlocks(numBlocks int64, coinbase btcutil.Address) ([]*chainhash.Hash, error) {
	return r.client.GenerateToAddress(numBlocks, coinbase, nil)
}
