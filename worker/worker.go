/*
Package worker executes the tasks of the peg state machine against a
Bitcoin node and a Stacks node, and reports each outcome as an event.
*/
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/cenkalti/backoff/v4"

	"github.com/TEENet-io/sbtc-bridge/btcman/assembler"
	"github.com/TEENet-io/sbtc-bridge/btcman/utxo"
	"github.com/TEENet-io/sbtc-bridge/btcvault"
	"github.com/TEENet-io/sbtc-bridge/pegstate"
	"github.com/TEENet-io/sbtc-bridge/sbtc"
	"github.com/TEENet-io/sbtc-bridge/stacks"
	"github.com/TEENet-io/sbtc-bridge/stacks/rpc"
)

// BitcoinNode is the part of btcman/rpc.RpcClient the worker uses.
type BitcoinNode interface {
	GetBlockByHeight(height int64) (*wire.MsgBlock, error)
	WaitForBlock(ctx context.Context, height int64, interval time.Duration) (*wire.MsgBlock, error)
	GetTxConfirmations(txHash *chainhash.Hash) (uint64, error)
	GetUtxoList(addr btcutil.Address, minConf int) ([]*utxo.UTXO, error)
	SendRawTx(tx *wire.MsgTx) (*chainhash.Hash, error)
}

// StacksNode is the part of stacks/rpc.Client the worker uses.
type StacksNode interface {
	GetBlockByHeight(ctx context.Context, height uint64) (*rpc.Block, error)
	GetTxStatus(ctx context.Context, txid stacks.TxID) (rpc.TxStatus, error)
	Broadcast(ctx context.Context, rawTx []byte) (stacks.TxID, error)
	GetNonce(ctx context.Context, addr stacks.Address) (uint64, error)
	GetContractBlockHeight(ctx context.Context, contract stacks.Principal) (uint64, error)
}

type Worker struct {
	cfg       *Config
	btc       BitcoinNode
	stx       StacksNode
	assembler *assembler.Assembler
	pegKey    *btcec.PublicKey
	network   stacks.Network
	sender    stacks.Address
	vault     *btcvault.TreasureVault // peg wallet coins held by fulfillments in flight

	mu        sync.Mutex
	nextNonce uint64 // 0 until the first contract call
}

func New(cfg *Config, btc BitcoinNode, stx StacksNode) (*Worker, error) {
	signer, err := assembler.NewNativeSigner(cfg.PegWalletWIF, cfg.ChainConfig)
	if err != nil {
		return nil, err
	}
	op, err := assembler.NewNativeOperator(*signer)
	if err != nil {
		return nil, err
	}
	if !op.Owns(cfg.PegWallet) {
		return nil, fmt.Errorf("peg wallet %s is not controlled by the configured key", cfg.PegWallet)
	}

	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Confirmations == 0 {
		cfg.Confirmations = DefaultConfirmations
	}
	if cfg.Fee == nil {
		cfg.Fee = FixedRate{SatPerVByte: 1}
	}

	network := stacks.NetworkFor(cfg.ChainConfig)
	return &Worker{
		cfg:       cfg,
		btc:       btc,
		stx:       stx,
		assembler: &assembler.Assembler{ChainConfig: cfg.ChainConfig, Op: op},
		pegKey:    signer.PubKey,
		network:   network,
		sender:    stacks.AddressFromPublicKey(network.SingleSigVersion, cfg.StacksKey.PubKey()),
		vault:     btcvault.NewTreasureVault(cfg.PegWallet.EncodeAddress(), cfg.CoinLockTimeout),
	}, nil
}

// Execute runs one task to completion. It blocks while a requested block
// does not exist yet. Errors that repeating the task cannot fix come back
// wrapped in backoff.Permanent.
func (w *Worker) Execute(ctx context.Context, task pegstate.Task) (pegstate.Event, error) {
	ev, err := w.execute(ctx, task)
	if err != nil {
		return nil, permanent(err)
	}
	return ev, nil
}

// permanent marks refusals by the Stacks node and sub-dust payouts.
func permanent(err error) error {
	var statusErr *rpc.HTTPStatusError
	if errors.As(err, &statusErr) && !statusErr.Transient() {
		return backoff.Permanent(err)
	}
	var dustErr *sbtc.DustError
	if errors.As(err, &dustErr) {
		return backoff.Permanent(err)
	}
	return err
}

func (w *Worker) execute(ctx context.Context, task pegstate.Task) (pegstate.Event, error) {
	switch t := task.(type) {
	case pegstate.GetContractBlockHeight:
		return w.getContractBlockHeight(ctx)
	case pegstate.UpdateContractPublicKey:
		return w.updateContractPublicKey(ctx)
	case pegstate.FetchBitcoinBlock:
		return w.fetchBitcoinBlock(ctx, t)
	case pegstate.FetchStacksBlock:
		return w.fetchStacksBlock(ctx, t)
	case pegstate.CreateMint:
		return w.createMint(ctx, t)
	case pegstate.CreateBurn:
		return w.createBurn(ctx, t)
	case pegstate.CreateFulfillment:
		return w.createFulfillment(t)
	case pegstate.CheckStacksTxStatus:
		return w.checkStacksTx(ctx, t)
	case pegstate.CheckBitcoinTxStatus:
		return w.checkBitcoinTx(t)
	}
	return nil, fmt.Errorf("unknown task %T", task)
}
