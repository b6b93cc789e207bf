package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/sbtc-bridge/merkle"
	"github.com/TEENet-io/sbtc-bridge/pegstate"
	"github.com/TEENet-io/sbtc-bridge/stacks"
	"github.com/TEENet-io/sbtc-bridge/stacks/clarity"
	"github.com/TEENet-io/sbtc-bridge/stacks/rpc"
	"github.com/TEENet-io/sbtc-bridge/stacks/stackstx"
)

func (w *Worker) getContractBlockHeight(ctx context.Context) (pegstate.Event, error) {
	height, err := w.stx.GetContractBlockHeight(ctx, w.cfg.Contract)
	if err != nil {
		return nil, err
	}
	block, err := w.stx.GetBlockByHeight(ctx, height)
	if err != nil {
		return nil, err
	}
	return pegstate.ContractBlockHeight{StacksHeight: height, BitcoinHeight: block.BurnBlockHeight}, nil
}

func (w *Worker) fetchStacksBlock(ctx context.Context, t pegstate.FetchStacksBlock) (pegstate.Event, error) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		block, err := w.stx.GetBlockByHeight(ctx, t.Height)
		if err == nil {
			return pegstate.StacksBlock{Height: block.Height, ID: block.ID}, nil
		}
		if !errors.Is(err, rpc.ErrNotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// updateContractPublicKey registers the peg wallet key with the contract.
func (w *Worker) updateContractPublicKey(ctx context.Context) (pegstate.Event, error) {
	args := stackstx.SetPublicKeyArgs(w.pegKey.SerializeCompressed())
	txid, err := w.contractCall(ctx, stackstx.FunctionSetPublicKey, args)
	if err != nil {
		return nil, err
	}

	logger.WithField("stacksTxId", txid.String()).Info("public key update broadcasted")
	return pegstate.ContractPublicKeySetBroadcasted{TxID: txid}, nil
}

func (w *Worker) createMint(ctx context.Context, t pegstate.CreateMint) (pegstate.Event, error) {
	proof, err := w.proof(t.Deposit.BlockHeight, t.Deposit.TxID)
	if err != nil {
		return nil, err
	}

	args := stackstx.MintArgs(uint64(t.Deposit.Amount), t.Deposit.Recipient, proof)
	txid, err := w.contractCall(ctx, stackstx.FunctionMint, args)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"deposit":    t.Deposit.TxID.String(),
		"stacksTxId": txid.String(),
	}).Info("mint broadcasted")
	return pegstate.MintBroadcasted{Deposit: t.Deposit.TxID, TxID: txid}, nil
}

func (w *Worker) createBurn(ctx context.Context, t pegstate.CreateBurn) (pegstate.Event, error) {
	proof, err := w.proof(t.Withdrawal.BlockHeight, t.Withdrawal.TxID)
	if err != nil {
		return nil, err
	}

	args := stackstx.BurnArgs(t.Withdrawal.Amount, t.Withdrawal.Source, proof)
	txid, err := w.contractCall(ctx, stackstx.FunctionBurn, args)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"withdrawal": t.Withdrawal.TxID.String(),
		"stacksTxId": txid.String(),
	}).Info("burn broadcasted")
	return pegstate.BurnBroadcasted{Withdrawal: t.Withdrawal.TxID, TxID: txid}, nil
}

func (w *Worker) checkStacksTx(ctx context.Context, t pegstate.CheckStacksTxStatus) (pegstate.Event, error) {
	res, err := w.stx.GetTxStatus(ctx, t.TxID)
	if err != nil {
		return nil, err
	}

	status := pegstate.StatusBroadcasted
	switch res {
	case rpc.TxSuccess:
		status = pegstate.StatusConfirmed
	case rpc.TxFailed:
		status = pegstate.StatusRejected
	}
	return pegstate.StacksTransactionUpdate{TxID: t.TxID, Status: status}, nil
}

// proof proves that txid was mined in the Bitcoin block at height.
func (w *Worker) proof(height uint64, txid pegstate.BitcoinTxID) (*merkle.ProofData, error) {
	block, err := w.btc.GetBlockByHeight(int64(height))
	if err != nil {
		return nil, err
	}
	return merkle.FromBlockAndTxID(block, *txid.Hash())
}

// contractCall signs and broadcasts a call to the peg contract.
func (w *Worker) contractCall(ctx context.Context, function string, args []clarity.Value) (stacks.TxID, error) {
	nonce, err := w.takeNonce(ctx)
	if err != nil {
		return stacks.TxID{}, err
	}

	tx, err := stackstx.NewContractCall(w.network, w.cfg.StacksKey.PubKey(), w.cfg.Contract, function, args, nonce, w.cfg.StacksTxFee)
	if err != nil {
		return stacks.TxID{}, err
	}
	if err := tx.Sign(w.cfg.StacksKey); err != nil {
		return stacks.TxID{}, err
	}

	txid, err := w.stx.Broadcast(ctx, tx.Serialize())
	if err != nil {
		w.releaseNonce(nonce)
		return stacks.TxID{}, fmt.Errorf("broadcast %s: %w", function, err)
	}
	if txid != tx.TxID() {
		logger.WithFields(logger.Fields{
			"local":  tx.TxID().String(),
			"remote": txid.String(),
		}).Warn("node reported a different stacks txid")
	}
	return txid, nil
}

// takeNonce hands out consecutive nonces so that concurrent calls do not
// collide. The node is asked whenever it is ahead of us.
func (w *Worker) takeNonce(ctx context.Context) (uint64, error) {
	onChain, err := w.stx.GetNonce(ctx, w.sender)
	if err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if onChain > w.nextNonce {
		w.nextNonce = onChain
	}
	nonce := w.nextNonce
	w.nextNonce++
	return nonce, nil
}

// releaseNonce gives back the last nonce after a failed broadcast.
func (w *Worker) releaseNonce(nonce uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.nextNonce == nonce+1 {
		w.nextNonce = nonce
	}
}
