package worker

import (
	"context"
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/sbtc-bridge/btcman/rpc"
	"github.com/TEENet-io/sbtc-bridge/pegstate"
)

func (w *Worker) fetchBitcoinBlock(ctx context.Context, t pegstate.FetchBitcoinBlock) (pegstate.Event, error) {
	block, err := w.btc.WaitForBlock(ctx, int64(t.Height), w.cfg.PollInterval)
	if err != nil {
		return nil, err
	}
	return pegstate.BitcoinBlock{Height: t.Height, Block: block}, nil
}

// createFulfillment pays the withdrawal out of the peg wallet. Change goes
// back to the peg wallet.
func (w *Worker) createFulfillment(t pegstate.CreateFulfillment) (pegstate.Event, error) {
	newLogger := logger.WithFields(logger.Fields{
		"withdrawal": t.Withdrawal.TxID.String(),
		"recipient":  t.Withdrawal.Recipient,
	})

	recipient, err := btcutil.DecodeAddress(t.Withdrawal.Recipient, w.cfg.ChainConfig)
	if err != nil {
		return nil, err
	}
	amount := int64(t.Withdrawal.Amount)

	utxos, err := w.btc.GetUtxoList(w.cfg.PegWallet, 1)
	if err != nil {
		return nil, err
	}

	owner := t.Withdrawal.TxID.String()
	selected, fee, err := w.vault.ChooseAndLock(owner, utxos, amount, func(numInputs int) (int64, error) {
		return w.cfg.Fee.Fee(FulfillmentVSize(numInputs))
	})
	if err != nil {
		return nil, err
	}

	tx, err := w.assembler.MakeFulfillmentTx(recipient, amount, t.ChainTip, w.cfg.PegWallet, fee, selected)
	if err != nil {
		w.vault.ReleaseByCommand(owner)
		return nil, err
	}

	txHash, err := w.btc.SendRawTx(tx)
	if err != nil {
		w.vault.ReleaseByCommand(owner)
		return nil, err
	}
	newLogger.WithField("btcTxId", txHash.String()).Info("fulfillment broadcasted")

	return pegstate.FulfillmentBroadcasted{
		Withdrawal: t.Withdrawal.TxID,
		TxID:       pegstate.BitcoinTxID(*txHash),
	}, nil
}

// checkBitcoinTx treats a transaction neither the mempool nor the chain
// knows as rejected.
func (w *Worker) checkBitcoinTx(t pegstate.CheckBitcoinTxStatus) (pegstate.Event, error) {
	confirmations, err := w.btc.GetTxConfirmations(t.TxID.Hash())
	status := pegstate.StatusBroadcasted
	switch {
	case errors.Is(err, rpc.ErrTxNotFound):
		status = pegstate.StatusRejected
	case err != nil:
		return nil, err
	case confirmations >= w.cfg.Confirmations:
		status = pegstate.StatusConfirmed
	}

	return pegstate.BitcoinTransactionUpdate{TxID: t.TxID, Status: status}, nil
}
