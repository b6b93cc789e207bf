/*
Package btcsync filters Bitcoin blocks for peg operations.

The scanner does not poll the chain by itself: blocks are fetched one height
at a time by the worker when the peg state asks for them, and every fetched
block goes through ScanBlock.
*/
package btcsync

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/sbtc-bridge/sbtc"
)

// Scanner recognises operations addressed to one peg wallet.
type Scanner struct {
	PegWallet   btcutil.Address  // btc address of the peg wallet.
	ChainConfig *chaincfg.Params // which btc chain
}

func NewScanner(pegWallet btcutil.Address, chainConfig *chaincfg.Params) *Scanner {
	return &Scanner{PegWallet: pegWallet, ChainConfig: chainConfig}
}

// BlockScan is what one block contains, in block order.
type BlockScan struct {
	Deposits     []*sbtc.Deposit
	Withdrawals  []*sbtc.WithdrawalRequest
	Fulfillments []*sbtc.WithdrawalFulfillment
}

// ScanBlock decodes every non-coinbase transaction. Malformed payloads and
// operations for other wallets are skipped, never returned as errors.
func (s *Scanner) ScanBlock(height int64, block *wire.MsgBlock) *BlockScan {
	scan := &BlockScan{}

	for i, tx := range block.Transactions {
		if i == 0 {
			continue
		}

		op, _, _, err := sbtc.ExtractEnvelope(s.ChainConfig, tx)
		if errors.Is(err, sbtc.ErrNotPegTransaction) {
			continue
		}

		fields := logger.Fields{
			"height":  height,
			"btcTxId": tx.TxHash().String(),
		}
		if err != nil {
			logger.WithFields(fields).Debugf("skipping malformed peg envelope: %v", err)
			continue
		}

		switch op {
		case sbtc.OpDeposit:
			d, err := sbtc.ParseDepositTx(s.ChainConfig, tx, s.PegWallet)
			if err != nil {
				logger.WithFields(fields).Debugf("skipping deposit: %v", err)
				continue
			}
			logger.WithFields(fields).WithField("amount", d.Amount).Info("Deposit Found")
			scan.Deposits = append(scan.Deposits, d)

		case sbtc.OpWithdrawalRequest:
			w, err := sbtc.ParseWithdrawalRequestTx(s.ChainConfig, tx, s.PegWallet)
			if err != nil {
				logger.WithFields(fields).Debugf("skipping withdrawal request: %v", err)
				continue
			}
			logger.WithFields(fields).WithField("amount", w.Amount).Info("Withdrawal Request Found")
			scan.Withdrawals = append(scan.Withdrawals, w)

		case sbtc.OpWithdrawalFulfillment:
			f, err := sbtc.ParseWithdrawalFulfillmentTx(s.ChainConfig, tx)
			if err != nil {
				logger.WithFields(fields).Debugf("skipping fulfillment: %v", err)
				continue
			}
			logger.WithFields(fields).Debug("Withdrawal Fulfillment Found")
			scan.Fulfillments = append(scan.Fulfillments, f)

		default:
			logger.WithFields(fields).Debugf("ignoring %s operation", op)
		}
	}

	return scan
}
