package worker

import (
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/TEENet-io/sbtc-bridge/stacks"
)

const (
	DefaultPollInterval  = 10 * time.Second
	DefaultConfirmations = 6
)

type Config struct {
	ChainConfig *chaincfg.Params // which btc chain

	PegWalletWIF string          // signs fulfillments
	PegWallet    btcutil.Address // receives deposits and change

	StacksKey   *btcec.PrivateKey // pays for and signs contract calls
	Contract    stacks.Principal  // the peg contract
	StacksTxFee uint64            // micro-STX per contract call

	// Fee prices fulfillment transactions.
	Fee FeeEstimator

	// Bitcoin confirmations after which a fulfillment is settled.
	Confirmations uint64

	// Interval between polls for a block that does not exist yet.
	PollInterval time.Duration

	// How long coins picked for a fulfillment stay out of other selections.
	CoinLockTimeout time.Duration
}
