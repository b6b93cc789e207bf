// BtcUser is a depositor / withdrawer on the bitcoin side of the peg.
// It holds the user's key, builds peg transactions and reports the
// user's spendable coins.

package cmd

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/sbtc-bridge/btcman/assembler"
	"github.com/TEENet-io/sbtc-bridge/btcman/utxo"
	"github.com/TEENet-io/sbtc-bridge/common"
	"github.com/TEENet-io/sbtc-bridge/sbtc"
	"github.com/TEENet-io/sbtc-bridge/stacks"
)

const (
	BLK_MATURE_OFFSET       = 1 // if a block is BLK_MATURE_OFFSET blocks old, we consider safe.
	REGTEST_COINBASE_ADDR   = "mkVXZnqaaKt4puQNr4ovPHYg48mjguFCnT"
	REGTEST_GENERATE_BLOCKS = 101 // Generate 101 blocks in regest.
)

type BtcUserConfig struct {
	BtcRpcServer   string // btc rpc server info
	BtcRpcPort     string // btc rpc server info
	BtcRpcUsername string // btc rpc server info
	BtcRpcPwd      string // btc rpc server info

	BtcChainConfig *chaincfg.Params

	BtcCoreAccountPriv string // user's btc private key (WIF).
	BtcCoreAccountAddr string // user's btc address, P2PKH or P2WPKH of the key.

	PegWalletAddr string // the bridge's deposit address
}

// Node calls used by BtcUser.
type BtcUserNode interface {
	GetUtxoList(addr btcutil.Address, minConf int) ([]*utxo.UTXO, error)
	SendRawTx(tx *wire.MsgTx) (*chainhash.Hash, error)
	ImportPrivateKey(wif *btcutil.WIF, label string) error
	GenerateBlocks(numBlocks int64, coinbase btcutil.Address) ([]*chainhash.Hash, error)
}

type BtcUser struct {
	BtcRpcClient BtcUserNode
	MyOperator   *assembler.NativeOperator // user's signer
	MyAssembler  *assembler.Assembler      // user's btc tx assembler
	MyUserConfig *BtcUserConfig            // contains a copy of user's config.

	address   btcutil.Address // where the user's coins and change live
	pegWallet btcutil.Address
	closer    func()
}

// NewBtcUser connects to the node and recovers the user's signer.
// registerKey imports the key into the node's wallet so that its coins are
// listed; a private regtest node needs it.
func NewBtcUser(buc *BtcUserConfig, registerKey bool) (*BtcUser, error) {
	rpcClient, err := SetupBtcRpc(buc.BtcRpcServer, buc.BtcRpcPort, buc.BtcRpcUsername, buc.BtcRpcPwd)
	if err != nil {
		return nil, err
	}
	bu, err := newBtcUser(buc, rpcClient, registerKey)
	if err != nil {
		rpcClient.Close()
		return nil, err
	}
	bu.closer = rpcClient.Close
	return bu, nil
}

func newBtcUser(buc *BtcUserConfig, node BtcUserNode, registerKey bool) (*BtcUser, error) {
	signer, err := assembler.NewNativeSigner(buc.BtcCoreAccountPriv, buc.BtcChainConfig)
	if err != nil {
		logger.Error("cannot create native signer by private key")
		return nil, err
	}
	op, err := assembler.NewNativeOperator(*signer)
	if err != nil {
		return nil, err
	}

	addr, err := assembler.DecodeAddress(buc.BtcCoreAccountAddr, buc.BtcChainConfig)
	if err != nil {
		return nil, err
	}
	if !op.Owns(addr) {
		logger.WithFields(logger.Fields{
			"declared_addr": buc.BtcCoreAccountAddr,
			"p2pkh":         op.P2PKH.EncodeAddress(),
			"p2wpkh":        op.P2WPKH.EncodeAddress(),
		}).Error("user btc address does not belong to the private key")
		return nil, fmt.Errorf("address %s does not belong to the private key", buc.BtcCoreAccountAddr)
	}

	pegWallet, err := assembler.DecodeAddress(buc.PegWalletAddr, buc.BtcChainConfig)
	if err != nil {
		return nil, fmt.Errorf("peg wallet: %w", err)
	}

	if registerKey {
		wif, err := assembler.DecodeWIF(buc.BtcCoreAccountPriv)
		if err != nil {
			return nil, err
		}
		if err := node.ImportPrivateKey(wif, "sbtc-user"); err != nil {
			logger.WithField("user_addr", addr.EncodeAddress()).Error("cannot import user key to btc rpc node")
			return nil, err
		}
	}

	return &BtcUser{
		BtcRpcClient: node,
		MyOperator:   op,
		MyAssembler:  &assembler.Assembler{ChainConfig: buc.BtcChainConfig, Op: op},
		MyUserConfig: buc,
		address:      addr,
		pegWallet:    pegWallet,
	}, nil
}

func (bu *BtcUser) Close() {
	if bu.closer != nil {
		bu.closer()
	}
}

func (bu *BtcUser) Address() btcutil.Address { return bu.address }

func (bu *BtcUser) GetUtxos() ([]*utxo.UTXO, error) {
	utxos, err := bu.BtcRpcClient.GetUtxoList(bu.address, BLK_MATURE_OFFSET)
	if err != nil {
		logger.WithFields(logger.Fields{
			"user_address": bu.address.EncodeAddress(),
			"error":        err,
		}).Error("cannot retrieve utxos from rpc")
		return nil, err
	}
	if len(utxos) == 0 {
		logger.WithField("user_address", bu.address.EncodeAddress()).Info("no utxos to spend, send some bitcoin to this address first")
	}
	return utxos, nil
}

func (bu *BtcUser) GetBalance() (int64, error) {
	utxos, err := bu.GetUtxos()
	if err != nil {
		return 0, err
	}
	return utxo.Total(utxos), nil
}

// selectFunds picks barely enough coins to cover amount + fee.
func (bu *BtcUser) selectFunds(amount, fee int64) ([]*utxo.UTXO, error) {
	utxos, err := bu.GetUtxos()
	if err != nil {
		return nil, err
	}
	if balance := utxo.Total(utxos); balance < amount+fee {
		return nil, fmt.Errorf("not enough balance: have %d, need %d", balance, amount+fee)
	}
	selected, _, err := utxo.SelectUtxo(utxos, amount, fee)
	if err != nil {
		logger.WithField("error", err).Error("cannot select enough utxos")
		return nil, err
	}
	return selected, nil
}

func (bu *BtcUser) send(tx *wire.MsgTx) (string, error) {
	hash, err := bu.BtcRpcClient.SendRawTx(tx)
	if err != nil {
		logger.WithField("error", err).Error("send raw Tx error")
		return "", err
	}
	logger.WithField("btc_tx_id", hash.String()).Info("Tx sent")
	return hash.String(), nil
}

// DepositToBridge pegs amount satoshi in, to be minted to recipient on
// Stacks. amount and fee are in satoshi.
func (bu *BtcUser) DepositToBridge(amount int64, fee int64, recipient string, memo []byte) (string, error) {
	principal, err := bu.parseRecipient(recipient)
	if err != nil {
		return "", err
	}

	selected, err := bu.selectFunds(amount, fee)
	if err != nil {
		return "", err
	}
	tx, err := bu.MyAssembler.MakeDepositTx(bu.pegWallet, amount, principal, memo, bu.address, fee, selected)
	if err != nil {
		logger.WithField("error", err).Error("cannot create deposit Tx")
		return "", err
	}
	return bu.send(tx)
}

// RequestWithdrawal asks the bridge to burn amount sBTC held by the Stacks
// key stacksPrivHex and pay it to btcRecipient. fulfillmentFee is paid to
// the peg wallet to cover the fulfillment; fee pays for this transaction.
func (bu *BtcUser) RequestWithdrawal(stacksPrivHex string, btcRecipient string, amount uint64, fulfillmentFee int64, fee int64) (string, error) {
	key, err := parseStacksKey(stacksPrivHex)
	if err != nil {
		return "", err
	}
	recipient, err := assembler.DecodeAddress(btcRecipient, bu.MyUserConfig.BtcChainConfig)
	if err != nil {
		return "", fmt.Errorf("recipient: %w", err)
	}

	// the recipient output carries a dust amount on top of the fulfillment fee
	recipientScript, err := txscript.PayToAddrScript(recipient)
	if err != nil {
		return "", err
	}
	dust := mempool.GetDustThreshold(wire.NewTxOut(0, recipientScript))

	selected, err := bu.selectFunds(fulfillmentFee+dust, fee)
	if err != nil {
		return "", err
	}
	tx, err := bu.MyAssembler.MakeWithdrawalRequestTx(key, bu.pegWallet, recipient, amount, fulfillmentFee, bu.address, fee, selected)
	if err != nil {
		logger.WithField("error", err).Error("cannot create withdrawal request Tx")
		return "", err
	}
	return bu.send(tx)
}

// DepositViaCommitReveal pegs amount satoshi in through a taproot commitment
// instead of a data output. The commit pays amount + revealFee; the reveal
// hands amount to the peg wallet. It returns both transaction ids.
func (bu *BtcUser) DepositViaCommitReveal(amount, commitFee, revealFee int64, recipient string, memo []byte) (string, string, error) {
	principal, err := bu.parseRecipient(recipient)
	if err != nil {
		return "", "", err
	}
	payload, err := (&sbtc.DepositPayload{Recipient: principal, Memo: memo}).Encode()
	if err != nil {
		return "", "", err
	}
	envelope, err := sbtc.Envelope(bu.MyUserConfig.BtcChainConfig, sbtc.OpDeposit, payload)
	if err != nil {
		return "", "", err
	}

	commitAmount := amount + revealFee
	return bu.commitReveal(envelope, commitAmount, commitFee, func(commit wire.OutPoint) (*wire.MsgTx, error) {
		return sbtc.DepositReveal(commit, commitAmount, revealFee, bu.pegWallet)
	})
}

// RequestWithdrawalViaCommitReveal is RequestWithdrawal with the request
// carried by a taproot commitment. It returns the commit and reveal ids.
func (bu *BtcUser) RequestWithdrawalViaCommitReveal(stacksPrivHex string, btcRecipient string, amount uint64, fulfillmentFee, commitFee, revealFee int64) (string, string, error) {
	key, err := parseStacksKey(stacksPrivHex)
	if err != nil {
		return "", "", err
	}
	recipient, err := assembler.DecodeAddress(btcRecipient, bu.MyUserConfig.BtcChainConfig)
	if err != nil {
		return "", "", fmt.Errorf("recipient: %w", err)
	}
	recipientScript, err := txscript.PayToAddrScript(recipient)
	if err != nil {
		return "", "", err
	}

	body, err := sbtc.SignWithdrawalRequest(key, amount, recipientScript, nil)
	if err != nil {
		return "", "", err
	}
	envelope, err := sbtc.Envelope(bu.MyUserConfig.BtcChainConfig, sbtc.OpWithdrawalRequest, body.Encode())
	if err != nil {
		return "", "", err
	}

	dust := mempool.GetDustThreshold(wire.NewTxOut(0, recipientScript))
	commitAmount := dust + fulfillmentFee + revealFee
	return bu.commitReveal(envelope, commitAmount, commitFee, func(commit wire.OutPoint) (*wire.MsgTx, error) {
		return sbtc.WithdrawalReveal(commit, commitAmount, revealFee, fulfillmentFee, recipient, bu.pegWallet)
	})
}

// commitReveal funds a commitment to envelope from the user's coins and then
// spends it through the data leaf. The user's key is both the reveal key and
// the reclaim key.
func (bu *BtcUser) commitReveal(
	envelope []byte,
	commitAmount, commitFee int64,
	makeReveal func(commit wire.OutPoint) (*wire.MsgTx, error),
) (string, string, error) {
	key := bu.MyOperator.PrivKey
	commitment, err := sbtc.NewCommitment(envelope, key.PubKey(), key.PubKey())
	if err != nil {
		return "", "", err
	}

	selected, err := bu.selectFunds(commitAmount, commitFee)
	if err != nil {
		return "", "", err
	}
	commitTx, err := bu.MyAssembler.MakeCommitTx(commitment, commitAmount, bu.address, commitFee, selected)
	if err != nil {
		logger.WithField("error", err).Error("cannot create commit Tx")
		return "", "", err
	}

	// build and sign the reveal before anything is sent
	revealTx, err := makeReveal(wire.OutPoint{Hash: commitTx.TxHash(), Index: 0})
	if err != nil {
		logger.WithField("error", err).Error("cannot create reveal Tx")
		return "", "", err
	}
	if err := commitment.SignReveal(revealTx, commitAmount, key); err != nil {
		return "", "", err
	}

	commitID, err := bu.send(commitTx)
	if err != nil {
		return "", "", err
	}
	revealID, err := bu.send(revealTx)
	if err != nil {
		return commitID, "", err
	}
	return commitID, revealID, nil
}

func (bu *BtcUser) MineEnoughBlocks() ([]*chainhash.Hash, error) {
	if bu.MyUserConfig.BtcChainConfig.Net != chaincfg.RegressionNetParams.Net {
		logger.Error("mine blocks only works in regtest mode")
		return nil, fmt.Errorf("MineEnoughBlocks() only works in btc regtest mode")
	}

	_coinbase_addr, _ := assembler.DecodeAddress(REGTEST_COINBASE_ADDR, bu.MyUserConfig.BtcChainConfig)
	return bu.BtcRpcClient.GenerateBlocks(REGTEST_GENERATE_BLOCKS, _coinbase_addr)
}

// parseRecipient accepts a Stacks principal of the network paired with the
// user's Bitcoin chain.
func (bu *BtcUser) parseRecipient(recipient string) (stacks.Principal, error) {
	principal, err := stacks.ParsePrincipal(recipient)
	if err != nil {
		return stacks.Principal{}, fmt.Errorf("recipient: %w", err)
	}
	net := stacks.NetworkFor(bu.MyUserConfig.BtcChainConfig)
	if v := principal.Address.Version; v != net.SingleSigVersion && v != net.MultiSigVersion {
		return stacks.Principal{}, fmt.Errorf("recipient %s is not a %s address", recipient, net.Name)
	}
	return principal, nil
}

// parseStacksKey accepts a hex key with or without the 0x01 compression
// suffix that Stacks tooling appends.
func parseStacksKey(hexKey string) (*btcec.PrivateKey, error) {
	b, err := common.HexStrToByteSlice(hexKey)
	if err != nil {
		return nil, fmt.Errorf("stacks key: %w", err)
	}
	if len(b) == 33 && b[32] == 0x01 {
		b = b[:32]
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("stacks key: expected 32 bytes, got %d", len(b))
	}
	key, _ := btcec.PrivKeyFromBytes(b)
	return key, nil
}
