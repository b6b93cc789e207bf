package cmd

import (
	"encoding/hex"
	"os"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/sbtc-bridge/btcman/utxo"
	"github.com/TEENet-io/sbtc-bridge/common"
	"github.com/TEENet-io/sbtc-bridge/sbtc"
	"github.com/TEENet-io/sbtc-bridge/stacks"
)

var regtest = &chaincfg.RegressionNetParams

type keyset struct {
	wif       *btcutil.WIF
	p2wpkh    btcutil.Address
	stxKey    *btcec.PrivateKey
	stxAddr   stacks.Address
	pegWallet btcutil.Address
	contract  stacks.Principal
}

func newKeyset(t *testing.T) *keyset {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	wif, err := btcutil.NewWIF(priv, regtest, true)
	require.NoError(t, err)
	p2wpkh, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(priv.PubKey().SerializeCompressed()), regtest)
	require.NoError(t, err)

	pegKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	peg, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pegKey.PubKey().SerializeCompressed()), regtest)
	require.NoError(t, err)

	stxKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	stxAddr := stacks.AddressFromPublicKey(stacks.Testnet.SingleSigVersion, stxKey.PubKey())
	contract, err := stacks.ContractPrincipal(stxAddr, "asset")
	require.NoError(t, err)

	return &keyset{wif, p2wpkh, stxKey, stxAddr, peg, contract}
}

func (k *keyset) viper() *viper.Viper {
	v := viper.New()
	v.Set(KEY_BTC_CHAIN_CONFIG, "regtest")
	v.Set(KEY_PEG_WALLET_PRIV, k.wif.String())
	v.Set(KEY_PEG_WALLET_ADDR, k.pegWallet.EncodeAddress())
	v.Set(KEY_STACKS_API_URL, "http://localhost:3999")
	v.Set(KEY_STACKS_PRIV, hex.EncodeToString(k.stxKey.Serialize())+"01")
	v.Set(KEY_STACKS_CONTRACT, k.contract.String())
	v.Set(KEY_DB_FILE_PATH, "peg.db")
	return v
}

func TestLoadBridgeServerConfig(t *testing.T) {
	k := newKeyset(t)
	v := k.viper()
	v.Set(KEY_POLL_INTERVAL, "3s")
	v.Set(KEY_STRICT, true)

	cfg, err := LoadBridgeServerConfig(v)
	require.NoError(t, err)
	assert.Equal(t, regtest.Name, cfg.BtcChainConfig.Name)
	assert.Equal(t, k.pegWallet.EncodeAddress(), cfg.PegWalletAddr.EncodeAddress())
	assert.Equal(t, k.stxKey.Serialize(), cfg.StacksKey.Serialize())
	assert.Equal(t, k.contract, cfg.StacksContract)
	assert.Equal(t, STORE_SQLITE, cfg.StoreBackend)
	assert.Equal(t, uint64(10_000), cfg.StacksTxFee)
	assert.Equal(t, 3*time.Second, cfg.PollInterval)
	assert.True(t, cfg.Strict)
	assert.Equal(t, "8080", cfg.HttpPort)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadBridgeServerConfigErrors(t *testing.T) {
	k := newKeyset(t)

	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"unknown chain", KEY_BTC_CHAIN_CONFIG, "moonnet"},
		{"mainnet peg wallet", KEY_PEG_WALLET_ADDR, "1BoatSLRHtKNngkdXEeobR76b53LETtpyT"},
		{"short stacks key", KEY_STACKS_PRIV, "0102"},
		{"standard principal as contract", KEY_STACKS_CONTRACT, k.stxAddr.String()},
		{"unknown store", KEY_STORE_BACKEND, "etcd"},
		{"redis without addr", KEY_STORE_BACKEND, STORE_REDIS},
		{"sqlite without path", KEY_DB_FILE_PATH, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := k.viper()
			v.Set(tt.key, tt.val)
			_, err := LoadBridgeServerConfig(v)
			assert.Error(t, err)
		})
	}
}

type fakeNode struct {
	coins    []*utxo.UTXO
	sent     []*wire.MsgTx
	imported []string
}

func (n *fakeNode) GetUtxoList(addr btcutil.Address, minConf int) ([]*utxo.UTXO, error) {
	return n.coins, nil
}

func (n *fakeNode) SendRawTx(tx *wire.MsgTx) (*chainhash.Hash, error) {
	n.sent = append(n.sent, tx)
	h := tx.TxHash()
	return &h, nil
}

func (n *fakeNode) ImportPrivateKey(wif *btcutil.WIF, label string) error {
	n.imported = append(n.imported, wif.String())
	return nil
}

func (n *fakeNode) GenerateBlocks(numBlocks int64, coinbase btcutil.Address) ([]*chainhash.Hash, error) {
	return make([]*chainhash.Hash, numBlocks), nil
}

func newTestUser(t *testing.T, k *keyset, funds int64) (*BtcUser, *fakeNode) {
	script, err := txscript.PayToAddrScript(k.p2wpkh)
	require.NoError(t, err)
	node := &fakeNode{
		coins: []*utxo.UTXO{utxo.New(chainhash.Hash(common.RandBytes32()), 0, wire.NewTxOut(funds, script))},
	}
	bu, err := newBtcUser(&BtcUserConfig{
		BtcChainConfig:     regtest,
		BtcCoreAccountPriv: k.wif.String(),
		BtcCoreAccountAddr: k.p2wpkh.EncodeAddress(),
		PegWalletAddr:      k.pegWallet.EncodeAddress(),
	}, node, true)
	require.NoError(t, err)
	return bu, node
}

func TestBtcUserDeposit(t *testing.T) {
	k := newKeyset(t)
	bu, node := newTestUser(t, k, 100_000)
	assert.Equal(t, []string{k.wif.String()}, node.imported)

	balance, err := bu.GetBalance()
	require.NoError(t, err)
	assert.Equal(t, int64(100_000), balance)

	recipient := stacks.StandardPrincipal(k.stxAddr)
	txid, err := bu.DepositToBridge(60_000, 1_000, recipient.String(), []byte("hi"))
	require.NoError(t, err)
	require.Len(t, node.sent, 1)
	assert.Equal(t, node.sent[0].TxHash().String(), txid)

	dep, err := sbtc.ParseDepositTx(regtest, node.sent[0], k.pegWallet)
	require.NoError(t, err)
	assert.Equal(t, int64(60_000), dep.Amount)
	assert.Equal(t, recipient, dep.Recipient)
	assert.Equal(t, []byte("hi"), dep.Memo)

	// change goes back to the user
	last := node.sent[0].TxOut[len(node.sent[0].TxOut)-1]
	assert.Equal(t, int64(100_000-60_000-1_000), last.Value)

	_, err = bu.DepositToBridge(200_000, 1_000, recipient.String(), nil)
	assert.ErrorContains(t, err, "not enough balance")

	mainnetAddr := stacks.AddressFromPublicKey(stacks.Mainnet.SingleSigVersion, k.stxKey.PubKey())
	_, err = bu.DepositToBridge(10_000, 1_000, mainnetAddr.String(), nil)
	assert.Error(t, err)
}

func TestBtcUserWithdrawalRequest(t *testing.T) {
	k := newKeyset(t)
	bu, node := newTestUser(t, k, 100_000)

	recipient, err := btcutil.NewAddressWitnessPubKeyHash(make([]byte, 20), regtest)
	require.NoError(t, err)

	_, err = bu.RequestWithdrawal(hex.EncodeToString(k.stxKey.Serialize()), recipient.EncodeAddress(), 25_000, 5_000, 1_000)
	require.NoError(t, err)
	require.Len(t, node.sent, 1)

	req, err := sbtc.ParseWithdrawalRequestTx(regtest, node.sent[0], k.pegWallet)
	require.NoError(t, err)
	assert.Equal(t, uint64(25_000), req.Amount)
	assert.Equal(t, int64(5_000), req.FulfillmentFee)
	assert.Equal(t, recipient.EncodeAddress(), req.Recipient.EncodeAddress())
	assert.Equal(t, stacks.StandardPrincipal(k.stxAddr), req.Source)

	_, err = bu.RequestWithdrawal("zz", recipient.EncodeAddress(), 25_000, 5_000, 1_000)
	assert.Error(t, err)
}

// verifyReveal runs the script engine over input 0 of reveal against the
// commit output it spends.
func verifyReveal(t *testing.T, commit, reveal *wire.MsgTx) {
	prev := commit.TxOut[0]
	require.Equal(t, wire.OutPoint{Hash: commit.TxHash(), Index: 0}, reveal.TxIn[0].PreviousOutPoint)

	fetcher := txscript.NewCannedPrevOutputFetcher(prev.PkScript, prev.Value)
	vm, err := txscript.NewEngine(prev.PkScript, reveal, 0, txscript.StandardVerifyFlags, nil,
		txscript.NewTxSigHashes(reveal, fetcher), prev.Value, fetcher)
	require.NoError(t, err)
	require.NoError(t, vm.Execute())
}

func TestBtcUserDepositViaCommitReveal(t *testing.T) {
	k := newKeyset(t)
	bu, node := newTestUser(t, k, 100_000)

	recipient := stacks.StandardPrincipal(k.stxAddr)
	commitID, revealID, err := bu.DepositViaCommitReveal(60_000, 1_000, 500, recipient.String(), []byte("hi"))
	require.NoError(t, err)
	require.Len(t, node.sent, 2)
	commit, reveal := node.sent[0], node.sent[1]
	assert.Equal(t, commit.TxHash().String(), commitID)
	assert.Equal(t, reveal.TxHash().String(), revealID)

	// the commit pays a taproot output and returns change to the user
	assert.Equal(t, int64(60_500), commit.TxOut[0].Value)
	assert.True(t, txscript.IsPayToTaproot(commit.TxOut[0].PkScript))
	assert.Equal(t, int64(100_000-60_500-1_000), commit.TxOut[1].Value)

	pegScript, err := txscript.PayToAddrScript(k.pegWallet)
	require.NoError(t, err)
	require.Len(t, reveal.TxOut, 1)
	assert.Equal(t, wire.NewTxOut(60_000, pegScript), reveal.TxOut[0])
	verifyReveal(t, commit, reveal)

	envelope, err := sbtc.ParseRevealWitness(reveal.TxIn[0].Witness)
	require.NoError(t, err)
	op, payload, err := sbtc.ParseEnvelope(regtest, envelope)
	require.NoError(t, err)
	assert.Equal(t, sbtc.OpDeposit, op)
	body, err := sbtc.DecodeDepositPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, recipient, body.Recipient)
	assert.Equal(t, []byte("hi"), body.Memo)

	// nothing is sent when the reveal cannot be built
	_, _, err = bu.DepositViaCommitReveal(100, 1_000, 500, recipient.String(), nil)
	var dustErr *sbtc.DustError
	assert.ErrorAs(t, err, &dustErr)
	assert.Len(t, node.sent, 2)
}

func TestBtcUserWithdrawalViaCommitReveal(t *testing.T) {
	k := newKeyset(t)
	bu, node := newTestUser(t, k, 100_000)

	recipient, err := btcutil.NewAddressWitnessPubKeyHash(make([]byte, 20), regtest)
	require.NoError(t, err)
	recipientScript, err := txscript.PayToAddrScript(recipient)
	require.NoError(t, err)
	dust := mempool.GetDustThreshold(wire.NewTxOut(0, recipientScript))

	_, _, err = bu.RequestWithdrawalViaCommitReveal(hex.EncodeToString(k.stxKey.Serialize()), recipient.EncodeAddress(), 25_000, 5_000, 1_000, 500)
	require.NoError(t, err)
	require.Len(t, node.sent, 2)
	commit, reveal := node.sent[0], node.sent[1]

	assert.Equal(t, dust+5_000+500, commit.TxOut[0].Value)
	pegScript, err := txscript.PayToAddrScript(k.pegWallet)
	require.NoError(t, err)
	require.Len(t, reveal.TxOut, 2)
	assert.Equal(t, wire.NewTxOut(dust, recipientScript), reveal.TxOut[0])
	assert.Equal(t, wire.NewTxOut(5_000, pegScript), reveal.TxOut[1])
	verifyReveal(t, commit, reveal)

	envelope, err := sbtc.ParseRevealWitness(reveal.TxIn[0].Witness)
	require.NoError(t, err)
	op, payload, err := sbtc.ParseEnvelope(regtest, envelope)
	require.NoError(t, err)
	assert.Equal(t, sbtc.OpWithdrawalRequest, op)
	body, err := sbtc.DecodeWithdrawalRequestPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(25_000), body.Amount)
	signer, err := body.RecoverSigner(recipientScript)
	require.NoError(t, err)
	assert.True(t, signer.IsEqual(k.stxKey.PubKey()))
}

func TestBtcUserWrongAddress(t *testing.T) {
	k := newKeyset(t)
	other := newKeyset(t)

	_, err := newBtcUser(&BtcUserConfig{
		BtcChainConfig:     regtest,
		BtcCoreAccountPriv: k.wif.String(),
		BtcCoreAccountAddr: other.p2wpkh.EncodeAddress(),
		PegWalletAddr:      k.pegWallet.EncodeAddress(),
	}, &fakeNode{}, false)
	assert.Error(t, err)
}

func TestMineEnoughBlocksRegtestOnly(t *testing.T) {
	k := newKeyset(t)
	bu, _ := newTestUser(t, k, 1_000)
	blocks, err := bu.MineEnoughBlocks()
	require.NoError(t, err)
	assert.Len(t, blocks, REGTEST_GENERATE_BLOCKS)

	bu.MyUserConfig.BtcChainConfig = &chaincfg.TestNet3Params
	_, err = bu.MineEnoughBlocks()
	assert.Error(t, err)
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, FileExists(dir))
	assert.False(t, FileExists(dir+"/missing.yaml"))

	path := dir + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("HTTP_PORT: 8080\n"), 0o600))
	assert.True(t, FileExists(path))
}
