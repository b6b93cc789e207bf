package sbtc

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Unspendable internal key (BIP-341 NUMS point), so the commit output can
// only be spent through one of its leaves.
const numsInternalKeyHex = "50929b74c1a04954b78b4b6035e97a5e078a5a0f28ec96d547bfee9ace803ac0"

var (
	ErrNotRevealWitness = errors.New("witness is not a peg reveal")
	ErrRevealUnderflow  = errors.New("commit amount does not cover the reveal")
)

func numsInternalKey() *btcec.PublicKey {
	b, _ := hex.DecodeString(numsInternalKeyHex)
	key, err := schnorr.ParsePubKey(b)
	if err != nil {
		panic(err)
	}
	return key
}

// DataScript is the data-carrying leaf:
//
//	<envelope> OP_DROP <reveal key> OP_CHECKSIG
func DataScript(envelope []byte, revealKey *btcec.PublicKey) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddData(envelope).
		AddOp(txscript.OP_DROP).
		AddData(schnorr.SerializePubKey(revealKey)).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

// ReclaimScript lets the committer take the funds back if the reveal never
// happens.
func ReclaimScript(reclaimKey *btcec.PublicKey) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddData(schnorr.SerializePubKey(reclaimKey)).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

// Commitment is the taproot tree a commit transaction pays to.
type Commitment struct {
	Envelope    []byte
	DataLeaf    txscript.TapLeaf
	ReclaimLeaf txscript.TapLeaf
	InternalKey *btcec.PublicKey
	OutputKey   *btcec.PublicKey

	tree *txscript.IndexedTapScriptTree
}

func NewCommitment(envelope []byte, revealKey, reclaimKey *btcec.PublicKey) (*Commitment, error) {
	dataScript, err := DataScript(envelope, revealKey)
	if err != nil {
		return nil, err
	}
	reclaimScript, err := ReclaimScript(reclaimKey)
	if err != nil {
		return nil, err
	}

	c := &Commitment{
		Envelope:    envelope,
		DataLeaf:    txscript.NewBaseTapLeaf(dataScript),
		ReclaimLeaf: txscript.NewBaseTapLeaf(reclaimScript),
		InternalKey: numsInternalKey(),
	}
	c.tree = txscript.AssembleTaprootScriptTree(c.DataLeaf, c.ReclaimLeaf)

	root := c.tree.RootNode.TapHash()
	c.OutputKey = txscript.ComputeTaprootOutputKey(c.InternalKey, root[:])
	return c, nil
}

func (c *Commitment) Address(params *chaincfg.Params) (*btcutil.AddressTaproot, error) {
	return btcutil.NewAddressTaproot(schnorr.SerializePubKey(c.OutputKey), params)
}

func (c *Commitment) PkScript() ([]byte, error) {
	return txscript.PayToTaprootScript(c.OutputKey)
}

func (c *Commitment) controlBlock(leaf int) ([]byte, error) {
	cb := c.tree.LeafMerkleProofs[leaf].ToControlBlock(c.InternalKey)
	cb.OutputKeyYIsOdd = c.OutputKey.SerializeCompressed()[0] == 0x03
	return cb.ToBytes()
}

func (c *Commitment) DataControlBlock() ([]byte, error) {
	return c.controlBlock(0)
}

func (c *Commitment) ReclaimControlBlock() ([]byte, error) {
	return c.controlBlock(1)
}

func newRevealTx(commit wire.OutPoint) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&commit, nil, nil))
	return tx
}

// DepositReveal spends the commit output through the data leaf and pays
// commitAmount - revealFee to the peg wallet.
func DepositReveal(commit wire.OutPoint, commitAmount, revealFee int64, pegWallet btcutil.Address) (*wire.MsgTx, error) {
	amount := commitAmount - revealFee
	if amount <= 0 {
		return nil, fmt.Errorf("%w: commit=%d, fee=%d", ErrRevealUnderflow, commitAmount, revealFee)
	}

	pegScript, err := txscript.PayToAddrScript(pegWallet)
	if err != nil {
		return nil, err
	}
	if err := CheckDust(pegScript, amount); err != nil {
		return nil, err
	}

	tx := newRevealTx(commit)
	tx.AddTxOut(wire.NewTxOut(amount, pegScript))
	return tx, nil
}

// WithdrawalReveal pays commitAmount - revealFee - fulfillmentFee to the
// recipient and the fulfillment fee to the peg wallet, in that order.
func WithdrawalReveal(
	commit wire.OutPoint,
	commitAmount, revealFee, fulfillmentFee int64,
	recipient, pegWallet btcutil.Address,
) (*wire.MsgTx, error) {
	amount := commitAmount - revealFee - fulfillmentFee
	if amount <= 0 {
		return nil, fmt.Errorf("%w: commit=%d, fee=%d, fulfillment=%d", ErrRevealUnderflow, commitAmount, revealFee, fulfillmentFee)
	}

	recipientScript, err := txscript.PayToAddrScript(recipient)
	if err != nil {
		return nil, err
	}
	if err := CheckDust(recipientScript, amount); err != nil {
		return nil, err
	}
	pegScript, err := txscript.PayToAddrScript(pegWallet)
	if err != nil {
		return nil, err
	}
	if err := CheckDust(pegScript, fulfillmentFee); err != nil {
		return nil, err
	}

	tx := newRevealTx(commit)
	tx.AddTxOut(wire.NewTxOut(amount, recipientScript))
	tx.AddTxOut(wire.NewTxOut(fulfillmentFee, pegScript))
	return tx, nil
}

// SignReveal signs input 0 of a reveal with the reveal key and sets the
// witness to <sig> <data script> <control block>.
func (c *Commitment) SignReveal(tx *wire.MsgTx, commitAmount int64, revealKey *btcec.PrivateKey) error {
	pkScript, err := c.PkScript()
	if err != nil {
		return err
	}

	fetcher := txscript.NewCannedPrevOutputFetcher(pkScript, commitAmount)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	sig, err := txscript.RawTxInTapscriptSignature(
		tx, sigHashes, 0, commitAmount, pkScript, c.DataLeaf, txscript.SigHashDefault, revealKey,
	)
	if err != nil {
		return err
	}

	cb, err := c.DataControlBlock()
	if err != nil {
		return err
	}

	tx.TxIn[0].Witness = wire.TxWitness{sig, c.DataLeaf.Script, cb}
	return nil
}

// ParseRevealWitness returns the envelope carried by a data-leaf spend.
func ParseRevealWitness(witness wire.TxWitness) ([]byte, error) {
	items := witness
	if len(items) >= 2 {
		last := items[len(items)-1]
		if len(last) > 0 && last[0] == txscript.TaprootAnnexTag {
			items = items[:len(items)-1]
		}
	}
	if len(items) != 3 {
		return nil, ErrNotRevealWitness
	}
	if _, err := txscript.ParseControlBlock(items[2]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRevealWitness, err)
	}

	tokenizer := txscript.MakeScriptTokenizer(0, items[1])

	if !tokenizer.Next() || len(tokenizer.Data()) < EnvelopeHeaderLength {
		return nil, ErrNotRevealWitness
	}
	envelope := tokenizer.Data()

	if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_DROP {
		return nil, ErrNotRevealWitness
	}
	if !tokenizer.Next() || len(tokenizer.Data()) != schnorr.PubKeyBytesLen {
		return nil, ErrNotRevealWitness
	}
	if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_CHECKSIG {
		return nil, ErrNotRevealWitness
	}
	if tokenizer.Next() || tokenizer.Err() != nil {
		return nil, ErrNotRevealWitness
	}

	return envelope, nil
}
