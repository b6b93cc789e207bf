package sbtc

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

const (
	CompactSignatureLength = 64

	// amount(8) | recovery id(1) | signature(64)
	WithdrawalRequestMinLength = 8 + 1 + CompactSignatureLength

	// compact header for a compressed key is 27 + 4 + recovery id
	compactHeaderCompressed = 27 + 4
)

var ErrSignatureRecovery = errors.New("cannot recover withdrawal signer")

// WithdrawalRequestPayload is the body of a withdrawal request envelope.
type WithdrawalRequestPayload struct {
	Amount     uint64
	RecoveryID byte
	Signature  [CompactSignatureLength]byte
	Memo       []byte
}

// WithdrawalSigHash is the digest a withdrawer signs: amount as 8 big-endian
// bytes followed by the recipient output script.
func WithdrawalSigHash(amount uint64, recipientScript []byte) [32]byte {
	msg := make([]byte, 8, 8+len(recipientScript))
	binary.BigEndian.PutUint64(msg, amount)
	return sha256.Sum256(append(msg, recipientScript...))
}

// SignWithdrawalRequest signs a request with the key holding the pegged funds.
func SignWithdrawalRequest(key *btcec.PrivateKey, amount uint64, recipientScript []byte, memo []byte) (*WithdrawalRequestPayload, error) {
	digest := WithdrawalSigHash(amount, recipientScript)
	compact := ecdsa.SignCompact(key, digest[:], true)

	p := &WithdrawalRequestPayload{
		Amount:     amount,
		RecoveryID: compact[0] - compactHeaderCompressed,
		Memo:       memo,
	}
	copy(p.Signature[:], compact[1:])
	return p, nil
}

func (p *WithdrawalRequestPayload) Encode() []byte {
	b := make([]byte, WithdrawalRequestMinLength, WithdrawalRequestMinLength+len(p.Memo))
	binary.BigEndian.PutUint64(b[:8], p.Amount)
	b[8] = p.RecoveryID
	copy(b[9:], p.Signature[:])
	return append(b, p.Memo...)
}

func DecodeWithdrawalRequestPayload(b []byte) (*WithdrawalRequestPayload, error) {
	if len(b) < WithdrawalRequestMinLength {
		return nil, fmt.Errorf("%w: withdrawal request needs %d bytes, got %d", ErrPayloadTooShort, WithdrawalRequestMinLength, len(b))
	}

	p := &WithdrawalRequestPayload{
		Amount:     binary.BigEndian.Uint64(b[:8]),
		RecoveryID: b[8],
	}
	copy(p.Signature[:], b[9:WithdrawalRequestMinLength])
	if memo := b[WithdrawalRequestMinLength:]; len(memo) > 0 {
		p.Memo = append([]byte{}, memo...)
	}
	return p, nil
}

// RecoverSigner returns the public key that signed the request for the given
// recipient script.
func (p *WithdrawalRequestPayload) RecoverSigner(recipientScript []byte) (*btcec.PublicKey, error) {
	if p.RecoveryID > 3 {
		return nil, fmt.Errorf("%w: recovery id %d", ErrSignatureRecovery, p.RecoveryID)
	}

	compact := make([]byte, 1+CompactSignatureLength)
	compact[0] = compactHeaderCompressed + p.RecoveryID
	copy(compact[1:], p.Signature[:])

	digest := WithdrawalSigHash(p.Amount, recipientScript)
	pub, _, err := ecdsa.RecoverCompact(compact, digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureRecovery, err)
	}
	return pub, nil
}

const ChainTipLength = 32

// WithdrawalFulfillmentPayload is chain_tip(32) | memo.
type WithdrawalFulfillmentPayload struct {
	ChainTip [ChainTipLength]byte
	Memo     []byte
}

func (p *WithdrawalFulfillmentPayload) Encode() []byte {
	return append(append(make([]byte, 0, ChainTipLength+len(p.Memo)), p.ChainTip[:]...), p.Memo...)
}

func DecodeWithdrawalFulfillmentPayload(b []byte) (*WithdrawalFulfillmentPayload, error) {
	if len(b) < ChainTipLength {
		return nil, fmt.Errorf("%w: fulfillment needs %d bytes, got %d", ErrPayloadTooShort, ChainTipLength, len(b))
	}

	var p WithdrawalFulfillmentPayload
	copy(p.ChainTip[:], b[:ChainTipLength])
	if memo := b[ChainTipLength:]; len(memo) > 0 {
		p.Memo = append([]byte{}, memo...)
	}
	return &p, nil
}
