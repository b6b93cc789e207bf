// Package stackstx builds and signs the contract-call transactions the peg
// sends to the Stacks chain: mint, burn and the wallet public key update.
package stackstx

import (
	"bytes"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/TEENet-io/sbtc-bridge/stacks"
	"github.com/TEENet-io/sbtc-bridge/stacks/clarity"
)

const (
	AuthTypeStandard byte = 0x04

	HashModeP2PKH byte = 0x00

	PubKeyEncodingCompressed byte = 0x00

	AnchorModeAny byte = 0x03

	PostConditionModeAllow byte = 0x01

	PayloadTypeContractCall byte = 0x02

	RecoverableSignatureLength = 65
)

var (
	ErrNameTooLong  = errors.New("name longer than 128 bytes")
	ErrNotSigned    = errors.New("transaction is not signed")
	ErrSignerKeyMix = errors.New("signing key does not match the spending condition")
)

// ContractCall is an unsigned or signed single-sig contract-call transaction.
type ContractCall struct {
	Network stacks.Network

	Signer [20]byte
	Nonce  uint64
	Fee    uint64

	Signature [RecoverableSignatureLength]byte

	Contract stacks.Principal
	Function string
	Args     []clarity.Value
}

// NewContractCall prepares a call from the account of key. The contract must
// be a contract principal.
func NewContractCall(
	network stacks.Network,
	key *btcec.PublicKey,
	contract stacks.Principal,
	function string,
	args []clarity.Value,
	nonce, fee uint64,
) (*ContractCall, error) {
	if !contract.IsContract() {
		return nil, fmt.Errorf("not a contract principal: %s", contract)
	}
	if len(function) > 128 {
		return nil, ErrNameTooLong
	}

	addr := stacks.AddressFromPublicKey(network.SingleSigVersion, key)
	return &ContractCall{
		Network:  network,
		Signer:   addr.Hash160,
		Nonce:    nonce,
		Fee:      fee,
		Contract: contract,
		Function: function,
		Args:     args,
	}, nil
}

// Serialize writes the consensus encoding of the transaction.
func (tx *ContractCall) Serialize() []byte {
	return tx.serialize(tx.Nonce, tx.Fee, tx.Signature)
}

func (tx *ContractCall) serialize(nonce, fee uint64, sig [RecoverableSignatureLength]byte) []byte {
	var buf bytes.Buffer

	buf.WriteByte(tx.Network.TxVersion)
	_ = binary.Write(&buf, binary.BigEndian, tx.Network.ChainID)

	buf.WriteByte(AuthTypeStandard)
	buf.WriteByte(HashModeP2PKH)
	buf.Write(tx.Signer[:])
	_ = binary.Write(&buf, binary.BigEndian, nonce)
	_ = binary.Write(&buf, binary.BigEndian, fee)
	buf.WriteByte(PubKeyEncodingCompressed)
	buf.Write(sig[:])

	buf.WriteByte(AnchorModeAny)
	buf.WriteByte(PostConditionModeAllow)
	_ = binary.Write(&buf, binary.BigEndian, uint32(0))

	buf.WriteByte(PayloadTypeContractCall)
	buf.WriteByte(tx.Contract.Address.Version)
	buf.Write(tx.Contract.Address.Hash160[:])
	writeName(&buf, tx.Contract.ContractName)
	writeName(&buf, tx.Function)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(tx.Args)))
	for _, arg := range tx.Args {
		arg.Serialize(&buf)
	}

	return buf.Bytes()
}

func writeName(buf *bytes.Buffer, name string) {
	buf.WriteByte(byte(len(name)))
	buf.WriteString(name)
}

// initialSigHash hashes the transaction with a cleared spending condition.
func (tx *ContractCall) initialSigHash() [32]byte {
	return sha512.Sum512_256(tx.serialize(0, 0, [RecoverableSignatureLength]byte{}))
}

// PresignSigHash is the digest the origin account signs.
func (tx *ContractCall) PresignSigHash() [32]byte {
	initial := tx.initialSigHash()

	var buf bytes.Buffer
	buf.Write(initial[:])
	buf.WriteByte(AuthTypeStandard)
	_ = binary.Write(&buf, binary.BigEndian, tx.Fee)
	_ = binary.Write(&buf, binary.BigEndian, tx.Nonce)
	return sha512.Sum512_256(buf.Bytes())
}

// Sign fills in the recoverable signature, stored as recid || r || s.
func (tx *ContractCall) Sign(key *btcec.PrivateKey) error {
	addr := stacks.AddressFromPublicKey(tx.Network.SingleSigVersion, key.PubKey())
	if addr.Hash160 != tx.Signer {
		return ErrSignerKeyMix
	}

	digest := tx.PresignSigHash()
	compact := ecdsa.SignCompact(key, digest[:], true)

	// compact header is 27 + 4 (compressed) + recid
	tx.Signature[0] = compact[0] - 31
	copy(tx.Signature[1:], compact[1:])
	return nil
}

func (tx *ContractCall) Signed() bool {
	return tx.Signature != [RecoverableSignatureLength]byte{}
}

// RecoverSigner returns the public key that produced the signature.
func (tx *ContractCall) RecoverSigner() (*btcec.PublicKey, error) {
	if !tx.Signed() {
		return nil, ErrNotSigned
	}

	compact := make([]byte, RecoverableSignatureLength)
	compact[0] = tx.Signature[0] + 31
	copy(compact[1:], tx.Signature[1:])

	digest := tx.PresignSigHash()
	pub, _, err := ecdsa.RecoverCompact(compact, digest[:])
	return pub, err
}

// TxID is the sha512/256 of the signed serialization.
func (tx *ContractCall) TxID() stacks.TxID {
	return sha512.Sum512_256(tx.Serialize())
}
