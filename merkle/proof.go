package merkle

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/TEENet-io/sbtc-bridge/common"
)

var (
	ErrTxIndexOutOfRange = errors.New("transaction index out of range for block")
	ErrNoCoinbaseHeight  = errors.New("coinbase does not carry a block height")
)

// ProofData is everything the peg contract needs to check that a Bitcoin
// transaction was mined: the transaction id in display order, its position,
// the height, the raw 80-byte header and the merkle path.
type ProofData struct {
	ReversedTxID hexutil.Bytes   `json:"reversed_txid"`
	TxIndex      uint32          `json:"tx_index"`
	BlockHeight  uint32          `json:"block_height"`
	BlockHash    string          `json:"block_hash"`
	BlockHeader  hexutil.Bytes   `json:"block_header"`
	MerklePath   []hexutil.Bytes `json:"merkle_path"`
	MerkleRoot   string          `json:"merkle_root"`
}

// FromBlockAndIndex assembles the proof for the transaction at index in block.
// The height is read from the coinbase (BIP-34).
func FromBlockAndIndex(block *wire.MsgBlock, index int) (*ProofData, error) {
	if index < 0 || index >= len(block.Transactions) {
		return nil, fmt.Errorf("%w: index=%d, txs=%d", ErrTxIndexOutOfRange, index, len(block.Transactions))
	}

	height, err := blockchain.ExtractCoinbaseHeight(btcutil.NewTx(block.Transactions[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCoinbaseHeight, err)
	}

	txids := make([]chainhash.Hash, len(block.Transactions))
	for i, tx := range block.Transactions {
		txids[i] = tx.TxHash()
	}
	return FromHeaderAndTxIDs(&block.Header, uint32(height), txids, index)
}

// FromHeaderAndTxIDs assembles the proof from a header and the ordered txids
// of its block, as returned by getblock with verbosity 1.
func FromHeaderAndTxIDs(header *wire.BlockHeader, height uint32, txids []chainhash.Hash, index int) (*ProofData, error) {
	if index < 0 || index >= len(txids) {
		return nil, fmt.Errorf("%w: index=%d, txs=%d", ErrTxIndexOutOfRange, index, len(txids))
	}
	tree := New(txids)
	path, _ := tree.Proof(index)

	raw, err := SerializeHeader(header)
	if err != nil {
		return nil, err
	}

	merklePath := make([]hexutil.Bytes, len(path))
	for i := range path {
		merklePath[i] = hexutil.Bytes(path[i].CloneBytes())
	}

	return &ProofData{
		ReversedTxID: common.ReverseBytes(txids[index][:]),
		TxIndex:      uint32(index),
		BlockHeight:  height,
		BlockHash:    header.BlockHash().String(),
		BlockHeader:  raw,
		MerklePath:   merklePath,
		MerkleRoot:   hex.EncodeToString(tree.Root()[:]),
	}, nil
}

// FromBlockAndTxID looks the transaction up by id before assembling the proof.
func FromBlockAndTxID(block *wire.MsgBlock, txid chainhash.Hash) (*ProofData, error) {
	for i, tx := range block.Transactions {
		if tx.TxHash() == txid {
			return FromBlockAndIndex(block, i)
		}
	}
	return nil, fmt.Errorf("%w: txid %s not in block %s", ErrTxIndexOutOfRange, txid, block.BlockHash())
}

// SerializeHeader flattens a header into version | prev | merkle root | time |
// bits | nonce, integers little-endian.
func SerializeHeader(header *wire.BlockHeader) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(wire.MaxBlockHeaderPayload)
	if err := header.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Path returns the merkle path as fixed size hashes.
func (p *ProofData) Path() []chainhash.Hash {
	path := make([]chainhash.Hash, len(p.MerklePath))
	for i, h := range p.MerklePath {
		copy(path[i][:], h)
	}
	return path
}
