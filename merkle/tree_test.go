package merkle

import (
	"testing"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/sbtc-bridge/common"
)

func randLeaves(n int) []chainhash.Hash {
	leaves := make([]chainhash.Hash, n)
	for i := range leaves {
		leaves[i] = chainhash.Hash(common.RandBytes32())
	}
	return leaves
}

func TestEmptyTree(t *testing.T) {
	tree := New(nil)
	assert.Nil(t, tree.Root())
	assert.Equal(t, 0, tree.Depth())
	for i := -1; i < 4; i++ {
		path, ok := tree.Proof(i)
		assert.False(t, ok)
		assert.Nil(t, path)
	}
}

func TestSingleLeafIsDuplicated(t *testing.T) {
	leaf := randLeaves(1)[0]
	tree := New([]chainhash.Hash{leaf})

	assert.Equal(t, 1, tree.Depth())
	assert.Equal(t, HashPair(&leaf, &leaf), *tree.Root())

	path, ok := tree.Proof(0)
	require.True(t, ok)
	assert.Equal(t, []chainhash.Hash{leaf}, path)
}

func TestOddLeafCountPadding(t *testing.T) {
	leaves := randLeaves(3)
	tree := New(leaves)

	assert.Equal(t, 2, tree.Depth())
	require.Len(t, tree.rows[0], 4)
	assert.Equal(t, leaves[2], tree.rows[0][3])

	left := HashPair(&leaves[0], &leaves[1])
	right := HashPair(&leaves[2], &leaves[2])
	assert.Equal(t, HashPair(&left, &right), *tree.Root())

	path, ok := tree.Proof(2)
	require.True(t, ok)
	assert.Equal(t, []chainhash.Hash{leaves[2], left}, path)

	// the padded slot proves as well, which is exactly the consensus quirk
	_, ok = tree.Proof(3)
	assert.True(t, ok)
	_, ok = tree.Proof(4)
	assert.False(t, ok)
}

func TestProofRoundTrip(t *testing.T) {
	for n := 1; n <= 33; n++ {
		leaves := randLeaves(n)
		tree := New(leaves)
		root := *tree.Root()

		for i := range leaves {
			path, ok := tree.Proof(i)
			require.True(t, ok)
			assert.Len(t, path, tree.Depth())
			assert.True(t, VerifyProof(leaves[i], i, path, root), "n=%d i=%d", n, i)
		}
	}
}

func TestProofRejectsWrongLeaf(t *testing.T) {
	leaves := randLeaves(5)
	tree := New(leaves)
	path, ok := tree.Proof(1)
	require.True(t, ok)
	assert.False(t, VerifyProof(leaves[2], 1, path, *tree.Root()))
	assert.False(t, VerifyProof(leaves[1], 0, path, *tree.Root()))
}

// For two or more transactions the root matches the consensus merkle root
// that btcd computes for a block.
func TestRootMatchesConsensus(t *testing.T) {
	for n := 2; n <= 12; n++ {
		block := testBlock(700000, n)
		txs := make([]*btcutil.Tx, len(block.Transactions))
		txids := make([]chainhash.Hash, len(block.Transactions))
		for i, tx := range block.Transactions {
			txs[i] = btcutil.NewTx(tx)
			txids[i] = tx.TxHash()
		}
		store := blockchain.BuildMerkleTreeStore(txs, false)
		want := store[len(store)-1]

		assert.Equal(t, *want, *New(txids).Root(), "n=%d", n)
	}
}
