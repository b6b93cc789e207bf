/*
Package merkle builds Bitcoin transaction merkle trees and the SPV inclusion
proofs that the peg contract verifies before it mints or burns.

The tree follows the historical consensus algorithm byte for byte: a row with an
odd number of hashes is padded by repeating its last hash before the next row is
computed. This keeps the well known duplicate-leaf ambiguity (CVE-2012-2459),
which the on-chain verifier reproduces as well.
*/
package merkle

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Tree is a binary double-SHA256 hash tree. rows[0] holds the (padded) leaves
// and the last row holds the root.
type Tree struct {
	rows [][]chainhash.Hash
}

// New builds the tree over txids given in block order and in their native
// (serialized) byte order. An empty list yields an empty tree.
func New(txids []chainhash.Hash) *Tree {
	if len(txids) == 0 {
		return &Tree{}
	}

	row := make([]chainhash.Hash, len(txids))
	copy(row, txids)

	var rows [][]chainhash.Hash
	for {
		if len(row)%2 == 1 {
			row = append(row, row[len(row)-1])
		}
		rows = append(rows, row)

		next := make([]chainhash.Hash, 0, len(row)/2)
		for i := 0; i < len(row); i += 2 {
			next = append(next, HashPair(&row[i], &row[i+1]))
		}
		row = next

		if len(row) == 1 {
			rows = append(rows, row)
			break
		}
	}

	return &Tree{rows: rows}
}

// HashPair returns double-SHA256(left || right).
func HashPair(left, right *chainhash.Hash) chainhash.Hash {
	var buf [chainhash.HashSize * 2]byte
	copy(buf[:chainhash.HashSize], left[:])
	copy(buf[chainhash.HashSize:], right[:])
	return chainhash.DoubleHashH(buf[:])
}

// Root returns the root hash, or nil for an empty tree.
func (t *Tree) Root() *chainhash.Hash {
	if len(t.rows) == 0 {
		return nil
	}
	root := t.rows[len(t.rows)-1][0]
	return &root
}

// Depth is the number of hashing levels between the leaves and the root, which
// is also the length of every proof. A single transaction is still padded and
// hashed once, so any non-empty tree has depth >= 1.
func (t *Tree) Depth() int {
	if len(t.rows) == 0 {
		return 0
	}
	return len(t.rows) - 1
}

// Proof returns the sibling hashes needed to recompute the root from the leaf
// at index, ordered from the leaf row up to the row below the root. ok is
// false for an empty tree or an index outside the leaf row.
func (t *Tree) Proof(index int) (path []chainhash.Hash, ok bool) {
	if len(t.rows) == 0 || index < 0 || index >= len(t.rows[0]) {
		return nil, false
	}

	path = make([]chainhash.Hash, 0, t.Depth())
	for _, row := range t.rows[:len(t.rows)-1] {
		var sibling int
		if index%2 == 0 {
			sibling = index + 1
		} else {
			sibling = index - 1
		}
		if sibling >= len(row) {
			// rows are always padded to an even length
			panic("merkle: missing sibling in padded row")
		}
		path = append(path, row[sibling])
		index >>= 1
	}

	return path, true
}

// RootFromProof folds path into leaf the same way Proof walks up the tree.
func RootFromProof(leaf chainhash.Hash, index int, path []chainhash.Hash) chainhash.Hash {
	cur := leaf
	for i := range path {
		if index%2 == 0 {
			cur = HashPair(&cur, &path[i])
		} else {
			cur = HashPair(&path[i], &cur)
		}
		index >>= 1
	}
	return cur
}

// VerifyProof reports whether path proves leaf at index under root.
func VerifyProof(leaf chainhash.Hash, index int, path []chainhash.Hash, root chainhash.Hash) bool {
	return RootFromProof(leaf, index, path) == root
}
