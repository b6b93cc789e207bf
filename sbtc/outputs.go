package sbtc

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/wire"
)

// DustError rejects an output whose amount is below its dust threshold.
type DustError struct {
	Amount    int64
	Threshold int64
}

func (e *DustError) Error() string {
	return fmt.Sprintf("amount %d is below the dust threshold %d", e.Amount, e.Threshold)
}

// CheckDust fails with *DustError when amount paid to pkScript would be dust.
func CheckDust(pkScript []byte, amount int64) error {
	threshold := mempool.GetDustThreshold(wire.NewTxOut(amount, pkScript))
	if amount < threshold {
		return &DustError{Amount: amount, Threshold: threshold}
	}
	return nil
}

type outputKey struct {
	script string
	amount int64
}

// ReorderOutputs puts the outputs of tx back into the intended order after a
// wallet has shuffled them while funding. Outputs are matched on their
// (script, amount) pair; anything unmatched, such as change, goes last in its
// current relative order.
func ReorderOutputs(tx *wire.MsgTx, intended []*wire.TxOut) {
	rank := make(map[outputKey][]int, len(intended))
	for i, out := range intended {
		k := outputKey{string(out.PkScript), out.Value}
		rank[k] = append(rank[k], i)
	}

	ranks := make([]int, len(tx.TxOut))
	for i, out := range tx.TxOut {
		k := outputKey{string(out.PkScript), out.Value}
		if idx := rank[k]; len(idx) > 0 {
			ranks[i] = idx[0]
			rank[k] = idx[1:]
		} else {
			ranks[i] = len(intended)
		}
	}

	order := make([]int, len(tx.TxOut))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return ranks[order[a]] < ranks[order[b]]
	})

	outs := make([]*wire.TxOut, len(tx.TxOut))
	for i, j := range order {
		outs[i] = tx.TxOut[j]
	}
	tx.TxOut = outs
}
