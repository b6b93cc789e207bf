/*
This file contains selection over UTXOs.
*/
package utxo

import (
	"errors"
	"fmt"
	"sort"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

// SelectUtxo picks outputs, largest first, until their sum covers
// amount + fee. It returns the picked outputs and their sum.
func SelectUtxo(inputs []*UTXO, amount int64, fee int64) ([]*UTXO, int64, error) {
	sorted := make([]*UTXO, len(inputs))
	copy(sorted, inputs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Amount > sorted[j].Amount
	})

	target := amount + fee
	var sum int64
	for idx, item := range sorted {
		sum += item.Amount
		if sum >= target {
			return sorted[:idx+1], sum, nil
		}
	}
	return nil, sum, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, sum, target)
}

func Total(inputs []*UTXO) int64 {
	var sum int64
	for _, item := range inputs {
		sum += item.Amount
	}
	return sum
}
