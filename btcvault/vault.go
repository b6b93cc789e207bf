// Package btcvault reserves peg wallet coins for fulfillments in flight, so
// that two payouts built at the same time never spend the same output.
package btcvault

import (
	"sync"
	"time"

	"github.com/btcsuite/btcd/wire"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/sbtc-bridge/btcman/utxo"
)

// DefaultLockTimeout bounds how long a coin stays reserved. By then the node
// either knows the spend or the spend failed.
const DefaultLockTimeout = 30 * time.Minute

// FeeFunc prices a transaction spending numInputs coins.
type FeeFunc func(numInputs int) (int64, error)

type lock struct {
	owner   string
	expires time.Time
}

// TreasureVault tracks reservations on the coins of one btc address.
type TreasureVault struct {
	BtcAddress string // the wallet holds the money

	timeout  time.Duration
	now      func() time.Time
	updateMu sync.Mutex // prevent concurrent updates
	locks    map[wire.OutPoint]lock
}

func NewTreasureVault(btcAddress string, timeout time.Duration) *TreasureVault {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &TreasureVault{
		BtcAddress: btcAddress,
		timeout:    timeout,
		now:        time.Now,
		locks:      make(map[wire.OutPoint]lock),
	}
}

// ChooseAndLock selects coins out of candidates that pay amount plus the fee
// for the selected number of inputs, and reserves them for owner. Coins
// reserved by anyone are skipped.
func (tv *TreasureVault) ChooseAndLock(owner string, candidates []*utxo.UTXO, amount int64, fee FeeFunc) ([]*utxo.UTXO, int64, error) {
	tv.updateMu.Lock()
	defer tv.updateMu.Unlock()

	tv.releaseExpired()
	free := make([]*utxo.UTXO, 0, len(candidates))
	for _, c := range candidates {
		if _, taken := tv.locks[*c.OutPoint()]; !taken {
			free = append(free, c)
		}
	}

	// price with one input, then again with what got selected
	price, err := fee(1)
	if err != nil {
		return nil, 0, err
	}
	selected, _, err := utxo.SelectUtxo(free, amount, price)
	if err != nil {
		return nil, 0, err
	}
	if len(selected) > 1 {
		if price, err = fee(len(selected)); err != nil {
			return nil, 0, err
		}
		if selected, _, err = utxo.SelectUtxo(free, amount, price); err != nil {
			return nil, 0, err
		}
	}

	expires := tv.now().Add(tv.timeout)
	for _, c := range selected {
		tv.locks[*c.OutPoint()] = lock{owner: owner, expires: expires}
	}
	return selected, price, nil
}

// ReleaseByCommand drops every reservation held by owner.
func (tv *TreasureVault) ReleaseByCommand(owner string) {
	tv.updateMu.Lock()
	defer tv.updateMu.Unlock()

	for op, l := range tv.locks {
		if l.owner == owner {
			delete(tv.locks, op)
		}
	}
}

// ReleaseByExpire drops reservations past their timeout and returns how
// many were dropped.
func (tv *TreasureVault) ReleaseByExpire() int {
	tv.updateMu.Lock()
	defer tv.updateMu.Unlock()
	return tv.releaseExpired()
}

func (tv *TreasureVault) releaseExpired() int {
	now := tv.now()
	n := 0
	for op, l := range tv.locks {
		if now.After(l.expires) {
			delete(tv.locks, op)
			n++
		}
	}
	if n > 0 {
		logger.WithFields(logger.Fields{"address": tv.BtcAddress, "count": n}).Debug("coin reservations expired")
	}
	return n
}

// Locked reports whether the coin is reserved.
func (tv *TreasureVault) Locked(op wire.OutPoint) bool {
	tv.updateMu.Lock()
	defer tv.updateMu.Unlock()
	l, ok := tv.locks[op]
	return ok && !tv.now().After(l.expires)
}
