/*
Package pegstate is the reconciliation state machine of the bridge.

A Machine owns one State. Apply consumes an Event, mutates the state and
returns the Tasks that follow from it; the network layer executes the tasks
and feeds their results back as new events. The machine is not safe for
concurrent use: exactly one goroutine may drive it.
*/
package pegstate

import (
	"github.com/btcsuite/btcd/wire"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/sbtc-bridge/btcsync"
	"github.com/TEENet-io/sbtc-bridge/stacks"
)

// BlockScanner extracts the peg operations of a Bitcoin block.
type BlockScanner interface {
	ScanBlock(height int64, block *wire.MsgBlock) *btcsync.BlockScan
}

type Config struct {
	// Strict turns status updates that no check asked for into invariant
	// violations instead of logged no-ops. Updates for untracked
	// transactions are ignored either way.
	Strict bool
}

type Machine struct {
	cfg     *Config
	scanner BlockScanner
	state   State
}

// New resumes from state, or starts Uninitialized when state is nil.
func New(cfg *Config, scanner BlockScanner, state State) *Machine {
	if state == nil {
		state = &Uninitialized{}
	}
	return &Machine{cfg: cfg, scanner: scanner, state: state}
}

func (m *Machine) State() State {
	return m.state
}

// Snapshot returns the state as a JSON document.
func (m *Machine) Snapshot() ([]byte, error) {
	return Marshal(m.state)
}

// Bootstrap derives the tasks to issue after a restart from the recorded
// state alone. In-flight status checks are forgotten so that they are issued
// again; nothing is rebroadcast.
func (m *Machine) Bootstrap() []Task {
	switch s := m.state.(type) {
	case *Uninitialized:
		return []Task{GetContractBlockHeight{}}

	case *ContractDetected:
		return []Task{UpdateContractPublicKey{}}

	case *ContractPublicKeySetup:
		tasks := []Task{FetchStacksBlock{Height: s.StacksBlockHeight + 1}}
		switch s.PublicKeySetup.Phase {
		case PhaseCreated:
			// the outcome of the broadcast is unknown, an operator has to look
			logger.Warn("public key update was being created when the bridge stopped")
		case PhaseAcknowledged:
			s.PublicKeySetup.Ack.HasPendingTask = false
		}
		return tasks

	case *Initialized:
		for _, d := range s.Deposits {
			resetPending(d.Mint, "mint", d.TxID)
		}
		for _, w := range s.Withdrawals {
			resetPending(w.Burn, "burn", w.Info.TxID)
			resetPending(w.Fulfillment, "fulfillment", w.Info.TxID)
		}
		return []Task{
			FetchStacksBlock{Height: s.StacksBlockHeight + 1},
			FetchBitcoinBlock{Height: s.BitcoinBlockHeight + 1},
		}
	}

	violate("unknown state %T", m.state)
	return nil
}

func resetPending[T comparable](r *TransactionRequest[T], what string, request BitcoinTxID) {
	if r == nil {
		return
	}
	switch r.Phase {
	case PhaseAcknowledged:
		r.Ack.HasPendingTask = false
	case PhaseCreated:
		// the outcome of the broadcast is unknown, an operator has to look
		logger.WithFields(logger.Fields{
			"request": request.String(),
			"kind":    what,
		}).Warn("request was being created when the bridge stopped")
	}
}

// Apply processes one event. An event that the current state cannot accept
// panics with *InvariantViolation.
func (m *Machine) Apply(ev Event) []Task {
	switch s := m.state.(type) {
	case *Uninitialized:
		return m.applyUninitialized(ev)
	case *ContractDetected:
		return m.applyContractDetected(s, ev)
	case *ContractPublicKeySetup:
		return m.applyPublicKeySetup(s, ev)
	case *Initialized:
		return m.applyInitialized(s, ev)
	}

	violate("unknown state %T", m.state)
	return nil
}

func (m *Machine) unexpected(ev Event) {
	violate("unexpected %s while %s", ev, m.state.Kind())
}

func checkNext(chain string, recorded, got uint64) {
	if got != recorded+1 {
		violate("%s block %d does not follow %d", chain, got, recorded)
	}
}

func (m *Machine) applyUninitialized(ev Event) []Task {
	e, ok := ev.(ContractBlockHeight)
	if !ok {
		m.unexpected(ev)
	}

	logger.WithFields(logger.Fields{
		"stacksHeight":  e.StacksHeight,
		"bitcoinHeight": e.BitcoinHeight,
	}).Info("peg contract detected")

	m.state = &ContractDetected{
		StacksBlockHeight:  e.StacksHeight,
		BitcoinBlockHeight: e.BitcoinHeight,
	}
	return []Task{UpdateContractPublicKey{}}
}

func (m *Machine) applyContractDetected(s *ContractDetected, ev Event) []Task {
	e, ok := ev.(ContractPublicKeySetBroadcasted)
	if !ok {
		m.unexpected(ev)
	}

	req := &TransactionRequest[stacks.TxID]{Phase: PhaseCreated}
	req.acknowledge(e.TxID)

	m.state = &ContractPublicKeySetup{
		StacksBlockHeight:  s.StacksBlockHeight,
		BitcoinBlockHeight: s.BitcoinBlockHeight,
		PublicKeySetup:     req,
	}
	return []Task{FetchStacksBlock{Height: s.StacksBlockHeight + 1}}
}

func (m *Machine) applyPublicKeySetup(s *ContractPublicKeySetup, ev Event) []Task {
	switch e := ev.(type) {
	case StacksBlock:
		checkNext("stacks", s.StacksBlockHeight, e.Height)
		s.StacksBlockHeight = e.Height

		tasks := []Task{FetchStacksBlock{Height: e.Height + 1}}
		if s.PublicKeySetup.awaitingCheck() {
			s.PublicKeySetup.Ack.HasPendingTask = true
			tasks = append(tasks, CheckStacksTxStatus{TxID: s.PublicKeySetup.Ack.TxID})
		}
		return tasks

	case ContractPublicKeySetBroadcasted:
		s.PublicKeySetup.acknowledge(e.TxID)
		return nil

	case StacksTransactionUpdate:
		r := applyStatus(m.cfg.Strict, e.TxID, e.Status, []*TransactionRequest[stacks.TxID]{s.PublicKeySetup})
		if r == nil {
			return nil
		}

		if r.Ack.Status == StatusRejected {
			logger.WithField("stacksTxId", e.TxID.String()).Warn("public key transaction rejected, retrying")
			s.PublicKeySetup = &TransactionRequest[stacks.TxID]{Phase: PhaseCreated}
			return []Task{UpdateContractPublicKey{}}
		}

		logger.WithField("stacksTxId", e.TxID.String()).Info("peg wallet public key set, bridge initialized")
		m.state = &Initialized{
			StacksBlockHeight:  s.StacksBlockHeight,
			BitcoinBlockHeight: s.BitcoinBlockHeight,
			Deposits:           []*Deposit{},
			Withdrawals:        []*Withdrawal{},
		}
		return []Task{FetchBitcoinBlock{Height: s.BitcoinBlockHeight + 1}}
	}

	m.unexpected(ev)
	return nil
}

func (m *Machine) applyInitialized(s *Initialized, ev Event) []Task {
	switch e := ev.(type) {
	case StacksBlock:
		return s.onStacksBlock(e)
	case BitcoinBlock:
		return s.onBitcoinBlock(m.scanner, e)

	case MintBroadcasted:
		d := s.deposit(e.Deposit)
		if d == nil || d.Mint == nil {
			violate("mint broadcast for unknown deposit %s", e.Deposit)
		}
		d.Mint.acknowledge(e.TxID)
		return nil

	case BurnBroadcasted:
		w := s.withdrawal(e.Withdrawal)
		if w == nil || w.Burn == nil {
			violate("burn broadcast for unknown withdrawal %s", e.Withdrawal)
		}
		w.Burn.acknowledge(e.TxID)
		return nil

	case FulfillmentBroadcasted:
		w := s.withdrawal(e.Withdrawal)
		if w == nil || w.Fulfillment == nil {
			violate("fulfillment broadcast for unknown withdrawal %s", e.Withdrawal)
		}
		w.Fulfillment.acknowledge(e.TxID)
		return nil

	case StacksTransactionUpdate:
		reqs := make([]*TransactionRequest[stacks.TxID], 0, len(s.Deposits)+len(s.Withdrawals))
		for _, d := range s.Deposits {
			reqs = append(reqs, d.Mint)
		}
		for _, w := range s.Withdrawals {
			reqs = append(reqs, w.Burn)
		}

		r := applyStatus(m.cfg.Strict, e.TxID, e.Status, reqs)
		if r == nil {
			return nil
		}
		s.onStacksSettled(r)
		return nil

	case BitcoinTransactionUpdate:
		reqs := make([]*TransactionRequest[BitcoinTxID], 0, len(s.Withdrawals))
		for _, w := range s.Withdrawals {
			reqs = append(reqs, w.Fulfillment)
		}

		if r := applyStatus(m.cfg.Strict, e.TxID, e.Status, reqs); r != nil {
			logger.WithFields(logger.Fields{
				"btcTxId": e.TxID.String(),
				"status":  r.Ack.Status.String(),
			}).Info("fulfillment settled")
		}
		return nil
	}

	m.unexpected(ev)
	return nil
}

func (s *Initialized) onStacksBlock(e StacksBlock) []Task {
	checkNext("stacks", s.StacksBlockHeight, e.Height)
	s.StacksBlockHeight = e.Height
	s.StacksChainTip = e.ID

	tasks := []Task{FetchStacksBlock{Height: e.Height + 1}}

	for _, d := range s.Deposits {
		if d.Mint.Due(e.Height) {
			d.Mint.markCreated()
			task := CreateMint{Deposit: *d}
			task.Deposit.Mint = nil
			tasks = append(tasks, task)
		}
	}
	for _, w := range s.Withdrawals {
		if w.Burn.Due(e.Height) {
			w.Burn.markCreated()
			tasks = append(tasks, CreateBurn{Withdrawal: w.Info})
		}
	}

	for _, d := range s.Deposits {
		tasks = appendStacksCheck(tasks, d.Mint)
	}
	for _, w := range s.Withdrawals {
		tasks = appendStacksCheck(tasks, w.Burn)
	}

	return tasks
}

func appendStacksCheck(tasks []Task, r *TransactionRequest[stacks.TxID]) []Task {
	if !r.awaitingCheck() {
		return tasks
	}
	r.Ack.HasPendingTask = true
	return append(tasks, CheckStacksTxStatus{TxID: r.Ack.TxID})
}

func (s *Initialized) onBitcoinBlock(scanner BlockScanner, e BitcoinBlock) []Task {
	checkNext("bitcoin", s.BitcoinBlockHeight, e.Height)
	s.BitcoinBlockHeight = e.Height

	scan := scanner.ScanBlock(int64(e.Height), e.Block)
	for _, found := range scan.Deposits {
		d := newDeposit(found, e.Height)
		if s.deposit(d.TxID) != nil {
			violate("deposit %s tracked twice", d.TxID)
		}
		d.Mint = Scheduled[stacks.TxID](s.StacksBlockHeight + 1)
		s.Deposits = append(s.Deposits, d)
	}
	for _, found := range scan.Withdrawals {
		w := newWithdrawal(found, e.Height)
		if s.withdrawal(w.Info.TxID) != nil {
			violate("withdrawal %s tracked twice", w.Info.TxID)
		}
		w.Burn = Scheduled[stacks.TxID](s.StacksBlockHeight + 1)
		s.Withdrawals = append(s.Withdrawals, w)
	}

	tasks := []Task{FetchBitcoinBlock{Height: e.Height + 1}}

	for _, w := range s.Withdrawals {
		if w.Fulfillment.Due(e.Height) {
			w.Fulfillment.markCreated()
			tasks = append(tasks, CreateFulfillment{Withdrawal: w.Info, ChainTip: s.StacksChainTip})
		}
	}
	for _, w := range s.Withdrawals {
		if w.Fulfillment.awaitingCheck() {
			w.Fulfillment.Ack.HasPendingTask = true
			tasks = append(tasks, CheckBitcoinTxStatus{TxID: w.Fulfillment.Ack.TxID})
		}
	}

	return tasks
}

// onStacksSettled reacts to a mint or burn reaching a terminal status.
func (s *Initialized) onStacksSettled(r *TransactionRequest[stacks.TxID]) {
	for _, w := range s.Withdrawals {
		if w.Burn != r {
			continue
		}
		fields := logger.Fields{"withdrawal": w.Info.TxID.String(), "stacksTxId": r.Ack.TxID.String()}
		if r.Ack.Status == StatusRejected {
			logger.WithFields(fields).Warn("burn rejected")
			return
		}
		if w.Fulfillment == nil {
			w.Fulfillment = Scheduled[BitcoinTxID](s.BitcoinBlockHeight + 1)
			logger.WithFields(fields).Info("burn confirmed, fulfillment scheduled")
		}
		return
	}

	for _, d := range s.Deposits {
		if d.Mint == r {
			logger.WithFields(logger.Fields{
				"deposit":    d.TxID.String(),
				"stacksTxId": r.Ack.TxID.String(),
				"status":     r.Ack.Status.String(),
			}).Info("mint settled")
			return
		}
	}
}

func (s *Initialized) deposit(txid BitcoinTxID) *Deposit {
	for _, d := range s.Deposits {
		if d.TxID == txid {
			return d
		}
	}
	return nil
}

func (s *Initialized) withdrawal(txid BitcoinTxID) *Withdrawal {
	for _, w := range s.Withdrawals {
		if w.Info.TxID == txid {
			return w
		}
	}
	return nil
}

// applyStatus updates the single acknowledged request broadcast as txid and
// returns it when the update settled it.
func applyStatus[T comparable](strict bool, txid T, status TxStatus, reqs []*TransactionRequest[T]) *TransactionRequest[T] {
	var matched []*TransactionRequest[T]
	for _, r := range reqs {
		if r.matches(txid) {
			matched = append(matched, r)
		}
	}

	switch len(matched) {
	case 0:
		logger.WithField("txid", txid).Warn("ignoring status update for untracked transaction")
		return nil
	case 1:
	default:
		violate("%d requests share transaction %v", len(matched), txid)
	}

	r := matched[0]
	if !r.Ack.HasPendingTask {
		if strict {
			violate("status update for %v that nobody asked for", txid)
		}
		logger.WithField("txid", txid).Warn("ignoring unrequested status update")
		return nil
	}

	r.Ack.HasPendingTask = false
	r.Ack.Status = status
	if !status.Terminal() {
		return nil
	}
	return r
}
