// Package mempool holds pending, unconfirmed transactions: a FIFO
// queue guarded by a companion hash set for O(1) duplicate rejection.
package mempool

import (
	"sync"

	"github.com/kilimba-labs/ledgerchain/chain"
	"github.com/kilimba-labs/ledgerchain/internal/clock"
	"github.com/kilimba-labs/ledgerchain/internal/xerrors"
)

// admissionWindowSeconds is the maximum age a transaction's timestamp
// may have when admitted.
const admissionWindowSeconds = 600

// Mempool is a FIFO queue of pending transactions with hash uniqueness.
type Mempool struct {
	mu     sync.Mutex
	queue  []chain.Transaction
	byHash map[string]struct{}
}

// New creates an empty mempool.
func New() *Mempool {
	return &Mempool{byHash: make(map[string]struct{})}
}

// Len returns the number of pending transactions.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Snapshot returns a copy of the pending queue, in FIFO order.
func (m *Mempool) Snapshot() []chain.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]chain.Transaction, len(m.queue))
	copy(out, m.queue)
	return out
}

// balanceChecker is satisfied by chain.Chain; a narrow interface keeps
// the mempool decoupled from the chain's other operations.
type balanceChecker interface {
	GetAddressBalance(pk string) float64
}

// PushTransaction applies the ordered admission rules against ledger,
// and on success appends tx to the back of the queue.
func (m *Mempool) PushTransaction(ledger balanceChecker, tx chain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byHash[tx.Hash]; exists {
		return xerrors.ErrTransactionAlreadyInMempool
	}
	if tx.Amount == 0 {
		return xerrors.ErrTransactionAmountInvalid
	}
	if tx.SenderAddress == "" || tx.RecipientAddress == "" {
		return xerrors.ErrTransactionKeyNotSpecified
	}
	if ledger.GetAddressBalance(tx.SenderAddress) < tx.Amount+tx.Fee {
		return xerrors.ErrTransactionSenderBalanceInsufficient
	}
	if tx.Timestamp < safeSub(clock.Now(), admissionWindowSeconds) {
		return xerrors.ErrTransactionExpired
	}
	if err := tx.Verify(); err != nil {
		return err
	}

	m.queue = append(m.queue, tx)
	m.byHash[tx.Hash] = struct{}{}
	return nil
}

func safeSub(now, window uint64) uint64 {
	if now < window {
		return 0
	}
	return now - window
}

// PopTransactions removes and returns up to n transactions from the
// front of the queue (FIFO).
func (m *Mempool) PopTransactions(n int) []chain.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.queue) {
		n = len(m.queue)
	}
	popped := make([]chain.Transaction, n)
	copy(popped, m.queue[:n])
	for _, tx := range popped {
		delete(m.byHash, tx.Hash)
	}
	m.queue = m.queue[n:]
	return popped
}

// PopAt removes and returns the i-th queued transaction, used by the
// miner's custom selector loop. It reports false if i is out of range.
func (m *Mempool) PopAt(i int) (chain.Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.queue) {
		return chain.Transaction{}, false
	}
	tx := m.queue[i]
	m.queue = append(m.queue[:i], m.queue[i+1:]...)
	delete(m.byHash, tx.Hash)
	return tx, true
}
