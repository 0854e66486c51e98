// Package miner assembles candidate blocks from a mempool and runs the
// proof-of-work search over a caller-supplied nonce range. Hash-rate
// telemetry is tracked through an explicit HashRateMeter handle rather
// than process-wide mutable state.
package miner

import (
	"github.com/kilimba-labs/ledgerchain/chain"
	"github.com/kilimba-labs/ledgerchain/internal/clock"
	"github.com/kilimba-labs/ledgerchain/internal/xerrors"
	"github.com/kilimba-labs/ledgerchain/mempool"
)

// Selector decides whether a candidate transaction belongs in the block
// being assembled. The source's pop-while-iterating selector loop is
// ambiguous about index stability; this implementation resolves that
// question as copy-then-filter (recommendation (a)): candidates are
// read from a snapshot, and only the ones the selector accepts are
// popped from the pool. A rejected candidate is left in the pool
// untouched, rather than discarded as the source does.
type Selector func(tx chain.Transaction) bool

// CreateBlock assembles an unmined block extending tip, drawing from
// pool. If selector is nil, the front MaxTransactionsPerBlock
// transactions are drained unconditionally (FIFO). If selector is
// non-nil, up to MaxTransactionsPerBlock candidates are taken from the
// pool's current snapshot and filtered by selector.
//
// If minerPK is non-empty, a MINING_REWARD transaction is appended,
// crediting minerPK with the chain's mining reward plus the sum of the
// included transactions' fees.
func CreateBlock(pool *mempool.Mempool, tip chain.Block, difficulty uint32, minerPK string, selector Selector) (chain.Block, error) {
	var txs []chain.Transaction
	if selector == nil {
		txs = pool.PopTransactions(chain.MaxTransactionsPerBlock)
	} else {
		candidates := pool.Snapshot()
		if len(candidates) > chain.MaxTransactionsPerBlock {
			candidates = candidates[:chain.MaxTransactionsPerBlock]
		}
		for _, tx := range candidates {
			if !selector(tx) {
				continue
			}
			if popped, ok := popFromPool(pool, tx.Hash); ok {
				txs = append(txs, popped)
			}
		}
	}

	if minerPK != "" {
		var feeTotal float64
		for _, tx := range txs {
			feeTotal += tx.Fee
		}
		reward, err := chain.NewMiningReward(minerPK, chain.GetMiningReward(tip.Index+1)+feeTotal)
		if err != nil {
			return chain.Block{}, err
		}
		txs = append(txs, reward)
	}

	return chain.Block{
		Index:        tip.Index + 1,
		Timestamp:    0,
		PreviousHash: tip.Hash,
		Transactions: txs,
		Difficulty:   difficulty,
		Nonce:        0,
		Hash:         "",
	}, nil
}

// popFromPool locates a transaction's current index in the pool and
// pops it there. A snapshot taken before earlier pops in the same loop
// has stale indices, so the lookup is by hash, not position.
func popFromPool(pool *mempool.Mempool, hash string) (chain.Transaction, bool) {
	for i, tx := range pool.Snapshot() {
		if tx.Hash == hash {
			return pool.PopAt(i)
		}
	}
	return chain.Transaction{}, false
}

// MineNextBlock runs the proof-of-work search over
// [nonceStart, nonceEnd], mutating block in place on success. meter may
// be nil to skip hash-rate telemetry.
func MineNextBlock(block *chain.Block, nonceStart, nonceEnd uint64, meter *HashRateMeter) error {
	if nonceStart > nonceEnd {
		return xerrors.ErrNonceMinLargerThanNonceMax
	}

	block.Nonce = nonceStart
	if meter != nil {
		meter.Start(nonceStart)
	}

	var digest string
	for {
		var err error
		digest, err = chain.MiningDigest(block.Index, block.Nonce, block.PreviousHash, block.Transactions)
		if err != nil {
			if meter != nil {
				meter.End(block.Nonce)
			}
			return err
		}
		if leadingZeros(digest, block.Difficulty) {
			break
		}
		if block.Nonce == nonceEnd {
			if meter != nil {
				meter.End(block.Nonce)
			}
			return xerrors.ErrNoHashSolutionFoundInNonceRange
		}
		block.Nonce++
	}

	if meter != nil {
		meter.End(block.Nonce)
	}

	block.Timestamp = clock.Now()
	finalHash, err := chain.FinalBlockHash(digest, block.Timestamp)
	if err != nil {
		return err
	}
	block.Hash = finalHash
	return nil
}

func leadingZeros(digestHex string, difficulty uint32) bool {
	if int(difficulty) > len(digestHex) {
		return false
	}
	for i := uint32(0); i < difficulty; i++ {
		if digestHex[i] != '0' {
			return false
		}
	}
	return true
}
