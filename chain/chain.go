// Chain holds the canonical, in-memory ordered sequence of blocks. No
// on-disk persistence layer is implemented; a chain lives for the
// lifetime of the process that built it.
package chain

import (
	"math"
	"sync"

	"github.com/kilimba-labs/ledgerchain/internal/xerrors"
)

// rewardHalvingInterval is the block-index span after which the mining
// reward is divided by 1.5.
const rewardHalvingInterval = 3_435_000

// baseMiningReward and minMiningReward bound the reward schedule.
const (
	baseMiningReward = 75.0
	minMiningReward  = 0.3
)

// Chain is an ordered, append-only sequence of blocks starting at the
// fixed genesis block.
type Chain struct {
	mu     sync.RWMutex
	blocks []Block
}

// New creates a chain containing only the genesis block.
func New() *Chain {
	return &Chain{blocks: []Block{Genesis}}
}

// Blocks returns a snapshot copy of the chain's blocks.
func (c *Chain) Blocks() []Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Block, len(c.blocks))
	copy(out, c.blocks)
	return out
}

// Height returns the index of the chain's most recent block.
func (c *Chain) Height() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return uint64(len(c.blocks) - 1)
}

// Tip returns the chain's most recent block.
func (c *Chain) Tip() Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[len(c.blocks)-1]
}

// PushBlock verifies block against the chain's current state and, on
// success, appends it.
func (c *Chain) PushBlock(block Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := verifyBlock(block, c.blocks); err != nil {
		return err
	}
	c.blocks = append(c.blocks, block)
	return nil
}

// VerifyChain requires at least a genesis block plus one more to be
// considered valid in this sense, then verifies every block in order.
func (c *Chain) VerifyChain() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.blocks) < 2 {
		return xerrors.ErrChainEmpty
	}
	for i, block := range c.blocks {
		if err := verifyBlock(block, c.blocks[:i]); err != nil {
			return err
		}
	}
	return nil
}

// GetAddressBalance linearly scans every transaction in the chain,
// debiting amount+fee from the sender and crediting amount to the
// recipient. Mining-reward transactions have no sender and so only
// credit.
func (c *Chain) GetAddressBalance(pk string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var balance float64
	for _, block := range c.blocks {
		for _, tx := range block.Transactions {
			if tx.SenderAddress == pk {
				balance -= tx.Amount + tx.Fee
			}
			if tx.RecipientAddress == pk {
				balance += tx.Amount
			}
		}
	}
	return balance
}

// GetMiningReward computes the reward due for mining the block at
// nextIndex: max(75 / 1.5^floor(next_index / 3_435_000), 0.3).
func GetMiningReward(nextIndex uint64) float64 {
	halvings := math.Floor(float64(nextIndex) / rewardHalvingInterval)
	reward := baseMiningReward / math.Pow(1.5, halvings)
	if reward < minMiningReward {
		return minMiningReward
	}
	return reward
}

// FindTransaction parses the timestamp tag embedded in txHash and scans
// blocks with timestamp >= that value looking for a matching
// transaction hash.
func (c *Chain) FindTransaction(txHash string) (Transaction, error) {
	parsed, err := ParseTimestampTag(txHash)
	if err != nil {
		return Transaction{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, block := range c.blocks {
		if block.Timestamp < parsed {
			continue
		}
		for _, tx := range block.Transactions {
			if tx.Hash == txHash {
				return tx, nil
			}
		}
	}
	return Transaction{}, xerrors.ErrTransactionNotFound
}
