package miner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilimba-labs/ledgerchain/chain"
	"github.com/kilimba-labs/ledgerchain/crypto"
	"github.com/kilimba-labs/ledgerchain/mempool"
)

type fakeLedger struct{ balance float64 }

func (f fakeLedger) GetAddressBalance(string) float64 { return f.balance }

func newSignedTransfer(t *testing.T, fee float64) chain.Transaction {
	t.Helper()
	sender, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	recipient, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	tx, err := chain.NewTransfer(sender.PublicKey, sender.PrivateKey, recipient.PublicKey, 10, fee)
	require.NoError(t, err)
	return tx
}

func TestCreateBlockDrainsFIFOWithoutSelector(t *testing.T) {
	pool := mempool.New()
	tx1 := newSignedTransfer(t, 0.1)
	tx2 := newSignedTransfer(t, 0.2)
	require.NoError(t, pool.PushTransaction(fakeLedger{balance: 1000}, tx1))
	require.NoError(t, pool.PushTransaction(fakeLedger{balance: 1000}, tx2))

	block, err := CreateBlock(pool, chain.Genesis, 0, "", nil)
	require.NoError(t, err)
	require.Len(t, block.Transactions, 2)
	assert.Equal(t, tx1.Hash, block.Transactions[0].Hash)
	assert.Equal(t, uint64(1), block.Index)
	assert.Equal(t, chain.Genesis.Hash, block.PreviousHash)
	assert.Equal(t, 0, pool.Len())
}

func TestCreateBlockSelectorLeavesRejectedInPool(t *testing.T) {
	pool := mempool.New()
	accepted := newSignedTransfer(t, 0.1)
	rejected := newSignedTransfer(t, 0.2)
	require.NoError(t, pool.PushTransaction(fakeLedger{balance: 1000}, accepted))
	require.NoError(t, pool.PushTransaction(fakeLedger{balance: 1000}, rejected))

	selector := func(tx chain.Transaction) bool { return tx.Hash == accepted.Hash }
	block, err := CreateBlock(pool, chain.Genesis, 0, "", selector)
	require.NoError(t, err)
	require.Len(t, block.Transactions, 1)
	assert.Equal(t, accepted.Hash, block.Transactions[0].Hash)
	assert.Equal(t, 1, pool.Len())
}

func TestCreateBlockAppendsMiningReward(t *testing.T) {
	pool := mempool.New()
	tx := newSignedTransfer(t, 0.5)
	require.NoError(t, pool.PushTransaction(fakeLedger{balance: 1000}, tx))

	miner, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	block, err := CreateBlock(pool, chain.Genesis, 0, miner.PublicKey, nil)
	require.NoError(t, err)
	require.Len(t, block.Transactions, 2)
	reward := block.Transactions[len(block.Transactions)-1]
	assert.Equal(t, chain.MiningReward, reward.Kind)
	assert.Equal(t, miner.PublicKey, reward.RecipientAddress)
	assert.Equal(t, chain.GetMiningReward(1)+0.5, reward.Amount)
}

func TestMineNextBlockFindsSolutionAtZeroDifficulty(t *testing.T) {
	block := chain.Block{Index: 1, PreviousHash: chain.Genesis.Hash, Difficulty: 0}
	meter := &HashRateMeter{}
	require.NoError(t, MineNextBlock(&block, 0, 1000, meter))
	assert.NotEmpty(t, block.Hash)
	assert.NotZero(t, block.Timestamp)
}

func TestMineNextBlockRejectsInvertedNonceRange(t *testing.T) {
	block := chain.Block{Index: 1, PreviousHash: chain.Genesis.Hash, Difficulty: 0}
	err := MineNextBlock(&block, 10, 5, nil)
	assert.Error(t, err)
}

func TestMineNextBlockFailsWhenRangeExhausted(t *testing.T) {
	block := chain.Block{Index: 1, PreviousHash: chain.Genesis.Hash, Difficulty: 8}
	err := MineNextBlock(&block, 0, 2, nil)
	assert.Error(t, err)
}

func TestHashRateMeterSinceStartSemantics(t *testing.T) {
	m := &HashRateMeter{}
	m.Start(1000)
	time.Sleep(5 * time.Millisecond)
	m.End(2000)
	assert.Greater(t, m.Current(), 0.0)
	// At least 5ms elapsed, so the since-start rate is at most
	// (2000-1000)/0.005; dividing the end nonce alone would give up to
	// twice that.
	assert.LessOrEqual(t, m.Current(), float64(2000-1000)/0.005)
}
