package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilimba-labs/ledgerchain/crypto"
	"github.com/kilimba-labs/ledgerchain/internal/xerrors"
)

func mineBlock(t *testing.T, index uint64, previousHash string, txs []Transaction, difficulty uint32, timestamp uint64) Block {
	t.Helper()
	var nonce uint64
	var digest string
	var err error
	for {
		digest, err = MiningDigest(index, nonce, previousHash, txs)
		require.NoError(t, err)
		if meetsDifficulty(digest, difficulty) {
			break
		}
		nonce++
	}
	hash, err := FinalBlockHash(digest, timestamp)
	require.NoError(t, err)
	return Block{
		Index:        index,
		Timestamp:    timestamp,
		PreviousHash: previousHash,
		Transactions: txs,
		Difficulty:   difficulty,
		Nonce:        nonce,
		Hash:         hash,
	}
}

func TestChainVerifyChainEmptyWithOnlyGenesis(t *testing.T) {
	c := New()
	assert.ErrorIs(t, c.VerifyChain(), xerrors.ErrChainEmpty)
}

func TestChainPushBlockAndVerify(t *testing.T) {
	c := New()
	b1 := mineBlock(t, 1, Genesis.Hash, nil, 0, Genesis.Timestamp+1)
	require.NoError(t, c.PushBlock(b1))
	assert.Equal(t, uint64(1), c.Height())
	assert.NoError(t, c.VerifyChain())
}

func TestChainPushBlockRejectsBadPreviousHash(t *testing.T) {
	c := New()
	b1 := mineBlock(t, 1, "deadbeef", nil, 0, Genesis.Timestamp+1)
	err := c.PushBlock(b1)
	assert.ErrorIs(t, err, xerrors.ErrBlockPreviousHashInvalid)
}

func TestChainPushBlockRejectsNonIncreasingTimestamp(t *testing.T) {
	c := New()
	b1 := mineBlock(t, 1, Genesis.Hash, nil, 0, Genesis.Timestamp)
	err := c.PushBlock(b1)
	assert.ErrorIs(t, err, xerrors.ErrBlockTimestampInvalid)
}

func TestChainGetAddressBalance(t *testing.T) {
	c := New()
	sender, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	recipient, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	tx, err := NewTransfer(sender.PublicKey, sender.PrivateKey, recipient.PublicKey, 10, 0.5)
	require.NoError(t, err)
	reward, err := NewMiningReward(sender.PublicKey, 75)
	require.NoError(t, err)

	b1 := mineBlock(t, 1, Genesis.Hash, []Transaction{tx, reward}, 0, Genesis.Timestamp+1)
	require.NoError(t, c.PushBlock(b1))

	assert.Equal(t, 75-10-0.5, c.GetAddressBalance(sender.PublicKey))
	assert.Equal(t, 10.0, c.GetAddressBalance(recipient.PublicKey))
}

func TestGetMiningRewardSchedule(t *testing.T) {
	assert.Equal(t, 75.0, GetMiningReward(0))
	assert.InDelta(t, 50.0, GetMiningReward(3_435_000), 0.0001)
	assert.Equal(t, 0.3, GetMiningReward(3_435_000*200))
}

func TestChainFindTransaction(t *testing.T) {
	c := New()
	sender, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	recipient, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	tx, err := NewTransfer(sender.PublicKey, sender.PrivateKey, recipient.PublicKey, 10, 0.5)
	require.NoError(t, err)

	// The block is stamped with the transaction's own timestamp, so it is
	// not pruned by the scan's timestamp >= tag filter.
	b1 := mineBlock(t, 1, Genesis.Hash, []Transaction{tx}, 0, tx.Timestamp)
	require.NoError(t, c.PushBlock(b1))

	found, err := c.FindTransaction(tx.Hash)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, found.ID)

	_, err = c.FindTransaction(tx.Hash[:64] + "ffffffffffffffff")
	assert.ErrorIs(t, err, xerrors.ErrTransactionNotFound)
}
