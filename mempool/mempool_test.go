package mempool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilimba-labs/ledgerchain/chain"
	"github.com/kilimba-labs/ledgerchain/crypto"
	"github.com/kilimba-labs/ledgerchain/internal/clock"
	"github.com/kilimba-labs/ledgerchain/internal/xerrors"
)

// fakeLedger reports a fixed balance for every address, letting tests
// drive admission without a real chain.
type fakeLedger struct {
	balance float64
}

func (f fakeLedger) GetAddressBalance(string) float64 { return f.balance }

func newSignedTransfer(t *testing.T, amount, fee float64) chain.Transaction {
	t.Helper()
	sender, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	recipient, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	tx, err := chain.NewTransfer(sender.PublicKey, sender.PrivateKey, recipient.PublicKey, amount, fee)
	require.NoError(t, err)
	return tx
}

func TestPushTransactionAdmitsValidTransfer(t *testing.T) {
	m := New()
	tx := newSignedTransfer(t, 10, 0.5)
	require.NoError(t, m.PushTransaction(fakeLedger{balance: 100}, tx))
	assert.Equal(t, 1, m.Len())
}

func TestPushTransactionRejectsDuplicateHash(t *testing.T) {
	m := New()
	tx := newSignedTransfer(t, 10, 0.5)
	require.NoError(t, m.PushTransaction(fakeLedger{balance: 100}, tx))
	err := m.PushTransaction(fakeLedger{balance: 100}, tx)
	assert.ErrorIs(t, err, xerrors.ErrTransactionAlreadyInMempool)
}

func TestPushTransactionRejectsZeroAmount(t *testing.T) {
	m := New()
	tx := newSignedTransfer(t, 0, 0.5)
	err := m.PushTransaction(fakeLedger{balance: 100}, tx)
	assert.ErrorIs(t, err, xerrors.ErrTransactionAmountInvalid)
}

func TestPushTransactionRejectsInsufficientBalance(t *testing.T) {
	m := New()
	tx := newSignedTransfer(t, 50, 0.5)
	err := m.PushTransaction(fakeLedger{balance: 10}, tx)
	assert.ErrorIs(t, err, xerrors.ErrTransactionSenderBalanceInsufficient)
}

func TestPushTransactionRejectsExpired(t *testing.T) {
	original := clock.Now
	defer func() { clock.Now = original }()

	clock.Now = func() uint64 { return 1_000_000 }
	tx := newSignedTransfer(t, 10, 0.5)

	m := New()
	clock.Now = func() uint64 { return 1_000_000 + 700 }
	err := m.PushTransaction(fakeLedger{balance: 100}, tx)
	assert.ErrorIs(t, err, xerrors.ErrTransactionExpired)
}

func TestPopTransactionsFIFO(t *testing.T) {
	m := New()
	tx1 := newSignedTransfer(t, 10, 0.5)
	tx2 := newSignedTransfer(t, 20, 0.5)
	require.NoError(t, m.PushTransaction(fakeLedger{balance: 1000}, tx1))
	require.NoError(t, m.PushTransaction(fakeLedger{balance: 1000}, tx2))

	popped := m.PopTransactions(1)
	require.Len(t, popped, 1)
	assert.Equal(t, tx1.Hash, popped[0].Hash)
	assert.Equal(t, 1, m.Len())
}

func TestPopAtRemovesElementAndShiftsIndices(t *testing.T) {
	m := New()
	tx1 := newSignedTransfer(t, 10, 0.5)
	tx2 := newSignedTransfer(t, 20, 0.5)
	require.NoError(t, m.PushTransaction(fakeLedger{balance: 1000}, tx1))
	require.NoError(t, m.PushTransaction(fakeLedger{balance: 1000}, tx2))

	popped, ok := m.PopAt(0)
	require.True(t, ok)
	assert.Equal(t, tx1.Hash, popped.Hash)
	assert.Equal(t, 1, m.Len())

	remaining := m.Snapshot()
	require.Len(t, remaining, 1)
	assert.Equal(t, tx2.Hash, remaining[0].Hash)
}
