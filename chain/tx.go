// Package chain implements the ledger core: transactions, blocks, and
// the chain itself. Transactions are signed value-transfer or
// mining-reward records against an account/balance-scan ledger, not a
// UTXO set.
package chain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kilimba-labs/ledgerchain/crypto"
	"github.com/kilimba-labs/ledgerchain/internal/clock"
	"github.com/kilimba-labs/ledgerchain/internal/idgen"
	"github.com/kilimba-labs/ledgerchain/internal/xerrors"
)

// TxKind distinguishes a value transfer from a mining-reward payout.
// Using a dedicated kind (rather than an empty sender address as a
// sentinel) replaces a boolean-and-optional-fields tagged-variant
// representation with an explicit kind enum.
type TxKind uint32

const (
	Transfer TxKind = iota
	MiningReward
)

func (k TxKind) String() string {
	if k == MiningReward {
		return "MINING_REWARD"
	}
	return "TRANSFER"
}

// Transaction is the ledger's unit of value transfer.
type Transaction struct {
	Kind             TxKind
	ID               uint64
	Amount           float64
	Fee              float64
	Timestamp        uint64
	SenderAddress    string
	RecipientAddress string
	Signature        string
	Hash             string
}

// txJSON mirrors the wire/debug JSON form of a transaction, preserving
// the "signiture" field name verbatim for compatibility.
type txJSON struct {
	Type      uint32  `json:"type"`
	ID        uint64  `json:"id"`
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	Amount    float64 `json:"amount"`
	Fee       float64 `json:"fee"`
	Timestamp uint64  `json:"timestamp"`
	Signiture string  `json:"signiture"`
	Hash      string  `json:"hash"`
}

// MarshalJSON implements the wire/debug JSON encoding.
func (tx Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(txJSON{
		Type:      uint32(tx.Kind),
		ID:        tx.ID,
		Sender:    tx.SenderAddress,
		Recipient: tx.RecipientAddress,
		Amount:    tx.Amount,
		Fee:       tx.Fee,
		Timestamp: tx.Timestamp,
		Signiture: tx.Signature,
		Hash:      tx.Hash,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (tx *Transaction) UnmarshalJSON(data []byte) error {
	var raw txJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	tx.Kind = TxKind(raw.Type)
	tx.ID = raw.ID
	tx.SenderAddress = raw.Sender
	tx.RecipientAddress = raw.Recipient
	tx.Amount = raw.Amount
	tx.Fee = raw.Fee
	tx.Timestamp = raw.Timestamp
	tx.Signature = raw.Signiture
	tx.Hash = raw.Hash
	return nil
}

// canonicalData builds the data string hashed and signed for a
// transaction: dec(id) || dec(amount) || dec(timestamp) || sender ||
// recipient. Note fee and kind are intentionally excluded,
// matching the original source's hashed field set.
func canonicalData(id uint64, amount float64, timestamp uint64, sender, recipient string) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(id, 10))
	b.WriteString(formatAmount(amount))
	b.WriteString(strconv.FormatUint(timestamp, 10))
	b.WriteString(sender)
	b.WriteString(recipient)
	return b.String()
}

// formatAmount renders a monetary value as fixed-point, shortest
// round-trippable precision, no exponent. This is the
// canonical choice for a standard formatter with full precision
// (Go's %v/strconv 'g' verb can switch to exponential notation for
// very large or very small values, which a C++
// std::to_string-style formatter never does).
func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

// timestampTag is the hex tag appended to a transaction hash, used to
// prune chain scans by time (see Chain.FindTransaction). Fixed at 16
// hex digits (a full uint64) so the tag has a known, parseable width.
func timestampTag(timestamp uint64) string {
	return strings.ToUpper(fmt.Sprintf("%016x", timestamp))
}

// GenerateTxHash computes the transaction hash:
// hex_upper(SHA256(SHA256(data))) || hex_upper(uint64_to_hex(timestamp)).
func GenerateTxHash(id uint64, amount float64, timestamp uint64, sender, recipient string) (string, error) {
	data := canonicalData(id, amount, timestamp, sender, recipient)
	digest, err := crypto.DoubleSHA256([]byte(data))
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(digest[:])) + timestampTag(timestamp), nil
}

// contentDigest extracts the raw 32-byte digest encoded in the first 64
// hex characters of a transaction hash.
func contentDigest(txHash string) ([]byte, error) {
	if len(txHash) < 64 {
		return nil, xerrors.ErrMessageEmpty
	}
	return hex.DecodeString(txHash[:64])
}

// NewTransfer builds and signs a TRANSFER transaction from sender to
// recipient using the sender's private key.
func NewTransfer(senderPK, senderSK, recipientPK string, amount, fee float64) (Transaction, error) {
	tx := Transaction{
		Kind:             Transfer,
		ID:               idgen.Uint64(),
		Amount:           amount,
		Fee:              fee,
		Timestamp:        clock.Now(),
		SenderAddress:    senderPK,
		RecipientAddress: recipientPK,
	}
	hash, err := GenerateTxHash(tx.ID, tx.Amount, tx.Timestamp, tx.SenderAddress, tx.RecipientAddress)
	if err != nil {
		return Transaction{}, err
	}
	tx.Hash = hash

	if err := tx.Sign(senderSK); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// NewMiningReward builds an unsigned MINING_REWARD transaction crediting
// recipientPK. Mining-reward transactions carry no sender and no
// signature.
func NewMiningReward(recipientPK string, amount float64) (Transaction, error) {
	tx := Transaction{
		Kind:             MiningReward,
		ID:               idgen.Uint64(),
		Amount:           amount,
		Fee:              0,
		Timestamp:        clock.Now(),
		RecipientAddress: recipientPK,
	}
	hash, err := GenerateTxHash(tx.ID, tx.Amount, tx.Timestamp, tx.SenderAddress, tx.RecipientAddress)
	if err != nil {
		return Transaction{}, err
	}
	tx.Hash = hash
	return tx, nil
}

// Sign signs the transaction's content digest with the sender's private
// key, storing the result as hex. Signing a MINING_REWARD transaction is
// a caller error; it has no sender to sign with.
func (tx *Transaction) Sign(senderSK string) error {
	if tx.Kind == MiningReward {
		return xerrors.ErrECDSAPrivateKeyRequired
	}
	digest, err := contentDigest(tx.Hash)
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(senderSK, digest)
	if err != nil {
		return err
	}
	tx.Signature = sig
	return nil
}

// Verify checks a transaction's signature. A
// MINING_REWARD transaction always verifies; a TRANSFER verifies its
// signature against its sender address.
func (tx Transaction) Verify() error {
	if tx.Kind == MiningReward {
		return nil
	}
	digest, err := contentDigest(tx.Hash)
	if err != nil {
		return err
	}
	ok, err := crypto.Verify(tx.SenderAddress, digest, tx.Signature)
	if err != nil {
		return err
	}
	if !ok {
		return xerrors.ErrSignatureInvalid
	}
	return nil
}

// ParseTimestampTag parses the timestamp tag suffixed to a transaction
// hash back into its uint64 value, used by Chain.FindTransaction to
// prune which blocks need scanning.
func ParseTimestampTag(txHash string) (uint64, error) {
	if len(txHash) <= 64 {
		return 0, xerrors.ErrTransactionNotFound
	}
	v, err := strconv.ParseUint(txHash[64:], 16, 64)
	if err != nil {
		return 0, xerrors.ErrTransactionNotFound
	}
	return v, nil
}
