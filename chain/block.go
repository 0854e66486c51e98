package chain

import (
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/kilimba-labs/ledgerchain/crypto"
	"github.com/kilimba-labs/ledgerchain/internal/xerrors"
)

// MaxTransactionsPerBlock bounds how many transactions a miner packs
// into a single block.
const MaxTransactionsPerBlock = 20

// Block is a single entry in the chain.
type Block struct {
	Index        uint64
	Timestamp    uint64
	PreviousHash string
	Transactions []Transaction
	Difficulty   uint32
	Nonce        uint64
	Hash         string
}

type blockJSON struct {
	Index        uint64        `json:"index"`
	Timestamp    uint64        `json:"timestamp"`
	PreviousHash string        `json:"previous_hash"`
	Transactions []Transaction `json:"transactions"`
	Difficulty   uint32        `json:"difficulty"`
	Nonce        uint64        `json:"nonce"`
	Hash         string        `json:"hash"`
}

func (b Block) MarshalJSON() ([]byte, error) {
	txs := b.Transactions
	if txs == nil {
		txs = []Transaction{}
	}
	return json.Marshal(blockJSON{
		Index:        b.Index,
		Timestamp:    b.Timestamp,
		PreviousHash: b.PreviousHash,
		Transactions: txs,
		Difficulty:   b.Difficulty,
		Nonce:        b.Nonce,
		Hash:         b.Hash,
	})
}

func (b *Block) UnmarshalJSON(data []byte) error {
	var raw blockJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.Index = raw.Index
	b.Timestamp = raw.Timestamp
	b.PreviousHash = raw.PreviousHash
	b.Transactions = raw.Transactions
	b.Difficulty = raw.Difficulty
	b.Nonce = raw.Nonce
	b.Hash = raw.Hash
	return nil
}

// Genesis is the hardcoded first block of every chain.
var Genesis = Block{
	Index:        0,
	Timestamp:    1638318078,
	PreviousHash: "",
	Transactions: []Transaction{},
	Difficulty:   0,
	Hash:         "AC7FDA5E0E2BF8B6600D4AFAC9C6095E89E9C14B30BC4A114FAB090BCAFADC79",
}

// MiningDigest computes the PoW digest: hex-upper SHA256
// of dec(index) || dec(nonce) || previous_hash || concat(json(tx) for tx
// in txs).
func MiningDigest(index, nonce uint64, previousHash string, txs []Transaction) (string, error) {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(index, 10))
	b.WriteString(strconv.FormatUint(nonce, 10))
	b.WriteString(previousHash)
	for _, tx := range txs {
		encoded, err := json.Marshal(tx)
		if err != nil {
			return "", err
		}
		b.Write(encoded)
	}
	digest, err := crypto.SHA256([]byte(b.String()))
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(digest[:])), nil
}

// FinalBlockHash computes the stored block.hash from a mining digest and
// timestamp: hex-upper SHA256(mining_digest_hex || dec(timestamp)).
func FinalBlockHash(miningDigestHex string, timestamp uint64) (string, error) {
	data := miningDigestHex + strconv.FormatUint(timestamp, 10)
	digest, err := crypto.SHA256([]byte(data))
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(digest[:])), nil
}

// meetsDifficulty reports whether a mining digest begins with at least
// difficulty leading hex zero characters.
func meetsDifficulty(miningDigestHex string, difficulty uint32) bool {
	if int(difficulty) > len(miningDigestHex) {
		return false
	}
	for i := uint32(0); i < difficulty; i++ {
		if miningDigestHex[i] != '0' {
			return false
		}
	}
	return true
}

// verifyBlock applies five ordered checks against the chain the block
// is meant to extend. blocks is the chain's current
// block slice (not including the candidate block itself).
func verifyBlock(block Block, blocks []Block) error {
	for _, tx := range block.Transactions {
		if err := tx.Verify(); err != nil {
			return err
		}
	}

	if block.Index == 0 {
		if !genesisEqual(block) {
			return xerrors.ErrGenesisBlockInvalid
		}
		return nil
	}

	if block.Index > uint64(len(blocks)) {
		return xerrors.ErrBlockIndexInvalid
	}
	prev := blocks[block.Index-1]

	if block.PreviousHash != prev.Hash {
		return xerrors.ErrBlockPreviousHashInvalid
	}
	if block.Timestamp <= prev.Timestamp {
		return xerrors.ErrBlockTimestampInvalid
	}
	if block.Index != prev.Index+1 {
		return xerrors.ErrBlockIndexInvalid
	}

	digest, err := MiningDigest(block.Index, block.Nonce, block.PreviousHash, block.Transactions)
	if err != nil {
		return err
	}
	finalHash, err := FinalBlockHash(digest, block.Timestamp)
	if err != nil {
		return err
	}
	if finalHash != block.Hash {
		return xerrors.ErrBlockHashInvalid
	}

	if !meetsDifficulty(digest, block.Difficulty) {
		return xerrors.ErrBlockHashDifficultyInsufficient
	}
	return nil
}

func genesisEqual(block Block) bool {
	return block.Index == Genesis.Index &&
		block.PreviousHash == Genesis.PreviousHash &&
		len(block.Transactions) == 0 &&
		block.Difficulty == Genesis.Difficulty &&
		block.Hash == Genesis.Hash &&
		block.Timestamp == Genesis.Timestamp
}
