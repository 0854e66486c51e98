// Package wallet is a local keystore: a named collection of crypto key
// pairs persisted to disk as gob, so a node operator can generate and
// reuse addresses across restarts. Addresses are secp256k1 "vpk_"
// public keys (see github.com/kilimba-labs/ledgerchain/crypto).
package wallet

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"

	"github.com/kilimba-labs/ledgerchain/crypto"
)

// fileFor builds the on-disk path for a node's keystore file.
func fileFor(nodeID string) string {
	return fmt.Sprintf("./tmp/wallets_%s.gob", nodeID)
}

// Wallets is a keyed collection of key pairs, keyed by their "vpk_"
// public-key string.
type Wallets struct {
	Pairs map[string]crypto.KeyPair
}

// Load opens the keystore file for nodeID, returning an empty keystore
// if the file does not yet exist.
func Load(nodeID string) (*Wallets, error) {
	ws := &Wallets{Pairs: make(map[string]crypto.KeyPair)}

	path := fileFor(nodeID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ws, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var decoded Wallets
	if err := gob.NewDecoder(bytes.NewReader(content)).Decode(&decoded); err != nil {
		return nil, err
	}
	ws.Pairs = decoded.Pairs
	return ws, nil
}

// Save serializes the keystore to nodeID's file.
func (ws *Wallets) Save(nodeID string) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ws); err != nil {
		return err
	}
	if err := os.MkdirAll("./tmp", 0o755); err != nil {
		return err
	}
	return os.WriteFile(fileFor(nodeID), buf.Bytes(), 0o644)
}

// AddKeyPair generates a fresh key pair, stores it, and returns its
// public-key address.
func (ws *Wallets) AddKeyPair() (string, error) {
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return "", err
	}
	ws.Pairs[kp.PublicKey] = kp
	return kp.PublicKey, nil
}

// Addresses lists every public key held in the keystore.
func (ws *Wallets) Addresses() []string {
	out := make([]string, 0, len(ws.Pairs))
	for addr := range ws.Pairs {
		out = append(out, addr)
	}
	return out
}

// Get looks up the key pair for a public-key address.
func (ws *Wallets) Get(address string) (crypto.KeyPair, bool) {
	kp, ok := ws.Pairs[address]
	return kp, ok
}
