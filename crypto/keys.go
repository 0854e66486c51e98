// Package crypto implements secp256k1 key generation with compressed,
// "vpk_"-prefixed public keys, and DER-encoded ECDSA-with-SHA256
// sign/verify, via github.com/btcsuite/btcd/btcec/v2.
package crypto

import (
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	ecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/kilimba-labs/ledgerchain/internal/xerrors"
)

// PublicKeyPrefix is the ASCII tag every serialized public key string
// carries.
const PublicKeyPrefix = "vpk_"

// KeyPair holds a generated secp256k1 key pair in their wire string forms.
type KeyPair struct {
	PublicKey  string // "vpk_" + 66 lowercase hex chars (33-byte compressed point)
	PrivateKey string // 32-byte big-endian hex
}

// GenerateKeyPair creates a fresh secp256k1 key pair.
func GenerateKeyPair() (KeyPair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{
		PublicKey:  EncodePublicKey(priv.PubKey()),
		PrivateKey: hex.EncodeToString(priv.Serialize()),
	}, nil
}

// EncodePublicKey serializes a public key to its wire string form.
func EncodePublicKey(pub *btcec.PublicKey) string {
	return PublicKeyPrefix + hex.EncodeToString(pub.SerializeCompressed())
}

// ParsePublicKey parses a "vpk_"-prefixed (case-insensitive) compressed
// public key string. Any other prefix, or malformed hex/point data,
// returns ECDSA_PUBLIC_KEY_INVALID.
func ParsePublicKey(pk string) (*btcec.PublicKey, error) {
	if len(pk) <= len(PublicKeyPrefix) || !strings.EqualFold(pk[:len(PublicKeyPrefix)], PublicKeyPrefix) {
		return nil, xerrors.ErrECDSAPublicKeyInvalid
	}
	raw, err := hex.DecodeString(pk[len(PublicKeyPrefix):])
	if err != nil {
		return nil, xerrors.ErrECDSAPublicKeyInvalid
	}
	pub, err := btcec.ParsePubKey(raw)
	if err != nil {
		return nil, xerrors.ErrECDSAPublicKeyInvalid
	}
	return pub, nil
}

// ParsePrivateKey decodes a 32-byte big-endian hex private key.
func ParsePrivateKey(sk string) (*btcec.PrivateKey, error) {
	raw, err := hex.DecodeString(sk)
	if err != nil {
		return nil, xerrors.ErrECDSAPrivateKeyRequired
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	if priv == nil {
		return nil, xerrors.ErrECDSAPrivateKeyRequired
	}
	return priv, nil
}

// Sign produces a DER-encoded ECDSA-with-SHA256 signature over a
// pre-computed 32-byte message digest, stored as hex.
func Sign(sk string, digest []byte) (string, error) {
	if len(digest) == 0 {
		return "", xerrors.ErrMessageEmpty
	}
	priv, err := ParsePrivateKey(sk)
	if err != nil {
		return "", err
	}
	sig := ecdsa.Sign(priv, digest)
	return hex.EncodeToString(sig.Serialize()), nil
}

// Verify checks a DER-encoded ECDSA-with-SHA256 signature (hex-encoded)
// over a pre-computed 32-byte message digest against a public key string.
func Verify(pk string, digest []byte, signatureHex string) (bool, error) {
	if len(digest) == 0 {
		return false, xerrors.ErrMessageEmpty
	}
	pub, err := ParsePublicKey(pk)
	if err != nil {
		return false, err
	}
	sigBytes, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false, nil
	}
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return false, nil
	}
	return sig.Verify(digest, pub), nil
}
