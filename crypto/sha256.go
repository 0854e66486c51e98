package crypto

import (
	"crypto/sha256"

	"github.com/kilimba-labs/ledgerchain/internal/xerrors"
)

// SHA256 computes the 32-byte SHA-256 digest of data. It is total and
// deterministic except for the empty-input case, which the source
// treats as a caller error rather than hashing the empty string.
func SHA256(data []byte) ([32]byte, error) {
	if len(data) == 0 {
		return [32]byte{}, xerrors.ErrMessageEmpty
	}
	return sha256.Sum256(data), nil
}

// DoubleSHA256 computes SHA256(SHA256(data)), the digest used for
// transaction hashes. Block digests use a single SHA256.
func DoubleSHA256(data []byte) ([32]byte, error) {
	first, err := SHA256(data)
	if err != nil {
		return [32]byte{}, err
	}
	second := sha256.Sum256(first[:])
	return second, nil
}
