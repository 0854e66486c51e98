// Package idgen is the node's one source of random identifiers. The RNG
// is treated as an external collaborator assumed to produce uniform
// integers unrelated to cryptographic security (transaction IDs and
// request correlation IDs, never key material); this package gives that
// assumption a concrete, swappable home so tests can pin sequences.
package idgen

import "math/rand"

// Uint64 returns a random 64-bit identifier, used for transaction IDs.
var Uint64 = func() uint64 {
	return rand.Uint64()
}

// Uint32 returns a random 32-bit identifier, used for request correlation
// IDs.
var Uint32 = func() uint32 {
	return rand.Uint32()
}
