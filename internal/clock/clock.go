// Package clock is the node's one source of wall-clock time. The
// timestamp source is treated as an external collaborator assumed to
// provide monotonic wall-clock seconds since epoch; this package gives
// that assumption a concrete, swappable home so tests can pin time.
package clock

import "time"

// Now returns the current time as seconds since the Unix epoch.
var Now = func() uint64 {
	return uint64(time.Now().Unix())
}
