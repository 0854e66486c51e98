package miner

import (
	"sync"
	"time"
)

// HashRateMeter tracks the nonce search rate of a mining session.
// Callers own a meter
// instance and pass it explicitly to MineNextBlock, rather than mining
// against hidden global state.
//
// Only one session may record on a given meter at a time; a second
// Start overwrites the first's in-progress window.
type HashRateMeter struct {
	mu         sync.Mutex
	startedAt  time.Time
	startNonce uint64
	currentHPS float64
	recording  bool
}

// Start begins a recording window at startNonce.
func (m *HashRateMeter) Start(startNonce uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startedAt = time.Now()
	m.startNonce = startNonce
	m.recording = true
}

// End closes the recording window at endNonce and updates Current().
//
// hps = (endNonce - startNonce) / elapsed_seconds, i.e. the rate since
// Start was called. The C++ source this was ported from instead
// computes endNonce / elapsed (without subtracting the start
// value), which the "hash rate since start" naming suggests is a bug;
// this implementation takes the since-start semantics the name implies.
func (m *HashRateMeter) End(endNonce uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.recording {
		return
	}
	elapsed := time.Since(m.startedAt).Seconds()
	if elapsed > 0 {
		m.currentHPS = float64(endNonce-m.startNonce) / elapsed
	}
	m.recording = false
}

// Current returns the hash rate computed by the most recently completed
// window, in hashes per second.
func (m *HashRateMeter) Current() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentHPS
}

// defaultMeter is a process-wide instance retained only for backward
// compatibility with callers that do not own a HashRateMeter of their
// own.
var defaultMeter = &HashRateMeter{}

// DefaultMeter returns the process-wide HashRateMeter.
func DefaultMeter() *HashRateMeter { return defaultMeter }
