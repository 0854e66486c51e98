// Package p2p implements the peer transport layer: Connection and the
// dual-role TCPServer/TCPClient built on it. Each connection is
// persistent and multiplexed; Flush runs one non-blocking
// write-then-read cycle per call rather than blocking on I/O.
package p2p

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kilimba-labs/ledgerchain/internal/xerrors"
	"github.com/kilimba-labs/ledgerchain/wire"
)

// peekDeadline bounds how long flush() waits to discover whether bytes
// are available to read, keeping the cycle effectively non-blocking.
const peekDeadline = 2 * time.Millisecond

var connectionIDSeq uint32

// nextConnectionID hands out a monotonically increasing 32-bit ID.
func nextConnectionID() uint32 {
	return atomic.AddUint32(&connectionIDSeq, 1)
}

// Connection owns one peer stream endpoint: an outbound queue and a
// reference to a shared inbound queue that the owning server/client
// drains from the application thread.
type Connection struct {
	ID            uint32
	RemoteAddress string
	NetworkID     uint64

	conn   net.Conn
	closed atomic.Bool

	outMu    sync.Mutex
	outbound []*wire.Message

	inbound *InboundQueue
}

// NewConnection wraps an already-established net.Conn, routing any
// received messages to inbound.
func NewConnection(conn net.Conn, networkID uint64, inbound *InboundQueue) *Connection {
	return &Connection{
		ID:            nextConnectionID(),
		RemoteAddress: remoteHost(conn),
		NetworkID:     networkID,
		conn:          conn,
		inbound:       inbound,
	}
}

func remoteHost(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}

// Closed reports whether the connection has been torn down.
func (c *Connection) Closed() bool { return c.closed.Load() }

// Close closes the underlying socket. Idempotent.
func (c *Connection) Close() {
	if c.closed.CompareAndSwap(false, true) {
		_ = c.conn.Close()
	}
}

// PushOutbound enqueues msg to be sent on a future flush.
func (c *Connection) PushOutbound(msg *wire.Message) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	c.outbound = append(c.outbound, msg)
}

func (c *Connection) popOutbound() (*wire.Message, bool) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	if len(c.outbound) == 0 {
		return nil, false
	}
	msg := c.outbound[0]
	c.outbound = c.outbound[1:]
	return msg, true
}

// Flush runs one non-blocking cycle:
//  1. If outbound is non-empty, dequeue one message and write it whole.
//  2. If bytes are available, read exactly one message and push a
//     ReceivedMessage to the shared inbound queue.
//
// It returns the first error encountered, transmit before receive.
// CONNECTION_RESET, NOT_CONNECTED and EOF are terminal: the caller
// (TCPServer/TCPClient.update) is expected to close the connection.
func (c *Connection) Flush() error {
	if c.Closed() {
		return xerrors.ErrNotConnected
	}

	var txErr error
	if msg, ok := c.popOutbound(); ok {
		_, err := c.conn.Write(msg.Encode())
		txErr = classifyNetError(err)
	}
	if txErr != nil {
		return txErr
	}

	rxErr := c.tryReceiveOne()
	return rxErr
}

func (c *Connection) tryReceiveOne() error {
	if err := c.conn.SetReadDeadline(time.Now().Add(peekDeadline)); err != nil {
		return classifyNetError(err)
	}
	defer c.conn.SetReadDeadline(time.Time{})

	header := make([]byte, wire.HeaderSize)
	if _, err := io.ReadFull(c.conn, header); err != nil {
		if isTimeout(err) {
			return nil
		}
		return classifyNetError(err)
	}

	h, err := wire.DecodeHeader(header)
	if err != nil {
		return err
	}

	payload := make([]byte, h.SizeBytes)
	if h.SizeBytes > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(peekDeadline)); err != nil {
			return classifyNetError(err)
		}
		if _, err := io.ReadFull(c.conn, payload); err != nil {
			return classifyNetError(err)
		}
	}

	full := append(header, payload...)
	msg, err := wire.DecodeMessage(full)
	if err != nil {
		return err
	}

	c.inbound.Push(wire.ReceivedMessage{
		ConnectionID:  c.ID,
		SenderAddress: c.RemoteAddress,
		Message:       msg,
	})
	return nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func classifyNetError(err error) error {
	if err == nil {
		return nil
	}
	if isTimeout(err) {
		return nil
	}
	if errors.Is(err, io.EOF) {
		return xerrors.ErrEOF
	}
	if errors.Is(err, net.ErrClosed) {
		return xerrors.ErrNotConnected
	}
	return xerrors.ErrConnectionReset
}

// InboundQueue is a thread-safe FIFO of received messages, filled by
// Connection.Flush and drained by the owning server/client.
type InboundQueue struct {
	mu    sync.Mutex
	items []wire.ReceivedMessage
}

// NewInboundQueue creates an empty queue.
func NewInboundQueue() *InboundQueue { return &InboundQueue{} }

// Push appends a received message.
func (q *InboundQueue) Push(msg wire.ReceivedMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, msg)
}

// Drain removes and returns every currently queued message.
func (q *InboundQueue) Drain() []wire.ReceivedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}
