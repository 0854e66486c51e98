package p2p

import (
	"fmt"
	"net"

	"github.com/kilimba-labs/ledgerchain/internal/xerrors"
	"github.com/kilimba-labs/ledgerchain/wire"
)

// TCPClient holds a single outbound connection to a remote peer.
type TCPClient struct {
	networkID uint64
	inbound   *InboundQueue
	conn      *Connection
}

// NewTCPClient creates a client that will tag its outbound connection
// with networkID.
func NewTCPClient(networkID uint64) *TCPClient {
	return &TCPClient{networkID: networkID, inbound: NewInboundQueue()}
}

// Connect resolves ipv4:port and connects synchronously. Calling it
// while already connected fails with CLIENT_CONNECTION_OCCUPIED.
func (c *TCPClient) Connect(ipv4 string, port int) error {
	if c.conn != nil && !c.conn.Closed() {
		return xerrors.ErrClientConnectionOccupied
	}
	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", ipv4, port))
	if err != nil {
		return err
	}
	c.conn = NewConnection(conn, c.networkID, c.inbound)
	return nil
}

// Disconnect drops the current connection, if any.
func (c *TCPClient) Disconnect() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Connected reports whether the client currently holds an open
// connection.
func (c *TCPClient) Connected() bool {
	return c.conn != nil && !c.conn.Closed()
}

// PushOutbound enqueues msg to be sent on the current connection.
func (c *TCPClient) PushOutbound(msg *wire.Message) error {
	if !c.Connected() {
		return xerrors.ErrNotConnected
	}
	c.conn.PushOutbound(msg)
	return nil
}

// TransmitOutboundOnly flushes only the send half of one cycle: any
// queued outbound message is written, but no receive is attempted.
func (c *TCPClient) TransmitOutboundOnly() error {
	if !c.Connected() {
		return xerrors.ErrNotConnected
	}
	if msg, ok := c.conn.popOutbound(); ok {
		_, err := c.conn.conn.Write(msg.Encode())
		if classified := classifyNetError(err); classified != nil {
			c.conn.Close()
			return classified
		}
	}
	return nil
}

// Update flushes both directions of the current connection once,
// closing it on a terminal error.
func (c *TCPClient) Update() error {
	if !c.Connected() {
		return xerrors.ErrNotConnected
	}
	if err := c.conn.Flush(); err != nil {
		c.conn.Close()
		return err
	}
	return nil
}

// InboundMessages drains every message received since the last call.
func (c *TCPClient) InboundMessages() []wire.ReceivedMessage {
	return c.inbound.Drain()
}
