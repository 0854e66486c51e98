package p2p

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/kilimba-labs/ledgerchain/internal/xerrors"
	"github.com/kilimba-labs/ledgerchain/wire"
)

// TCPServer binds a fixed port and accepts inbound peer connections on
// a dedicated goroutine, tracking each in a connection table keyed by
// connection ID.
type TCPServer struct {
	networkID uint64
	inbound   *InboundQueue

	listener  net.Listener
	listenErr atomic.Value // error
	listening atomic.Bool

	mu    sync.Mutex
	conns map[uint32]*Connection
}

// NewTCPServer creates a server that will tag accepted connections with
// networkID and route their received messages to a shared inbound
// queue.
func NewTCPServer(networkID uint64) *TCPServer {
	return &TCPServer{
		networkID: networkID,
		inbound:   NewInboundQueue(),
		conns:     make(map[uint32]*Connection),
	}
}

// StartListener binds addr (e.g. ":60000") and begins accepting
// connections on a background goroutine. Calling it again while already
// listening is a no-op, matching the source's idempotent intent.
func (s *TCPServer) StartListener(addr string) error {
	if s.listening.Load() {
		return nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.listening.Store(true)
	go s.acceptLoop()
	return nil
}

func (s *TCPServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.listening.Load() {
				s.listenErr.Store(err)
			}
			return
		}
		c := NewConnection(conn, s.networkID, s.inbound)
		s.mu.Lock()
		s.conns[c.ID] = c
		s.mu.Unlock()
	}
}

// StopListener closes the listener and every tracked connection.
// Idempotent.
func (s *TCPServer) StopListener() error {
	if !s.listening.CompareAndSwap(true, false) {
		return nil
	}
	err := s.listener.Close()

	s.mu.Lock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = make(map[uint32]*Connection)
	s.mu.Unlock()

	return err
}

// IsListening reports whether the acceptor loop is currently active.
func (s *TCPServer) IsListening() bool { return s.listening.Load() }

// ListenerAddr returns the address the server is currently bound to.
func (s *TCPServer) ListenerAddr() net.Addr { return s.listener.Addr() }

// ListenerError returns the last error the accept loop recorded, if any.
func (s *TCPServer) ListenerError() error {
	if v := s.listenErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// PushResponse enqueues outbound on the connection that sent received.
func (s *TCPServer) PushResponse(received wire.ReceivedMessage, outbound *wire.Message) error {
	s.mu.Lock()
	c, ok := s.conns[received.ConnectionID]
	s.mu.Unlock()
	if !ok {
		return xerrors.ErrConnectionNoLongerOpen
	}
	c.PushOutbound(outbound)
	return nil
}

// Broadcast enqueues msg on every currently open connection.
func (s *TCPServer) Broadcast(msg *wire.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.PushOutbound(msg)
	}
}

// Update flushes every tracked connection once, closing and GC'ing any
// that return a terminal error.
func (s *TCPServer) Update() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.conns {
		if err := c.Flush(); err != nil {
			c.Close()
		}
		if c.Closed() {
			delete(s.conns, id)
		}
	}
}

// InboundMessages drains every message received since the last call.
func (s *TCPServer) InboundMessages() []wire.ReceivedMessage {
	return s.inbound.Drain()
}

// ConnectionCount reports how many connections are currently tracked.
func (s *TCPServer) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
