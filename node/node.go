// Package node assembles the peer-facing node: identity, peer list,
// pending request/response correlation, and the dispatch table that
// drives Flush(). A single node owns both a TCPServer and a TCPClient
// and routes decoded messages from either side through one typed
// switch instead of a raw gob decode.
package node

import (
	"errors"
	"sync"

	"github.com/kilimba-labs/ledgerchain/chain"
	"github.com/kilimba-labs/ledgerchain/crypto"
	"github.com/kilimba-labs/ledgerchain/internal/idgen"
	"github.com/kilimba-labs/ledgerchain/internal/xerrors"
	"github.com/kilimba-labs/ledgerchain/internal/xlog"
	"github.com/kilimba-labs/ledgerchain/mempool"
	"github.com/kilimba-labs/ledgerchain/p2p"
	"github.com/kilimba-labs/ledgerchain/wire"
)

var log = xlog.For("node")

// Kind distinguishes the three node roles: a full chain-holding node, a
// lightweight wallet-only node, and a mining node operating solo.
type Kind uint32

const (
	Full Kind = iota
	Wallet
	SoloMiner
)

// Peer is one entry in a node's peer list.
type Peer struct {
	Type         Kind
	GUID         uint64
	Address      string
	HasFullChain bool
}

// BalanceResult fulfills the one-shot future returned by
// RequestAddressBalance.
type BalanceResult struct {
	Balance float64
	Err     error
}

// maxConnectAttempts bounds how many connection attempts, in total,
// RequestAddressBalance makes to a candidate peer.
const maxConnectAttempts = 3

// Construction contract errors, checked at New() rather than folded
// into the wire-level error taxonomy.
var (
	errFullRequiresChain        = errors.New("node: FULL node requires a chain")
	errSoloMinerRequiresMempool = errors.New("node: SOLO_MINER node requires a mempool")
)

// Node is a dual-role peer: it accepts inbound connections through an
// embedded TCPServer and makes outbound requests through an embedded
// TCPClient.
type Node struct {
	Type      Kind
	Port      int
	GUID      uint64
	NetworkID uint64

	server *p2p.TCPServer
	client *p2p.TCPClient

	chain   *chain.Chain
	mempool *mempool.Mempool

	peersMu sync.Mutex
	peers   []Peer

	pendingMu sync.Mutex
	pending   map[uint32]chan BalanceResult
}

// New constructs a node. FULL nodes require a chain; SOLO_MINER nodes
// require a mempool — violating either contract is a caller error.
func New(kind Kind, port int, guid, networkID uint64, ledger *chain.Chain, pool *mempool.Mempool) (*Node, error) {
	if kind == Full && ledger == nil {
		return nil, errFullRequiresChain
	}
	if kind == SoloMiner && pool == nil {
		return nil, errSoloMinerRequiresMempool
	}
	return &Node{
		Type:      kind,
		Port:      port,
		GUID:      guid,
		NetworkID: networkID,
		server:    p2p.NewTCPServer(networkID),
		client:    p2p.NewTCPClient(networkID),
		chain:     ledger,
		mempool:   pool,
		pending:   make(map[uint32]chan BalanceResult),
	}, nil
}

// Peers returns a snapshot of the node's current peer list.
func (n *Node) Peers() []Peer {
	n.peersMu.Lock()
	defer n.peersMu.Unlock()
	out := make([]Peer, len(n.peers))
	copy(out, n.peers)
	return out
}

func (n *Node) addPeerRecord(p Peer) {
	n.peersMu.Lock()
	defer n.peersMu.Unlock()
	n.peers = append(n.peers, p)
}

// Listen starts the embedded server accepting connections on the
// node's port.
func (n *Node) Listen(bindAddr string) error {
	return n.server.StartListener(bindAddr)
}

// StopListening shuts the embedded server down.
func (n *Node) StopListening() error {
	return n.server.StopListener()
}

// Flush drives one cycle: updates client then server transports, then
// dispatches every drained message whose network_id matches this node's,
// client inbound first, then server inbound.
func (n *Node) Flush() {
	if err := n.client.Update(); err != nil {
		log.WithError(err).Debug("client update")
	}
	n.server.Update()

	for _, rm := range n.client.InboundMessages() {
		if rm.Message.NetworkID != n.NetworkID {
			continue
		}
		n.handleClientMessage(rm)
	}
	for _, rm := range n.server.InboundMessages() {
		if rm.Message.NetworkID != n.NetworkID {
			continue
		}
		n.handleServerMessage(rm)
	}
}

func (n *Node) handleServerMessage(rm wire.ReceivedMessage) {
	switch rm.Message.Kind() {
	case wire.NodeGUIDRequest:
		n.respondGUIDRequest(rm)
	case wire.AddressAmountRequest:
		n.respondAddressAmountRequest(rm)
	}
}

func (n *Node) handleClientMessage(rm wire.ReceivedMessage) {
	switch rm.Message.Kind() {
	case wire.NodeGUIDResponse:
		n.handleGUIDResponse(rm)
	case wire.AddressAmountResponse:
		n.handleAddressAmountResponse(rm)
	}
}

func (n *Node) respondGUIDRequest(rm wire.ReceivedMessage) {
	hasFullChain := 0
	if n.chain != nil {
		hasFullChain = 1
	}
	resp := wire.NewMessage(wire.NodeGUIDResponse, n.NetworkID)
	resp.PushUint32(uint32(hasFullChain))
	resp.PushUint64(n.GUID)
	resp.PushUint32(uint32(n.Type))

	if err := n.server.PushResponse(rm, resp); err != nil {
		log.WithError(err).Warn("push guid response")
	}
}

func (n *Node) handleGUIDResponse(rm wire.ReceivedMessage) {
	kind, err := rm.Message.PopUint32()
	if err != nil {
		return
	}
	guid, err := rm.Message.PopUint64()
	if err != nil {
		return
	}
	hasFullChain, err := rm.Message.PopUint32()
	if err != nil {
		return
	}
	n.addPeerRecord(Peer{
		Type:         Kind(kind),
		GUID:         guid,
		Address:      rm.SenderAddress,
		HasFullChain: hasFullChain != 0,
	})
	n.client.Disconnect()
}

func (n *Node) respondAddressAmountRequest(rm wire.ReceivedMessage) {
	reqID, err := rm.Message.PopUint32()
	if err != nil {
		return
	}
	pkHex, err := rm.Message.PopString()
	if err != nil {
		return
	}

	balance := -1.0
	if n.chain != nil {
		if _, parseErr := crypto.ParsePublicKey(pkHex); parseErr == nil {
			balance = n.chain.GetAddressBalance(pkHex)
		}
	}

	resp := wire.NewMessage(wire.AddressAmountResponse, n.NetworkID)
	resp.PushFloat64(balance)
	resp.PushUint32(reqID)
	if err := n.server.PushResponse(rm, resp); err != nil {
		log.WithError(err).Warn("push balance response")
	}
}

func (n *Node) handleAddressAmountResponse(rm wire.ReceivedMessage) {
	reqID, err := rm.Message.PopUint32()
	if err != nil {
		return
	}
	balance, err := rm.Message.PopFloat64()
	if err != nil {
		return
	}

	n.pendingMu.Lock()
	ch, ok := n.pending[reqID]
	delete(n.pending, reqID)
	n.pendingMu.Unlock()
	if !ok {
		return
	}

	if balance == -1.0 {
		ch <- BalanceResult{Err: xerrors.ErrBalanceRequestPeerSideError}
	} else {
		ch <- BalanceResult{Balance: balance}
	}
	close(ch)
}

// AddPeer connects to ipv4, requests its identity, and transmits the
// request. The peer is added to the peer list on a subsequent Flush,
// once the NODE_GUID_RESPONSE arrives.
func (n *Node) AddPeer(ipv4 string, port int) error {
	if err := n.client.Connect(ipv4, port); err != nil {
		return err
	}
	req := wire.NewMessage(wire.NodeGUIDRequest, n.NetworkID)
	if err := n.client.PushOutbound(req); err != nil {
		return err
	}
	return n.client.TransmitOutboundOnly()
}

// RequestAddressBalance asks a suitable peer (a FULL node, or a
// SOLO_MINER that reports a full chain) for pk's balance, returning a
// channel that receives exactly one BalanceResult once the response is
// dispatched by a future Flush.
func (n *Node) RequestAddressBalance(pk string) (<-chan BalanceResult, error) {
	peer, ok := n.findSuitablePeer()
	if !ok {
		return nil, xerrors.ErrNoSuitableNodeInPeerList
	}

	var connectErr error
	for attempt := 0; attempt < maxConnectAttempts; attempt++ {
		connectErr = n.client.Connect(peer.Address, n.Port)
		if connectErr == nil {
			break
		}
	}
	if connectErr != nil {
		return nil, connectErr
	}

	reqID := n.freshRequestID()
	ch := make(chan BalanceResult, 1)
	n.pendingMu.Lock()
	n.pending[reqID] = ch
	n.pendingMu.Unlock()

	req := wire.NewMessage(wire.AddressAmountRequest, n.NetworkID)
	req.PushString(pk)
	req.PushUint32(reqID)
	if err := n.client.PushOutbound(req); err != nil {
		return nil, err
	}
	if err := n.client.TransmitOutboundOnly(); err != nil {
		return nil, err
	}
	return ch, nil
}

func (n *Node) findSuitablePeer() (Peer, bool) {
	n.peersMu.Lock()
	defer n.peersMu.Unlock()
	for _, p := range n.peers {
		if p.Type == Full || (p.Type == SoloMiner && p.HasFullChain) {
			return p, true
		}
	}
	return Peer{}, false
}

func (n *Node) freshRequestID() uint32 {
	n.pendingMu.Lock()
	defer n.pendingMu.Unlock()
	for {
		id := idgen.Uint32()
		if _, exists := n.pending[id]; !exists {
			return id
		}
	}
}
