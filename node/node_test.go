package node

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilimba-labs/ledgerchain/chain"
	"github.com/kilimba-labs/ledgerchain/crypto"
)

func TestNewRejectsFullWithoutChain(t *testing.T) {
	_, err := New(Full, 60000, 1, 1, nil, nil)
	assert.Error(t, err)
}

func TestNewRejectsSoloMinerWithoutMempool(t *testing.T) {
	_, err := New(SoloMiner, 60000, 1, 1, nil, nil)
	assert.Error(t, err)
}

func portOf(t *testing.T, addr net.Addr) int {
	t.Helper()
	_, portStr, err := net.SplitHostPort(addr.String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return port
}

func TestAddPeerExchangesGUIDIdentity(t *testing.T) {
	const networkID = 0xABCD

	serverLedger := chain.New()
	server, err := New(Full, 0, 1, networkID, serverLedger, nil)
	require.NoError(t, err)
	require.NoError(t, server.Listen("127.0.0.1:0"))
	defer server.StopListening()
	server.Port = portOf(t, server.server.ListenerAddr())

	clientLedger := chain.New()
	client, err := New(Wallet, 0, 2, networkID, clientLedger, nil)
	require.NoError(t, err)

	require.NoError(t, client.AddPeer("127.0.0.1", server.Port))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		server.Flush()
		client.Flush()
		if len(client.Peers()) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	peers := client.Peers()
	require.Len(t, peers, 1)
	assert.Equal(t, Full, peers[0].Type)
	assert.Equal(t, uint64(1), peers[0].GUID)
}

func TestRequestAddressBalanceRoundTrip(t *testing.T) {
	const networkID = 0xBEEF

	recipient, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	serverLedger := chain.New()
	server, err := New(Full, 0, 10, networkID, serverLedger, nil)
	require.NoError(t, err)
	require.NoError(t, server.Listen("127.0.0.1:0"))
	defer server.StopListening()
	server.Port = portOf(t, server.server.ListenerAddr())

	// RequestAddressBalance dials the peer on the node's own Port, so the
	// client must share the server's port.
	client, err := New(Wallet, server.Port, 20, networkID, nil, nil)
	require.NoError(t, err)
	client.addPeerRecord(Peer{Type: Full, GUID: 10, Address: "127.0.0.1", HasFullChain: true})

	resultCh, err := client.RequestAddressBalance(recipient.PublicKey)
	require.NoError(t, err)

	var result BalanceResult
	var received bool
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !received {
		server.Flush()
		client.Flush()
		select {
		case result = <-resultCh:
			received = true
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	require.True(t, received)
	assert.NoError(t, result.Err)
	assert.Equal(t, 0.0, result.Balance)
}
