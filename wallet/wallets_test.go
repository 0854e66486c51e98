package wallet

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddKeyPairAndSaveLoadRoundTrip(t *testing.T) {
	nodeID := "test-node-1"
	defer os.Remove(fileFor(nodeID))

	ws, err := Load(nodeID)
	require.NoError(t, err)

	addr, err := ws.AddKeyPair()
	require.NoError(t, err)
	require.NoError(t, ws.Save(nodeID))

	reloaded, err := Load(nodeID)
	require.NoError(t, err)
	kp, ok := reloaded.Get(addr)
	require.True(t, ok)
	assert.Equal(t, addr, kp.PublicKey)
}

func TestLoadMissingFileReturnsEmptyKeystore(t *testing.T) {
	ws, err := Load("nonexistent-node-id")
	require.NoError(t, err)
	assert.Empty(t, ws.Addresses())
}
