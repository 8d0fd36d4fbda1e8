package routing

import (
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxanet/netnode/pkg/crypto"
	"github.com/voxanet/netnode/pkg/log"
	"github.com/voxanet/netnode/pkg/types"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: "error", Output: io.Discard})
	os.Exit(m.Run())
}

type staticLister struct {
	rris []*types.RRI
}

func (s staticLister) ListRRIs(limit int) ([]*types.RRI, error) {
	if limit > 0 && limit < len(s.rris) {
		return s.rris[:limit], nil
	}
	return s.rris, nil
}

func relayFleet(t *testing.T, n int) ([]*types.RRI, map[string]*crypto.Keypair) {
	t.Helper()
	rris := make([]*types.RRI, 0, n)
	keys := make(map[string]*crypto.Keypair, n)
	for i := 0; i < n; i++ {
		kp, err := crypto.GenerateKeypair()
		require.NoError(t, err)
		id := fmt.Sprintf("relay-%d", i)
		keys[id] = kp
		rris = append(rris, &types.RRI{
			RelayID:   id,
			RelayIP:   "127.0.0.1",
			RelayPort: 9100 + i,
			PublicKey: kp.PublicKey,
		})
	}
	return rris, keys
}

func TestFactoryValidatesProtocol(t *testing.T) {
	req, err := Factory("http://example.com/", types.ProtocolSSU, nil)
	require.NoError(t, err)
	assert.Equal(t, types.ProtocolSSU, req.Protocol)
	assert.IsType(t, &ContentsHTTP{}, req.Contents)

	_, err = Factory("http://example.com/", "smoke-signals", nil)
	assert.ErrorIs(t, err, types.ErrValidation)

	// i2p is declared but stubbed; the factory accepts it
	req, err = Factory("http://example.com/", types.ProtocolI2P, nil)
	require.NoError(t, err)
	assert.Equal(t, types.ProtocolI2P, req.Protocol)
}

func TestContentsHTTPWireBytes(t *testing.T) {
	c := NewContentsHTTP()
	require.NoError(t, c.Validate())
	assert.Equal(t, []byte("GET http://example.com/\r\n\r\n"), c.WireBytes("http://example.com/"))

	c.Method = "post"
	c.Headers = map[string]string{"Content-Type": "application/json"}
	c.Body = `{"k":"v"}`
	require.NoError(t, c.Validate())
	assert.Equal(t,
		[]byte("POST http://example.com/\r\nContent-Type: application/json\r\n\r\n{\"k\":\"v\"}"),
		c.WireBytes("http://example.com/"))

	c.Method = "BREW"
	assert.ErrorIs(t, c.Validate(), types.ErrValidation)
}

func TestGenerateRelayMapProperties(t *testing.T) {
	tests := []struct {
		name       string
		relays     int
		maxMapSize int
		expectLen  int
	}{
		{name: "more relays than map size", relays: 10, maxMapSize: 4, expectLen: 4},
		{name: "fewer relays than map size", relays: 3, maxMapSize: 10, expectLen: 3},
		{name: "exact fit", relays: 5, maxMapSize: 5, expectLen: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rris, _ := relayFleet(t, tt.relays)
			inputIDs := make(map[string]bool, len(rris))
			for _, rri := range rris {
				inputIDs[rri.RelayID] = true
			}

			m, err := GenerateRelayMap(staticLister{rris: rris}, tt.maxMapSize, 5)
			require.NoError(t, err)
			assert.Equal(t, tt.expectLen, m.Len())

			seen := make(map[string]bool)
			for _, hop := range m.Hops() {
				assert.False(t, seen[hop.RelayID], "duplicate relay %s", hop.RelayID)
				assert.True(t, inputIDs[hop.RelayID], "relay %s not from input set", hop.RelayID)
				seen[hop.RelayID] = true
			}
		})
	}
}

func TestGenerateRelayMapDedupsInput(t *testing.T) {
	rris, _ := relayFleet(t, 3)
	rris = append(rris, rris[0], rris[1]) // duplicates

	m, err := GenerateRelayMap(staticLister{rris: rris}, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())
}

func TestGenerateRelayMapEmpty(t *testing.T) {
	_, err := GenerateRelayMap(staticLister{}, 5, 5)
	assert.ErrorIs(t, err, types.ErrNoRelaysAvailable)
}

func TestTwoHopChain(t *testing.T) {
	rris, keys := relayFleet(t, 2)
	r1, r2 := rris[0], rris[1]

	// Fixed two-hop map: exit via r2
	m := &Map{Head: &Hop{
		RelayID: r1.RelayID, RelayIP: r1.RelayIP, RelayPort: r1.RelayPort, PublicKey: r1.PublicKey,
		Child: &Hop{RelayID: r2.RelayID, RelayIP: r2.RelayIP, RelayPort: r2.RelayPort, PublicKey: r2.PublicKey},
	}}

	req, err := Factory("http://example.com/", types.ProtocolSSU, nil)
	require.NoError(t, err)

	outer, err := BuildChain(req, m, StrategyThreaded)
	require.NoError(t, err)

	// Outer packet is addressed to R1
	pkt, err := req.ToSSUPacket()
	require.NoError(t, err)
	assert.Equal(t, r1.RelayPort, pkt.Base().Addr.Port)
	assert.Equal(t, r1.RelayID, outer.RelayID)
	require.NotNil(t, outer.ChildRoute)
	assert.Equal(t, r2.RelayID, outer.ChildRoute.RelayID)

	// R1 unwraps its layer: a descriptor addressed to R2
	middle, err := UnwrapLayer(outer, keys[r1.RelayID].PrivateKey)
	require.NoError(t, err)
	desc2, err := ParseDescriptor(middle)
	require.NoError(t, err)
	assert.Equal(t, r2.RelayID, desc2.RelayID)
	assert.Nil(t, desc2.ChildRoute)

	// R2 unwraps the exit layer: the literal inner payload
	payload, err := UnwrapLayer(desc2, keys[r2.RelayID].PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, "GET http://example.com/\r\n\r\n", string(payload))

	// Tampering one byte of R2's ciphertext is caught at R2
	desc2.RouteData[len(desc2.RouteData)/2] ^= 0x01
	_, err = UnwrapLayer(desc2, keys[r2.RelayID].PrivateKey)
	assert.ErrorIs(t, err, types.ErrIntegrity)
}

func TestChainUnwrapReproducesPayloadAtExit(t *testing.T) {
	for _, hopCount := range []int{1, 3, 5} {
		t.Run(fmt.Sprintf("%d hops", hopCount), func(t *testing.T) {
			rris, keys := relayFleet(t, hopCount)
			m, err := GenerateRelayMap(staticLister{rris: rris}, hopCount, 0)
			require.NoError(t, err)

			req, err := Factory("http://target.example/", types.ProtocolSSU, nil)
			require.NoError(t, err)
			original := req.PayloadBytes()

			outer, err := BuildChain(req, m, StrategyThreaded)
			require.NoError(t, err)

			desc := outer
			var payload []byte
			for desc != nil {
				plaintext, err := UnwrapLayer(desc, keys[desc.RelayID].PrivateKey)
				require.NoError(t, err)
				if desc.ChildRoute == nil {
					payload = plaintext
					break
				}
				desc, err = ParseDescriptor(plaintext)
				require.NoError(t, err)
			}
			assert.Equal(t, original, payload)
		})
	}
}

func TestStrategiesAreEquivalent(t *testing.T) {
	rris, keys := relayFleet(t, 3)

	unwrapAll := func(strategy string) []byte {
		m, err := GenerateRelayMap(staticLister{rris: rris}, 3, 0)
		require.NoError(t, err)
		req, err := Factory("http://example.com/", types.ProtocolSSU, nil)
		require.NoError(t, err)

		outer, err := BuildChain(req, m, strategy)
		require.NoError(t, err)

		desc := outer
		for {
			plaintext, err := UnwrapLayer(desc, keys[desc.RelayID].PrivateKey)
			require.NoError(t, err)
			if desc.ChildRoute == nil {
				return plaintext
			}
			desc, err = ParseDescriptor(plaintext)
			require.NoError(t, err)
		}
	}

	assert.Equal(t, unwrapAll(StrategyThreaded), unwrapAll(StrategyBatched))
	// Unknown strategies fall back to threaded
	assert.Equal(t, unwrapAll(StrategyThreaded), unwrapAll("quantum"))
}

func TestBuildChainWithoutMap(t *testing.T) {
	req, err := Factory("http://example.com/", types.ProtocolSSU, nil)
	require.NoError(t, err)
	_, err = BuildChain(req, nil, StrategyThreaded)
	assert.ErrorIs(t, err, types.ErrNoRelaysAvailable)
}
