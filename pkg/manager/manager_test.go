package manager

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxanet/netnode/pkg/config"
	"github.com/voxanet/netnode/pkg/events"
	"github.com/voxanet/netnode/pkg/log"
	"github.com/voxanet/netnode/pkg/packet"
	"github.com/voxanet/netnode/pkg/routing"
	"github.com/voxanet/netnode/pkg/ssu"
	"github.com/voxanet/netnode/pkg/types"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: "error", Output: io.Discard})
	os.Exit(m.Run())
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.DataDir = t.TempDir()
	cfg.SSU.Host = "127.0.0.1"
	cfg.SSU.Port = freePort(t)
	cfg.SSU.ConnectionTimeout = 2
	cfg.P2P.UPnP = false
	return cfg
}

var portCounter = 19000

func freePort(t *testing.T) int {
	t.Helper()
	portCounter++
	return portCounter
}

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := New(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { m.Stop() })
	return m
}

func TestManagerLifecycle(t *testing.T) {
	m := newManager(t)

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Start(context.Background())) // idempotent

	assert.True(t, m.Node().Running())
	assert.NotNil(t, m.Keypair())
	assert.NotEmpty(t, m.LocalNRI().NodeID)

	status := m.Status()
	assert.Equal(t, "online", status["status"])
	assert.Equal(t, true, status["healthy"])

	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop()) // idempotent
}

func TestKeypairPersistsAcrossRestarts(t *testing.T) {
	cfg := testConfig(t)

	m1, err := New(cfg)
	require.NoError(t, err)
	key1 := m1.Keypair().PublicKeyHash
	node1 := m1.LocalNRI().NodeID
	require.NoError(t, m1.Stop())

	// Same data dir, fresh process
	m2, err := New(cfg)
	require.NoError(t, err)
	defer m2.Stop()

	assert.Equal(t, key1, m2.Keypair().PublicKeyHash)
	assert.Equal(t, node1, m2.LocalNRI().NodeID)
}

func TestPeerAddrsByRIKind(t *testing.T) {
	m := newManager(t)

	require.NoError(t, m.RIStore().CreateNRI(&types.NRI{
		NodeID: "peer-node", NodeIP: "10.0.0.1", NodePort: 9001, NodeType: types.NodeTypeStandard,
	}))
	require.NoError(t, m.RIStore().CreateRRI(&types.RRI{
		RelayID: "peer-relay", RelayIP: "10.0.0.2", RelayPort: 9002, PublicKey: m.Keypair().PublicKey,
	}))

	assert.Len(t, m.PeerAddrs(packet.TargetNRI), 1)
	assert.Len(t, m.PeerAddrs(packet.TargetRRI), 1)
	assert.Len(t, m.PeerAddrs(packet.TargetAll), 2)
	assert.Equal(t, "10.0.0.1", m.PeerAddrs(packet.TargetNRI)[0].Host)
}

func TestSendRequestProtocolHandling(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.Start(context.Background()))

	// i2p is declared but stubbed
	req, err := routing.Factory("http://example.com/", types.ProtocolI2P, nil)
	require.NoError(t, err)
	_, err = m.SendRequest(context.Background(), req, routing.StrategyThreaded)
	assert.ErrorIs(t, err, types.ErrProtocolUnsupported)

	// ssu with no relays is a hard error
	req, err = routing.Factory("http://example.com/", types.ProtocolSSU, nil)
	require.NoError(t, err)
	_, err = m.SendRequest(context.Background(), req, routing.StrategyThreaded)
	assert.ErrorIs(t, err, types.ErrNoRelaysAvailable)
}

func TestSendRequestThroughOwnRelay(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.Start(context.Background()))

	// Register this node as the only relay so the chain is one hop,
	// exiting locally.
	self := m.LocalNRI()
	require.NoError(t, m.RIStore().CreateRRI(&types.RRI{
		RelayID:   "self-relay",
		RelayIP:   "127.0.0.1",
		RelayPort: self.NodePort,
		PublicKey: m.Keypair().PublicKey,
	}))

	// Swap the exit for a local stub instead of a live HTTP fetch
	m.forwarder = routing.NewForwarder(m.Node(), m.Keypair(), 2*time.Second,
		func(ctx context.Context, payload []byte) (*packet.Packet, error) {
			return packet.NewSSUPacket(packet.Addr{}, fmt.Sprintf("exit saw %d bytes", len(payload))).Base(), nil
		})
	m.Node().BindHook(packet.HeaderSSU, m.forwarder.Handler())

	req, err := routing.Factory("http://example.com/", types.ProtocolSSU, nil)
	require.NoError(t, err)

	resp, err := m.SendRequest(context.Background(), req, routing.StrategyThreaded)
	require.NoError(t, err)
	assert.Contains(t, resp.Body(), "exit saw")
}

func TestStatusOverControlChannel(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.Start(context.Background()))

	client := ssu.NewNode(config.SSU{Host: "127.0.0.1", Port: 0, MaxSSULoopIndex: 2, ConnectionTimeout: 2})
	require.NoError(t, client.Start())
	t.Cleanup(func() { client.Stop() })

	target := packet.Addr{Host: "127.0.0.1", Port: m.cfg.SSU.Port}
	control := packet.NewControlPacket(target, packet.ControlStatus, nil)

	resp, err := client.SendRequestAndWait(context.Background(), ssu.NewRequest(control.Base()), 2*time.Second)
	require.NoError(t, err)
	assert.Contains(t, resp.Body(), `"status":"online"`)
}

func TestInternalHTTPHealth(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.Start(context.Background()))

	client := ssu.NewNode(config.SSU{Host: "127.0.0.1", Port: 0, MaxSSULoopIndex: 2, ConnectionTimeout: 2})
	require.NoError(t, client.Start())
	t.Cleanup(func() { client.Stop() })

	target := packet.Addr{Host: "127.0.0.1", Port: m.cfg.SSU.Port}
	reqPkt := packet.NewInternalHTTPPacket(target, "/status/health", "GET", nil, nil)

	resp, err := client.SendRequestAndWait(context.Background(), ssu.NewRequest(reqPkt.Base()), 2*time.Second)
	require.NoError(t, err)

	typed, err := packet.Upgrade(resp)
	require.NoError(t, err)
	httpResp, ok := typed.(*packet.InternalHTTPResponsePacket)
	require.True(t, ok)
	assert.Equal(t, 0, httpResp.ErrorCode)
	assert.Equal(t, "online", httpResp.ResponseJSON["status"])

	// Unknown endpoints carry a 404 in the envelope
	reqPkt = packet.NewInternalHTTPPacket(target, "/no/such/endpoint", "GET", nil, nil)
	resp, err = client.SendRequestAndWait(context.Background(), ssu.NewRequest(reqPkt.Base()), 2*time.Second)
	require.NoError(t, err)
	typed, err = packet.Upgrade(resp)
	require.NoError(t, err)
	httpResp = typed.(*packet.InternalHTTPResponsePacket)
	assert.Equal(t, 404, httpResp.ErrorCode)
}

func TestStatsDocument(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.Start(context.Background()))

	stats := m.Stats()
	system := stats["system"].(map[string]interface{})
	assert.NotEmpty(t, system["go_version"])
	network := stats["network"].(map[string]interface{})
	assert.Equal(t, 0, network["nri_peers"])
}

func TestLifecycleEventsOnBus(t *testing.T) {
	m := newManager(t)

	sub := m.Broker().Subscribe(events.NodeStarted, events.NodeStopped)
	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Stop())

	var got []events.Type
	for ev := range sub.C {
		got = append(got, ev.Type)
		assert.Equal(t, m.LocalNRI().NodeID, ev.NodeID)
	}
	assert.Equal(t, []events.Type{events.NodeStarted, events.NodeStopped}, got)
}
