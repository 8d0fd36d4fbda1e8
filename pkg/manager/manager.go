package manager

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/voxanet/netnode/pkg/config"
	"github.com/voxanet/netnode/pkg/crypto"
	"github.com/voxanet/netnode/pkg/dns"
	"github.com/voxanet/netnode/pkg/events"
	"github.com/voxanet/netnode/pkg/log"
	"github.com/voxanet/netnode/pkg/packet"
	"github.com/voxanet/netnode/pkg/propagation"
	"github.com/voxanet/netnode/pkg/registry"
	"github.com/voxanet/netnode/pkg/routing"
	"github.com/voxanet/netnode/pkg/ssu"
	"github.com/voxanet/netnode/pkg/stellaris"
	"github.com/voxanet/netnode/pkg/store"
	"github.com/voxanet/netnode/pkg/types"
)

// Version is stamped by the build.
var Version = "dev"

// Manager is the process-wide hub: it owns the SSU node, the DNS overlay,
// the propagation engine, the peer lists, and the local keypair, and is
// the injection point for every component above the transport. Tests
// construct isolated instances; nothing in this package is ambient.
type Manager struct {
	cfg *config.Config

	ristore *store.RIStore
	bolt    *store.BoltStore

	node      *ssu.Node
	dnsStore  *dns.Store
	dnsServer *dns.Server
	engine    *propagation.Engine
	forwarder *routing.Forwarder
	broker    *events.Broker
	directory *registry.Client

	keypair  *crypto.Keypair
	localNRI *types.NRI

	mu               sync.Mutex
	running          bool
	startedAt        time.Time
	bootstrapReached int
	logger           zerolog.Logger
}

// New assembles a manager from configuration. Key material is loaded from
// the store or generated and saved on first boot.
func New(cfg *config.Config) (*Manager, error) {
	ristore, err := store.NewRIStore(
		cfg.Storage.DataDir,
		cfg.Storage.SubDir("nri"),
		cfg.Storage.SubDir("rri"),
		cfg.Storage.SubDir("local"),
	)
	if err != nil {
		return nil, err
	}

	bolt, err := store.NewBoltStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:     cfg,
		ristore: ristore,
		bolt:    bolt,
		broker:  events.NewBroker(),
		logger:  log.WithComponent("manager"),
	}

	if err := m.loadOrGenerateKeypair(); err != nil {
		bolt.Close()
		return nil, err
	}
	if err := m.loadOrCreateLocalNRI(); err != nil {
		bolt.Close()
		return nil, err
	}

	m.node = ssu.NewNode(cfg.SSU)
	m.dnsStore = dns.NewStore(bolt)
	m.engine = propagation.NewEngine(m.node, m, nil)
	m.forwarder = routing.NewForwarder(m.node, m.keypair, cfg.SSU.Timeout(), nil)

	if cfg.Registry.URL != "" {
		m.directory = registry.NewClient(cfg.Registry.URL, cfg.Registry.Username, cfg.Registry.Password)
	}
	if cfg.Settings.Features["dns-bridge"] {
		m.dnsServer = dns.NewServer(m.dnsStore, nil)
	}

	return m, nil
}

// Start boots the hub: best-effort NAT traversal, the transport, handler
// bindings, the optional resolver bridge, and directory registration.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.startedAt = time.Now()
	m.mu.Unlock()

	if m.cfg.P2P.UPnP {
		m.setupUPnP()
	}

	if err := m.node.Start(); err != nil {
		return err
	}
	m.bindHandlers()
	m.setupP2P(ctx)

	if m.dnsServer != nil {
		if err := m.dnsServer.Start(ctx); err != nil {
			m.logger.Warn().Err(err).Msg("resolver bridge failed to start, continuing without it")
		}
	}

	if m.directory != nil {
		m.registerWithDirectory(ctx)
	}

	m.broker.Publish(events.Event{Type: events.NodeStarted, NodeID: m.localNRI.NodeID})
	lg := log.WithNodeID(m.localNRI.NodeID)
	lg.Info().
		Str("network", m.cfg.Settings.NodeNetworkLevel).
		Msg("net manager serving")
	return nil
}

// Stop tears the hub down in reverse order. The database is closed even
// when the manager never started, so a same-directory restart can take
// the file lock.
func (m *Manager) Stop() error {
	m.mu.Lock()
	wasRunning := m.running
	m.running = false
	m.mu.Unlock()

	if wasRunning {
		m.broker.Publish(events.Event{Type: events.NodeStopped, NodeID: m.localNRI.NodeID})

		if m.dnsServer != nil {
			m.dnsServer.Stop()
		}
		if err := m.node.Stop(); err != nil {
			m.logger.Error().Err(err).Msg("error stopping SSU node")
		}
		m.broker.Close()
	}
	return m.bolt.Close()
}

// bindHandlers wires every packet consumer onto the transport.
func (m *Manager) bindHandlers() {
	m.node.BindHook(packet.HeaderSSU, m.forwarder.Handler())
	m.node.BindHook(packet.HeaderSSUControl, ssu.ControlHandler(m.Status))
	m.node.BindHook(packet.HeaderInternalHTTP, m.internalHTTPHandler())
	dns.NewHandler(m.node, m.dnsStore).SetupHooks()
	m.engine.SetupHooks()
}

// Node exposes the SSU transport.
func (m *Manager) Node() *ssu.Node { return m.node }

// DNSStore exposes the overlay record store.
func (m *Manager) DNSStore() *dns.Store { return m.dnsStore }

// RIStore exposes the routing-information store.
func (m *Manager) RIStore() *store.RIStore { return m.ristore }

// ArtifactStore exposes the embedded database.
func (m *Manager) ArtifactStore() *store.BoltStore { return m.bolt }

// Broker exposes the event broker.
func (m *Manager) Broker() *events.Broker { return m.broker }

// Keypair exposes the local RSA keypair.
func (m *Manager) Keypair() *crypto.Keypair { return m.keypair }

// LocalNRI returns this node's own routing record.
func (m *Manager) LocalNRI() *types.NRI { return m.localNRI }

// Propagation exposes the flooding engine.
func (m *Manager) Propagation() *propagation.Engine { return m.engine }

// ListRRIs implements routing.RRILister over the local store.
func (m *Manager) ListRRIs(limit int) ([]*types.RRI, error) {
	return m.ristore.ListRRIs(limit)
}

// PeerAddrs implements propagation.PeerLister over the stored peer
// records.
func (m *Manager) PeerAddrs(targetRI string) []packet.Addr {
	var out []packet.Addr

	if targetRI == packet.TargetNRI || targetRI == packet.TargetAll {
		if nris, err := m.ristore.ListNRIs(); err == nil {
			for _, nri := range nris {
				if nri.NodeID == m.localNRI.NodeID {
					continue
				}
				out = append(out, packet.Addr{Host: nri.NodeIP, Port: nri.NodePort})
			}
		}
	}
	if targetRI == packet.TargetRRI || targetRI == packet.TargetAll {
		if rris, err := m.ristore.ListRRIs(0); err == nil {
			for _, rri := range rris {
				out = append(out, packet.Addr{Host: rri.RelayIP, Port: rri.RelayPort})
			}
		}
	}
	return out
}

// SendRequest tunnels a request through the overlay: generate the relay
// map when absent, build the chain, and emit through the transport. The
// i2p protocol is declared but not implemented.
func (m *Manager) SendRequest(ctx context.Context, req *routing.Request, strategy string) (*packet.Packet, error) {
	switch req.Protocol {
	case types.ProtocolSSU:
	case types.ProtocolI2P:
		return nil, fmt.Errorf("%w: i2p", types.ErrProtocolUnsupported)
	default:
		return nil, fmt.Errorf("%w: request protocol %q", types.ErrValidation, req.Protocol)
	}

	if req.Chain == nil {
		if req.Map == nil {
			relayMap, err := routing.GenerateRelayMap(m, m.cfg.Settings.MaxMapSize, routing.ExtraListSize)
			if err != nil {
				return nil, err
			}
			req.Map = relayMap
		}
		if _, err := routing.BuildChain(req, req.Map, strategy); err != nil {
			return nil, err
		}
	}

	outer, err := req.ToSSUPacket()
	if err != nil {
		return nil, err
	}
	if !m.node.Running() {
		return nil, fmt.Errorf("%w: SSU node is not running", types.ErrTransport)
	}

	ssuReq := ssu.NewRequest(outer.Base())
	resp, err := m.node.SendRequestAndWait(ctx, ssuReq, m.cfg.SSU.Timeout())
	if err != nil {
		if errors.Is(err, types.ErrTimeout) {
			m.broker.Publish(events.Event{
				Type:      events.RequestTimedOut,
				RequestID: ssuReq.RequestID,
				Peer:      outer.Base().Addr.String(),
			})
		}
		return nil, err
	}
	return resp, nil
}

// Status is the compact health document echoed by STATUS control packets
// and the admin health endpoint.
func (m *Manager) Status() map[string]interface{} {
	m.mu.Lock()
	startedAt := m.startedAt
	running := m.running
	m.mu.Unlock()

	doc := map[string]interface{}{
		"status":  "online",
		"healthy": running,
		"version": Version,
		"node_id": m.localNRI.NodeID,
		"network": m.cfg.Settings.NodeNetworkLevel,
	}
	if running {
		doc["uptime_seconds"] = int(time.Since(startedAt).Seconds())
	}
	return doc
}

// Stats is the program-stats document for the admin surface.
func (m *Manager) Stats() map[string]interface{} {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	nris, _ := m.ristore.ListNRIs()
	rris, _ := m.ristore.ListRRIs(0)
	tip := stellaris.Genesis()

	return map[string]interface{}{
		"system": map[string]interface{}{
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
			"go_version": runtime.Version(),
		},
		"process": map[string]interface{}{
			"goroutines":   runtime.NumGoroutine(),
			"memory_alloc": mem.Alloc,
			"memory_sys":   mem.Sys,
		},
		"network": map[string]interface{}{
			"nri_peers":               len(nris),
			"rri_peers":               len(rris),
			"dns_records":             m.dnsStore.Len(),
			"requests_in_flight":      m.node.InFlight(),
			"datagrams_shed":          m.node.Dropped(),
			"bootstrap_peers_reached": m.BootstrapReached(),
		},
		"chain": map[string]interface{}{
			"height": tip.Header.Index,
			"tip":    tip.Hash,
			"status": tip.Status,
		},
		"program": map[string]interface{}{
			"version": Version,
			"started": m.startedAt.UTC().Format(time.RFC3339),
		},
	}
}

func (m *Manager) loadOrGenerateKeypair() error {
	if privPEM, err := m.ristore.ReadKeyFile("rsa"); err == nil {
		pubPEM, pubErr := m.ristore.ReadKeyFile("rsa_pub")
		if _, privErr := crypto.ParsePrivateKey(privPEM); privErr == nil && pubErr == nil {
			m.keypair = &crypto.Keypair{
				KeyID:          uuid.New().String(),
				PublicKey:      pubPEM,
				PrivateKey:     privPEM,
				PublicKeyHash:  crypto.HashHex([]byte(pubPEM)),
				PrivateKeyHash: crypto.HashHex([]byte(privPEM)),
			}
			return nil
		}
		m.logger.Warn().Msg("stored key material unusable, generating a fresh keypair")
	}

	kp, err := crypto.GenerateKeypair()
	if err != nil {
		return err
	}
	m.keypair = kp
	if err := m.ristore.SaveKeyFile("rsa", kp.PrivateKey); err != nil {
		return err
	}
	return m.ristore.SaveKeyFile("rsa_pub", kp.PublicKey)
}

func (m *Manager) loadOrCreateLocalNRI() error {
	if nri, err := m.ristore.LoadLocalNRI(); err == nil {
		m.localNRI = nri
		return nil
	}

	nri := &types.NRI{
		NodeID:   fmt.Sprintf("%s-%s", m.cfg.Settings.NodeNetworkLevel, uuid.New().String()),
		NodeIP:   "127.0.0.1",
		NodePort: m.cfg.SSU.Port,
		NodeType: m.cfg.Settings.NodeType,
		Metadata: map[string]string{"key_id": m.keypair.KeyID},
	}
	if err := m.ristore.SaveLocalNRI(nri); err != nil {
		return err
	}
	m.localNRI = nri
	return nil
}

// setupP2P probes the configured bootstrap peers over the control
// channel. Best effort: invalid or unreachable peers are logged and
// skipped, reachable ones are counted and announced on the broker. The
// probes need the bound socket, so they run once the transport is up.
func (m *Manager) setupP2P(ctx context.Context) {
	if !m.cfg.P2P.Enabled || len(m.cfg.P2P.BootstrapPeers) == 0 {
		return
	}
	peers := m.cfg.P2P.BootstrapPeers

	go func() {
		for _, peer := range peers {
			addr, err := packet.ParseAddr(peer)
			if err != nil {
				m.logger.Warn().Err(err).Str("peer", peer).Msg("invalid bootstrap peer address")
				continue
			}

			control := packet.NewControlPacket(addr, packet.ControlStatus, nil)
			if _, err := m.node.SendRequestAndWait(ctx, ssu.NewRequest(control.Base()), m.cfg.SSU.Timeout()); err != nil {
				m.logger.Warn().Err(err).Str("peer", addr.String()).Msg("bootstrap peer unreachable")
				continue
			}

			m.mu.Lock()
			m.bootstrapReached++
			m.mu.Unlock()

			m.broker.Publish(events.Event{Type: events.PeerAdded, Peer: addr.String()})
			m.logger.Info().Str("peer", addr.String()).Msg("bootstrap peer reachable")
		}
	}()
}

// BootstrapReached returns how many configured bootstrap peers answered
// the startup probe.
func (m *Manager) BootstrapReached() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bootstrapReached
}

func (m *Manager) registerWithDirectory(ctx context.Context) {
	if m.cfg.Registry.Username == "" {
		m.logger.Debug().Msg("no directory credentials configured, skipping registration")
		return
	}
	if err := m.directory.Login(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("directory login failed, continuing unregistered")
		return
	}
	if err := m.directory.RegisterNode(ctx, m.localNRI.NodeID, "node", m.localNRI.NodeIP); err != nil {
		m.logger.Warn().Err(err).Msg("directory registration failed, continuing unregistered")
	}
}

// internalHTTPHandler answers tunneled internal HTTP requests. Only the
// health endpoint is served; everything else is a 404 in the envelope.
func (m *Manager) internalHTTPHandler() ssu.Handler {
	return func(ctx context.Context, pkt packet.Typed) (*packet.Packet, error) {
		req, ok := pkt.(*packet.InternalHTTPPacket)
		if !ok {
			return nil, fmt.Errorf("unexpected packet kind %s on internal HTTP hook", pkt.Kind())
		}

		switch req.Endpoint {
		case "/status/health":
			resp := packet.NewInternalHTTPResponsePacket(req.Base().Addr, 0, m.Status())
			return resp.Base(), nil
		}
		resp := packet.NewInternalHTTPResponsePacket(req.Base().Addr, 404, map[string]interface{}{
			"error": fmt.Sprintf("unknown endpoint %q", req.Endpoint),
		})
		return resp.Base(), nil
	}
}
