package propagation

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"github.com/voxanet/netnode/pkg/crypto"
	"github.com/voxanet/netnode/pkg/log"
	"github.com/voxanet/netnode/pkg/metrics"
	"github.com/voxanet/netnode/pkg/packet"
	"github.com/voxanet/netnode/pkg/ssu"
)

const (
	// Loop-suppression cache bounds
	suppressionCacheSize = 1024
	suppressionCacheTTL  = 60 * time.Second
)

// PeerLister supplies the peer addresses for a target RI kind (NRI, RRI,
// or ALL).
type PeerLister interface {
	PeerAddrs(targetRI string) []packet.Addr
}

// Deliver hands an inner packet to the local dispatcher.
type Deliver func(ctx context.Context, p *packet.Packet) error

// Engine floods wrapped packets across known peers with a bounded depth.
// Sends are fire-and-forget; per-peer failures never stop the fan-out.
type Engine struct {
	node    *ssu.Node
	peers   PeerLister
	deliver Deliver
	seen    *expirable.LRU[string, struct{}]
	logger  zerolog.Logger
}

// NewEngine wires the engine to the transport and peer set. A nil deliver
// falls back to the node's local dispatcher.
func NewEngine(node *ssu.Node, peers PeerLister, deliver Deliver) *Engine {
	if deliver == nil && node != nil {
		deliver = node.DispatchLocal
	}
	return &Engine{
		node:    node,
		peers:   peers,
		deliver: deliver,
		seen:    expirable.NewLRU[string, struct{}](suppressionCacheSize, nil, suppressionCacheTTL),
		logger:  log.WithComponent("propagation"),
	}
}

// SetupHooks binds the propagation handler on the transport.
func (e *Engine) SetupHooks() {
	e.node.BindHook(packet.HeaderPropagation, e.Handler())
	e.logger.Info().Msg("propagation hooks set up")
}

// Propagate wraps a packet and emits it to every peer of the selected RI
// kind. The origination is marked in the suppression cache so the node
// never re-delivers its own packet.
func (e *Engine) Propagate(inner *packet.Packet, depth int, targetRI string) error {
	env := packet.WrapForPropagation(packet.Addr{}, inner, depth, targetRI)
	e.seen.Add(innerKey(env.Data), struct{}{})
	return e.broadcast(env, packet.Addr{})
}

// Handler returns the hook for PROPAGATION_PACKET: deliver the inner
// packet locally, then decrement the depth and re-emit to peers other
// than the sender. Depth zero terminates; duplicates are suppressed by
// inner-packet hash.
func (e *Engine) Handler() ssu.Handler {
	return func(ctx context.Context, pkt packet.Typed) (*packet.Packet, error) {
		env, ok := pkt.(*packet.PropagationPacket)
		if !ok {
			return nil, fmt.Errorf("unexpected packet kind %s on propagation hook", pkt.Kind())
		}
		sender := env.Base().Addr

		key := innerKey(env.Data)
		if _, dup := e.seen.Get(key); dup {
			metrics.PropagationsSuppressedTotal.Inc()
			e.logger.Debug().Str("sender", sender.String()).Msg("suppressing propagation loop")
			return nil, nil
		}
		e.seen.Add(key, struct{}{})

		inner := env.Data.InnerPacket(sender)
		if err := e.deliver(ctx, inner); err != nil {
			e.logger.Error().Err(err).Str("header", env.Data.PacketHeader).Msg("local delivery failed")
		}

		if env.Data.CurrentDepth <= 0 {
			return nil, nil
		}

		re := env.Rewrap(packet.Addr{}, env.Data.CurrentDepth-1)
		if err := e.broadcast(re, sender); err != nil {
			e.logger.Error().Err(err).Msg("re-emission failed")
		}
		return nil, nil
	}
}

// broadcast emits the envelope to every peer of its RI kind, skipping the
// excluded sender. Individual peer errors are logged; other peers are
// still attempted.
func (e *Engine) broadcast(env *packet.PropagationPacket, exclude packet.Addr) error {
	peers := e.peers.PeerAddrs(env.Data.TargetRI)
	sent := 0
	for _, peer := range peers {
		if peer == exclude {
			continue
		}
		out := env.Base().Clone()
		out.Addr = peer
		if err := e.node.SendPacket(out); err != nil {
			e.logger.Warn().Err(err).Str("peer", peer.String()).Msg("propagation send failed")
			continue
		}
		sent++
	}
	metrics.PropagationsSentTotal.Add(float64(sent))
	e.logger.Debug().
		Int("peers", sent).
		Int("depth", env.Data.CurrentDepth).
		Str("target_ri", env.Data.TargetRI).
		Msg("propagation emitted")
	return nil
}

// innerKey identifies a propagated packet by the hash of its restored
// inner form, so the same packet is delivered at most once regardless of
// which peer relays it.
func innerKey(data *packet.PropagationData) string {
	return crypto.HashHex([]byte(data.PacketHeader + " " + data.PacketBody))
}
