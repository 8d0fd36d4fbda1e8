package ssu

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/voxanet/netnode/pkg/config"
	"github.com/voxanet/netnode/pkg/log"
	"github.com/voxanet/netnode/pkg/metrics"
	"github.com/voxanet/netnode/pkg/packet"
	"github.com/voxanet/netnode/pkg/types"
)

const (
	// inboundQueueSize bounds the receive queue; overflow drops the
	// oldest unprocessed datagram.
	inboundQueueSize = 1024

	// maxDatagramRead is the read buffer size. Fragments of large
	// packets arrive as single datagrams above the fragment threshold.
	maxDatagramRead = 65535

	evictInterval = 5 * time.Second
)

// Handler processes one fully reassembled, typed packet. A non-nil
// returned packet is sent back to the sender, correlated to the inbound
// request id when one was present.
type Handler func(ctx context.Context, pkt packet.Typed) (*packet.Packet, error)

type pending struct {
	req  *Request
	ch   chan *packet.Packet
	sent time.Time
}

type datagram struct {
	addr packet.Addr
	data []byte
}

// Node is the UDP transport: a single socket acting as listener and
// sender for every packet type, with header-keyed handler dispatch,
// fragmentation, reassembly, and request/response correlation.
type Node struct {
	cfg    config.SSU
	logger zerolog.Logger

	mu      sync.Mutex
	conn    *net.UDPConn
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	hooksMu sync.RWMutex
	hooks   map[string]Handler

	inflightMu sync.Mutex
	inflight   map[string]*pending

	reasm   *reassembler
	inbound chan datagram

	dropped uint64
}

// NewNode creates a node bound to the configured host and port once
// started.
func NewNode(cfg config.SSU) *Node {
	return &Node{
		cfg:      cfg,
		logger:   log.WithComponent("ssu"),
		hooks:    make(map[string]Handler),
		inflight: make(map[string]*pending),
		reasm:    newReassembler(),
	}
}

// Addr returns the bound UDP address, or nil before Start.
func (n *Node) Addr() *net.UDPAddr {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn == nil {
		return nil
	}
	return n.conn.LocalAddr().(*net.UDPAddr)
}

// Running reports whether the node is started.
func (n *Node) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

// Start binds the socket and spawns the receive machinery. Idempotent.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return nil
	}

	addr := &net.UDPAddr{IP: net.ParseIP(n.cfg.Host), Port: n.cfg.Port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("%w: bind %s:%d: %v", types.ErrTransport, n.cfg.Host, n.cfg.Port, err)
	}

	n.conn = conn
	n.running = true
	n.stopCh = make(chan struct{})
	n.inbound = make(chan datagram, inboundQueueSize)

	n.wg.Add(1)
	go n.readLoop(conn, n.stopCh)

	// Worker pool draining the inbound queue so a slow handler never
	// stalls the socket read.
	workers := n.cfg.MaxSSULoopIndex
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		n.wg.Add(1)
		go n.dispatchLoop(n.stopCh)
	}

	n.wg.Add(1)
	go n.evictLoop(n.stopCh)

	n.logger.Info().
		Str("address", conn.LocalAddr().String()).
		Int("workers", workers).
		Msg("SSU node started")
	return nil
}

// Stop closes the socket and cancels every waiter with a shutdown signal.
func (n *Node) Stop() error {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return nil
	}
	n.running = false
	close(n.stopCh)
	conn := n.conn
	n.conn = nil
	n.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	// Drain the in-flight table; waiters observe ErrShutdown.
	n.inflightMu.Lock()
	for id, p := range n.inflight {
		close(p.ch)
		delete(n.inflight, id)
		metrics.RequestsInFlight.Dec()
	}
	n.inflightMu.Unlock()

	n.wg.Wait()
	n.logger.Info().Msg("SSU node stopped")
	return nil
}

// BindHook registers the handler for a header token. At most one hook per
// header; the last binding wins.
func (n *Node) BindHook(header string, fn Handler) {
	n.hooksMu.Lock()
	defer n.hooksMu.Unlock()

	if _, exists := n.hooks[header]; exists {
		n.logger.Warn().Str("header", header).Msg("overriding existing hook")
	}
	n.hooks[header] = fn
}

// SendPacket serializes and emits a packet to its address, fragmenting
// when the wire form exceeds the datagram bound. Socket errors are
// returned to the caller.
func (n *Node) SendPacket(p *packet.Packet) error {
	serialized := p.Serialize()
	if len(serialized) <= packet.MaxUDPPacketSize {
		return n.writeDatagram(p.Addr, serialized)
	}

	fragments := packet.FragmentSerialized(p.Addr, serialized)
	n.logger.Debug().
		Int("fragments", len(fragments)).
		Int("size", len(serialized)).
		Str("addr", p.Addr.String()).
		Msg("fragmenting oversized packet")
	for _, f := range fragments {
		if err := n.writeDatagram(p.Addr, f.Serialize()); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) writeDatagram(addr packet.Addr, data []byte) error {
	n.mu.Lock()
	conn := n.conn
	n.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("%w: node not started", types.ErrTransport)
	}

	ua, err := addr.UDPAddr()
	if err != nil {
		return fmt.Errorf("%w: resolve %s: %v", types.ErrTransport, addr.String(), err)
	}
	if _, err := conn.WriteToUDP(data, ua); err != nil {
		return fmt.Errorf("%w: send to %s: %v", types.ErrTransport, addr.String(), err)
	}
	metrics.PacketsSentTotal.WithLabelValues(headerLabel(data)).Inc()
	return nil
}

// SendRequest tags the payload with the request id, records it in the
// in-flight table, and emits it. The caller correlates the response via
// SendRequestAndWait or by polling req.Response.
func (n *Node) SendRequest(req *Request) error {
	_, err := n.sendRequest(req)
	return err
}

func (n *Node) sendRequest(req *Request) (*pending, error) {
	if req.RequestID == "" {
		req.RequestID = NewRequest(req.Payload).RequestID
	}
	if req.Addr.IsZero() {
		req.Addr = req.Payload.Addr
	}

	tagged := attachTag(req.Payload, tagRequest+req.RequestID)
	tagged.Addr = req.Addr

	p := &pending{req: req, ch: make(chan *packet.Packet, 1), sent: time.Now()}
	n.inflightMu.Lock()
	n.inflight[req.RequestID] = p
	n.inflightMu.Unlock()
	metrics.RequestsInFlight.Inc()

	if err := n.SendPacket(tagged); err != nil {
		n.removePending(req.RequestID)
		return nil, err
	}
	return p, nil
}

// SendRequestAndWait emits the request and suspends the caller until the
// matching response arrives, the timeout elapses, the context is
// cancelled, or the node stops.
func (n *Node) SendRequestAndWait(ctx context.Context, req *Request, timeout time.Duration) (*packet.Packet, error) {
	if timeout <= 0 {
		timeout = n.cfg.Timeout()
	}

	p, err := n.sendRequest(req)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-p.ch:
		if !ok {
			return nil, fmt.Errorf("%w: request %s", types.ErrShutdown, req.RequestID)
		}
		req.Response = resp
		return resp, nil
	case <-timer.C:
		n.removePending(req.RequestID)
		metrics.RequestTimeoutsTotal.Inc()
		return nil, fmt.Errorf("%w: request %s after %s", types.ErrTimeout, req.RequestID, timeout)
	case <-ctx.Done():
		n.removePending(req.RequestID)
		return nil, ctx.Err()
	}
}

func (n *Node) removePending(id string) *pending {
	n.inflightMu.Lock()
	defer n.inflightMu.Unlock()
	p, ok := n.inflight[id]
	if !ok {
		return nil
	}
	delete(n.inflight, id)
	metrics.RequestsInFlight.Dec()
	return p
}

// InFlight returns the number of requests awaiting a response.
func (n *Node) InFlight() int {
	n.inflightMu.Lock()
	defer n.inflightMu.Unlock()
	return len(n.inflight)
}

// Dropped returns how many inbound datagrams were shed on queue overflow.
func (n *Node) Dropped() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dropped
}

func (n *Node) readLoop(conn *net.UDPConn, stopCh chan struct{}) {
	defer n.wg.Done()

	buf := make([]byte, maxDatagramRead)
	for {
		nr, sender, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-stopCh:
				return
			default:
			}
			// Receive errors are logged and the loop continues
			n.logger.Error().Err(err).Msg("socket read error")
			continue
		}

		data := make([]byte, nr)
		copy(data, buf[:nr])
		d := datagram{addr: packet.AddrFromUDP(sender), data: data}

		select {
		case n.inbound <- d:
		default:
			// Queue full: shed the oldest datagram, then enqueue
			select {
			case <-n.inbound:
				n.mu.Lock()
				n.dropped++
				n.mu.Unlock()
				metrics.PacketsDroppedTotal.WithLabelValues("queue_overflow").Inc()
			default:
			}
			select {
			case n.inbound <- d:
			default:
			}
		}
	}
}

func (n *Node) dispatchLoop(stopCh chan struct{}) {
	defer n.wg.Done()
	for {
		select {
		case d := <-n.inbound:
			n.handleDatagram(d)
		case <-stopCh:
			return
		}
	}
}

func (n *Node) evictLoop(stopCh chan struct{}) {
	defer n.wg.Done()
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			if evicted := n.reasm.Evict(now); evicted > 0 {
				n.logger.Debug().Int("sets", evicted).Msg("evicted stale fragment sets")
			}
		case <-stopCh:
			return
		}
	}
}

// handleDatagram runs one datagram through reassembly, correlation, and
// header dispatch. Handler failures are logged and never abort the loop.
func (n *Node) handleDatagram(d datagram) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error().Interface("panic", r).Str("sender", d.addr.String()).Msg("handler panicked")
		}
	}()

	p := packet.NewFromBytes(d.addr, d.data)
	header := p.Header()
	metrics.PacketsReceivedTotal.WithLabelValues(header).Inc()

	// Fragments feed the reassembler; a completed set re-enters dispatch
	// as the original packet.
	if header == packet.HeaderSSUFragment {
		f, err := packet.UpgradeFragment(p)
		if err != nil {
			n.logger.Warn().Err(err).Str("sender", d.addr.String()).Msg("dropping malformed fragment")
			metrics.PacketsDroppedTotal.WithLabelValues("malformed_fragment").Inc()
			return
		}
		if whole := n.reasm.Add(d.addr, f); whole != nil {
			n.handleDatagram(datagram{addr: d.addr, data: whole})
		}
		return
	}

	kind, id, stripped := splitTag(p)
	if kind == "RESP" {
		if pend := n.removePending(id); pend != nil {
			pend.req.Response = stripped
			pend.ch <- stripped
		} else {
			lg := log.WithRequestID(id)
			lg.Debug().Msg("dropping late or unknown response")
			metrics.PacketsDroppedTotal.WithLabelValues("late_response").Inc()
		}
		return
	}

	typed, err := packet.Upgrade(stripped)
	if err != nil {
		n.logger.Warn().Err(err).Str("header", header).Str("sender", d.addr.String()).Msg("dropping malformed packet")
		metrics.PacketsDroppedTotal.WithLabelValues("malformed").Inc()
		return
	}

	n.hooksMu.RLock()
	hook, ok := n.hooks[header]
	n.hooksMu.RUnlock()
	if !ok {
		n.logger.Debug().Str("header", header).Str("sender", d.addr.String()).Msg("no hook bound for header")
		metrics.PacketsDroppedTotal.WithLabelValues("no_hook").Inc()
		return
	}

	resp, err := hook(context.Background(), typed)
	if err != nil {
		n.logger.Error().Err(err).Str("header", header).Str("sender", d.addr.String()).Msg("handler failed")
		return
	}
	if resp == nil {
		return
	}

	// Correlate the reply to the inbound request id when one was carried
	out := resp
	if kind == "REQ" {
		out = attachTag(resp, tagResponse+id)
	}
	out.Addr = d.addr
	if err := n.SendPacket(out); err != nil {
		n.logger.Error().Err(err).Str("sender", d.addr.String()).Msg("failed to send handler response")
	}
}

// DispatchLocal runs a packet through upgrade and hook dispatch as if it
// had arrived natively, without correlation or reassembly. Used by the
// propagation layer to deliver unwrapped inner packets.
func (n *Node) DispatchLocal(ctx context.Context, p *packet.Packet) error {
	typed, err := packet.Upgrade(p)
	if err != nil {
		return err
	}
	header := p.Header()

	n.hooksMu.RLock()
	hook, ok := n.hooks[header]
	n.hooksMu.RUnlock()
	if !ok {
		n.logger.Debug().Str("header", header).Msg("no hook bound for locally dispatched packet")
		return nil
	}
	if _, err := hook(ctx, typed); err != nil {
		return err
	}
	return nil
}

func headerLabel(data []byte) string {
	for i, b := range data {
		if b == ' ' {
			return string(data[:i])
		}
		if i > 40 {
			break
		}
	}
	return "RAW"
}
