package routing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/voxanet/netnode/pkg/crypto"
	"github.com/voxanet/netnode/pkg/log"
	"github.com/voxanet/netnode/pkg/packet"
	"github.com/voxanet/netnode/pkg/ssu"
	"github.com/voxanet/netnode/pkg/types"
)

// ExitFunc delivers the fully unwrapped inner payload to its target and
// returns the reply packet streamed back along the reverse chain.
type ExitFunc func(ctx context.Context, payload []byte) (*packet.Packet, error)

// Forwarder executes the relay role: unwrap the layer addressed to this
// node, forward the contained descriptor to the next hop, and at the exit
// hop hand the payload to the exit function.
type Forwarder struct {
	node    *ssu.Node
	keypair *crypto.Keypair
	exit    ExitFunc
	timeout time.Duration
	logger  zerolog.Logger
}

// NewForwarder wires a forwarder to the transport and this relay's
// keypair. A nil exit falls back to the HTTP exit.
func NewForwarder(node *ssu.Node, keypair *crypto.Keypair, timeout time.Duration, exit ExitFunc) *Forwarder {
	if exit == nil {
		exit = HTTPExit
	}
	return &Forwarder{
		node:    node,
		keypair: keypair,
		exit:    exit,
		timeout: timeout,
		logger:  log.WithComponent("forwarder"),
	}
}

// Handler returns the SSU hook for onion packets. Bodies that are not
// route descriptors are ignored so plain SSU traffic keeps flowing to
// other consumers of the payload.
func (f *Forwarder) Handler() ssu.Handler {
	return func(ctx context.Context, pkt packet.Typed) (*packet.Packet, error) {
		desc, err := ParseDescriptor([]byte(pkt.Base().Body()))
		if err != nil {
			f.logger.Debug().Str("sender", pkt.Base().Addr.String()).Msg("SSU packet is not a route descriptor, ignoring")
			return nil, nil
		}
		return f.Forward(ctx, desc)
	}
}

// Forward unwraps one layer and relays it. Integrity failures drop the
// packet with an error; forwarding failures propagate to the caller.
func (f *Forwarder) Forward(ctx context.Context, desc *Descriptor) (*packet.Packet, error) {
	logger := log.WithRelayID(desc.RelayID)

	plaintext, err := UnwrapLayer(desc, f.keypair.PrivateKey)
	if err != nil {
		if errors.Is(err, types.ErrIntegrity) {
			logger.Warn().Err(err).Msg("dropping layer on integrity failure")
		}
		return nil, err
	}

	// Terminal hop: the plaintext is the inner payload
	if desc.ChildRoute == nil {
		logger.Debug().Msg("exit hop reached, delivering payload")
		return f.exit(ctx, plaintext)
	}

	next := packet.NewSSUPacket(packet.Addr{
		Host: desc.ChildRoute.RelayIP,
		Port: desc.ChildRoute.RelayPort,
	}, string(plaintext))

	logger.Debug().
		Str("next_hop", desc.ChildRoute.RelayID).
		Msg("forwarding layer to next hop")

	// Waiting here is what streams the reply back along the reverse
	// chain: each hop's response correlates to its predecessor's request.
	req := ssu.NewRequest(next.Base())
	resp, err := f.node.SendRequestAndWait(ctx, req, f.timeout)
	if err != nil {
		return nil, fmt.Errorf("next hop %s: %w", desc.ChildRoute.RelayID, err)
	}
	return resp, nil
}

// HTTPExit is the default exit: parse the request line from the wire
// payload, perform the call, and wrap the reply.
func HTTPExit(ctx context.Context, payload []byte) (*packet.Packet, error) {
	text := string(payload)
	head, body, _ := strings.Cut(text, "\r\n\r\n")
	lines := strings.Split(head, "\r\n")
	method, url, ok := strings.Cut(lines[0], " ")
	if !ok {
		return nil, fmt.Errorf("%w: malformed exit request line", types.ErrValidation)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrValidation, err)
	}
	for _, line := range lines[1:] {
		if k, v, ok := strings.Cut(line, ": "); ok {
			httpReq.Header.Set(k, v)
		}
	}

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: exit fetch: %v", types.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: exit read: %v", types.ErrTransport, err)
	}

	reply := packet.NewInternalHTTPResponsePacket(packet.Addr{}, 0, map[string]interface{}{
		"status": resp.StatusCode,
		"body":   string(data),
	})
	return reply.Base(), nil
}
