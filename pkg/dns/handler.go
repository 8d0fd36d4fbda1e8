package dns

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/voxanet/netnode/pkg/log"
	"github.com/voxanet/netnode/pkg/packet"
	"github.com/voxanet/netnode/pkg/ssu"
)

// Handler consumes DNS-typed SSU packets into the record store.
type Handler struct {
	node   *ssu.Node
	store  *Store
	logger zerolog.Logger
}

// NewHandler wires the handler to the transport and store.
func NewHandler(node *ssu.Node, store *Store) *Handler {
	return &Handler{
		node:   node,
		store:  store,
		logger: log.WithComponent("dns"),
	}
}

// SetupHooks binds the DNS packet hook on the transport.
func (h *Handler) SetupHooks() {
	h.node.BindHook(packet.HeaderDNS, h.HandleDNSPacket)
	h.logger.Info().Msg("DNS hooks set up")
}

// HandleDNSPacket saves a received A record if the domain slot has room.
// A full slot logs and does not propagate the record further.
func (h *Handler) HandleDNSPacket(ctx context.Context, pkt packet.Typed) (*packet.Packet, error) {
	dnsPkt, ok := pkt.(*packet.DNSPacket)
	if !ok {
		return nil, fmt.Errorf("unexpected packet kind %s on DNS hook", pkt.Kind())
	}
	if dnsPkt.ARecord == nil {
		h.logger.Debug().Str("record_type", dnsPkt.RecordType).Msg("ignoring non-A overlay record")
		return nil, nil
	}

	rec := dnsPkt.ARecord
	saved, err := h.store.SaveRecord(rec, false)
	if err != nil {
		return nil, fmt.Errorf("invalid A record for %q: %w", rec.Domain, err)
	}
	if !saved {
		h.logger.Warn().Str("domain", rec.Domain).Msg("DNS record slot full or duplicate, not saving")
		return nil, nil
	}

	h.logger.Info().
		Str("domain", rec.Domain).
		Str("ip", rec.IPAddress).
		Msg("DNS record saved")
	return nil, nil
}
