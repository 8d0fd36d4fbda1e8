package routing

import (
	"fmt"

	"github.com/voxanet/netnode/pkg/packet"
	"github.com/voxanet/netnode/pkg/types"
)

// Request is one tunneled call: the target, the relay map to reach it,
// and the inner payload delivered by the exit hop.
type Request struct {
	Target   string
	Protocol string // ssu or i2p
	Contents Contents
	Data     []byte // explicit payload; wins over Contents

	Map   *Map
	Chain *Descriptor
}

// NewRequest builds a request for a target with the overlay protocol
// validated against the fixed set.
func NewRequest(target, protocol string, contents Contents) (*Request, error) {
	if target == "" {
		return nil, fmt.Errorf("%w: target is required", types.ErrValidation)
	}
	switch protocol {
	case types.ProtocolSSU, types.ProtocolI2P:
	case "":
		protocol = types.ProtocolSSU
	default:
		return nil, fmt.Errorf("%w: request protocol must be %q or %q", types.ErrValidation, types.ProtocolSSU, types.ProtocolI2P)
	}
	if contents != nil {
		if err := contents.Validate(); err != nil {
			return nil, err
		}
	}
	return &Request{Target: target, Protocol: protocol, Contents: contents}, nil
}

// PayloadBytes serializes the innermost payload carried by the chain.
func (r *Request) PayloadBytes() []byte {
	if r.Data != nil {
		return r.Data
	}
	if r.Contents != nil {
		return r.Contents.WireBytes(r.Target)
	}
	return nil
}

// ToSSUPacket emits the built chain as the outermost SSU packet,
// addressed to the first hop.
func (r *Request) ToSSUPacket() (*packet.SSUPacket, error) {
	if r.Chain == nil {
		return nil, fmt.Errorf("routing chain has not been built")
	}
	body, err := r.Chain.Marshal()
	if err != nil {
		return nil, err
	}
	addr := packet.Addr{Host: r.Chain.RelayIP, Port: r.Chain.RelayPort}
	return packet.NewSSUPacket(addr, string(body)), nil
}

// Factory validates a (target, protocol, contents) triple into a request.
// The HTTP contents default is applied when none is given.
func Factory(target, protocol string, contents Contents) (*Request, error) {
	if contents == nil {
		contents = NewContentsHTTP()
	}
	return NewRequest(target, protocol, contents)
}
