package packet

import (
	"encoding/json"
	"fmt"
)

// Target peer sets for propagation
const (
	TargetNRI = "NRI"
	TargetRRI = "RRI"
	TargetAll = "ALL"
)

// DefaultPropagationDepth bounds how many re-emission rounds an envelope
// survives.
const DefaultPropagationDepth = 2

// PropagationData is the envelope flooded to peers: the wrapped packet
// (header detached so the inner body stays a plain JSON string) plus the
// depth counters and the target peer set.
type PropagationData struct {
	PacketHeader string `json:"packet_header"`
	PacketBody   string `json:"packet"`
	CurrentDepth int    `json:"current_depth"`
	TargetDepth  int    `json:"target_depth"`
	TargetRI     string `json:"target_ri"`
}

// InnerPacket reassembles the wrapped packet with its original header
// restored, ready for Upgrade.
func (d *PropagationData) InnerPacket(addr Addr) *Packet {
	inner := NewFromString(addr, d.PacketBody)
	if d.PacketHeader != "" {
		inner.AssembleHeader(d.PacketHeader)
	}
	return inner
}

// UpgradeInner restores and rehydrates the wrapped packet in one step.
func (d *PropagationData) UpgradeInner(addr Addr) (Typed, error) {
	return Upgrade(d.InnerPacket(addr))
}

// PropagationPacket floods a wrapped packet across known peers with a
// bounded depth.
type PropagationPacket struct {
	*Packet
	Data *PropagationData
}

func (p *PropagationPacket) Kind() Kind    { return KindPropagation }
func (p *PropagationPacket) Base() *Packet { return p.Packet }

// UpgradePropagation parses a received PROPAGATION_PACKET.
func UpgradePropagation(p *Packet) (*PropagationPacket, error) {
	pp := &PropagationPacket{Packet: p.Clone()}
	var data PropagationData
	if err := json.Unmarshal([]byte(pp.Packet.Body()), &data); err != nil {
		return nil, fmt.Errorf("malformed propagation body: %w", err)
	}
	if data.CurrentDepth < 0 {
		return nil, fmt.Errorf("negative propagation depth %d", data.CurrentDepth)
	}
	pp.Data = &data
	return pp, nil
}

// WrapForPropagation detaches the inner packet's header into the envelope
// and builds the PROPAGATION_PACKET around it.
func WrapForPropagation(addr Addr, inner *Packet, depth int, targetRI string) *PropagationPacket {
	if depth <= 0 {
		depth = DefaultPropagationDepth
	}
	if targetRI == "" {
		targetRI = TargetAll
	}
	wrapped := inner.Clone()
	header := wrapped.Header()
	wrapped.RemoveHeader()

	data := &PropagationData{
		PacketHeader: header,
		PacketBody:   wrapped.Str,
		CurrentDepth: depth,
		TargetDepth:  depth,
		TargetRI:     targetRI,
	}
	body, _ := json.Marshal(data)
	p := NewFromString(addr, string(body))
	p.AssembleHeader(HeaderPropagation)
	return &PropagationPacket{Packet: p, Data: data}
}

// Rewrap rebuilds the envelope for re-emission with a decremented depth.
func (p *PropagationPacket) Rewrap(addr Addr, depth int) *PropagationPacket {
	data := &PropagationData{
		PacketHeader: p.Data.PacketHeader,
		PacketBody:   p.Data.PacketBody,
		CurrentDepth: depth,
		TargetDepth:  p.Data.TargetDepth,
		TargetRI:     p.Data.TargetRI,
	}
	body, _ := json.Marshal(data)
	np := NewFromString(addr, string(body))
	np.AssembleHeader(HeaderPropagation)
	return &PropagationPacket{Packet: np, Data: data}
}
