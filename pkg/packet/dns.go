package packet

import (
	"encoding/json"
	"fmt"

	"github.com/voxanet/netnode/pkg/types"
)

// DNSPacket carries an overlay record as JSON in the body.
type DNSPacket struct {
	*Packet
	RecordType string
	ARecord    *types.ARecord // set when RecordType == "A"
}

func (d *DNSPacket) Kind() Kind    { return KindDNS }
func (d *DNSPacket) Base() *Packet { return d.Packet }

// UpgradeDNS parses a received DNS packet and branches on record_type.
func UpgradeDNS(p *Packet) (*DNSPacket, error) {
	d := &DNSPacket{Packet: p.Clone()}
	body := d.Packet.Body()

	var envelope types.DNSRecord
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return nil, fmt.Errorf("malformed DNS body: %w", err)
	}
	d.RecordType = envelope.RecordType

	switch envelope.RecordType {
	case "A":
		var rec types.ARecord
		if err := json.Unmarshal([]byte(body), &rec); err != nil {
			return nil, fmt.Errorf("malformed A record: %w", err)
		}
		d.ARecord = &rec
	default:
		// Generic records carry only the envelope
		if d.RecordType == "" {
			d.RecordType = "UNSET"
		}
	}
	return d, nil
}

// NewDNSPacket builds a DNS packet from an A record.
func NewDNSPacket(addr Addr, rec *types.ARecord) (*DNSPacket, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	p := NewFromString(addr, string(body))
	p.AssembleHeader(HeaderDNS)
	return &DNSPacket{Packet: p, RecordType: rec.RecordType, ARecord: rec}, nil
}
