package types

import (
	"fmt"

	"github.com/miekg/dns"
)

// Protocols a record or request may be carried over
const (
	ProtocolSSU = "ssu"
	ProtocolI2P = "i2p"
)

// DNSRecord is the generic overlay record envelope. Concrete record kinds
// embed it and override RecordType.
type DNSRecord struct {
	RecordType string `json:"record_type"`
}

// ARecord maps an overlay domain to an address or node id.
type ARecord struct {
	RecordType       string   `json:"record_type"`
	Domain           string   `json:"domain"`
	IPAddress        string   `json:"ip_address,omitempty"`
	NodeID           string   `json:"node_id,omitempty"`
	AllowedProtocols []string `json:"allowed_protocols,omitempty"`
	TTL              int      `json:"ttl,omitempty"`
}

// NewARecord returns an A record with the schema defaults applied.
func NewARecord(domain string) *ARecord {
	return &ARecord{
		RecordType:       "A",
		Domain:           domain,
		AllowedProtocols: []string{ProtocolSSU, ProtocolI2P},
		TTL:              3600,
	}
}

// Validate checks the A record against the overlay schema.
func (r *ARecord) Validate() error {
	if r.RecordType != "A" {
		return fmt.Errorf("%w: record_type must be \"A\"", ErrValidation)
	}
	if len(r.Domain) < 3 {
		return fmt.Errorf("%w: domain must be at least 3 characters long", ErrValidation)
	}
	if _, ok := dns.IsDomainName(r.Domain); !ok {
		return fmt.Errorf("%w: invalid domain %q", ErrValidation, r.Domain)
	}
	if r.IPAddress != "" {
		if err := validateIPv4(r.IPAddress); err != nil {
			return fmt.Errorf("%w: ip_address: %v", ErrValidation, err)
		}
	}
	if r.NodeID != "" {
		if len(r.NodeID) < 3 || !nodeIDPattern.MatchString(r.NodeID) {
			return fmt.Errorf("%w: node_id must be at least 3 characters long and alphanumeric", ErrValidation)
		}
	}
	for _, p := range r.AllowedProtocols {
		if p != ProtocolSSU && p != ProtocolI2P {
			return fmt.Errorf("%w: invalid protocol %q, allowed protocols are %q and %q", ErrValidation, p, ProtocolSSU, ProtocolI2P)
		}
	}
	if r.TTL < 0 {
		return fmt.Errorf("%w: ttl must not be negative", ErrValidation)
	}
	return nil
}
