package ssu

import (
	"strings"

	"github.com/google/uuid"
	"github.com/voxanet/netnode/pkg/packet"
)

// Correlation tag prefixes. The tag is the second whitespace-delimited
// token of the string form, between the header and the body, so header
// dispatch is unaffected.
const (
	tagRequest  = "REQ:"
	tagResponse = "RESP:"
)

// Request pairs an outbound payload with a correlation id. The response
// field is set by the receive loop when the matching reply arrives.
type Request struct {
	Payload   *packet.Packet
	Addr      packet.Addr
	RequestID string
	Response  *packet.Packet
}

// NewRequest builds a request around a payload packet, generating a fresh
// request id. The destination defaults to the payload's address.
func NewRequest(payload *packet.Packet) *Request {
	return &Request{
		Payload:   payload,
		Addr:      payload.Addr,
		RequestID: uuid.New().String(),
	}
}

// IsResponse reports whether a response has been attached.
func (r *Request) IsResponse() bool {
	return r.Response != nil
}

// attachTag inserts a correlation token directly after the header.
func attachTag(p *packet.Packet, tag string) *packet.Packet {
	tagged := p.Clone()
	header := tagged.Header()
	body := tagged.Body()
	if header == "" {
		tagged.Str = tag
	} else if body == "" {
		tagged.Str = header + " " + tag
	} else {
		tagged.Str = header + " " + tag + " " + body
	}
	tagged.StrToRaw()
	return tagged
}

// splitTag extracts a correlation token, returning its kind ("REQ" or
// "RESP"), the request id, and the packet with the token removed. Packets
// without a tag come back unchanged with an empty kind.
func splitTag(p *packet.Packet) (kind, id string, stripped *packet.Packet) {
	header := p.Header()
	body := p.Body()

	token := body
	rest := ""
	if i := strings.IndexByte(body, ' '); i >= 0 {
		token, rest = body[:i], body[i+1:]
	}

	switch {
	case strings.HasPrefix(token, tagRequest):
		kind, id = "REQ", token[len(tagRequest):]
	case strings.HasPrefix(token, tagResponse):
		kind, id = "RESP", token[len(tagResponse):]
	default:
		return "", "", p
	}

	stripped = p.Clone()
	if rest == "" {
		stripped.Str = header
	} else {
		stripped.Str = header + " " + rest
	}
	stripped.StrToRaw()
	return kind, id, stripped
}
