package packet

// Registered header literals. The header is the first whitespace-delimited
// word of the string form and selects the typed variant on receive.
const (
	HeaderSSU                  = "SSU"
	HeaderSSUControl           = "SSU_CONTROL"
	HeaderSSUFragment          = "SSU_FRAGMENT"
	HeaderDNS                  = "DNS"
	HeaderInternalHTTP         = "INTERNAL_HTTP_PACKET"
	HeaderInternalHTTPResponse = "INTERNAL_HTTP_PACKET_RESPONSE"
	HeaderPropagation          = "PROPAGATION_PACKET"
)

// Kind tags a typed packet variant.
type Kind int

const (
	KindGeneric Kind = iota
	KindSSU
	KindSSUControl
	KindFragment
	KindDNS
	KindInternalHTTP
	KindInternalHTTPResponse
	KindPropagation
)

func (k Kind) String() string {
	switch k {
	case KindSSU:
		return HeaderSSU
	case KindSSUControl:
		return HeaderSSUControl
	case KindFragment:
		return HeaderSSUFragment
	case KindDNS:
		return HeaderDNS
	case KindInternalHTTP:
		return HeaderInternalHTTP
	case KindInternalHTTPResponse:
		return HeaderInternalHTTPResponse
	case KindPropagation:
		return HeaderPropagation
	}
	return "GENERIC"
}

// Typed is a packet rehydrated into its header-specific form. Base exposes
// the underlying packet whose raw bytes are the original datagram, so
// re-serializing a typed packet reproduces the received bytes.
type Typed interface {
	Kind() Kind
	Base() *Packet
}

// headerKinds is the static HEADER -> variant dispatch table.
var headerKinds = map[string]Kind{
	HeaderSSU:                  KindSSU,
	HeaderSSUControl:           KindSSUControl,
	HeaderSSUFragment:          KindFragment,
	HeaderDNS:                  KindDNS,
	HeaderInternalHTTP:         KindInternalHTTP,
	HeaderInternalHTTPResponse: KindInternalHTTPResponse,
	HeaderPropagation:          KindPropagation,
}

// KindForHeader looks up the variant for a header token; unknown headers
// map to the generic kind.
func KindForHeader(header string) Kind {
	if k, ok := headerKinds[header]; ok {
		return k
	}
	return KindGeneric
}

// Upgrade rehydrates a received generic packet into its typed variant
// based on the header token. The typed packet consumes the generic's
// bytes; the generic is not mutated. Malformed bodies return an error.
func Upgrade(p *Packet) (Typed, error) {
	switch KindForHeader(p.Header()) {
	case KindSSUControl:
		return UpgradeControl(p)
	case KindFragment:
		return UpgradeFragment(p)
	case KindDNS:
		return UpgradeDNS(p)
	case KindInternalHTTP:
		return UpgradeInternalHTTP(p)
	case KindInternalHTTPResponse:
		return UpgradeInternalHTTPResponse(p)
	case KindPropagation:
		return UpgradePropagation(p)
	case KindSSU:
		return UpgradeSSU(p), nil
	}
	return &Generic{Packet: p.Clone()}, nil
}

// Generic wraps a packet whose header is unregistered.
type Generic struct {
	*Packet
}

func (g *Generic) Kind() Kind    { return KindGeneric }
func (g *Generic) Base() *Packet { return g.Packet }

// SSUPacket is the plain SSU data variant.
type SSUPacket struct {
	*Packet
}

// UpgradeSSU wraps a packet carrying the plain SSU header.
func UpgradeSSU(p *Packet) *SSUPacket {
	return &SSUPacket{Packet: p.Clone()}
}

// NewSSUPacket builds an SSU packet around a body string.
func NewSSUPacket(addr Addr, body string) *SSUPacket {
	p := NewFromString(addr, body)
	p.AssembleHeader(HeaderSSU)
	return &SSUPacket{Packet: p}
}

func (s *SSUPacket) Kind() Kind    { return KindSSU }
func (s *SSUPacket) Base() *Packet { return s.Packet }
