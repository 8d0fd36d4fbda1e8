package packet

import "strings"

// Packet is the base datagram unit: an address plus a payload kept in both
// raw byte and string form. The string form is "<HEADER> <body>" where the
// header is the first whitespace-delimited ASCII token.
type Packet struct {
	Addr Addr   `json:"addr,omitempty"`
	Raw  []byte `json:"-"`
	Str  string `json:"str_data,omitempty"`
}

// NewFromBytes builds a packet from received raw bytes.
func NewFromBytes(addr Addr, raw []byte) *Packet {
	p := &Packet{Addr: addr, Raw: raw}
	p.RawToStr()
	return p
}

// NewFromString builds a packet from a string payload.
func NewFromString(addr Addr, s string) *Packet {
	p := &Packet{Addr: addr, Str: s}
	p.StrToRaw()
	return p
}

// RawToStr refreshes the string form from the raw bytes.
func (p *Packet) RawToStr() {
	if p.Raw != nil {
		p.Str = string(p.Raw)
	}
}

// StrToRaw refreshes the raw bytes from the string form.
func (p *Packet) StrToRaw() {
	p.Raw = []byte(p.Str)
}

// Serialize returns the wire bytes, refreshing them from the string form
// when needed.
func (p *Packet) Serialize() []byte {
	if p.Raw == nil {
		p.StrToRaw()
	}
	return p.Raw
}

// HasHeader reports whether the payload starts with the given header token.
func (p *Packet) HasHeader(header string) bool {
	if p.Str == "" {
		p.RawToStr()
	}
	if header == "" {
		return false
	}
	return p.Str == header || strings.HasPrefix(p.Str, header+" ")
}

// AssembleHeader prefixes the header token unless it is already present,
// then mirrors the change into the raw form.
func (p *Packet) AssembleHeader(header string) {
	if p.Str == "" {
		p.RawToStr()
	}
	if header != "" && !p.HasHeader(header) {
		p.Str = header + " " + p.Str
	}
	p.StrToRaw()
}

// Header returns the first whitespace-delimited token, or "" for an empty
// payload.
func (p *Packet) Header() string {
	if p.Str == "" {
		p.RawToStr()
	}
	if p.Str == "" {
		return ""
	}
	if i := strings.IndexByte(p.Str, ' '); i >= 0 {
		return p.Str[:i]
	}
	return p.Str
}

// Body returns everything after the header token.
func (p *Packet) Body() string {
	if p.Str == "" {
		p.RawToStr()
	}
	if i := strings.IndexByte(p.Str, ' '); i >= 0 {
		return p.Str[i+1:]
	}
	return ""
}

// RemoveHeader strips the header token and mirrors the change into the raw
// form.
func (p *Packet) RemoveHeader() {
	if p.Str == "" {
		p.RawToStr()
	}
	if i := strings.IndexByte(p.Str, ' '); i >= 0 {
		p.Str = p.Str[i+1:]
	} else {
		p.Str = ""
	}
	p.StrToRaw()
}

// Clone returns an independent copy of the packet.
func (p *Packet) Clone() *Packet {
	raw := make([]byte, len(p.Raw))
	copy(raw, p.Raw)
	return &Packet{Addr: p.Addr, Raw: raw, Str: p.Str}
}

func (p *Packet) String() string {
	return "Packet(addr=" + p.Addr.String() + ", str_data=" + p.Str + ")"
}
