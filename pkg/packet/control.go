package packet

import (
	"fmt"
	"sort"
	"strings"
)

// Control commands the node acts on. Unknown commands are accepted and
// logged but not acted on.
const (
	ControlStatus = "STATUS"
	ControlPunch  = "PUNCH"
)

// ControlPacket is an SSU control message. The body grammar is
// "COMMAND k1=v1,k2=v2,..." with the parameter list optional.
type ControlPacket struct {
	*Packet
	Command string
	Params  map[string]string
}

func (c *ControlPacket) Kind() Kind    { return KindSSUControl }
func (c *ControlPacket) Base() *Packet { return c.Packet }

// UpgradeControl parses a received SSU_CONTROL packet.
func UpgradeControl(p *Packet) (*ControlPacket, error) {
	c := &ControlPacket{Packet: p.Clone(), Command: "unknown"}
	parts := strings.SplitN(c.Str, " ", 3)
	if len(parts) < 2 || parts[0] != HeaderSSUControl {
		return nil, fmt.Errorf("malformed control packet: %q", c.Str)
	}
	c.Command = parts[1]
	if len(parts) == 3 {
		c.Params = parseControlParams(parts[2])
	}
	return c, nil
}

// NewControlPacket builds a control packet for the given command.
func NewControlPacket(addr Addr, command string, params map[string]string) *ControlPacket {
	body := command
	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+params[k])
		}
		body += " " + strings.Join(pairs, ",")
	}
	p := NewFromString(addr, body)
	p.AssembleHeader(HeaderSSUControl)
	return &ControlPacket{Packet: p, Command: command, Params: params}
}

func parseControlParams(s string) map[string]string {
	params := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		if k, v, ok := strings.Cut(pair, "="); ok {
			params[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return params
}
