package ssu

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/voxanet/netnode/pkg/log"
	"github.com/voxanet/netnode/pkg/packet"
)

// StatusFunc supplies the compact health document echoed to STATUS
// control requests.
type StatusFunc func() map[string]interface{}

// ControlHandler returns the hook for SSU_CONTROL packets. STATUS elicits
// a response packet with the health JSON; PUNCH answers with a matched
// PUNCH reply for NAT hole punching. Unknown commands are accepted,
// logged, and not acted on.
func ControlHandler(status StatusFunc) Handler {
	logger := log.WithComponent("ssu-control")
	return func(ctx context.Context, pkt packet.Typed) (*packet.Packet, error) {
		control, ok := pkt.(*packet.ControlPacket)
		if !ok {
			return nil, fmt.Errorf("unexpected packet kind %s on control hook", pkt.Kind())
		}

		switch control.Command {
		case packet.ControlStatus:
			doc, err := json.Marshal(status())
			if err != nil {
				return nil, err
			}
			resp := packet.NewFromString(control.Base().Addr, string(doc))
			resp.AssembleHeader(packet.HeaderSSUControl)
			return resp, nil

		case packet.ControlPunch:
			reply := packet.NewControlPacket(control.Base().Addr, packet.ControlPunch, map[string]string{"ack": "true"})
			return reply.Base(), nil
		}

		logger.Info().
			Str("command", control.Command).
			Interface("params", control.Params).
			Msg("ignoring unknown control command")
		return nil, nil
	}
}
