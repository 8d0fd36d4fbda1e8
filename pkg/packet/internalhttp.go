package packet

import (
	"encoding/json"
	"fmt"
)

// InternalHTTPPacket tunnels an HTTP-style call between nodes over SSU.
type InternalHTTPPacket struct {
	*Packet
	Endpoint string                 `json:"endpoint"`
	Method   string                 `json:"method"`
	Params   map[string]interface{} `json:"params"`
	PostData map[string]interface{} `json:"post_data"`
}

func (h *InternalHTTPPacket) Kind() Kind    { return KindInternalHTTP }
func (h *InternalHTTPPacket) Base() *Packet { return h.Packet }

// UpgradeInternalHTTP parses a received internal HTTP request packet.
func UpgradeInternalHTTP(p *Packet) (*InternalHTTPPacket, error) {
	h := &InternalHTTPPacket{Packet: p.Clone(), Endpoint: "/status/health", Method: "GET"}
	if err := json.Unmarshal([]byte(h.Packet.Body()), h); err != nil {
		return nil, fmt.Errorf("malformed internal HTTP body: %w", err)
	}
	return h, nil
}

// NewInternalHTTPPacket builds an internal HTTP request packet.
func NewInternalHTTPPacket(addr Addr, endpoint, method string, params, postData map[string]interface{}) *InternalHTTPPacket {
	h := &InternalHTTPPacket{Endpoint: endpoint, Method: method, Params: params, PostData: postData}
	body, _ := json.Marshal(h)
	p := NewFromString(addr, string(body))
	p.AssembleHeader(HeaderInternalHTTP)
	h.Packet = p
	return h
}

// InternalHTTPResponsePacket carries the reply to an internal HTTP request.
type InternalHTTPResponsePacket struct {
	*Packet
	ErrorCode    int                    `json:"error_code"`
	ResponseJSON map[string]interface{} `json:"response_json"`
}

func (h *InternalHTTPResponsePacket) Kind() Kind    { return KindInternalHTTPResponse }
func (h *InternalHTTPResponsePacket) Base() *Packet { return h.Packet }

// UpgradeInternalHTTPResponse parses a received internal HTTP response packet.
func UpgradeInternalHTTPResponse(p *Packet) (*InternalHTTPResponsePacket, error) {
	h := &InternalHTTPResponsePacket{Packet: p.Clone()}
	if err := json.Unmarshal([]byte(h.Packet.Body()), h); err != nil {
		return nil, fmt.Errorf("malformed internal HTTP response body: %w", err)
	}
	return h, nil
}

// NewInternalHTTPResponsePacket builds an internal HTTP response packet.
func NewInternalHTTPResponsePacket(addr Addr, errorCode int, responseJSON map[string]interface{}) *InternalHTTPResponsePacket {
	h := &InternalHTTPResponsePacket{ErrorCode: errorCode, ResponseJSON: responseJSON}
	body, _ := json.Marshal(h)
	p := NewFromString(addr, string(body))
	p.AssembleHeader(HeaderInternalHTTPResponse)
	h.Packet = p
	return h
}
