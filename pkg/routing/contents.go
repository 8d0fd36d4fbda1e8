package routing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/voxanet/netnode/pkg/types"
)

// Inner payload protocols carried by a request
const (
	ContentsProtocolHTTP = "http"
	ContentsProtocolTCP  = "tcp"
)

var allowedHTTPMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// ContentsHTTP describes an HTTP call tunneled through the chain.
type ContentsHTTP struct {
	Method          string            `json:"method"`
	Headers         map[string]string `json:"headers,omitempty"`
	Body            string            `json:"body,omitempty"`
	TimeoutSeconds  float64           `json:"timeout,omitempty"`
	FollowRedirects bool              `json:"follow_redirects"`
}

// NewContentsHTTP applies the schema defaults.
func NewContentsHTTP() *ContentsHTTP {
	return &ContentsHTTP{Method: "GET", TimeoutSeconds: 30, FollowRedirects: true}
}

// Validate normalizes and checks the method against the fixed set.
func (c *ContentsHTTP) Validate() error {
	c.Method = strings.ToUpper(c.Method)
	if !allowedHTTPMethods[c.Method] {
		return fmt.Errorf("%w: method %q is not allowed", types.ErrValidation, c.Method)
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: timeout must be positive", types.ErrValidation)
	}
	return nil
}

// WireBytes serializes the call into the exit-hop wire form: the request
// line, optional headers, and the terminator followed by the body.
func (c *ContentsHTTP) WireBytes(target string) []byte {
	var b strings.Builder
	b.WriteString(c.Method)
	b.WriteByte(' ')
	b.WriteString(target)
	if len(c.Headers) > 0 {
		keys := make([]string, 0, len(c.Headers))
		for k := range c.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString("\r\n")
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(c.Headers[k])
		}
	}
	b.WriteString("\r\n\r\n")
	b.WriteString(c.Body)
	return []byte(b.String())
}

// ContentsTCP describes a raw byte exchange with the exit target.
type ContentsTCP struct {
	Protocol       string  `json:"protocol"`
	Data           string  `json:"data,omitempty"`
	TimeoutSeconds float64 `json:"timeout,omitempty"`
	KeepAlive      bool    `json:"keep_alive"`
	BufferSize     int     `json:"buffer_size,omitempty"`
}

// NewContentsTCP applies the schema defaults.
func NewContentsTCP() *ContentsTCP {
	return &ContentsTCP{Protocol: "tcp", TimeoutSeconds: 30, BufferSize: 4096}
}

// Validate checks the transport protocol and buffer bound.
func (c *ContentsTCP) Validate() error {
	c.Protocol = strings.ToLower(c.Protocol)
	if c.Protocol != "tcp" && c.Protocol != "udp" {
		return fmt.Errorf("%w: protocol must be tcp or udp", types.ErrValidation)
	}
	if c.BufferSize < 0 {
		return fmt.Errorf("%w: buffer size must be positive", types.ErrValidation)
	}
	return nil
}

// WireBytes serializes the exchange payload.
func (c *ContentsTCP) WireBytes(string) []byte {
	return []byte(c.Data)
}

// Contents is the inner payload of a request, serialized at the exit hop.
type Contents interface {
	Validate() error
	WireBytes(target string) []byte
}
