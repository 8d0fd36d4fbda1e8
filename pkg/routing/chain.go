package routing

import (
	"encoding/json"
	"fmt"

	"github.com/voxanet/netnode/pkg/crypto"
	"github.com/voxanet/netnode/pkg/log"
	"github.com/voxanet/netnode/pkg/metrics"
	"github.com/voxanet/netnode/pkg/types"
	"golang.org/x/sync/errgroup"
)

// Chain build strategies. Unknown strategy strings fall back to threaded
// with a warning.
const (
	StrategyThreaded = "threaded"
	StrategyBatched  = "batched"

	DefaultStrategy = StrategyThreaded

	batchSize = 10
)

// ChildRoute is the forwarding address embedded in a descriptor so a
// relay knows where its decrypted layer goes next.
type ChildRoute struct {
	RelayID   string `json:"relay_id"`
	RelayIP   string `json:"relay_ip"`
	RelayPort int    `json:"relay_port"`
}

// Descriptor is one serialized onion layer: the ciphertext and wrapped
// session key only the named relay can open, the plaintext digest it
// verifies, and the next hop's address. A nil child marks the exit hop.
type Descriptor struct {
	RelayID              string      `json:"relay_id"`
	RelayIP              string      `json:"relay_ip"`
	RelayPort            int         `json:"relay_port"`
	RouteData            []byte      `json:"route_data"`
	EncryptedFernet      []byte      `json:"encrypted_fernet"`
	EncryptedMessageHash string      `json:"encrypted_message_hash"`
	ChildRoute           *ChildRoute `json:"child_route"`
}

// Marshal serializes the descriptor; ciphertext fields travel base64
// inside the JSON.
func (d *Descriptor) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

// ParseDescriptor parses a serialized onion layer.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("malformed route descriptor: %w", err)
	}
	if d.RelayID == "" || len(d.RouteData) == 0 || len(d.EncryptedFernet) == 0 {
		return nil, fmt.Errorf("incomplete route descriptor")
	}
	return &d, nil
}

// BuildChain assembles the layered encrypted chain for a request over its
// routing map, inside-out: the innermost plaintext is the request payload
// and each outer plaintext is the serialized descriptor of the layer
// within. The result is the outermost descriptor, addressed to the first
// hop, and is also stored on the request.
func BuildChain(req *Request, m *Map, strategy string) (*Descriptor, error) {
	logger := log.WithComponent("routing")

	switch strategy {
	case StrategyThreaded, StrategyBatched:
	case "":
		strategy = DefaultStrategy
	default:
		logger.Warn().Str("strategy", strategy).Msg("unknown chain build strategy, defaulting to threaded")
		strategy = DefaultStrategy
	}

	if m == nil {
		m = req.Map
	}
	if m == nil || m.Head == nil {
		return nil, types.ErrNoRelaysAvailable
	}
	req.Map = m

	payload := req.PayloadBytes()
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: request has no payload", types.ErrValidation)
	}

	hops := m.Hops()
	timer := metrics.NewTimer()

	// Key parsing is the per-hop work with no inter-layer dependency, so
	// the threaded strategy runs it through a pool before layering;
	// batched checks keys in fixed-size sequential groups. The layering
	// itself is inherently inner-to-outer.
	switch strategy {
	case StrategyThreaded:
		g := new(errgroup.Group)
		g.SetLimit(8)
		for _, hop := range hops {
			g.Go(func() error {
				if _, err := crypto.ParsePublicKey(hop.PublicKey); err != nil {
					return fmt.Errorf("relay %s: %w", hop.RelayID, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	case StrategyBatched:
		for start := 0; start < len(hops); start += batchSize {
			end := start + batchSize
			if end > len(hops) {
				end = len(hops)
			}
			for _, hop := range hops[start:end] {
				if _, err := crypto.ParsePublicKey(hop.PublicKey); err != nil {
					return nil, fmt.Errorf("relay %s: %w", hop.RelayID, err)
				}
			}
		}
	}

	outer, err := layerChain(hops, payload)
	if err != nil {
		return nil, err
	}

	timer.ObserveDuration(metrics.ChainBuildDuration)
	metrics.ChainsBuiltTotal.WithLabelValues(strategy).Inc()
	logger.Debug().
		Int("hops", len(hops)).
		Str("strategy", strategy).
		Str("first_hop", outer.RelayID).
		Msg("routing chain built")

	req.Chain = outer
	return outer, nil
}

// layerChain performs the inside-out layering over the hop slice.
func layerChain(hops []*Hop, payload []byte) (*Descriptor, error) {
	var inner *Descriptor

	for i := len(hops) - 1; i >= 0; i-- {
		hop := hops[i]

		var plaintext []byte
		if inner == nil {
			plaintext = payload
		} else {
			data, err := inner.Marshal()
			if err != nil {
				return nil, err
			}
			plaintext = data
		}

		ct, hashHex, wrapped, err := crypto.EncryptWithHash(string(plaintext), hop.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("layer %d (relay %s): %w", i, hop.RelayID, err)
		}
		hop.RouteData = ct
		hop.EncryptedFernet = wrapped
		hop.EncryptedMessageHash = hashHex

		desc := &Descriptor{
			RelayID:              hop.RelayID,
			RelayIP:              hop.RelayIP,
			RelayPort:            hop.RelayPort,
			RouteData:            ct,
			EncryptedFernet:      wrapped,
			EncryptedMessageHash: hashHex,
		}
		if hop.Child != nil {
			desc.ChildRoute = &ChildRoute{
				RelayID:   hop.Child.RelayID,
				RelayIP:   hop.Child.RelayIP,
				RelayPort: hop.Child.RelayPort,
			}
		}
		inner = desc
	}
	return inner, nil
}

// UnwrapLayer executes the per-hop rule at a relay: unwrap the session
// key with the relay's private key, decrypt the layer, and verify the
// plaintext digest. The returned plaintext is either the next descriptor
// or, at the exit hop, the inner payload.
func UnwrapLayer(desc *Descriptor, privateKeyPEM string) ([]byte, error) {
	plaintext, err := crypto.Decrypt(desc.RouteData, privateKeyPEM, desc.EncryptedFernet)
	if err != nil {
		return nil, err
	}
	if desc.EncryptedMessageHash != "" && crypto.HashHex([]byte(plaintext)) != desc.EncryptedMessageHash {
		metrics.IntegrityFailuresTotal.Inc()
		return nil, fmt.Errorf("%w: layer digest mismatch at relay %s", types.ErrIntegrity, desc.RelayID)
	}
	metrics.LayersUnwrappedTotal.Inc()
	return []byte(plaintext), nil
}
