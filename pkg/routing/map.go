package routing

import (
	"fmt"
	"math/rand"

	"github.com/voxanet/netnode/pkg/types"
)

// Hop is one link in the onion chain: the relay it belongs to, the layer
// ciphertext and wrapped session key consumed at that relay, and the next
// hop. A nil Child marks the terminal (exit) hop.
type Hop struct {
	RelayID   string
	RelayIP   string
	RelayPort int
	PublicKey string

	RouteData            []byte
	EncryptedFernet      []byte
	EncryptedMessageHash string

	Child *Hop
}

// Map is an ordered chain of hops built once per outbound request and
// consumed in a single pass.
type Map struct {
	Head *Hop
}

// Len counts the hops in the chain.
func (m *Map) Len() int {
	n := 0
	for hop := m.Head; hop != nil; hop = hop.Child {
		n++
	}
	return n
}

// Hops returns the chain as a slice in first-to-exit order.
func (m *Map) Hops() []*Hop {
	var hops []*Hop
	for hop := m.Head; hop != nil; hop = hop.Child {
		hops = append(hops, hop)
	}
	return hops
}

// NthHop returns the hop at position n (0-based), or nil past the end.
func (m *Map) NthHop(n int) *Hop {
	hop := m.Head
	for i := 0; i < n && hop != nil; i++ {
		hop = hop.Child
	}
	return hop
}

// RRILister supplies relay records for map generation.
type RRILister interface {
	ListRRIs(limit int) ([]*types.RRI, error)
}

// ExtraListSize is how many records beyond the map size are fetched so a
// shuffle has spares to pick from.
const ExtraListSize = 20

// GenerateRelayMap builds a pseudo-random routing map: fetch up to
// maxMapSize+extra relay records, drop duplicate relay ids, shuffle,
// truncate to maxMapSize, and link into a chain. An empty relay list is a
// hard error.
func GenerateRelayMap(lister RRILister, maxMapSize, extra int) (*Map, error) {
	if maxMapSize < 1 {
		return nil, fmt.Errorf("%w: map size must be positive", types.ErrValidation)
	}
	if extra < 0 {
		extra = ExtraListSize
	}

	rris, err := lister.ListRRIs(maxMapSize + extra)
	if err != nil {
		return nil, fmt.Errorf("failed to list relay records: %w", err)
	}
	if len(rris) == 0 {
		return nil, types.ErrNoRelaysAvailable
	}

	seen := make(map[string]bool, len(rris))
	hops := make([]*Hop, 0, len(rris))
	for _, rri := range rris {
		if seen[rri.RelayID] {
			continue
		}
		seen[rri.RelayID] = true
		hops = append(hops, &Hop{
			RelayID:   rri.RelayID,
			RelayIP:   rri.RelayIP,
			RelayPort: rri.RelayPort,
			PublicKey: rri.PublicKey,
		})
	}

	rand.Shuffle(len(hops), func(i, j int) { hops[i], hops[j] = hops[j], hops[i] })
	if len(hops) > maxMapSize {
		hops = hops[:maxMapSize]
	}

	for i := 0; i < len(hops)-1; i++ {
		hops[i].Child = hops[i+1]
	}
	hops[len(hops)-1].Child = nil

	return &Map{Head: hops[0]}, nil
}
