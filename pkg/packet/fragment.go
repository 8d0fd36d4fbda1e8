package packet

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// MaxUDPPacketSize is the conservative datagram bound; larger serialized
// packets are fragmented before emission.
const MaxUDPPacketSize = 1400

// FragmentPacket carries one chunk of a larger serialized packet. The body
// is JSON with the chunk hex-encoded.
type FragmentPacket struct {
	*Packet
	FragmentID     string
	FragmentIndex  int
	TotalFragments int
	Data           []byte
}

type fragmentBody struct {
	FragmentID     string `json:"fragment_id"`
	FragmentIndex  int    `json:"fragment_index"`
	TotalFragments int    `json:"total_fragments"`
	Data           string `json:"data"`
}

func (f *FragmentPacket) Kind() Kind    { return KindFragment }
func (f *FragmentPacket) Base() *Packet { return f.Packet }

// UpgradeFragment parses a received SSU_FRAGMENT packet.
func UpgradeFragment(p *Packet) (*FragmentPacket, error) {
	f := &FragmentPacket{Packet: p.Clone()}
	var body fragmentBody
	if err := json.Unmarshal([]byte(f.Packet.Body()), &body); err != nil {
		return nil, fmt.Errorf("malformed fragment body: %w", err)
	}
	data, err := hex.DecodeString(body.Data)
	if err != nil {
		return nil, fmt.Errorf("malformed fragment data: %w", err)
	}
	if body.TotalFragments < 1 || body.FragmentIndex < 0 || body.FragmentIndex >= body.TotalFragments {
		return nil, fmt.Errorf("fragment index %d out of range for %d fragments", body.FragmentIndex, body.TotalFragments)
	}
	f.FragmentID = body.FragmentID
	f.FragmentIndex = body.FragmentIndex
	f.TotalFragments = body.TotalFragments
	f.Data = data
	return f, nil
}

// NewFragmentPacket builds one fragment of a set.
func NewFragmentPacket(addr Addr, fragmentID string, index, total int, data []byte) *FragmentPacket {
	body, _ := json.Marshal(fragmentBody{
		FragmentID:     fragmentID,
		FragmentIndex:  index,
		TotalFragments: total,
		Data:           hex.EncodeToString(data),
	})
	p := NewFromString(addr, string(body))
	p.AssembleHeader(HeaderSSUFragment)
	return &FragmentPacket{
		Packet:         p,
		FragmentID:     fragmentID,
		FragmentIndex:  index,
		TotalFragments: total,
		Data:           data,
	}
}

// FragmentSerialized splits serialized packet bytes into a fragment set
// addressed to addr. The caller checks the size bound first.
func FragmentSerialized(addr Addr, serialized []byte) []*FragmentPacket {
	fragmentID := uuid.New().String()
	total := (len(serialized) + MaxUDPPacketSize - 1) / MaxUDPPacketSize
	if total < 1 {
		total = 1
	}
	fragments := make([]*FragmentPacket, 0, total)
	for i := 0; i < total; i++ {
		start := i * MaxUDPPacketSize
		end := start + MaxUDPPacketSize
		if end > len(serialized) {
			end = len(serialized)
		}
		fragments = append(fragments, NewFragmentPacket(addr, fragmentID, i, total, serialized[start:end]))
	}
	return fragments
}
