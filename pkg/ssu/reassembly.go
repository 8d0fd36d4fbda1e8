package ssu

import (
	"sync"
	"time"

	"github.com/voxanet/netnode/pkg/metrics"
	"github.com/voxanet/netnode/pkg/packet"
)

// FragmentTimeout bounds how long a partial fragment set is retained.
const FragmentTimeout = 30 * time.Second

type fragmentSet struct {
	total   int
	chunks  map[int][]byte
	firstAt time.Time
}

// reassembler accumulates fragments keyed by (sender, fragment id) and
// emits the original serialized packet once all indices are present.
// Duplicate fragments are idempotent; partial sets are evicted at timeout.
type reassembler struct {
	mu   sync.Mutex
	sets map[string]*fragmentSet
}

func newReassembler() *reassembler {
	return &reassembler{sets: make(map[string]*fragmentSet)}
}

// Add records a fragment. When the set completes it returns the
// reassembled bytes and forgets the set; otherwise it returns nil.
func (r *reassembler) Add(sender packet.Addr, f *packet.FragmentPacket) []byte {
	key := sender.String() + "|" + f.FragmentID

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sets[key]
	if !ok {
		set = &fragmentSet{
			total:   f.TotalFragments,
			chunks:  make(map[int][]byte, f.TotalFragments),
			firstAt: time.Now(),
		}
		r.sets[key] = set
	}

	// Siblings must agree on the set size
	if f.TotalFragments != set.total {
		return nil
	}
	if _, dup := set.chunks[f.FragmentIndex]; dup {
		return nil
	}
	set.chunks[f.FragmentIndex] = f.Data

	if len(set.chunks) < set.total {
		return nil
	}

	var out []byte
	for i := 0; i < set.total; i++ {
		out = append(out, set.chunks[i]...)
	}
	delete(r.sets, key)
	metrics.FragmentsReassembledTotal.Inc()
	return out
}

// Evict drops partial sets older than the timeout. Runs on a periodic
// timer; the lock is never held across I/O.
func (r *reassembler) Evict(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for key, set := range r.sets {
		if now.Sub(set.firstAt) > FragmentTimeout {
			delete(r.sets, key)
			evicted++
			metrics.FragmentSetsExpiredTotal.Inc()
		}
	}
	return evicted
}

// Pending returns the number of incomplete sets.
func (r *reassembler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sets)
}
