package dns

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
	"github.com/voxanet/netnode/pkg/log"
	"github.com/voxanet/netnode/pkg/metrics"
	"github.com/voxanet/netnode/pkg/types"
)

// MaxRecordsPerDomain bounds each domain slot to resist flooding.
const MaxRecordsPerDomain = 2

// Persister is the optional durable layer behind the in-memory store.
type Persister interface {
	SaveDNSRecords(domain string, records []*types.ARecord) error
	LoadDNSRecords() (map[string][]*types.ARecord, error)
}

// Store is the in-memory overlay record multimap, domain to A records,
// with duplicate suppression and a per-domain capacity bound.
type Store struct {
	mu        sync.RWMutex
	records   map[string][]*types.ARecord
	persister Persister
	logger    zerolog.Logger
}

// NewStore creates the record store. A non-nil persister is loaded from
// and written through.
func NewStore(persister Persister) *Store {
	s := &Store{
		records:   make(map[string][]*types.ARecord),
		persister: persister,
		logger:    log.WithComponent("dns-store"),
	}
	if persister != nil {
		if loaded, err := persister.LoadDNSRecords(); err == nil {
			s.records = loaded
			if s.records == nil {
				s.records = make(map[string][]*types.ARecord)
			}
		} else {
			s.logger.Warn().Err(err).Msg("failed to load persisted DNS records")
		}
	}
	s.updateGauge()
	return s
}

// SaveRecord appends a record to its domain slot. Byte-equal duplicates
// are suppressed unless allowDuplicates is set; a full slot rejects the
// record. Returns whether the record was stored.
func (s *Store) SaveRecord(rec *types.ARecord, allowDuplicates bool) (bool, error) {
	if err := rec.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.records[rec.Domain]
	if len(slot) >= MaxRecordsPerDomain {
		metrics.DNSRecordsRejectedTotal.Inc()
		return false, nil
	}

	if !allowDuplicates {
		encoded, err := json.Marshal(rec)
		if err != nil {
			return false, err
		}
		for _, existing := range slot {
			existingEncoded, err := json.Marshal(existing)
			if err != nil {
				return false, err
			}
			if bytes.Equal(encoded, existingEncoded) {
				return false, nil
			}
		}
	}

	s.records[rec.Domain] = append(slot, rec)
	if s.persister != nil {
		if err := s.persister.SaveDNSRecords(rec.Domain, s.records[rec.Domain]); err != nil {
			s.logger.Warn().Err(err).Str("domain", rec.Domain).Msg("failed to persist DNS records")
		}
	}
	s.updateGaugeLocked()
	return true, nil
}

// RecordsByDomain returns a copy of the domain's slot; internal
// references never leak.
func (s *Store) RecordsByDomain(domain string) []*types.ARecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot := s.records[domain]
	out := make([]*types.ARecord, len(slot))
	for i, rec := range slot {
		copied := *rec
		out[i] = &copied
	}
	return out
}

// Domains returns every domain with at least one record.
func (s *Store) Domains() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.records))
	for domain := range s.records {
		out = append(out, domain)
	}
	return out
}

// Len counts all stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, slot := range s.records {
		n += len(slot)
	}
	return n
}

func (s *Store) updateGauge() {
	metrics.DNSRecordsTotal.Set(float64(s.Len()))
}

func (s *Store) updateGaugeLocked() {
	n := 0
	for _, slot := range s.records {
		n += len(slot)
	}
	metrics.DNSRecordsTotal.Set(float64(n))
}
