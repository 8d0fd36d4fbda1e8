package dns

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/miekg/dns"
	"github.com/voxanet/netnode/pkg/log"
)

const (
	// DefaultListenAddr is the local resolver bridge address
	DefaultListenAddr = "127.0.0.1:5353"

	// DefaultDomain is the search suffix for overlay names
	DefaultDomain = "voxa"
)

// Server bridges the overlay record store into wire DNS: local A queries
// for overlay names are answered out of the store so ordinary resolvers
// can use them.
type Server struct {
	store      *Store
	dnsServer  *dns.Server
	listenAddr string
	domain     string
	mu         sync.RWMutex
	running    bool
}

// ServerConfig holds resolver bridge configuration
type ServerConfig struct {
	ListenAddr string // Address to listen on (default: 127.0.0.1:5353)
	Domain     string // Search domain (default: "voxa")
}

// NewServer creates a resolver bridge over the record store.
func NewServer(store *Store, config *ServerConfig) *Server {
	if config == nil {
		config = &ServerConfig{}
	}
	if config.ListenAddr == "" {
		config.ListenAddr = DefaultListenAddr
	}
	if config.Domain == "" {
		config.Domain = DefaultDomain
	}

	return &Server{
		store:      store,
		listenAddr: config.ListenAddr,
		domain:     config.Domain,
	}
}

// Start starts the resolver bridge.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("DNS server already running")
	}
	s.running = true
	s.mu.Unlock()

	log.Logger.Info().
		Str("component", "dns").
		Str("address", s.listenAddr).
		Msg("starting DNS resolver bridge")

	mux := dns.NewServeMux()
	mux.HandleFunc(".", s.handleDNSQuery)

	s.dnsServer = &dns.Server{
		Addr:    s.listenAddr,
		Net:     "udp",
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.dnsServer.ListenAndServe(); err != nil {
			log.Logger.Error().
				Err(err).
				Str("component", "dns").
				Msg("DNS server error")
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	case <-ctx.Done():
		return s.Stop()
	default:
		return nil
	}
}

// Stop stops the resolver bridge.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	if s.dnsServer != nil {
		if err := s.dnsServer.Shutdown(); err != nil {
			log.Logger.Error().
				Err(err).
				Str("component", "dns").
				Msg("error stopping DNS server")
			return err
		}
	}

	s.running = false
	return nil
}

// IsRunning returns true if the resolver bridge is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// handleDNSQuery answers A queries for overlay names out of the store.
func (s *Server) handleDNSQuery(w dns.ResponseWriter, r *dns.Msg) {
	msg := &dns.Msg{}
	msg.SetReply(r)
	msg.Authoritative = true

	for _, q := range r.Question {
		if q.Qtype != dns.TypeA {
			msg.Rcode = dns.RcodeNotImplemented
			continue
		}

		domain := s.stripDomain(strings.TrimSuffix(q.Name, "."))
		records := s.store.RecordsByDomain(domain)
		if len(records) == 0 {
			msg.Rcode = dns.RcodeNameError
			continue
		}

		for _, rec := range records {
			if rec.IPAddress == "" {
				continue
			}
			ip := net.ParseIP(rec.IPAddress)
			if ip == nil {
				continue
			}
			ttl := uint32(rec.TTL)
			if ttl == 0 {
				ttl = 3600
			}
			msg.Answer = append(msg.Answer, &dns.A{
				Hdr: dns.RR_Header{
					Name:   q.Name,
					Rrtype: dns.TypeA,
					Class:  dns.ClassINET,
					Ttl:    ttl,
				},
				A: ip.To4(),
			})
		}
	}

	if err := w.WriteMsg(msg); err != nil {
		log.Logger.Error().
			Err(err).
			Str("component", "dns").
			Msg("failed to write DNS response")
	}
}

// stripDomain removes the overlay search suffix when present.
func (s *Server) stripDomain(name string) string {
	suffix := "." + s.domain
	if strings.HasSuffix(name, suffix) {
		return strings.TrimSuffix(name, suffix)
	}
	return name
}
