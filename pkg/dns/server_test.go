package dns

import (
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubWriter captures the response written by the query handler.
type stubWriter struct {
	dns.ResponseWriter
	msg *dns.Msg
}

func (w *stubWriter) WriteMsg(m *dns.Msg) error { w.msg = m; return nil }
func (w *stubWriter) LocalAddr() net.Addr       { return &net.UDPAddr{} }
func (w *stubWriter) RemoteAddr() net.Addr      { return &net.UDPAddr{} }

func query(t *testing.T, s *Server, name string, qtype uint16) *dns.Msg {
	t.Helper()
	req := &dns.Msg{}
	req.SetQuestion(dns.Fqdn(name), qtype)
	w := &stubWriter{}
	s.handleDNSQuery(w, req)
	require.NotNil(t, w.msg)
	return w.msg
}

func TestResolverBridgeAnswersFromStore(t *testing.T) {
	store := NewStore(nil)
	_, err := store.SaveRecord(record("example-net", "10.0.0.7"), false)
	require.NoError(t, err)

	s := NewServer(store, nil)

	msg := query(t, s, "example-net.voxa", dns.TypeA)
	require.Len(t, msg.Answer, 1)
	a, ok := msg.Answer[0].(*dns.A)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.7", a.A.String())
	assert.Equal(t, uint32(3600), a.Hdr.Ttl)

	// Unsuffixed overlay names resolve too
	msg = query(t, s, "example-net", dns.TypeA)
	assert.Len(t, msg.Answer, 1)
}

func TestResolverBridgeUnknownDomain(t *testing.T) {
	s := NewServer(NewStore(nil), nil)
	msg := query(t, s, "missing-name.voxa", dns.TypeA)
	assert.Equal(t, dns.RcodeNameError, msg.Rcode)
	assert.Empty(t, msg.Answer)
}

func TestResolverBridgeNonAQueries(t *testing.T) {
	s := NewServer(NewStore(nil), nil)
	msg := query(t, s, "example-net.voxa", dns.TypeAAAA)
	assert.Equal(t, dns.RcodeNotImplemented, msg.Rcode)
}

func TestResolverBridgeSkipsRecordsWithoutIP(t *testing.T) {
	store := NewStore(nil)
	rec := record("example-net", "")
	rec.NodeID = "node-1"
	_, err := store.SaveRecord(rec, false)
	require.NoError(t, err)

	s := NewServer(store, nil)
	msg := query(t, s, "example-net.voxa", dns.TypeA)
	assert.Empty(t, msg.Answer)
}
