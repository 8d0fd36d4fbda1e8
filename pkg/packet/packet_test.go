package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxanet/netnode/pkg/types"
)

func TestParseAddr(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Addr
		wantErr  bool
	}{
		{name: "host and port", input: "10.0.0.1:9999", expected: Addr{Host: "10.0.0.1", Port: 9999}},
		{name: "bare host gets default port", input: "10.0.0.1", expected: Addr{Host: "10.0.0.1", Port: DefaultPort}},
		{name: "hostname", input: "relay.example.net:9000", expected: Addr{Host: "relay.example.net", Port: 9000}},
		{name: "bad port", input: "10.0.0.1:notaport", wantErr: true},
		{name: "port out of range", input: "10.0.0.1:70000", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := ParseAddr(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, addr)
		})
	}
}

func TestHeaderOperations(t *testing.T) {
	p := NewFromString(Addr{}, "payload body")
	assert.Equal(t, "payload", p.Header())

	p.AssembleHeader(HeaderSSU)
	assert.Equal(t, "SSU payload body", p.Str)
	assert.Equal(t, []byte("SSU payload body"), p.Raw)
	assert.True(t, p.HasHeader(HeaderSSU))
	assert.Equal(t, HeaderSSU, p.Header())
	assert.Equal(t, "payload body", p.Body())

	// Assembling twice must not double the header
	p.AssembleHeader(HeaderSSU)
	assert.Equal(t, "SSU payload body", p.Str)

	p.RemoveHeader()
	assert.Equal(t, "payload body", p.Str)
	assert.Equal(t, []byte("payload body"), p.Raw)
}

func TestRawStringMirror(t *testing.T) {
	p := NewFromBytes(Addr{}, []byte("SSU hello"))
	assert.Equal(t, "SSU hello", p.Str)

	p.Str = "SSU changed"
	p.StrToRaw()
	assert.Equal(t, []byte("SSU changed"), p.Raw)
}

func TestUpgradeRoundTrip(t *testing.T) {
	addr := Addr{Host: "127.0.0.1", Port: 9999}

	dnsPkt, err := NewDNSPacket(addr, types.NewARecord("example-overlay"))
	require.NoError(t, err)

	payloads := []*Packet{
		NewSSUPacket(addr, "some data").Base(),
		NewControlPacket(addr, ControlStatus, map[string]string{"verbose": "true"}).Base(),
		NewFragmentPacket(addr, "frag-1", 0, 2, []byte("chunk")).Base(),
		dnsPkt.Base(),
		NewInternalHTTPPacket(addr, "/status/health", "GET", nil, nil).Base(),
		NewInternalHTTPResponsePacket(addr, 0, map[string]interface{}{"ok": true}).Base(),
		WrapForPropagation(addr, NewSSUPacket(addr, "inner").Base(), 2, TargetAll).Base(),
	}

	for _, original := range payloads {
		raw := original.Serialize()
		received := NewFromBytes(addr, raw)
		typed, err := Upgrade(received)
		require.NoError(t, err, "header %s", received.Header())
		assert.Equal(t, raw, typed.Base().Serialize(), "round-trip for header %s", received.Header())
	}
}

func TestUpgradeUnknownHeader(t *testing.T) {
	p := NewFromString(Addr{}, "MYSTERY what is this")
	typed, err := Upgrade(p)
	require.NoError(t, err)
	assert.Equal(t, KindGeneric, typed.Kind())
}

func TestControlPacketParse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		command string
		params  map[string]string
		wantErr bool
	}{
		{
			name:    "command with params",
			body:    "SSU_CONTROL RESTART delay=5,force=true",
			command: "RESTART",
			params:  map[string]string{"delay": "5", "force": "true"},
		},
		{
			name:    "command without params",
			body:    "SSU_CONTROL STATUS",
			command: ControlStatus,
		},
		{
			name:    "unknown command accepted",
			body:    "SSU_CONTROL FROBNICATE",
			command: "FROBNICATE",
		},
		{
			name:    "params with spaces trimmed",
			body:    "SSU_CONTROL PUNCH port= 4500 ,ip=1.2.3.4",
			command: ControlPunch,
			params:  map[string]string{"port": "4500", "ip": "1.2.3.4"},
		},
		{
			name:    "missing command",
			body:    "SSU_CONTROL",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := UpgradeControl(NewFromString(Addr{}, tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.command, c.Command)
			if tt.params != nil {
				assert.Equal(t, tt.params, c.Params)
			}
		})
	}
}

func TestFragmentSetCovers(t *testing.T) {
	addr := Addr{Host: "127.0.0.1", Port: 9999}
	data := make([]byte, 3000)
	for i := range data {
		data[i] = byte(i % 251)
	}

	fragments := FragmentSerialized(addr, data)
	require.Len(t, fragments, 3)

	var rebuilt []byte
	for i, f := range fragments {
		assert.Equal(t, i, f.FragmentIndex)
		assert.Equal(t, 3, f.TotalFragments)
		assert.Equal(t, fragments[0].FragmentID, f.FragmentID)
		rebuilt = append(rebuilt, f.Data...)
	}
	assert.Equal(t, data, rebuilt)
}

func TestFragmentUpgradeRejectsBadIndex(t *testing.T) {
	f := NewFragmentPacket(Addr{}, "id", 5, 3, []byte("x"))
	_, err := UpgradeFragment(f.Base())
	assert.Error(t, err)
}

func TestDNSPacketBranchesOnRecordType(t *testing.T) {
	rec := types.NewARecord("example-overlay")
	rec.IPAddress = "10.0.0.1"

	pkt, err := NewDNSPacket(Addr{}, rec)
	require.NoError(t, err)

	upgraded, err := UpgradeDNS(pkt.Base())
	require.NoError(t, err)
	assert.Equal(t, "A", upgraded.RecordType)
	require.NotNil(t, upgraded.ARecord)
	assert.Equal(t, "example-overlay", upgraded.ARecord.Domain)
	assert.Equal(t, "10.0.0.1", upgraded.ARecord.IPAddress)

	generic := NewFromString(Addr{}, `DNS {"record_type":"TXT","domain":"x"}`)
	upgraded, err = UpgradeDNS(generic)
	require.NoError(t, err)
	assert.Equal(t, "TXT", upgraded.RecordType)
	assert.Nil(t, upgraded.ARecord)
}

func TestPropagationWrapUnwrap(t *testing.T) {
	addr := Addr{Host: "127.0.0.1", Port: 9000}
	inner := NewSSUPacket(addr, "inner payload").Base()

	env := WrapForPropagation(addr, inner, 0, "")
	assert.Equal(t, DefaultPropagationDepth, env.Data.CurrentDepth)
	assert.Equal(t, TargetAll, env.Data.TargetRI)
	assert.Equal(t, HeaderSSU, env.Data.PacketHeader)

	upgraded, err := UpgradePropagation(env.Base())
	require.NoError(t, err)

	restored, err := upgraded.Data.UpgradeInner(addr)
	require.NoError(t, err)
	assert.Equal(t, KindSSU, restored.Kind())
	assert.Equal(t, inner.Str, restored.Base().Str)
}

func TestPropagationRewrapDecrements(t *testing.T) {
	addr := Addr{Host: "127.0.0.1", Port: 9000}
	env := WrapForPropagation(addr, NewSSUPacket(addr, "x").Base(), 2, TargetRRI)

	re := env.Rewrap(addr, env.Data.CurrentDepth-1)
	assert.Equal(t, 1, re.Data.CurrentDepth)
	assert.Equal(t, 2, re.Data.TargetDepth)
	assert.Equal(t, TargetRRI, re.Data.TargetRI)
	assert.Equal(t, env.Data.PacketBody, re.Data.PacketBody)
}
