package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPubPEM = `-----BEGIN RSA PUBLIC KEY-----
MEgCQQDJvYZ0U6F0cV9vYH7L3p8Qy7p6t5D9q1mPZ+0n3k5f8m0eJW2m8n9p7r3p
YQIDAQAB
-----END RSA PUBLIC KEY-----`

func validNRI() *NRI {
	return &NRI{
		NodeID:   "mainnet-node-1",
		NodeIP:   "192.168.1.100",
		NodePort: 8080,
		NodeType: NodeTypeStandard,
	}
}

func TestNRIValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*NRI)
		wantErr bool
	}{
		{name: "valid", mutate: func(*NRI) {}},
		{name: "empty node type defaults", mutate: func(n *NRI) { n.NodeType = "" }},
		{name: "short id", mutate: func(n *NRI) { n.NodeID = "ab" }, wantErr: true},
		{name: "bad id characters", mutate: func(n *NRI) { n.NodeID = "node one!" }, wantErr: true},
		{name: "bad ip", mutate: func(n *NRI) { n.NodeIP = "256.1.1.1" }, wantErr: true},
		{name: "not an ip", mutate: func(n *NRI) { n.NodeIP = "hostname" }, wantErr: true},
		{name: "port zero", mutate: func(n *NRI) { n.NodePort = 0 }, wantErr: true},
		{name: "port too large", mutate: func(n *NRI) { n.NodePort = 70000 }, wantErr: true},
		{name: "bad type", mutate: func(n *NRI) { n.NodeType = "quantum" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nri := validNRI()
			tt.mutate(nri)
			err := nri.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNRIDefaultsType(t *testing.T) {
	nri := validNRI()
	nri.NodeType = ""
	require.NoError(t, nri.Validate())
	assert.Equal(t, NodeTypeStandard, nri.NodeType)
	assert.Equal(t, "192.168.1.100:8080", nri.Addr())
}

func TestRRIValidate(t *testing.T) {
	rri := &RRI{
		RelayID:   "relay-1",
		RelayIP:   "10.0.0.1",
		RelayPort: 9000,
		PublicKey: testPubPEM,
	}
	// The embedded test key is intentionally garbage DER; only the PEM
	// shape is right, so parsing must fail validation.
	assert.ErrorIs(t, rri.Validate(), ErrValidation)

	rri.PublicKey = ""
	assert.ErrorIs(t, rri.Validate(), ErrValidation)
}

func TestARecordValidate(t *testing.T) {
	rec := NewARecord("example-net")
	rec.IPAddress = "10.0.0.1"
	require.NoError(t, rec.Validate())
	assert.Equal(t, 3600, rec.TTL)
	assert.Equal(t, []string{ProtocolSSU, ProtocolI2P}, rec.AllowedProtocols)

	rec.AllowedProtocols = []string{"carrier-pigeon"}
	assert.ErrorIs(t, rec.Validate(), ErrValidation)

	rec = NewARecord("ab")
	assert.ErrorIs(t, rec.Validate(), ErrValidation)

	rec = NewARecord("example-net")
	rec.IPAddress = "10.0.0"
	assert.ErrorIs(t, rec.Validate(), ErrValidation)

	rec = NewARecord("example-net")
	rec.NodeID = "x"
	assert.ErrorIs(t, rec.Validate(), ErrValidation)
}

func TestAppValidate(t *testing.T) {
	app := &App{Name: "demo-app", Image: "nginx:latest", Replicas: 1}
	require.NoError(t, app.Validate())

	app.Image = ""
	assert.ErrorIs(t, app.Validate(), ErrValidation)

	app = &App{Name: "ab", Image: "nginx"}
	assert.ErrorIs(t, app.Validate(), ErrValidation)
}
