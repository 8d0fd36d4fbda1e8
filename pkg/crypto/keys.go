package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"

	"github.com/google/uuid"
	"github.com/voxanet/netnode/pkg/types"
)

const rsaKeyBits = 2048

// Keypair holds a generated RSA keypair in PEM form together with the
// SHA-256 digests of the PEM text and a unique key id. The private key
// never leaves the node; the public key is advertised via RRI/NRI records.
type Keypair struct {
	KeyID          string `json:"id"`
	PublicKey      string `json:"public_key"`
	PrivateKey     string `json:"private_key"`
	PublicKeyHash  string `json:"public_key_hash"`
	PrivateKeyHash string `json:"private_key_hash"`
}

// GenerateKeypair creates a new 2048-bit RSA keypair. Hashes are hex
// SHA-256 of the PEM text.
func GenerateKeypair() (*Keypair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA keypair: %w", err)
	}

	pubPEM := string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PUBLIC KEY",
		Bytes: x509.MarshalPKCS1PublicKey(&priv.PublicKey),
	}))
	privPEM := string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	}))

	return &Keypair{
		KeyID:          uuid.New().String(),
		PublicKey:      pubPEM,
		PrivateKey:     privPEM,
		PublicKeyHash:  hexSHA256([]byte(pubPEM)),
		PrivateKeyHash: hexSHA256([]byte(privPEM)),
	}, nil
}

// VerifyHashes reports whether the stored digests match the stored PEM text.
func (k *Keypair) VerifyHashes() bool {
	return hexSHA256([]byte(k.PublicKey)) == k.PublicKeyHash &&
		hexSHA256([]byte(k.PrivateKey)) == k.PrivateKeyHash
}

// GenerateSessionKey creates a fresh 256-bit symmetric key in its URL-safe
// base64 transit form. Session keys are single-use per onion layer.
func GenerateSessionKey() (string, error) {
	key := make([]byte, sessionKeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate session key: %w", err)
	}
	return base64.URLEncoding.EncodeToString(key), nil
}

// ParsePublicKey parses an RSA public key from PEM text. Accepts PKCS#1
// and PKIX encodings so keys from other directory implementations load.
func ParsePublicKey(pemText string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, fmt.Errorf("%w: not PEM encoded", types.ErrKeyFormat)
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrKeyFormat, err)
		}
		return pub, nil
	case "PUBLIC KEY":
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrKeyFormat, err)
		}
		pub, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an RSA public key", types.ErrKeyFormat)
		}
		return pub, nil
	}
	return nil, fmt.Errorf("%w: unexpected PEM block type %q", types.ErrKeyFormat, block.Type)
}

// ParsePrivateKey parses an RSA private key from PEM text.
func ParsePrivateKey(pemText string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, fmt.Errorf("%w: not PEM encoded", types.ErrKeyFormat)
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrKeyFormat, err)
		}
		return priv, nil
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrKeyFormat, err)
		}
		priv, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an RSA private key", types.ErrKeyFormat)
		}
		return priv, nil
	}
	return nil, fmt.Errorf("%w: unexpected PEM block type %q", types.ErrKeyFormat, block.Type)
}

func hexSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashHex returns the hex SHA-256 digest of data.
func HashHex(data []byte) string {
	return hexSHA256(data)
}
