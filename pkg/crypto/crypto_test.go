package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxanet/netnode/pkg/types"
)

func TestGenerateKeypair(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)

	assert.NotEmpty(t, kp.KeyID)
	assert.Contains(t, kp.PublicKey, "RSA PUBLIC KEY")
	assert.Contains(t, kp.PrivateKey, "RSA PRIVATE KEY")
	assert.Len(t, kp.PublicKeyHash, 64)
	assert.Len(t, kp.PrivateKeyHash, 64)
	assert.True(t, kp.VerifyHashes())

	// Both halves must parse back
	pub, err := ParsePublicKey(kp.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, 2048, pub.N.BitLen())

	_, err = ParsePrivateKey(kp.PrivateKey)
	require.NoError(t, err)
}

func TestKeypairHashMismatch(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)

	kp.PublicKeyHash = "0000"
	assert.False(t, kp.VerifyHashes())
}

func TestParseKeyErrors(t *testing.T) {
	_, err := ParsePublicKey("not a key")
	assert.ErrorIs(t, err, types.ErrKeyFormat)

	_, err = ParsePrivateKey("-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----")
	assert.ErrorIs(t, err, types.ErrKeyFormat)
}

func TestHybridEnvelopeRoundTrip(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)

	ciphertext, wrappedKey, err := Encrypt("hello onion", kp.PublicKey)
	require.NoError(t, err)
	assert.NotEmpty(t, ciphertext)
	assert.NotEmpty(t, wrappedKey)

	plaintext, err := Decrypt(ciphertext, kp.PrivateKey, wrappedKey)
	require.NoError(t, err)
	assert.Equal(t, "hello onion", plaintext)
}

func TestEncryptWithHash(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)

	ciphertext, hashHex, wrappedKey, err := EncryptWithHash("hello onion", kp.PublicKey)
	require.NoError(t, err)

	// Known digest of "hello"
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", HashHex([]byte("hello")))
	assert.Equal(t, HashHex([]byte("hello onion")), hashHex)

	plaintext, err := Decrypt(ciphertext, kp.PrivateKey, wrappedKey)
	require.NoError(t, err)
	assert.Equal(t, hashHex, HashHex([]byte(plaintext)))
}

func TestDecryptTamperedToken(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)

	ciphertext, wrappedKey, err := Encrypt("sensitive payload", kp.PublicKey)
	require.NoError(t, err)

	tampered := make([]byte, len(ciphertext))
	copy(tampered, ciphertext)
	tampered[len(tampered)/2] ^= 0x01

	_, err = Decrypt(tampered, kp.PrivateKey, wrappedKey)
	assert.ErrorIs(t, err, types.ErrIntegrity)
}

func TestDecryptWrongKey(t *testing.T) {
	kp1, err := GenerateKeypair()
	require.NoError(t, err)
	kp2, err := GenerateKeypair()
	require.NoError(t, err)

	ciphertext, wrappedKey, err := Encrypt("for kp1 only", kp1.PublicKey)
	require.NoError(t, err)

	_, err = Decrypt(ciphertext, kp2.PrivateKey, wrappedKey)
	assert.ErrorIs(t, err, types.ErrIntegrity)
}

func TestSessionKeyForm(t *testing.T) {
	key, err := GenerateSessionKey()
	require.NoError(t, err)

	raw, err := decodeSessionKey(key)
	require.NoError(t, err)
	assert.Len(t, raw, 32)

	// Two keys must differ
	other, err := GenerateSessionKey()
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestSealOpenTokenUnicode(t *testing.T) {
	key, err := GenerateSessionKey()
	require.NoError(t, err)
	raw, err := decodeSessionKey(key)
	require.NoError(t, err)

	for _, msg := range []string{"", "a", "héllo wörld", "exactly16bytes!!"} {
		token, err := sealToken(raw, []byte(msg))
		require.NoError(t, err)
		out, err := openToken(raw, token)
		require.NoError(t, err)
		assert.Equal(t, msg, string(out))
	}
}
