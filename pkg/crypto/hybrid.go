package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"

	"github.com/voxanet/netnode/pkg/types"
)

// Encrypt encrypts a UTF-8 message for the holder of the given RSA public
// key. A fresh session key seals the message into an authenticated token;
// the session key itself travels RSA-OAEP wrapped. Both byte slices are
// emitted for transit.
func Encrypt(message string, publicKeyPEM string) (ciphertext, wrappedKey []byte, err error) {
	pub, err := ParsePublicKey(publicKeyPEM)
	if err != nil {
		return nil, nil, err
	}

	sessionKey, err := GenerateSessionKey()
	if err != nil {
		return nil, nil, err
	}
	rawKey, err := decodeSessionKey(sessionKey)
	if err != nil {
		return nil, nil, err
	}

	ciphertext, err = sealToken(rawKey, []byte(message))
	if err != nil {
		return nil, nil, err
	}

	// The base64 form of the key is what crosses the wire, so that is
	// what gets wrapped.
	wrappedKey, err = rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, []byte(sessionKey), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to wrap session key: %w", err)
	}
	return ciphertext, wrappedKey, nil
}

// EncryptWithHash encrypts like Encrypt and additionally returns the hex
// SHA-256 digest of the original message, verified at the terminal hop.
func EncryptWithHash(message string, publicKeyPEM string) (ciphertext []byte, hashHex string, wrappedKey []byte, err error) {
	ciphertext, wrappedKey, err = Encrypt(message, publicKeyPEM)
	if err != nil {
		return nil, "", nil, err
	}
	return ciphertext, hexSHA256([]byte(message)), wrappedKey, nil
}

// Decrypt is the inverse of Encrypt: unwrap the session key with the RSA
// private key, then open the authenticated token.
func Decrypt(ciphertext []byte, privateKeyPEM string, wrappedKey []byte) (string, error) {
	priv, err := ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return "", err
	}

	sessionKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrappedKey, nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to unwrap session key: %v", types.ErrIntegrity, err)
	}
	rawKey, err := decodeSessionKey(string(sessionKey))
	if err != nil {
		return "", err
	}

	plaintext, err := openToken(rawKey, ciphertext)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
