package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/voxanet/netnode/pkg/types"
)

// Symmetric envelope: AES-128-CBC + HMAC-SHA256 in an encrypt-then-MAC
// token. The layout matches the widely deployed fernet format (version
// byte 0x80, big-endian timestamp, IV, ciphertext, MAC) so layers can be
// verified by other directory implementations.
const (
	sessionKeySize = 32
	fernetVersion  = 0x80

	// tokens beyond this plaintext bound are rejected rather than chunked
	maxPlaintextSize = 8 << 20
)

func splitSessionKey(key []byte) (signingKey, encryptionKey []byte, err error) {
	if len(key) != sessionKeySize {
		return nil, nil, fmt.Errorf("%w: session key must be %d bytes, got %d", types.ErrKeyFormat, sessionKeySize, len(key))
	}
	return key[:16], key[16:], nil
}

func decodeSessionKey(encoded string) ([]byte, error) {
	key, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: session key is not URL-safe base64: %v", types.ErrKeyFormat, err)
	}
	return key, nil
}

// sealToken encrypts plaintext under the 32-byte session key and returns
// the base64url token.
func sealToken(key, plaintext []byte) ([]byte, error) {
	if len(plaintext) > maxPlaintextSize {
		return nil, fmt.Errorf("%w: %d bytes over the %d byte bound", types.ErrSizeExceeded, len(plaintext), maxPlaintextSize)
	}
	signingKey, encryptionKey, err := splitSessionKey(key)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	token := make([]byte, 0, 1+8+aes.BlockSize+len(ciphertext)+sha256.Size)
	token = append(token, fernetVersion)
	token = binary.BigEndian.AppendUint64(token, uint64(time.Now().Unix()))
	token = append(token, iv...)
	token = append(token, ciphertext...)

	mac := hmac.New(sha256.New, signingKey)
	mac.Write(token)
	token = mac.Sum(token)

	encoded := make([]byte, base64.URLEncoding.EncodedLen(len(token)))
	base64.URLEncoding.Encode(encoded, token)
	return encoded, nil
}

// openToken authenticates and decrypts a token produced by sealToken.
func openToken(key, encoded []byte) ([]byte, error) {
	signingKey, encryptionKey, err := splitSessionKey(key)
	if err != nil {
		return nil, err
	}

	token := make([]byte, base64.URLEncoding.DecodedLen(len(encoded)))
	n, err := base64.URLEncoding.Decode(token, encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: token is not URL-safe base64", types.ErrIntegrity)
	}
	token = token[:n]

	if len(token) < 1+8+aes.BlockSize+sha256.Size {
		return nil, fmt.Errorf("%w: token too short", types.ErrIntegrity)
	}
	if token[0] != fernetVersion {
		return nil, fmt.Errorf("%w: unexpected token version 0x%02x", types.ErrIntegrity, token[0])
	}

	body, tag := token[:len(token)-sha256.Size], token[len(token)-sha256.Size:]
	mac := hmac.New(sha256.New, signingKey)
	mac.Write(body)
	if !hmac.Equal(tag, mac.Sum(nil)) {
		return nil, fmt.Errorf("%w: MAC mismatch", types.ErrIntegrity)
	}

	iv := body[1+8 : 1+8+aes.BlockSize]
	ciphertext := body[1+8+aes.BlockSize:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext not block aligned", types.ErrIntegrity)
	}

	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrIntegrity, err)
	}
	return unpadded, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, fmt.Errorf("invalid padding byte %d", padding)
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-padding], nil
}
