/*
Package crypto provides the node's cryptographic primitives: RSA keypair
generation, per-layer symmetric session keys, and the hybrid envelope used
by the onion chain (an authenticated AES token whose session key travels
RSA-OAEP wrapped, plus a SHA-256 integrity digest of the plaintext).
*/
package crypto
