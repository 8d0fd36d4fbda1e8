package types

import "errors"

// Shared error kinds. Boundary layers map these onto HTTP status codes;
// the transport and handlers check them with errors.Is.
var (
	// ErrValidation indicates a malformed schema or request body (422 at the API).
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a requested id is absent (404 at the API).
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a duplicate id on create (409 at the API).
	ErrConflict = errors.New("already exists")

	// ErrIntegrity indicates a hash or MAC mismatch on a decrypted layer.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrTransport indicates a socket I/O failure on send.
	ErrTransport = errors.New("transport failure")

	// ErrTimeout indicates a request/response wait exceeded its deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrNoRelaysAvailable indicates an empty relay list when a routing map is required.
	ErrNoRelaysAvailable = errors.New("no relays available")

	// ErrShutdown indicates a waiter was cancelled by node stop.
	ErrShutdown = errors.New("node shutting down")

	// ErrConfig indicates missing or malformed configuration at startup.
	ErrConfig = errors.New("invalid configuration")

	// ErrKeyFormat indicates an unparseable PEM key.
	ErrKeyFormat = errors.New("invalid key format")

	// ErrSizeExceeded indicates a plaintext beyond the symmetric chunk bound.
	ErrSizeExceeded = errors.New("plaintext size exceeded")

	// ErrProtocolUnsupported indicates a request protocol that is declared but not implemented.
	ErrProtocolUnsupported = errors.New("protocol not supported")
)
