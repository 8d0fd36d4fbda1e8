// Package registry is the thin HTTP client to the remote node directory:
// login, node registration, and peer record fetches. The directory is an
// opaque collaborator; nothing else in the node depends on its shape.
package registry
