/*
Package routing builds and consumes onion chains over the relay set.

A routing map is a singly-linked chain of hops produced by shuffling the
local relay records and truncating to the configured size. The chain
builder layers the request payload inside-out: each hop's plaintext is
the serialized descriptor of the layer within, sealed under that hop's
RSA-wrapped session key with a SHA-256 digest for verification. The
forwarder is the receiving half: unwrap the layer addressed to this
relay, pass the contained descriptor on, and at the exit hop deliver the
payload to its target, streaming the reply back along the reverse chain
through request correlation.
*/
package routing
