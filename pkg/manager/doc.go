/*
Package manager implements the net manager: the single process-wide hub
that owns the SSU node, DNS overlay, propagation engine, peer lists, and
local keypair.

Lifecycle: new -> setup UPnP (best effort) -> start SSU node -> bind
handlers -> setup p2p (best effort) -> serve. UPnP failures log a manual
port-forwarding hint and continue, which is the normal path inside
containers; the p2p step probes the configured bootstrap peers over the
control channel and needs the bound socket, so it runs right after the
transport comes up. The manager is built by explicit construction and
injected into the API layer; tests instantiate isolated managers against
temp directories.
*/
package manager
