/*
Package ssu implements the node's UDP transport.

A Node owns exactly one socket and acts as both listener and sender for
every packet type. Inbound datagrams flow through a bounded queue into a
worker pool: fragments are reassembled (order-agnostic, 30-second
eviction), correlation tags route responses to suspended callers, and
everything else is upgraded to its typed variant and dispatched to the
hook bound for its header.

The receive loop never blocks on a handler and never dies on one: slow
handlers occupy pool workers, handler panics are recovered and logged,
and socket read errors only terminate the loop at shutdown. Send-side
errors are the caller's to handle.

Request/response correlation tags the outer body with the request id; a
reply carries the same id back and wakes the single matching waiter.
Waiters observe a timeout, a context cancellation, or the shutdown signal
when the node stops.
*/
package ssu
