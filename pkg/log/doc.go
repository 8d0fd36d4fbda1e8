// Package log owns the process-wide structured logger. Components derive
// child loggers with WithComponent; WithNodeID, WithRelayID, and
// WithRequestID tag the entity ids that cross component boundaries.
package log
