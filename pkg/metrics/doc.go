// Package metrics defines the node's Prometheus collectors and the
// /metrics handler served by the admin API.
package metrics
