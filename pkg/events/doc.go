// Package events is the node's event bus: typed lifecycle, peer, record,
// and transport events fanned out to subscribers, optionally filtered by
// event type. Subscribers with full buffers lose events rather than
// blocking publishers.
package events
