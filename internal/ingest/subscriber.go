// Package ingest carries sensor telemetry from the broker into the
// occupancy engine.
package ingest

import (
	"context"
	"time"
)

// Handler receives one raw message. It must not block for long; the
// transport delivers messages for a client in order.
type Handler func(topic string, payload []byte, receivedAt time.Time)

// Subscriber is a source of raw telemetry messages.
type Subscriber interface {
	// Start connects and begins delivering messages to h. A broker that is
	// unreachable at startup is retried in the background.
	Start(ctx context.Context, h Handler) error
	// Stop disconnects. It is best-effort and returns promptly.
	Stop()
	// IsConnected reports whether the broker connection is currently up.
	IsConnected() bool
}
