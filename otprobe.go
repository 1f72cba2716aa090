// Package otprobe defines the contracts shared by the probe and its
// WebSocket transport.
package otprobe

import (
	"context"
)

// Handler receives connection events, one at a time, in the order the
// transport observes them.
type Handler interface {
	// OnOpened is called once the handshake has completed.
	OnOpened()
	// OnClosed is called once when the connection closes, with the close
	// code and reason reported by the peer.
	OnClosed(code int, reason string)
	// OnMessage is called for every inbound text message.
	OnMessage(payload []byte)
}

// Transport is a single-use message connection.
type Transport interface {
	Connect(ctx context.Context) error
	SendText(p []byte) error
	Close() error
	// Done is closed when the connection has fully shut down.
	Done() <-chan struct{}
}
