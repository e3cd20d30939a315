// Package transport defines the external collaborator boundary: a
// Transport interface the core depends on, with three logical channels
// (ReliableOrdered, Unreliable; UnreliableOrdered is reserved but
// unused by any current message kind). Swappable implementations live
// in subpackages (see kcptransport).
package transport

import (
	"context"
	"net"
)

// Channel names one of the transport's three logical delivery channels.
type Channel uint8

const (
	ReliableOrdered Channel = iota
	Unreliable
	UnreliableOrdered // reserved, currently unused by any message kind
)

// Handle is the opaque, per-peer connection the core sends/receives
// through. It is deliberately thin: retry/ack bookkeeping for
// ReliableOrdered is the implementation's concern, invisible to core
// logic.
type Handle interface {
	// Send queues data on channel for delivery to the peer.
	Send(channel Channel, data []byte) error
	// Receive blocks until a frame arrives on any channel, or ctx is
	// cancelled. The returned channel tags which logical channel the
	// frame arrived on.
	Receive(ctx context.Context) (Channel, []byte, error)
	// RemoteAddr returns the peer's network address, used by
	// internal/admission to bind connect tokens to an endpoint.
	RemoteAddr() net.Addr
	// Close tears down the handle.
	Close() error
}

// Listener accepts incoming peer connections, each yielding a Handle.
type Listener interface {
	Accept(ctx context.Context) (Handle, error)
	Close() error
}

// Dialer opens an outgoing connection to a remote address.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Handle, error)
}
