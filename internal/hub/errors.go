package hub

import "errors"

var (
	// ErrPeerUnreachable means the target has no live session. Ordinary
	// message and typing delivery treats this as a silent skip; call
	// initiation reports it to the caller.
	ErrPeerUnreachable = errors.New("peer unreachable")

	// ErrConnClosed is returned by a connection handle whose session has
	// been invalidated while a delivery was in flight.
	ErrConnClosed = errors.New("connection closed")

	// ErrBackpressure means the peer's send buffer is full; the event is
	// dropped rather than blocking the registry or other deliveries.
	ErrBackpressure = errors.New("backpressure")
)
