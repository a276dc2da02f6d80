package tcpline

import "errors"

var (
	// ErrConnFailed indicates that a transport to the endpoint could not be
	// established, on either the initial connect or a reconnect attempt.
	ErrConnFailed = errors.New("tcpline: connection failed")

	// ErrTransportClosed indicates that the peer closed the connection
	// cleanly. It is distinct from ErrIOFailure so callers can tell a
	// graceful EOF apart from a transport error.
	ErrTransportClosed = errors.New("tcpline: transport closed by peer")

	// ErrIOFailure indicates a read or write error on an established transport.
	ErrIOFailure = errors.New("tcpline: i/o failure")
)

var (
	// ErrClosed indicates that an operation was attempted on a connection
	// that was closed by the user. Closed is terminal: the connection never
	// reconnects afterwards.
	ErrClosed = errors.New("tcpline: connection closed")

	// ErrAlreadyConnected is returned by Open when the connection is
	// already established. Close it first to force a fresh transport.
	ErrAlreadyConnected = errors.New("tcpline: already connected")

	// ErrEmptyEOL indicates that an empty end-of-line marker was provided.
	ErrEmptyEOL = errors.New("tcpline: EOL marker must not be empty")
)
