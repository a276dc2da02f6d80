// Package tcpline provides a client-side TCP connection abstraction for
// request/reply and line-streaming communication with long-lived network
// instruments, such as lab equipment speaking ASCII command protocols.
//
// The central type is [Conn], a logical connection to one endpoint that
// survives link failures transparently: when the transport drops, the next
// operation reconnects automatically instead of forcing the caller to
// rebuild the connection object. No protocol semantics are imposed beyond
// raw byte pass-through and configurable end-of-line framing.
//
// # Atomic exchanges
//
// Every operation on a Conn is one atomic exchange: an optional write
// followed by a read governed by a [ReadPolicy]. A one-slot serialization
// primitive admits exactly one in-flight exchange per Conn, so concurrent
// callers never observe interleaved bytes from two exchanges in one reply.
//
// # Calling conventions
//
// The same engine is consumable from three concurrency styles:
//
//   - blocking: call Conn methods with context.Background(); the calling
//     goroutine blocks until the exchange completes.
//   - future-returning: wrap the Conn in an [AsyncConn]; each call returns
//     a [Future] that resolves when the exchange completes.
//   - cooperative: pass a real context.Context; waiting for the exchange
//     slot and dialing honor cancellation. In-flight transport I/O runs to
//     completion — the core contract has no deadlines.
//
// # Reconnection
//
// The baseline policy is exactly one inline connect attempt per failed
// operation: a connect failure is surfaced to the caller that triggered it,
// and the next call tries again. There is no backoff and no retry cap
// unless an explicit retry policy is configured with [WithConnectRetry].
// Closing a Conn is terminal: no further reconnection is attempted and all
// subsequent operations fail with [ErrClosed].
package tcpline
