package tcpline

import (
	"context"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// Future represents the eventual result of one exchange submitted through
// an AsyncConn.
type Future struct {
	id   uint64
	done chan struct{}
	data []byte
	err  error
}

// Done returns a channel closed when the exchange completes.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Resolved reports whether the exchange already completed.
func (f *Future) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the exchange completes or ctx is done, then returns the
// exchange result. The underlying exchange keeps running if ctx expires
// first; Wait may be called again.
func (f *Future) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-f.done:
		return f.data, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// MustResult returns the result of a resolved future. It panics when the
// exchange has not completed yet; use it only with resolve-futures mode or
// after Done is closed.
func (f *Future) MustResult() ([]byte, error) {
	if !f.Resolved() {
		panic("tcpline: future not resolved")
	}

	return f.data, f.err
}

// AsyncConn exposes a Conn under a future-returning calling convention.
//
// Each call submits one exchange and returns immediately with a Future.
// Exchanges still serialize on the wrapped Conn's one-slot semaphore, so
// futures resolve with the same atomicity guarantee as blocking calls, in
// some serial order. In-flight futures are tracked so Pending can report
// outstanding work.
//
// With resolve-futures mode enabled the exchange completes before the call
// returns and the returned Future is already resolved — the convention of
// choice for callers that want adapter-shaped code without concurrency.
type AsyncConn struct {
	conn    *Conn
	resolve bool

	nextID  atomic.Uint64
	pending *xsync.MapOf[uint64, *Future]
}

// AsyncOption configures an AsyncConn.
type AsyncOption func(*AsyncConn)

// WithResolveFutures controls whether calls return already-resolved futures
// (true) or futures resolved by a background goroutine (false, the default).
func WithResolveFutures(resolve bool) AsyncOption {
	return func(a *AsyncConn) {
		a.resolve = resolve
	}
}

// NewAsyncConn wraps conn in the future-returning calling convention.
func NewAsyncConn(conn *Conn, opts ...AsyncOption) *AsyncConn {
	a := &AsyncConn{
		conn:    conn,
		pending: xsync.NewMapOf[uint64, *Future](),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Conn returns the wrapped connection.
func (a *AsyncConn) Conn() *Conn {
	return a.conn
}

// Pending returns the number of exchanges submitted but not yet resolved.
func (a *AsyncConn) Pending() int {
	return a.pending.Size()
}

// Open eagerly establishes the transport.
func (a *AsyncConn) Open() *Future {
	return a.submit(func(ctx context.Context) ([]byte, error) {
		return nil, a.conn.Open(ctx)
	})
}

// Write sends data and performs no read.
func (a *AsyncConn) Write(data []byte) *Future {
	return a.submit(func(ctx context.Context) ([]byte, error) {
		return nil, a.conn.Write(ctx, data)
	})
}

// Read performs a read-only exchange governed by policy.
func (a *AsyncConn) Read(policy ReadPolicy) *Future {
	return a.submit(func(ctx context.Context) ([]byte, error) {
		return a.conn.Read(ctx, policy)
	})
}

// ReadLine reads one default-EOL line.
func (a *AsyncConn) ReadLine() *Future {
	return a.submit(func(ctx context.Context) ([]byte, error) {
		return a.conn.ReadLine(ctx)
	})
}

// WriteRead writes data then reads per policy, atomically.
func (a *AsyncConn) WriteRead(data []byte, policy ReadPolicy) *Future {
	return a.submit(func(ctx context.Context) ([]byte, error) {
		return a.conn.WriteRead(ctx, data, policy)
	})
}

// WriteReadLine writes data and reads one default-EOL line, atomically.
func (a *AsyncConn) WriteReadLine(data []byte) *Future {
	return a.submit(func(ctx context.Context) ([]byte, error) {
		return a.conn.WriteReadLine(ctx, data)
	})
}

func (a *AsyncConn) submit(op func(context.Context) ([]byte, error)) *Future {
	f := &Future{
		id:   a.nextID.Add(1),
		done: make(chan struct{}),
	}
	a.pending.Store(f.id, f)

	if a.resolve {
		a.complete(f, op)

		return f
	}

	go a.complete(f, op)

	return f
}

func (a *AsyncConn) complete(f *Future, op func(context.Context) ([]byte, error)) {
	f.data, f.err = op(context.Background())
	a.pending.Delete(f.id)
	close(f.done)
}
