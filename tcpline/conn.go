package tcpline

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/linekit/go-tcpline/internal/pool"
	"github.com/linekit/go-tcpline/logger"
)

// Conn is a logical connection to one TCP endpoint.
//
// A Conn lives for as long as the caller holds it: when the transport drops,
// the next operation reconnects automatically (unless auto-reconnect is
// disabled or the Conn was closed). The generation counter distinguishes
// successive physical connections behind the one logical Conn.
//
// All methods are safe for concurrent use. Operations serialize on a
// one-slot semaphore, so each write/read exchange is atomic with respect to
// every other caller, regardless of calling convention.
type Conn struct {
	cfg    *ConnectionConfig
	logger logger.Logger

	// sem is the serialization primitive: a one-slot channel semaphore
	// admitting exactly one in-flight exchange. A channel rather than a
	// mutex so acquisition can be abandoned on context cancellation.
	sem chan struct{}

	// connMutex guards the transport handle against concurrent access from
	// Close, which deliberately does not take the exchange slot (an
	// in-flight read would hold it indefinitely; closing the transport is
	// what unblocks it).
	connMutex sync.RWMutex
	tcpConn   net.Conn

	state      atomicConnState
	generation atomic.Uint64

	// buf and chunk are only touched inside the exchange critical section.
	buf   *lineBuffer
	chunk []byte

	metrics *ConnectionMetrics
}

// NewConn creates a connection for the endpoint described by cfg.
//
// No I/O happens here: the transport is established lazily by the first
// operation, or eagerly via Open.
func NewConn(cfg *ConnectionConfig) (*Conn, error) {
	if cfg == nil {
		return nil, errors.New("tcpline: connection config is nil")
	}

	c := &Conn{
		cfg:     cfg,
		logger:  cfg.logger.With("addr", cfg.Addr()),
		sem:     make(chan struct{}, 1),
		buf:     newLineBuffer(),
		chunk:   make([]byte, cfg.chunkSize),
		metrics: newConnectionMetrics(),
	}
	c.state.Set(IdleState)

	return c, nil
}

// Open eagerly establishes the transport.
//
// It fails with ErrAlreadyConnected if the transport is already up and with
// ErrClosed after Close. Open is never required: any operation connects
// lazily when auto-reconnect is enabled.
func (c *Conn) Open(ctx context.Context) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	switch c.state.Get() {
	case ClosedState:
		return ErrClosed
	case ConnectedState:
		return ErrAlreadyConnected
	default:
		return c.connect(ctx)
	}
}

// Close releases the transport and transitions the connection to the
// terminal Closed state. Any operation attempted afterwards fails with
// ErrClosed; the connection never reconnects.
//
// Close may be called while an exchange is in flight: closing the transport
// unblocks it and the exchange fails with ErrClosed.
func (c *Conn) Close() error {
	prev := c.state.Get()
	if prev == ClosedState {
		return nil
	}

	c.state.Set(ClosedState)
	c.dropTransport()

	// Reclaim the line buffer only when no exchange is in flight; an
	// in-flight exchange still reads from it until the transport close
	// propagates.
	select {
	case c.sem <- struct{}{}:
		c.buf.release()
		<-c.sem
	default:
	}

	c.logger.Debug("connection closed by user", "prev_state", prev.String())

	return nil
}

// Connected returns true if the transport is currently established.
func (c *Conn) Connected() bool {
	return c.state.Get().IsConnected()
}

// State returns the current lifecycle state.
func (c *Conn) State() ConnState {
	return c.state.Get()
}

// Generation returns the number of successful transport establishments over
// the lifetime of this Conn. It increases strictly across reconnects, so a
// caller can detect that "connected now" refers to a different physical
// connection than before.
func (c *Conn) Generation() uint64 {
	return c.generation.Load()
}

// InWaiting returns the number of received bytes buffered but not yet
// consumed by a read.
func (c *Conn) InWaiting() int {
	return c.buf.len()
}

// GetLogger returns the logger associated with the connection.
func (c *Conn) GetLogger() logger.Logger {
	return c.logger
}

// GetMetrics returns the metrics associated with the connection.
func (c *Conn) GetMetrics() *ConnectionMetrics {
	return c.metrics
}

// --- Serialization primitive ---

// acquire claims the exchange slot, waiting until it is free or ctx is done.
func (c *Conn) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conn) release() {
	<-c.sem
}

// --- Transport lifecycle (callers hold the exchange slot) ---

// ensureConnected drives the state machine to Connected, performing at most
// one connect sequence. A Disconnected or Idle connection is dialed inline;
// a failure is surfaced to this caller, and the next call tries again.
func (c *Conn) ensureConnected(ctx context.Context) error {
	switch st := c.state.Get(); st {
	case ConnectedState:
		return nil
	case ClosedState:
		return ErrClosed
	default:
		if !c.cfg.autoReconnect {
			return fmt.Errorf("%w: not connected and auto-reconnect is disabled", ErrConnFailed)
		}

		return c.connect(ctx)
	}
}

// connect establishes the transport, bumps the generation counter and runs
// the on-connection-made callback.
//
// The caller holds the exchange slot, so the only concurrent state mutator
// is Close. Every transition is a compare-and-swap: a lost swap means the
// user closed the connection mid-connect, and Closed stays terminal.
func (c *Conn) connect(ctx context.Context) error {
	st := c.state.Get()
	if st.IsClosed() || !c.state.CompareAndSwap(st, ConnectingState) {
		return ErrClosed
	}

	conn, err := c.dial(ctx)
	if err != nil {
		c.metrics.ErrCount.Add(1)

		if !c.state.CompareAndSwap(ConnectingState, DisconnectedState) {
			return ErrClosed
		}

		return fmt.Errorf("%w: %v", ErrConnFailed, err)
	}

	c.setTransport(conn)

	// A Close racing the dial already stored ClosedState and may have missed
	// the fresh handle; losing the swap tears the transport down instead of
	// resurrecting the connection.
	if !c.state.CompareAndSwap(ConnectingState, ConnectedState) {
		c.dropTransport()

		return ErrClosed
	}

	gen := c.generation.Add(1)
	c.metrics.ConnectCount.Add(1)

	c.logger.Debug("connected",
		"generation", gen,
		"localAddr", conn.LocalAddr().String())

	c.runCallback("on_connection_made", c.cfg.onConnectionMade)

	return nil
}

// dial performs the TCP dial, applying the configured retry policy when one
// is set. Without a policy it makes exactly one attempt.
func (c *Conn) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{KeepAlive: -1}
	if c.cfg.keepAlive > 0 {
		dialer.KeepAlive = c.cfg.keepAlive
	}

	attempts := 1

	var schedule *backoff.Backoff
	if c.cfg.retry != nil {
		attempts = c.cfg.retry.attempts
		schedule = &backoff.Backoff{
			Min:    c.cfg.retry.minDelay,
			Max:    c.cfg.retry.maxDelay,
			Factor: c.cfg.retry.factor,
			Jitter: c.cfg.retry.jitter,
		}
	}

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			c.metrics.ConnRetryGauge.Add(1)

			if err := c.waitRetryDelay(ctx, schedule.Duration()); err != nil {
				return nil, err
			}
		}

		conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Addr())
		if err == nil {
			c.configureSocket(conn)
			c.metrics.ConnRetryGauge.Store(0)

			return conn, nil
		}

		lastErr = err
		c.logger.Debug("dial failed", "attempt", attempt, "error", err)
	}

	return nil, lastErr
}

func (c *Conn) waitRetryDelay(ctx context.Context, delay time.Duration) error {
	timer := pool.GetTimer(delay)
	defer pool.PutTimer(timer)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// configureSocket applies the transport options before any data is
// exchanged: no-delay, type-of-service and keep-alive (the latter is set by
// the dialer). Option failures are logged, not fatal; some stacks reject
// TOS on unprivileged sockets.
func (c *Conn) configureSocket(conn net.Conn) {
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}

	if err := tcp.SetNoDelay(c.cfg.noDelay); err != nil {
		c.logger.Warn("failed to set TCP_NODELAY", "error", err)
	}

	if err := setTOS(conn, c.cfg.tos); err != nil {
		c.logger.Warn("failed to set type-of-service", "tos", c.cfg.tos, "error", err)
	}
}

// setTOS applies the IPv4 type-of-service octet, falling back to the IPv6
// traffic class for v6 sockets.
func setTOS(conn net.Conn, tos int) error {
	if err := ipv4.NewConn(conn).SetTOS(tos); err == nil {
		return nil
	}

	return ipv6.NewConn(conn).SetTrafficClass(tos)
}

// setTransport installs the transport handle.
func (c *Conn) setTransport(conn net.Conn) {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	c.tcpConn = conn
}

// transport returns the current transport handle, or nil when disconnected.
func (c *Conn) transport() net.Conn {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()

	return c.tcpConn
}

// dropTransport closes and clears the transport handle. Safe to call from
// any state; subsequent calls are no-ops.
func (c *Conn) dropTransport() {
	c.connMutex.Lock()
	conn := c.tcpConn
	c.tcpConn = nil
	c.connMutex.Unlock()

	if conn == nil {
		return
	}

	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		c.logger.Error("failed to close transport", "error", err)
	}
}

// failIO transitions to Disconnected after a read/write error and runs the
// on-connection-lost callback. When the error was caused by a user Close
// racing the exchange, it reports ErrClosed instead.
func (c *Conn) failIO(op string, cause error) error {
	c.dropTransport()

	// Losing the swap means Close stored ClosedState while the I/O was in
	// flight; the closed condition wins and no loss callback fires.
	if !c.state.CompareAndSwap(ConnectedState, DisconnectedState) {
		return ErrClosed
	}

	c.logger.Debug("connection lost", "op", op, "error", cause)
	c.metrics.ErrCount.Add(1)

	c.runCallback("on_connection_lost", c.cfg.onConnectionLost)

	return fmt.Errorf("%w: %s: %v", ErrIOFailure, op, cause)
}

// failEOF transitions to Disconnected after a clean peer close and runs the
// on-eof-received callback.
func (c *Conn) failEOF() error {
	c.dropTransport()

	if !c.state.CompareAndSwap(ConnectedState, DisconnectedState) {
		return ErrClosed
	}

	c.logger.Debug("eof received")

	c.runCallback("on_eof_received", c.cfg.onEOFReceived)

	return ErrTransportClosed
}

// runCallback invokes a single-slot lifecycle callback. Callback panics are
// reported but never abort the state transition that triggered them.
func (c *Conn) runCallback(name string, cb Callback) {
	if cb == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("lifecycle callback panicked", "callback", name, "panic", r)
		}
	}()

	cb(c)
}
