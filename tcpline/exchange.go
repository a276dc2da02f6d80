package tcpline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

type readKind uint8

const (
	readNone readKind = iota
	readUntilEOL
	readExact
	readUntilEOF
)

// ReadPolicy describes how an exchange reads its reply.
type ReadPolicy struct {
	kind readKind
	eol  []byte
	n    int
}

// ReadNone performs no read: the exchange is write-only (or, with no write
// either, a connect-only no-op).
func ReadNone() ReadPolicy {
	return ReadPolicy{kind: readNone}
}

// ReadUntilEOL reads until a complete eol-terminated line is buffered and
// returns the line without the marker. A nil eol uses the connection's
// default marker.
func ReadUntilEOL(eol []byte) ReadPolicy {
	return ReadPolicy{kind: readUntilEOL, eol: eol}
}

// ReadExact reads until at least n bytes are buffered and returns exactly n;
// surplus bytes stay buffered for the next read.
func ReadExact(n int) ReadPolicy {
	return ReadPolicy{kind: readExact, n: n}
}

// ReadUntilEOF reads until the peer closes the connection and returns all
// accumulated bytes. The clean close still triggers the on-eof-received
// callback and leaves the connection Disconnected.
func ReadUntilEOF() ReadPolicy {
	return ReadPolicy{kind: readUntilEOF}
}

func (p ReadPolicy) String() string {
	switch p.kind {
	case readNone:
		return "none"
	case readUntilEOL:
		return fmt.Sprintf("until_eol(%q)", p.eol)
	case readExact:
		return fmt.Sprintf("exact(%d)", p.n)
	case readUntilEOF:
		return "until_eof"
	default:
		return "unknown"
	}
}

// exchange is the atomic write-then-read operation every public call funnels
// through.
//
// It claims the exchange slot for the whole call, ensures the transport is
// up (one connect sequence at most), writes data fully when non-nil, then
// reads per policy. The slot is released before returning, on success and
// on error alike. A nil data with ReadNone is the eager-connect no-op; a
// zero-length non-nil data is a legal empty write.
func (c *Conn) exchange(ctx context.Context, data []byte, policy ReadPolicy) ([]byte, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	c.metrics.exchanges.Add(1)

	if data != nil {
		if err := c.writeAll(data); err != nil {
			return nil, err
		}
	}

	return c.readPolicy(policy)
}

// exchangeLines is the multi-line variant backing WriteReadLines and
// ReadLines: one optional write followed by n line reads, all inside a
// single critical section.
func (c *Conn) exchangeLines(ctx context.Context, data []byte, n int, eol []byte) ([][]byte, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	c.metrics.exchanges.Add(1)

	if data != nil {
		if err := c.writeAll(data); err != nil {
			return nil, err
		}
	}

	if len(eol) == 0 {
		eol = c.cfg.eol
	}

	lines := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		line, err := c.readLineLocked(eol)
		if err != nil {
			return lines, err
		}

		lines = append(lines, line)
	}

	return lines, nil
}

// --- Transport I/O (callers hold the exchange slot) ---

// writeAll writes data fully, looping on short writes. A write error drops
// the transport; the engine does not retry the write after reconnecting —
// the caller's next call would.
func (c *Conn) writeAll(data []byte) error {
	conn := c.transport()
	if conn == nil {
		return c.failIO("write", errors.New("transport gone"))
	}

	for written := 0; written < len(data); {
		n, err := conn.Write(data[written:])
		written += n

		if err != nil {
			return c.failIO("write", err)
		}
	}

	c.metrics.bytesSent.Add(int64(len(data)))

	return nil
}

// fill performs one transport receive into the line buffer.
//
// Data received alongside an error is buffered before the error is
// surfaced. A clean peer close maps to ErrTransportClosed, anything else to
// ErrIOFailure.
func (c *Conn) fill() error {
	conn := c.transport()
	if conn == nil {
		return c.failIO("read", errors.New("transport gone"))
	}

	n, err := conn.Read(c.chunk)
	if n > 0 {
		c.buf.feed(c.chunk[:n])
		c.metrics.bytesRecv.Add(int64(n))
	}

	if err != nil {
		if errors.Is(err, io.EOF) {
			return c.failEOF()
		}

		return c.failIO("read", err)
	}

	return nil
}

func (c *Conn) readPolicy(policy ReadPolicy) ([]byte, error) {
	switch policy.kind {
	case readNone:
		return nil, nil
	case readUntilEOL:
		eol := policy.eol
		if len(eol) == 0 {
			eol = c.cfg.eol
		}

		return c.readLineLocked(eol)
	case readExact:
		return c.readExactLocked(policy.n)
	case readUntilEOF:
		return c.readAllLocked()
	default:
		return nil, fmt.Errorf("tcpline: unknown read policy %d", policy.kind)
	}
}

func (c *Conn) readLineLocked(eol []byte) ([]byte, error) {
	if len(eol) == 0 {
		return nil, ErrEmptyEOL
	}

	for {
		if line, ok := c.buf.takeLine(eol); ok {
			return line, nil
		}

		if err := c.fill(); err != nil {
			return nil, err
		}
	}
}

func (c *Conn) readExactLocked(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("tcpline: negative read count %d", n)
	}

	for {
		if out, ok := c.buf.takeExact(n); ok {
			return out, nil
		}

		if err := c.fill(); err != nil {
			return nil, err
		}
	}
}

func (c *Conn) readAllLocked() ([]byte, error) {
	for {
		err := c.fill()
		if err == nil {
			continue
		}

		// A clean peer close terminates the read successfully; everything
		// buffered so far is the result.
		if errors.Is(err, ErrTransportClosed) {
			return c.buf.takeAll(), nil
		}

		return nil, err
	}
}

// --- Primitive operations ---

// Write sends data and performs no read. A nil or empty data still requires
// a connected transport, so Write(ctx, nil) forces an eager connect.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	if data == nil {
		data = []byte{}
	}

	_, err := c.exchange(ctx, data, ReadNone())

	return err
}

// WriteLines joins lines and sends them as a single write.
func (c *Conn) WriteLines(ctx context.Context, lines [][]byte) error {
	return c.Write(ctx, bytes.Join(lines, nil))
}

// Read performs a read-only exchange governed by policy.
func (c *Conn) Read(ctx context.Context, policy ReadPolicy) ([]byte, error) {
	return c.exchange(ctx, nil, policy)
}

// ReadLine reads one line terminated by the connection's default EOL marker.
// The marker is consumed but excluded from the result.
func (c *Conn) ReadLine(ctx context.Context) ([]byte, error) {
	return c.exchange(ctx, nil, ReadUntilEOL(nil))
}

// ReadLineEOL reads one line terminated by the given marker.
func (c *Conn) ReadLineEOL(ctx context.Context, eol []byte) ([]byte, error) {
	return c.exchange(ctx, nil, ReadUntilEOL(eol))
}

// ReadUntil reads until the given separator and returns the bytes before it.
func (c *Conn) ReadUntil(ctx context.Context, separator []byte) ([]byte, error) {
	return c.exchange(ctx, nil, ReadUntilEOL(separator))
}

// ReadExactly reads exactly n bytes; surplus received bytes stay buffered.
func (c *Conn) ReadExactly(ctx context.Context, n int) ([]byte, error) {
	return c.exchange(ctx, nil, ReadExact(n))
}

// ReadAll reads until the peer closes the connection and returns everything
// received.
func (c *Conn) ReadAll(ctx context.Context) ([]byte, error) {
	return c.exchange(ctx, nil, ReadUntilEOF())
}

// ReadLines reads n successive lines inside a single atomic exchange.
func (c *Conn) ReadLines(ctx context.Context, n int) ([][]byte, error) {
	return c.exchangeLines(ctx, nil, n, nil)
}

// WriteRead is the atomic compound operation: write data, then read per
// policy, with no other exchange interleaved.
func (c *Conn) WriteRead(ctx context.Context, data []byte, policy ReadPolicy) ([]byte, error) {
	if data == nil {
		data = []byte{}
	}

	return c.exchange(ctx, data, policy)
}

// WriteReadLine writes data and reads one default-EOL line, atomically.
// This is the REQ-REP primitive for command/response instruments.
func (c *Conn) WriteReadLine(ctx context.Context, data []byte) ([]byte, error) {
	return c.WriteRead(ctx, data, ReadUntilEOL(nil))
}

// WriteReadLineEOL writes data and reads one line terminated by the given
// marker, atomically.
func (c *Conn) WriteReadLineEOL(ctx context.Context, data []byte, eol []byte) ([]byte, error) {
	return c.WriteRead(ctx, data, ReadUntilEOL(eol))
}

// WriteReadLines writes data and reads n successive lines, all inside a
// single atomic exchange.
func (c *Conn) WriteReadLines(ctx context.Context, data []byte, n int) ([][]byte, error) {
	if data == nil {
		data = []byte{}
	}

	return c.exchangeLines(ctx, data, n, nil)
}
