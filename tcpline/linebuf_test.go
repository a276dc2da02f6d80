package tcpline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineBuffer_SplitLines(t *testing.T) {
	lb := newLineBuffer()
	defer lb.release()

	lb.feed([]byte("AB\nCD\nEF"))

	line, ok := lb.takeLine([]byte("\n"))
	require.True(t, ok)
	require.Equal(t, []byte("AB"), line)

	line, ok = lb.takeLine([]byte("\n"))
	require.True(t, ok)
	require.Equal(t, []byte("CD"), line)

	// "EF" has no terminator yet: no line, state untouched.
	_, ok = lb.takeLine([]byte("\n"))
	require.False(t, ok)
	require.Equal(t, 2, lb.len())

	lb.feed([]byte("\n"))
	line, ok = lb.takeLine([]byte("\n"))
	require.True(t, ok)
	require.Equal(t, []byte("EF"), line)
	require.Equal(t, 0, lb.len())
}

func TestLineBuffer_CustomEOL(t *testing.T) {
	lb := newLineBuffer()
	defer lb.release()

	lb.feed([]byte("X\rY\r"))

	line, ok := lb.takeLine([]byte("\r"))
	require.True(t, ok)
	require.Equal(t, []byte("X"), line)

	line, ok = lb.takeLine([]byte("\r"))
	require.True(t, ok)
	require.Equal(t, []byte("Y"), line)
}

func TestLineBuffer_MultiByteEOLAcrossChunks(t *testing.T) {
	lb := newLineBuffer()
	defer lb.release()

	// The "\r\n" marker straddles the chunk boundary.
	lb.feed([]byte("hello\r"))

	_, ok := lb.takeLine([]byte("\r\n"))
	require.False(t, ok)

	lb.feed([]byte("\nworld\r\n"))

	line, ok := lb.takeLine([]byte("\r\n"))
	require.True(t, ok)
	require.Equal(t, []byte("hello"), line)

	line, ok = lb.takeLine([]byte("\r\n"))
	require.True(t, ok)
	require.Equal(t, []byte("world"), line)
}

func TestLineBuffer_EmptyLine(t *testing.T) {
	lb := newLineBuffer()
	defer lb.release()

	lb.feed([]byte("\n\n"))

	line, ok := lb.takeLine([]byte("\n"))
	require.True(t, ok)
	require.Empty(t, line)

	line, ok = lb.takeLine([]byte("\n"))
	require.True(t, ok)
	require.Empty(t, line)
}

func TestLineBuffer_TakeExact(t *testing.T) {
	lb := newLineBuffer()
	defer lb.release()

	lb.feed([]byte("0123456789"))

	_, ok := lb.takeExact(11)
	require.False(t, ok, "not enough bytes buffered")

	out, ok := lb.takeExact(4)
	require.True(t, ok)
	require.Equal(t, []byte("0123"), out)

	// Surplus is retained for the next read.
	require.Equal(t, 6, lb.len())

	out, ok = lb.takeExact(6)
	require.True(t, ok)
	require.Equal(t, []byte("456789"), out)
}

func TestLineBuffer_TakeAll(t *testing.T) {
	lb := newLineBuffer()
	defer lb.release()

	lb.feed([]byte("partial data, no line"))

	out := lb.takeAll()
	require.Equal(t, []byte("partial data, no line"), out)
	require.Equal(t, 0, lb.len())

	require.Empty(t, lb.takeAll())
}

func TestLineBuffer_NoInvariantViolationAfterSplit(t *testing.T) {
	lb := newLineBuffer()
	defer lb.release()

	lb.feed([]byte("a\nb\nc\ntrailing"))

	for {
		if _, ok := lb.takeLine([]byte("\n")); !ok {
			break
		}
	}

	// After exhaustive splitting, only the trailing fragment remains.
	require.Equal(t, []byte("trailing"), lb.takeAll())
}
