package tcpline

import (
	"bytes"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// lineBuffer accumulates raw bytes received from the transport and splits
// them into EOL-delimited lines.
//
// The accumulator persists across transport reads, so an EOL marker that
// straddles two receive chunks is still found once both chunks are fed.
// After any successful takeLine the accumulator holds no complete
// EOL-terminated line, only a trailing fragment (possibly empty).
//
// A lineBuffer is owned by exactly one Conn and is only mutated inside the
// exchange critical section. size is tracked atomically so InWaiting can
// observe it without taking the exchange slot.
type lineBuffer struct {
	acc  *bytebufferpool.ByteBuffer
	size atomic.Int64
}

func newLineBuffer() *lineBuffer {
	return &lineBuffer{acc: bytebufferpool.Get()}
}

// feed appends raw bytes to the accumulator.
func (lb *lineBuffer) feed(data []byte) {
	_, _ = lb.acc.Write(data)
	lb.size.Store(int64(lb.acc.Len()))
}

// len returns the number of buffered bytes.
func (lb *lineBuffer) len() int {
	return int(lb.size.Load())
}

// takeLine scans the accumulator for eol. If found, it removes and returns
// the bytes before the marker (the marker itself is consumed but excluded
// from the result). If no complete line is buffered it returns (nil, false)
// without mutating state.
func (lb *lineBuffer) takeLine(eol []byte) ([]byte, bool) {
	idx := bytes.Index(lb.acc.B, eol)
	if idx < 0 {
		return nil, false
	}

	line := make([]byte, idx)
	copy(line, lb.acc.B[:idx])
	lb.discard(idx + len(eol))

	return line, true
}

// takeExact removes and returns exactly n bytes, or (nil, false) when fewer
// than n bytes are buffered. Surplus bytes stay buffered for the next read.
func (lb *lineBuffer) takeExact(n int) ([]byte, bool) {
	if lb.acc.Len() < n {
		return nil, false
	}

	out := make([]byte, n)
	copy(out, lb.acc.B[:n])
	lb.discard(n)

	return out, true
}

// takeAll removes and returns the entire accumulator content.
func (lb *lineBuffer) takeAll() []byte {
	out := make([]byte, lb.acc.Len())
	copy(out, lb.acc.B)

	lb.acc.Reset()
	lb.size.Store(0)

	return out
}

// discard drops the first n buffered bytes, shifting the remainder down.
func (lb *lineBuffer) discard(n int) {
	lb.acc.B = lb.acc.B[:copy(lb.acc.B, lb.acc.B[n:])]
	lb.size.Store(int64(lb.acc.Len()))
}

// release returns the accumulator to the pool. The lineBuffer must not be
// used afterwards.
func (lb *lineBuffer) release() {
	if lb.acc == nil {
		return
	}

	bytebufferpool.Put(lb.acc)
	lb.acc = nil
	lb.size.Store(0)
}
