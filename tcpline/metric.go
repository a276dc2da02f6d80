package tcpline

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// ConnectionMetrics contains counters for a connection. Values can be used
// as the source of a prometheus CounterFunc or GaugeFunc.
//
// Byte and exchange counters sit on the I/O hot path and use striped
// xsync counters; the remaining fields are plain atomics.
type ConnectionMetrics struct {
	bytesSent *xsync.Counter
	bytesRecv *xsync.Counter
	exchanges *xsync.Counter

	// ConnectCount indicates the number of successful transport
	// establishments (equals the generation counter).
	ConnectCount atomic.Uint64

	// ErrCount indicates the number of connect and I/O failures.
	ErrCount atomic.Uint64

	// ConnRetryGauge indicates the number of dial retries performed by the
	// current connect attempt; reset to zero on success.
	ConnRetryGauge atomic.Uint32
}

func newConnectionMetrics() *ConnectionMetrics {
	return &ConnectionMetrics{
		bytesSent: xsync.NewCounter(),
		bytesRecv: xsync.NewCounter(),
		exchanges: xsync.NewCounter(),
	}
}

// BytesSent returns the total number of bytes written to the transport.
func (m *ConnectionMetrics) BytesSent() int64 { return m.bytesSent.Value() }

// BytesRecv returns the total number of bytes received from the transport.
func (m *ConnectionMetrics) BytesRecv() int64 { return m.bytesRecv.Value() }

// Exchanges returns the total number of exchanges that reached the
// transport (connect succeeded).
func (m *ConnectionMetrics) Exchanges() int64 { return m.exchanges.Value() }
