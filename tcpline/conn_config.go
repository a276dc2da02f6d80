package tcpline

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/linekit/go-tcpline/logger"
)

// IPTOSLowDelay is the IP type-of-service value that requests low-latency
// handling. It is the default TOS, matching the latency-sensitive nature of
// instrument command/response traffic.
const IPTOSLowDelay = 0x10

// Defaults for ConnectionConfig.
const (
	// DefaultChunkSize is the receive chunk size: 16 KiB per transport read.
	DefaultChunkSize = 16 * 1024

	// DefaultRetryMinDelay is the initial delay of an opt-in connect retry policy.
	DefaultRetryMinDelay = 100 * time.Millisecond
	// DefaultRetryMaxDelay is the delay ceiling of an opt-in connect retry policy.
	DefaultRetryMaxDelay = 30 * time.Second
	// DefaultRetryFactor is the backoff multiplier of an opt-in connect retry policy.
	DefaultRetryFactor = 2.0
)

// DefaultEOL is the default end-of-line marker: a single newline byte.
var DefaultEOL = []byte("\n")

// Callback is a lifecycle notification handler. At most one callback is
// registered per event.
//
// Callbacks are invoked as part of the state transition, inside the exchange
// critical section. A callback must not invoke an operation on the same
// Conn synchronously; doing so deadlocks on the serialization primitive.
type Callback func(*Conn)

// retryPolicy is the opt-in connect retry schedule layered on top of the
// baseline single-attempt behavior. See WithConnectRetry.
type retryPolicy struct {
	attempts int
	minDelay time.Duration
	maxDelay time.Duration
	factor   float64
	jitter   bool
}

// ConnectionConfig holds all configuration for a line-oriented TCP connection.
//
// The endpoint (host, port) and transport options are immutable once the
// config is constructed.
type ConnectionConfig struct {
	host string
	port int

	// eol is the default line terminator for all line-oriented calls.
	eol []byte

	// noDelay disables Nagle-style coalescing when true.
	noDelay bool

	// tos is the IP type-of-service value applied to the socket.
	tos int

	// keepAlive is the TCP keep-alive period; zero disables keep-alive.
	keepAlive time.Duration

	// chunkSize is the size of each transport receive.
	chunkSize int

	// autoReconnect controls lazy (re)connection on operations. When false,
	// operations on a non-connected Conn fail until Open is called.
	autoReconnect bool

	// retry is the opt-in connect retry policy; nil means the baseline
	// single inline attempt per failed operation.
	retry *retryPolicy

	// Single-slot lifecycle callbacks.
	onConnectionMade Callback
	onConnectionLost Callback
	onEOFReceived    Callback

	logger logger.Logger
}

// NewConnectionConfig creates a connection configuration for the given endpoint.
//
// host is the remote address. port is the TCP port.
// opts are functional options applied in order; see With* functions.
func NewConnectionConfig(host string, port int, opts ...ConnOption) (*ConnectionConfig, error) {
	cfg := &ConnectionConfig{
		eol:           DefaultEOL,
		noDelay:       true,
		tos:           IPTOSLowDelay,
		chunkSize:     DefaultChunkSize,
		autoReconnect: true,
		logger:        logger.GetLogger(),
	}

	if err := cfg.setHost(host); err != nil {
		return nil, err
	}
	if err := cfg.setPort(port); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (cfg *ConnectionConfig) setHost(host string) error {
	if ip := net.ParseIP(host); ip != nil {
		cfg.host = host
		return nil
	}

	host = strings.TrimPrefix(host, ".")
	host = strings.TrimSuffix(host, ".")
	if _, err := net.LookupHost(host); err == nil {
		cfg.host = host
		return nil
	}

	return fmt.Errorf("tcpline: invalid host %q", host)
}

func (cfg *ConnectionConfig) setPort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("tcpline: port %d out of range [0, 65535]", port)
	}
	cfg.port = port

	return nil
}

// --- Getters ---

// Host returns the configured host address.
func (cfg *ConnectionConfig) Host() string { return cfg.host }

// Port returns the configured TCP port.
func (cfg *ConnectionConfig) Port() int { return cfg.port }

// Addr returns "host:port".
func (cfg *ConnectionConfig) Addr() string { return fmt.Sprintf("%s:%d", cfg.host, cfg.port) }

// EOL returns a copy of the default end-of-line marker.
func (cfg *ConnectionConfig) EOL() []byte {
	eol := make([]byte, len(cfg.eol))
	copy(eol, cfg.eol)

	return eol
}

// NoDelay returns whether Nagle-style coalescing is disabled.
func (cfg *ConnectionConfig) NoDelay() bool { return cfg.noDelay }

// TOS returns the IP type-of-service value.
func (cfg *ConnectionConfig) TOS() int { return cfg.tos }

// KeepAlive returns the TCP keep-alive period; zero means disabled.
func (cfg *ConnectionConfig) KeepAlive() time.Duration { return cfg.keepAlive }

// ChunkSize returns the transport receive chunk size.
func (cfg *ConnectionConfig) ChunkSize() int { return cfg.chunkSize }

// AutoReconnect returns whether operations connect lazily.
func (cfg *ConnectionConfig) AutoReconnect() bool { return cfg.autoReconnect }

// GetLogger returns the configured logger.
func (cfg *ConnectionConfig) GetLogger() logger.Logger { return cfg.logger }

// --- ConnOption ---

// ConnOption is a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc func(*ConnectionConfig) error

func (f connOptFunc) apply(cfg *ConnectionConfig) error { return f(cfg) }

// WithEOL sets the default end-of-line marker for all line-oriented calls.
// The marker may be longer than one byte. It must not be empty.
func WithEOL(eol []byte) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if len(eol) == 0 {
			return ErrEmptyEOL
		}
		cfg.eol = make([]byte, len(eol))
		copy(cfg.eol, eol)

		return nil
	})
}

// WithNoDelay enables or disables TCP_NODELAY. Enabled by default: instrument
// request/reply traffic is small and latency-bound.
func WithNoDelay(enabled bool) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		cfg.noDelay = enabled

		return nil
	})
}

// WithTOS sets the IP type-of-service value. Must be in [0, 255].
// The default is IPTOSLowDelay.
func WithTOS(tos int) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if tos < 0 || tos > 0xFF {
			return fmt.Errorf("tcpline: TOS %d out of range [0, 255]", tos)
		}
		cfg.tos = tos

		return nil
	})
}

// WithKeepAlive sets the TCP keep-alive period. Zero disables keep-alive,
// which is the default.
func WithKeepAlive(period time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if period < 0 {
			return errors.New("tcpline: keep-alive period must not be negative")
		}
		cfg.keepAlive = period

		return nil
	})
}

// WithChunkSize sets the size of each transport receive.
func WithChunkSize(size int) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if size < 1 {
			return errors.New("tcpline: chunk size must be >= 1")
		}
		cfg.chunkSize = size

		return nil
	})
}

// WithAutoReconnect enables or disables lazy (re)connection on operations.
// Enabled by default. When disabled, operations fail with ErrConnFailed
// until the caller opens the connection explicitly.
func WithAutoReconnect(enabled bool) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		cfg.autoReconnect = enabled

		return nil
	})
}

// WithConnectRetry layers an exponential-backoff retry schedule over the
// baseline single connect attempt. attempts is the total number of dial
// attempts per operation; minDelay and maxDelay bound the backoff delays
// between them. Pass zero durations to use DefaultRetryMinDelay and
// DefaultRetryMaxDelay.
//
// This is a resilience-hardening layer on top of the core contract: the
// default (no policy) preserves the unconditional immediate single attempt.
func WithConnectRetry(attempts int, minDelay, maxDelay time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if attempts < 1 {
			return errors.New("tcpline: connect retry attempts must be >= 1")
		}
		if minDelay == 0 {
			minDelay = DefaultRetryMinDelay
		}
		if maxDelay == 0 {
			maxDelay = DefaultRetryMaxDelay
		}
		if minDelay < 0 || maxDelay < minDelay {
			return errors.New("tcpline: connect retry delays must satisfy 0 <= min <= max")
		}

		cfg.retry = &retryPolicy{
			attempts: attempts,
			minDelay: minDelay,
			maxDelay: maxDelay,
			factor:   DefaultRetryFactor,
			jitter:   true,
		}

		return nil
	})
}

// WithOnConnectionMade registers the callback invoked after every successful
// (re)connect. At most one callback is kept; a later option replaces it.
func WithOnConnectionMade(cb Callback) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		cfg.onConnectionMade = cb

		return nil
	})
}

// WithOnConnectionLost registers the callback invoked when the transport is
// lost due to an I/O error. At most one callback is kept.
func WithOnConnectionLost(cb Callback) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		cfg.onConnectionLost = cb

		return nil
	})
}

// WithOnEOFReceived registers the callback invoked when the peer closes the
// connection cleanly. At most one callback is kept.
func WithOnEOFReceived(cb Callback) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		cfg.onEOFReceived = cb

		return nil
	})
}

// WithLogger sets the logger for the connection.
func WithLogger(l logger.Logger) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if l == nil {
			return errors.New("tcpline: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
