package tcpline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/linekit/go-tcpline/logger"
)

func TestConnectionConfig_Defaults(t *testing.T) {
	cfg, err := NewConnectionConfig(testIP, 5025)
	require.NoError(t, err)

	require.Equal(t, testIP, cfg.Host())
	require.Equal(t, 5025, cfg.Port())
	require.Equal(t, testIP+":5025", cfg.Addr())
	require.Equal(t, []byte("\n"), cfg.EOL())
	require.True(t, cfg.NoDelay())
	require.Equal(t, IPTOSLowDelay, cfg.TOS())
	require.Equal(t, time.Duration(0), cfg.KeepAlive())
	require.Equal(t, DefaultChunkSize, cfg.ChunkSize())
	require.True(t, cfg.AutoReconnect())
	require.NotNil(t, cfg.GetLogger())
}

func TestConnectionConfig_Options(t *testing.T) {
	cfg, err := NewConnectionConfig(testIP, 5025,
		WithEOL([]byte("\r\n")),
		WithNoDelay(false),
		WithTOS(0x08),
		WithKeepAlive(30*time.Second),
		WithChunkSize(512),
		WithAutoReconnect(false),
		WithConnectRetry(5, 10*time.Millisecond, 100*time.Millisecond),
	)
	require.NoError(t, err)

	require.Equal(t, []byte("\r\n"), cfg.EOL())
	require.False(t, cfg.NoDelay())
	require.Equal(t, 0x08, cfg.TOS())
	require.Equal(t, 30*time.Second, cfg.KeepAlive())
	require.Equal(t, 512, cfg.ChunkSize())
	require.False(t, cfg.AutoReconnect())
	require.NotNil(t, cfg.retry)
	require.Equal(t, 5, cfg.retry.attempts)
}

func TestConnectionConfig_EOLCopyIsDetached(t *testing.T) {
	marker := []byte("\r")
	cfg, err := NewConnectionConfig(testIP, 5025, WithEOL(marker))
	require.NoError(t, err)

	marker[0] = 'X'
	require.Equal(t, []byte("\r"), cfg.EOL(), "config must not alias the caller's slice")
}

func TestConnectionConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		host string
		port int
		opts []ConnOption
	}{
		{name: "bad host", host: "..no-such-host..invalid..", port: 5025},
		{name: "negative port", host: testIP, port: -1},
		{name: "port too large", host: testIP, port: 70000},
		{name: "empty EOL", host: testIP, port: 5025, opts: []ConnOption{WithEOL(nil)}},
		{name: "TOS out of range", host: testIP, port: 5025, opts: []ConnOption{WithTOS(300)}},
		{name: "negative keep-alive", host: testIP, port: 5025, opts: []ConnOption{WithKeepAlive(-time.Second)}},
		{name: "zero chunk size", host: testIP, port: 5025, opts: []ConnOption{WithChunkSize(0)}},
		{name: "zero retry attempts", host: testIP, port: 5025, opts: []ConnOption{WithConnectRetry(0, 0, 0)}},
		{name: "inverted retry delays", host: testIP, port: 5025, opts: []ConnOption{
			WithConnectRetry(3, time.Second, time.Millisecond),
		}},
		{name: "nil logger", host: testIP, port: 5025, opts: []ConnOption{WithLogger(nil)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConnectionConfig(tt.host, tt.port, tt.opts...)
			require.Error(t, err)
		})
	}
}

func TestConnectionConfig_SingleSlotCallbacks(t *testing.T) {
	first := func(*Conn) {}
	var invoked bool
	second := func(*Conn) { invoked = true }

	cfg, err := NewConnectionConfig(testIP, 5025,
		WithOnConnectionMade(first),
		WithOnConnectionMade(second),
	)
	require.NoError(t, err)

	// At most one handler per event: the later registration replaces the earlier.
	cfg.onConnectionMade(nil)
	require.True(t, invoked)
}

func TestConnectionConfig_WithLogger(t *testing.T) {
	l := logger.NewSlog(logger.ErrorLevel, false)

	cfg, err := NewConnectionConfig(testIP, 5025, WithLogger(l))
	require.NoError(t, err)
	require.Same(t, l, cfg.GetLogger())
}
