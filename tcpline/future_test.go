package tcpline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestAsyncConn_WriteReadLine(t *testing.T) {
	srv := newEchoServer(t)
	conn := newTestConn(t, srv.port())
	async := NewAsyncConn(conn)
	ctx := context.Background()

	f := async.WriteReadLine([]byte("hello\n"))

	reply, err := f.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), reply)
	require.True(t, f.Resolved())

	require.NoError(t, conn.Close())
	srv.close()
	goleak.VerifyNone(t)
}

func TestAsyncConn_FuturesSerializeWithBlockingCalls(t *testing.T) {
	srv := newEchoServer(t)
	conn := newTestConn(t, srv.port())
	async := NewAsyncConn(conn)
	ctx := context.Background()

	futures := make([]*Future, 0, 10)
	for i := 0; i < 10; i++ {
		req := fmt.Sprintf("async-%d\n", i)
		futures = append(futures, async.WriteReadLine([]byte(req)))

		// Interleave blocking calls on the same engine. Each exchange holds
		// the slot across its write and read, so replies never cross.
		reply, err := conn.WriteReadLine(ctx, []byte(fmt.Sprintf("sync-%d\n", i)))
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("sync-%d", i), string(reply))
	}

	for i, f := range futures {
		reply, err := f.Wait(ctx)
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("async-%d", i), string(reply))
	}

	require.Equal(t, 0, async.Pending())

	require.NoError(t, conn.Close())
	srv.close()
	goleak.VerifyNone(t)
}

func TestAsyncConn_ResolveFutures(t *testing.T) {
	srv := newEchoServer(t)
	conn := newTestConn(t, srv.port())
	async := NewAsyncConn(conn, WithResolveFutures(true))

	// In resolve mode the exchange completes before the call returns.
	f := async.WriteReadLine([]byte("now\n"))
	require.True(t, f.Resolved())

	reply, err := f.MustResult()
	require.NoError(t, err)
	require.Equal(t, []byte("now"), reply)

	require.NoError(t, conn.Close())
	srv.close()
	goleak.VerifyNone(t)
}

func TestAsyncConn_OpenAndErrorPropagation(t *testing.T) {
	srv := newEchoServer(t)
	conn := newTestConn(t, srv.port())
	async := NewAsyncConn(conn)
	ctx := context.Background()

	_, err := async.Open().Wait(ctx)
	require.NoError(t, err)
	require.True(t, conn.Connected())

	require.NoError(t, conn.Close())

	// Errors surface through the future, preserving the closed condition.
	_, err = async.WriteReadLine([]byte("hi\n")).Wait(ctx)
	require.ErrorIs(t, err, ErrClosed)

	srv.close()
	goleak.VerifyNone(t)
}

func TestAsyncConn_PendingTracksInflight(t *testing.T) {
	// The push server sends nothing, so a read-future stays in flight.
	srv := newPushServer(t, nil)
	conn := newTestConn(t, srv.port())
	async := NewAsyncConn(conn)

	f := async.ReadLine()

	require.Eventually(t, func() bool { return async.Pending() == 1 },
		time.Second, 5*time.Millisecond)
	require.False(t, f.Resolved())

	// Wait gives up when its context expires; the exchange keeps running.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// Close unblocks the in-flight exchange and resolves the future.
	require.NoError(t, conn.Close())

	_, err = f.Wait(context.Background())
	require.ErrorIs(t, err, ErrClosed)
	require.Equal(t, 0, async.Pending())

	srv.close()
	goleak.VerifyNone(t)
}

func TestFuture_MustResultPanicsWhenUnresolved(t *testing.T) {
	f := &Future{done: make(chan struct{})}

	require.Panics(t, func() { _, _ = f.MustResult() })
}
