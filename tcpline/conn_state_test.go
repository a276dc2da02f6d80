package tcpline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnState_String(t *testing.T) {
	require.Equal(t, "idle", IdleState.String())
	require.Equal(t, "connecting", ConnectingState.String())
	require.Equal(t, "connected", ConnectedState.String())
	require.Equal(t, "disconnected", DisconnectedState.String())
	require.Equal(t, "closed", ClosedState.String())
	require.Equal(t, "unknown", ConnState(99).String())
}

func TestConnState_Predicates(t *testing.T) {
	require.True(t, ConnectedState.IsConnected())
	require.False(t, DisconnectedState.IsConnected())
	require.True(t, ClosedState.IsClosed())
	require.False(t, IdleState.IsClosed())
}

func TestAtomicConnState(t *testing.T) {
	var st atomicConnState

	require.Equal(t, IdleState, st.Get())

	st.Set(ConnectingState)
	require.Equal(t, ConnectingState, st.Get())

	require.True(t, st.CompareAndSwap(ConnectingState, ConnectedState))
	require.False(t, st.CompareAndSwap(ConnectingState, DisconnectedState))
	require.Equal(t, ConnectedState, st.Get())
}
