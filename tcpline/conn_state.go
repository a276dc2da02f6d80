package tcpline

import "sync/atomic"

// ConnState represents the lifecycle stage of a connection.
type ConnState uint32

// Connection lifecycle states.
const (
	// IdleState indicates the connection was constructed but never connected.
	IdleState ConnState = iota
	// ConnectingState indicates a transport establishment is in progress.
	ConnectingState
	// ConnectedState indicates the transport is established and ready for I/O.
	ConnectedState
	// DisconnectedState indicates the transport was lost due to an I/O error
	// or a peer close. The next operation reconnects automatically.
	DisconnectedState
	// ClosedState indicates the user closed the connection. Terminal: no
	// further reconnection is attempted.
	ClosedState
)

// IsConnected returns true if the state is ConnectedState.
func (cs ConnState) IsConnected() bool { return cs == ConnectedState }

// IsClosed returns true if the state is ClosedState.
func (cs ConnState) IsClosed() bool { return cs == ClosedState }

// String returns the string representation of the state.
func (cs ConnState) String() string {
	switch cs {
	case IdleState:
		return "idle"
	case ConnectingState:
		return "connecting"
	case ConnectedState:
		return "connected"
	case DisconnectedState:
		return "disconnected"
	case ClosedState:
		return "closed"
	default:
		return "unknown"
	}
}

// atomicConnState holds a ConnState with atomic access.
//
// Transitions happen either inside the exchange critical section or from
// Close; atomic storage lets observers (State, Connected) read without
// taking the exchange slot.
type atomicConnState struct {
	state atomic.Uint32
}

// Get returns the current state.
func (st *atomicConnState) Get() ConnState {
	return ConnState(st.state.Load())
}

// Set stores the given state.
func (st *atomicConnState) Set(state ConnState) {
	st.state.Store(uint32(state))
}

// CompareAndSwap transitions from old to new, returning true on success.
func (st *atomicConnState) CompareAndSwap(old, new ConnState) bool {
	return st.state.CompareAndSwap(uint32(old), uint32(new))
}
