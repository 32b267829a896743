// Package pbx implements the concurrent extension registry, the per-TU
// state machine, and the call coordinator that together form a telephone
// switch: clients pick up, dial, hang up, and chat over a line protocol,
// and the switch keeps every pair of coupled extensions consistent under
// arbitrary interleavings.
package pbx

// State is one of the seven states a telephone unit can occupy.
type State int

const (
	StateOnHook State = iota
	StateRinging
	StateDialTone
	StateRingBack
	StateBusySignal
	StateConnected
	StateError
)

// String renders the state the way it appears on the wire.
func (s State) String() string {
	switch s {
	case StateOnHook:
		return "ON_HOOK"
	case StateRinging:
		return "RINGING"
	case StateDialTone:
		return "DIAL_TONE"
	case StateRingBack:
		return "RING_BACK"
	case StateBusySignal:
		return "BUSY_SIGNAL"
	case StateConnected:
		return "CONNECTED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Extension is the small non-negative integer identifying a TU for its
// lifetime. The registry allocates these; nothing outside the registry
// derives one from a socket or file descriptor.
type Extension int
