package pbx

import "testing"

func TestTUExtensionAndSnapshot(t *testing.T) {
	var s testSink
	tu := &TU{ext: 7, state: StateDialTone, peer: 2, hasPeer: true, sink: &s}

	if tu.Extension() != 7 {
		t.Errorf("Extension() = %d, want 7", tu.Extension())
	}

	snap := tu.snapshot()
	if snap.ext != 7 || snap.state != StateDialTone || snap.peer != 2 || !snap.hasPeer {
		t.Errorf("snapshot() = %+v, want ext=7 state=DIAL_TONE peer=2 hasPeer=true", snap)
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateOnHook:     "ON_HOOK",
		StateRinging:    "RINGING",
		StateDialTone:   "DIAL_TONE",
		StateRingBack:   "RING_BACK",
		StateBusySignal: "BUSY_SIGNAL",
		StateConnected:  "CONNECTED",
		StateError:      "ERROR",
		State(99):       "UNKNOWN",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
