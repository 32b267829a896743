package pbx

import (
	"errors"
	"testing"
)

var errWriteFailed = errors.New("write failed")

func TestNotifyLineFormat(t *testing.T) {
	tests := []struct {
		name  string
		state State
		peer  Extension
		want  string
	}{
		{"on hook carries own extension", StateOnHook, 0, "ON_HOOK 5\r\n"},
		{"dial tone carries no argument", StateDialTone, 0, "DIAL_TONE\r\n"},
		{"ringing carries no argument", StateRinging, 0, "RINGING\r\n"},
		{"ring back carries no argument", StateRingBack, 0, "RING_BACK\r\n"},
		{"busy signal carries no argument", StateBusySignal, 0, "BUSY_SIGNAL\r\n"},
		{"error carries no argument", StateError, 0, "ERROR\r\n"},
		{"connected carries peer extension", StateConnected, 3, "CONNECTED 3\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s testSink
			tu := &TU{ext: 5, state: tt.state, peer: tt.peer, sink: &s}
			var n notifier
			if err := n.notify(tu); err != nil {
				t.Fatalf("notify: %v", err)
			}
			if got := s.last(); got != tt.want {
				t.Errorf("notify() wrote %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChatLineFormat(t *testing.T) {
	var s testSink
	tu := &TU{ext: 1, sink: &s}
	var n notifier

	if err := n.chat(tu, "hello there"); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if got := s.last(); got != "CHAT hello there\r\n" {
		t.Errorf("chat() wrote %q", got)
	}
}

func TestChatEmptyPayload(t *testing.T) {
	var s testSink
	tu := &TU{ext: 1, sink: &s}
	var n notifier

	n.chat(tu, "")
	if got := s.last(); got != "CHAT \r\n" {
		t.Errorf("chat(\"\") wrote %q, want \"CHAT \\r\\n\"", got)
	}
}

func TestNotifyPropagatesWriteError(t *testing.T) {
	tu := &TU{ext: 1, state: StateOnHook, sink: &erroringSink{}}
	var n notifier
	if err := n.notify(tu); err == nil {
		t.Error("expected notify to propagate the sink's write error")
	}
}

// erroringSink always fails writes, for exercising the IOError path.
type erroringSink struct{}

func (erroringSink) Write(p []byte) (int, error) { return 0, errWriteFailed }
func (erroringSink) Close() error                { return nil }
