package conn

import (
	"bytes"
	"log/slog"
	"os"
	"testing"

	"github.com/coreswitch/pbx/internal/pbx"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type capturingSink struct {
	buf bytes.Buffer
}

func (s *capturingSink) Write(p []byte) (int, error) { return s.buf.Write(p) }
func (s *capturingSink) Close() error                 { return nil }

func newTU(t *testing.T) (*pbx.Coordinator, *pbx.TU, *capturingSink) {
	t.Helper()
	r := pbx.NewRegistry(4, testLogger())
	c := pbx.NewCoordinator(r, testLogger())
	sink := &capturingSink{}
	tu, outcome := c.Register(sink, testLogger())
	if outcome != pbx.OutcomeOK {
		t.Fatalf("register: outcome = %v", outcome)
	}
	return c, tu, sink
}

func TestDispatchPickupHangup(t *testing.T) {
	c, tu, sink := newTU(t)
	s := &Session{coordinator: c, logger: testLogger()}

	if outcome := s.dispatch(tu, "pickup", testLogger()); outcome != pbx.OutcomeOK {
		t.Fatalf("dispatch(pickup): outcome = %v", outcome)
	}
	if !bytes.Contains(sink.buf.Bytes(), []byte("DIAL_TONE\r\n")) {
		t.Errorf("sink = %q, want DIAL_TONE", sink.buf.String())
	}

	sink.buf.Reset()
	if outcome := s.dispatch(tu, "hangup", testLogger()); outcome != pbx.OutcomeOK {
		t.Fatalf("dispatch(hangup): outcome = %v", outcome)
	}
	if !bytes.Contains(sink.buf.Bytes(), []byte("ON_HOOK")) {
		t.Errorf("sink = %q, want ON_HOOK", sink.buf.String())
	}
}

func TestDispatchMalformedDialBecomesError(t *testing.T) {
	c, tu, sink := newTU(t)
	s := &Session{coordinator: c, logger: testLogger()}

	s.dispatch(tu, "pickup", testLogger())
	sink.buf.Reset()

	s.dispatch(tu, "dial abc", testLogger())
	if !bytes.Contains(sink.buf.Bytes(), []byte("ERROR\r\n")) {
		t.Errorf("sink = %q, want ERROR after malformed dial target", sink.buf.String())
	}
}

func TestDispatchChatEmptyAndWithText(t *testing.T) {
	r := pbx.NewRegistry(4, testLogger())
	c := pbx.NewCoordinator(r, testLogger())
	sinkA := &capturingSink{}
	sinkB := &capturingSink{}
	tuA, _ := c.Register(sinkA, testLogger())
	tuB, _ := c.Register(sinkB, testLogger())

	c.Pickup(tuA)
	c.Dial(tuA, tuB.Extension())
	c.Pickup(tuB)
	sinkB.buf.Reset()

	s := &Session{coordinator: c, logger: testLogger()}
	s.dispatch(tuA, "chat", testLogger())
	if !bytes.Contains(sinkB.buf.Bytes(), []byte("CHAT \r\n")) {
		t.Errorf("peer sink = %q, want \"CHAT \\r\\n\" for bare chat command", sinkB.buf.String())
	}

	sinkB.buf.Reset()
	s.dispatch(tuA, "chat hello", testLogger())
	if !bytes.Contains(sinkB.buf.Bytes(), []byte("CHAT hello\r\n")) {
		t.Errorf("peer sink = %q, want CHAT hello", sinkB.buf.String())
	}
}

func TestDispatchUnrecognizedLineStillNotifies(t *testing.T) {
	c, tu, sink := newTU(t)
	s := &Session{coordinator: c, logger: testLogger()}

	sink.buf.Reset()
	if outcome := s.dispatch(tu, "garbage input", testLogger()); outcome != pbx.OutcomeOK {
		t.Fatalf("dispatch(garbage): outcome = %v", outcome)
	}
	if !bytes.Contains(sink.buf.Bytes(), []byte("ON_HOOK")) {
		t.Errorf("sink = %q, want a current-state notification", sink.buf.String())
	}
}

func TestScanLinesCRLFAndBareLF(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"crlf", "pickup\r\nhangup\r\n", []string{"pickup", "hangup"}},
		{"bare lf", "pickup\nhangup\n", []string{"pickup", "hangup"}},
		{"trailing partial line at eof", "pickup\r\ndial 3", []string{"pickup", "dial 3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := []byte(tt.input)
			var got []string
			for len(data) > 0 {
				advance, token, err := scanLines(data, true)
				if err != nil {
					t.Fatalf("scanLines: %v", err)
				}
				if advance == 0 {
					break
				}
				if token != nil {
					got = append(got, string(token))
				}
				data = data[advance:]
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v lines, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("line %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
