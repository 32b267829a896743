// Package conn is the thin adapter between a raw TCP connection and the
// PBX core: it tokenizes the line protocol, maps each command to a
// coordinator call, and manages a TU's registration lifecycle. None of
// the concurrency or invariant-preserving logic lives here — it is the
// "service entry point" and "external I/O reader" collaborators
// described in the spec, kept as small as the core they front.
package conn

import (
	"bufio"
	"bytes"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/coreswitch/pbx/internal/pbx"
)

// Session owns one client connection for its lifetime: register, serve
// command lines until EOF or error, unregister.
type Session struct {
	conn        net.Conn
	coordinator *pbx.Coordinator
	logger      *slog.Logger
}

// NewSession wraps conn for service by coordinator. The returned logger
// carries a connection id so concurrent connections' log lines can be
// told apart before an extension is assigned.
func NewSession(c net.Conn, coordinator *pbx.Coordinator, baseLogger *slog.Logger) *Session {
	return &Session{
		conn:        c,
		coordinator: coordinator,
		logger:      baseLogger.With("conn_id", uuid.NewString(), "remote", c.RemoteAddr().String()),
	}
}

// Serve registers the connection as a TU, processes command lines until
// the client disconnects or a sink write fails, and always unregisters
// on the way out.
func (s *Session) Serve() {
	tu, outcome := s.coordinator.Register(s.conn, s.logger)
	if outcome != pbx.OutcomeOK {
		s.logger.Warn("registration refused", "outcome", outcome.String())
		s.conn.Close()
		return
	}
	logger := s.logger.With("ext", tu.Extension())
	logger.Info("tu registered")

	scanner := bufio.NewScanner(s.conn)
	scanner.Split(scanLines)

	for scanner.Scan() {
		line := scanner.Text()
		outcome := s.dispatch(tu, line, logger)
		if outcome == pbx.OutcomeIOError {
			logger.Warn("sink write failed, tearing down connection")
			break
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Debug("connection read error", "error", err)
	}

	s.coordinator.Unregister(tu)
	s.conn.Close()
	logger.Info("tu unregistered")
}

// dispatch parses a single command line and invokes the matching
// coordinator operation. Unrecognized lines are silently ignored except
// that — like every command — they still provoke a current-state
// notification, which pickup/hangup/dial/chat already emit on every
// path; for an unrecognized line we emit one directly since no
// coordinator call is invoked.
func (s *Session) dispatch(tu *pbx.TU, line string, logger *slog.Logger) pbx.Outcome {
	switch {
	case line == "pickup":
		return s.coordinator.Pickup(tu)

	case line == "hangup":
		return s.coordinator.Hangup(tu)

	case strings.HasPrefix(line, "dial "):
		arg := strings.TrimPrefix(line, "dial ")
		ext, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil {
			logger.Debug("malformed dial argument", "arg", arg)
			return s.coordinator.Dial(tu, pbx.Extension(-1))
		}
		return s.coordinator.Dial(tu, pbx.Extension(ext))

	case line == "chat" || strings.HasPrefix(line, "chat "):
		text := ""
		if idx := strings.IndexByte(line, ' '); idx >= 0 {
			text = line[idx+1:]
		}
		return s.coordinator.Chat(tu, text)

	default:
		return s.coordinator.Notify(tu)
	}
}

// scanLines is a bufio.SplitFunc that tokenizes on CRLF, tolerating a
// bare LF the way a lenient line-oriented server typically does.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, bytes.TrimSuffix(data[:i], []byte("\r")), nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
