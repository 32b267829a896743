package pbx

import "fmt"

// notifier formats and writes one-line status messages to a TU's sink.
// It is stateless; every method assumes the caller already
// holds the target TU's lock, which is what makes the sequence of lines
// observed on one connection a total order consistent with that TU's
// state history.
type notifier struct{}

// notify writes the current-state line for tu. CONNECTED carries the
// peer's extension; ON_HOOK carries tu's own extension; every other
// state carries no argument.
func (notifier) notify(tu *TU) error {
	var line string
	switch tu.state {
	case StateOnHook:
		line = fmt.Sprintf("ON_HOOK %d\r\n", tu.ext)
	case StateConnected:
		line = fmt.Sprintf("CONNECTED %d\r\n", tu.peer)
	default:
		line = tu.state.String() + "\r\n"
	}
	_, err := tu.sink.Write([]byte(line))
	return err
}

// chat writes a CHAT line carrying text verbatim (including an empty
// payload, which yields "CHAT " with a trailing space).
func (notifier) chat(tu *TU, text string) error {
	_, err := tu.sink.Write([]byte("CHAT " + text + "\r\n"))
	return err
}
