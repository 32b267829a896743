package pbx

import "sync/atomic"

// Stats holds process-lifetime counters that accumulate across every TU
// rather than belonging to any one of them, read by the metrics collector
// alongside the registry's per-state snapshot. Each field is touched from
// whichever goroutine is driving a call operation, so every increment and
// read goes through sync/atomic rather than Registry's own mutex — these
// counters never gate a transition, so they have no reason to share its
// lock.
type Stats struct {
	notificationsEmitted uint64
	callsConnected       uint64
}

func (s *Stats) recordNotification() {
	atomic.AddUint64(&s.notificationsEmitted, 1)
}

func (s *Stats) recordCallConnected() {
	atomic.AddUint64(&s.callsConnected, 1)
}

// NotificationsEmitted returns the total number of state notifications
// successfully written to any TU's sink since process start.
func (s *Stats) NotificationsEmitted() uint64 {
	return atomic.LoadUint64(&s.notificationsEmitted)
}

// CallsConnected returns the total number of pickups that completed a
// ringing/ring-back pair into StateConnected since process start.
func (s *Stats) CallsConnected() uint64 {
	return atomic.LoadUint64(&s.callsConnected)
}
