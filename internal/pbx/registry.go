package pbx

import (
	"context"
	"log/slog"
	"sync"
)

// Registry is the PBX directory: a fixed array of extension slots plus
// the bookkeeping to allocate, look up, enumerate, and tear them all
// down. Its lock guards only the slots array and count — never a TU's
// own state, and it is always released before any TU lock is taken for
// a transition (the one exception being registration and release
// themselves, where the TU in question is not yet, or no longer,
// reachable by any other goroutine).
type Registry struct {
	mu     sync.Mutex
	cond   *sync.Cond
	slots  []*TU
	count  int
	closed bool
	logger *slog.Logger
	stats  Stats
}

// NewRegistry creates a registry with maxExt extension slots, numbered
// [0, maxExt).
func NewRegistry(maxExt int, logger *slog.Logger) *Registry {
	r := &Registry{
		slots:  make([]*TU, maxExt),
		logger: logger.With("subsystem", "pbx-registry"),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// register allocates the lowest free extension number, builds a TU at
// ON_HOOK bound to sink, and emits its initial notification. The
// registry lock is held only for allocation; the notification happens
// after release, under the new TU's own lock, per the registration
// contract in §4.1.
func (r *Registry) register(sink Sink, logger *slog.Logger) (*TU, Outcome) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, OutcomeFull
	}

	idx := -1
	for i, slot := range r.slots {
		if slot == nil {
			idx = i
			break
		}
	}
	if idx == -1 {
		r.mu.Unlock()
		return nil, OutcomeFull
	}

	tu := &TU{
		ext:    Extension(idx),
		state:  StateOnHook,
		sink:   sink,
		logger: logger.With("ext", idx),
	}
	r.slots[idx] = tu
	r.count++
	r.mu.Unlock()

	tu.mu.Lock()
	var n notifier
	err := n.notify(tu)
	tu.mu.Unlock()
	if err == nil {
		r.stats.recordNotification()
	}

	r.logger.Info("extension registered", "ext", idx)
	if err != nil {
		r.logger.Warn("initial notification failed", "ext", idx, "error", err)
	}
	return tu, OutcomeOK
}

// lookup resolves ext to its current TU, or nil if no TU occupies that
// slot. It is always called before the caller attempts to acquire any
// TU lock, never while one is held, so it respects the registry.mu <
// TU.mu ordering.
func (r *Registry) lookup(ext Extension) *TU {
	if ext < 0 || int(ext) >= len(r.slots) {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slots[ext]
}

// release removes tu from its slot. It returns Unknown if the slot is
// already empty or bound to a different TU (a double-release, which
// should not happen in the protocol but is reported rather than
// silently ignored).
func (r *Registry) release(tu *TU) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	ext := int(tu.ext)
	if ext < 0 || ext >= len(r.slots) || r.slots[ext] != tu {
		return OutcomeUnknown
	}
	r.slots[ext] = nil
	r.count--
	r.cond.Broadcast()
	r.logger.Info("extension unregistered", "ext", ext)
	return OutcomeOK
}

// Count returns the number of currently registered extensions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Capacity returns the number of extension slots the registry was
// created with.
func (r *Registry) Capacity() int {
	return len(r.slots)
}

// Entry is a read-only snapshot of one occupied slot, used by the admin
// status endpoint and the metrics collector.
type Entry struct {
	Extension Extension
	State     State
	Peer      Extension
	HasPeer   bool
}

// Snapshot returns a consistent-per-TU (not consistent-across-TUs) copy
// of every currently registered extension, ordered by extension number.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	tus := make([]*TU, 0, r.count)
	for _, tu := range r.slots {
		if tu != nil {
			tus = append(tus, tu)
		}
	}
	r.mu.Unlock()

	entries := make([]Entry, 0, len(tus))
	for _, tu := range tus {
		s := tu.snapshot()
		entries = append(entries, Entry{Extension: s.ext, State: s.state, Peer: s.peer, HasPeer: s.hasPeer})
	}
	return entries
}

// StateCounts returns the number of registered TUs in each state, for
// the metrics collector.
func (r *Registry) StateCounts() map[State]int {
	entries := r.Snapshot()
	counts := make(map[State]int, 7)
	for _, e := range entries {
		counts[e.State]++
	}
	return counts
}

// NotificationsEmitted returns the total number of state notifications
// successfully written to any TU's sink since process start.
func (r *Registry) NotificationsEmitted() uint64 {
	return r.stats.NotificationsEmitted()
}

// CallsConnected returns the total number of pickups that completed a
// ringing/ring-back pair into StateConnected since process start.
func (r *Registry) CallsConnected() uint64 {
	return r.stats.CallsConnected()
}

// Shutdown marks the registry closed (no further registrations succeed),
// closes every registered TU's sink — which causes each connection's
// reader to observe EOF and drive its own unregister — and blocks until
// every extension has been released or ctx is done, whichever comes
// first.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	sinks := make([]Sink, 0, r.count)
	for _, tu := range r.slots {
		if tu != nil {
			sinks = append(sinks, tu.sink)
		}
	}
	r.mu.Unlock()

	for _, s := range sinks {
		if err := s.Close(); err != nil {
			r.logger.Debug("sink close during shutdown", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		r.mu.Lock()
		for r.count > 0 {
			r.cond.Wait()
		}
		r.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("shutdown complete")
		return nil
	case <-ctx.Done():
		r.logger.Warn("shutdown timed out waiting for connections", "remaining", r.Count())
		return ctx.Err()
	}
}
