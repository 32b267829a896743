package pbx

import (
	"log/slog"
	"sync"
)

// TU is a single addressable telephone unit: one registered extension.
// state and peer are guarded by mu, which also serializes writes to
// sink — the notifier never writes without holding this lock.
type TU struct {
	mu sync.Mutex

	ext     Extension
	state   State
	peer    Extension
	hasPeer bool

	sink   Sink
	logger *slog.Logger
}

// Extension returns the TU's extension number. Safe without holding mu:
// it is assigned once at construction and never changes.
func (t *TU) Extension() Extension {
	return t.ext
}

// snapshot is a consistent, lock-free-to-read copy of a TU's visible
// state, used for admin/status reporting and metrics.
type snapshot struct {
	ext     Extension
	state   State
	peer    Extension
	hasPeer bool
}

func (t *TU) snapshot() snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return snapshot{ext: t.ext, state: t.state, peer: t.peer, hasPeer: t.hasPeer}
}
