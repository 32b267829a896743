package pbx

import "log/slog"

// Coordinator implements the four call operations as atomic transitions
// over one or two TUs. It never holds the registry lock across a sink
// write, and it never holds two TU locks except in ascending-extension
// order — the combination that makes the two-lock acquisition in §4.3
// deadlock-free regardless of interleaving.
type Coordinator struct {
	registry *Registry
	notifier notifier
	logger   *slog.Logger
}

// NewCoordinator builds a coordinator bound to registry.
func NewCoordinator(registry *Registry, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		registry: registry,
		notifier: notifier{},
		logger:   logger.With("subsystem", "pbx-coordinator"),
	}
}

// notify writes tu's current state to its sink and, on success, counts it
// toward the registry's total-notifications-emitted metric. Every call
// site in this file that used to call c.notifier.notify directly goes
// through here instead, so the counter can't be left out of a new
// transition by accident.
func (c *Coordinator) notify(tu *TU) error {
	err := c.notifier.notify(tu)
	if err == nil {
		c.registry.stats.recordNotification()
	}
	return err
}

// Register plugs a new TU into the PBX and returns it along with its
// assigned extension.
func (c *Coordinator) Register(sink Sink, connLogger *slog.Logger) (*TU, Outcome) {
	return c.registry.register(sink, connLogger)
}

// Notify emits a notification of tu's current state without changing
// it. Used for lines the service adapter does not recognize as a
// command: the spec still requires a current-state notification.
func (c *Coordinator) Notify(tu *TU) Outcome {
	tu.mu.Lock()
	defer tu.mu.Unlock()
	if err := c.notify(tu); err != nil {
		return OutcomeIOError
	}
	return OutcomeOK
}

// lockPair acquires both TUs' locks in ascending-extension order. a and
// b are never the same TU (the protocol never peers a TU with itself).
func lockPair(a, b *TU) {
	if a.ext < b.ext {
		a.mu.Lock()
		b.mu.Lock()
	} else {
		b.mu.Lock()
		a.mu.Lock()
	}
}

func unlockPair(a, b *TU) {
	a.mu.Unlock()
	b.mu.Unlock()
}

// resolvePeerGone drives tu to the I5 terminal state appropriate to
// whatever peered state it is (still) in, used whenever a two-TU
// operation discovers that the extension tu's peer field names has
// since been unregistered. It re-reads tu's state under lock since time
// may have passed since the caller last observed it.
func (c *Coordinator) resolvePeerGone(tu *TU) Outcome {
	tu.mu.Lock()
	defer tu.mu.Unlock()

	switch tu.state {
	case StateRinging, StateRingBack:
		tu.state = StateOnHook
		tu.hasPeer = false
	case StateConnected:
		tu.state = StateDialTone
		tu.hasPeer = false
	}
	c.notify(tu)
	return OutcomeOK
}

// Pickup implements taking tu off-hook.
func (c *Coordinator) Pickup(tu *TU) Outcome {
	tu.mu.Lock()
	switch tu.state {
	case StateOnHook:
		tu.state = StateDialTone
		c.notify(tu)
		tu.mu.Unlock()
		return OutcomeOK

	case StateRinging:
		peerExt := tu.peer
		tu.mu.Unlock()

		peer := c.registry.lookup(peerExt)
		if peer == nil {
			return c.resolvePeerGone(tu)
		}

		lockPair(tu, peer)
		defer unlockPair(tu, peer)

		if !(tu.state == StateRinging && tu.hasPeer && tu.peer == peer.ext &&
			peer.state == StateRingBack && peer.hasPeer && peer.peer == tu.ext) {
			c.notify(tu)
			return OutcomeOK
		}

		tu.state = StateConnected
		peer.state = StateConnected
		c.registry.stats.recordCallConnected()
		c.notify(tu)
		c.notify(peer)
		return OutcomeOK

	default:
		c.notify(tu)
		tu.mu.Unlock()
		return OutcomeOK
	}
}

// Hangup implements replacing the handset.
func (c *Coordinator) Hangup(tu *TU) Outcome {
	tu.mu.Lock()
	switch tu.state {
	case StateDialTone, StateBusySignal, StateError:
		tu.state = StateOnHook
		c.notify(tu)
		tu.mu.Unlock()
		return OutcomeOK

	case StateConnected:
		peerExt := tu.peer
		tu.mu.Unlock()
		return c.hangupPeered(tu, peerExt, StateConnected, StateOnHook, StateDialTone)

	case StateRingBack:
		peerExt := tu.peer
		tu.mu.Unlock()
		return c.hangupPeered(tu, peerExt, StateRingBack, StateOnHook, StateOnHook)

	case StateRinging:
		peerExt := tu.peer
		tu.mu.Unlock()
		return c.hangupPeered(tu, peerExt, StateRinging, StateOnHook, StateDialTone)

	default:
		// ON_HOOK: no change.
		c.notify(tu)
		tu.mu.Unlock()
		return OutcomeOK
	}
}

// hangupPeered handles the three peered hangup rows of §4.2's two-TU
// table. fromState is the initiator's state before the transition (used
// to re-validate after the lock handoff); initiatorTo/peerTo are the new
// states for the initiator and its peer respectively.
func (c *Coordinator) hangupPeered(tu *TU, peerExt Extension, fromState, initiatorTo, peerTo State) Outcome {
	peer := c.registry.lookup(peerExt)
	if peer == nil {
		return c.resolvePeerGone(tu)
	}

	lockPair(tu, peer)
	defer unlockPair(tu, peer)

	if !(tu.state == fromState && tu.hasPeer && tu.peer == peer.ext && peer.hasPeer && peer.peer == tu.ext) {
		c.notify(tu)
		return OutcomeOK
	}

	tu.state = initiatorTo
	tu.hasPeer = false
	peer.state = peerTo
	peer.hasPeer = false

	c.notify(tu)
	c.notify(peer)
	return OutcomeOK
}

// Dial implements dialing ext from tu.
func (c *Coordinator) Dial(tu *TU, ext Extension) Outcome {
	tu.mu.Lock()
	if tu.state != StateDialTone {
		c.notify(tu)
		tu.mu.Unlock()
		return OutcomeOK
	}

	if ext == tu.ext {
		tu.state = StateBusySignal
		c.notify(tu)
		tu.mu.Unlock()
		return OutcomeOK
	}
	tu.mu.Unlock()

	target := c.registry.lookup(ext)
	if target == nil {
		tu.mu.Lock()
		if tu.state == StateDialTone {
			tu.state = StateError
		}
		c.notify(tu)
		tu.mu.Unlock()
		return OutcomeOK
	}

	lockPair(tu, target)
	defer unlockPair(tu, target)

	if tu.state != StateDialTone {
		c.notify(tu)
		return OutcomeOK
	}

	if target.state == StateOnHook {
		tu.state = StateRingBack
		tu.peer = target.ext
		tu.hasPeer = true
		target.state = StateRinging
		target.peer = tu.ext
		target.hasPeer = true
	} else {
		tu.state = StateBusySignal
	}

	c.notify(tu)
	if tu.state == StateRingBack {
		c.notify(target)
	}
	return OutcomeOK
}

// Chat implements sending text from tu to its connected peer.
func (c *Coordinator) Chat(tu *TU, text string) Outcome {
	tu.mu.Lock()
	if tu.state != StateConnected {
		c.notify(tu)
		tu.mu.Unlock()
		return OutcomeNotConnected
	}
	peerExt := tu.peer
	tu.mu.Unlock()

	peer := c.registry.lookup(peerExt)
	var chatErr error
	if peer != nil {
		peer.mu.Lock()
		if peer.state == StateConnected && peer.hasPeer && peer.peer == tu.ext {
			chatErr = c.notifier.chat(peer, text)
		}
		peer.mu.Unlock()
	}

	tu.mu.Lock()
	defer tu.mu.Unlock()
	if err := c.notify(tu); err != nil || chatErr != nil {
		return OutcomeIOError
	}
	return OutcomeOK
}

// Unregister drives tu out of any peered state (per I5, using the same
// rules as Hangup to resolve its peer) and then releases its slot.
func (c *Coordinator) Unregister(tu *TU) Outcome {
	tu.mu.Lock()
	state := tu.state
	peerExt := tu.peer
	hasPeer := tu.hasPeer
	tu.mu.Unlock()

	if hasPeer {
		switch state {
		case StateConnected:
			c.teardownForUnregister(tu, peerExt, StateConnected, StateDialTone)
		case StateRingBack:
			c.teardownForUnregister(tu, peerExt, StateRingBack, StateOnHook)
		case StateRinging:
			c.teardownForUnregister(tu, peerExt, StateRinging, StateDialTone)
		}
	}

	return c.registry.release(tu)
}

// teardownForUnregister drives tu's peer to peerTo and clears both sides'
// peer links, without emitting a notification on tu itself (its sink is
// about to be destroyed along with the connection it belongs to).
func (c *Coordinator) teardownForUnregister(tu *TU, peerExt Extension, fromState, peerTo State) {
	peer := c.registry.lookup(peerExt)
	if peer == nil {
		return
	}

	lockPair(tu, peer)
	if tu.state == fromState && tu.hasPeer && tu.peer == peer.ext && peer.hasPeer && peer.peer == tu.ext {
		tu.hasPeer = false
		peer.state = peerTo
		peer.hasPeer = false
		c.notify(peer)
	}
	unlockPair(tu, peer)
}
