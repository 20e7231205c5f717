package chat

import (
	"log"
	"sync"
	"time"

	"stridelink/internal/transport"
)

// TypingOptions configures a tracker for one mounted session.
type TypingOptions struct {
	SessionID string
	UserID    string
	UserName  string
	Throttle  time.Duration // min gap between outgoing pings
	Expiry    time.Duration // peer ping considered stale after this
	Clock     Clock
	Emitter   Emitter
	// OnChange fires when the derived peer-typing flag flips; invoked
	// without internal locks held.
	OnChange func(active bool, userName string)
}

// Emitter is the outgoing side of the channel, as the tracker sees it.
type Emitter interface {
	Emit(event string, payload interface{}) error
}

// TypingTracker converts sparse periodic typing pings into a boolean
// presence flag with automatic expiry, and throttles the local user's
// own announcements.
type TypingTracker struct {
	opts TypingOptions

	mu       sync.Mutex
	lastEmit time.Time
	timer    Timer
	armGen   uint64 // invalidates expiry callbacks from stale timers
	typing   bool
	peerID   string
	peerName string
	stopped  bool
}

// NewTypingTracker creates a tracker. Zero windows fall back to the
// observed product behavior: 1500 ms throttle, 3000 ms expiry.
func NewTypingTracker(opts TypingOptions) *TypingTracker {
	if opts.Throttle <= 0 {
		opts.Throttle = 1500 * time.Millisecond
	}
	if opts.Expiry <= 0 {
		opts.Expiry = 3000 * time.Millisecond
	}
	if opts.Clock == nil {
		opts.Clock = NewClock()
	}
	return &TypingTracker{opts: opts}
}

// NotifyTyping announces the local user is composing. Called on every
// text change with non-empty content; emits at most once per throttle
// window, immediately on the first keystroke of a burst.
func (t *TypingTracker) NotifyTyping() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}

	now := t.opts.Clock.Now()
	if !t.lastEmit.IsZero() && now.Sub(t.lastEmit) < t.opts.Throttle {
		t.mu.Unlock()
		return
	}
	t.lastEmit = now
	t.mu.Unlock()

	err := t.opts.Emitter.Emit(transport.EventTypingMessage, transport.TypingPayload{
		SessionID: t.opts.SessionID,
		UserID:    t.opts.UserID,
		User:      t.opts.UserName,
	})
	if err != nil {
		// Presence is best-effort; a ping lost while offline is fine.
		log.Printf("typing: ping not delivered: %v", err)
	}
}

// OnPeerTyping records an incoming ping and re-arms the single expiry
// timer. A signal with no successor reverts to false after the expiry
// window even though no further event arrives.
func (t *TypingTracker) OnPeerTyping(userID, userName string) {
	t.mu.Lock()
	if t.stopped || userID == t.opts.UserID {
		t.mu.Unlock()
		return
	}

	wasTyping := t.typing
	t.typing = true
	t.peerID = userID
	t.peerName = userName

	if t.timer != nil {
		t.timer.Stop()
	}
	t.armGen++
	gen := t.armGen
	t.timer = t.opts.Clock.AfterFunc(t.opts.Expiry, func() { t.expire(gen) })
	t.mu.Unlock()

	if !wasTyping {
		t.notifyChange(true, userName)
	}
}

// MessageArrived clears the flag when a confirmed message from the
// tracked peer lands: the peer is now known to have finished composing.
func (t *TypingTracker) MessageArrived(authorID string) {
	t.mu.Lock()
	if !t.typing || authorID != t.peerID {
		t.mu.Unlock()
		return
	}
	name := t.clearLocked()
	t.mu.Unlock()

	t.notifyChange(false, name)
}

// IsTyping reports the current derived flag and the cached peer name.
func (t *TypingTracker) IsTyping() (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.typing, t.peerName
}

// Stop cancels any armed timer. Must be called on unmount so a stale
// expiry cannot fire into a torn-down screen.
func (t *TypingTracker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.clearLocked()
	t.mu.Unlock()
}

// expire is the timer callback; gen guards against a stale timer that
// lost a Stop race with a newer arm.
func (t *TypingTracker) expire(gen uint64) {
	t.mu.Lock()
	if t.stopped || gen != t.armGen || !t.typing {
		t.mu.Unlock()
		return
	}
	name := t.clearLocked()
	t.mu.Unlock()

	t.notifyChange(false, name)
}

// clearLocked resets peer state and disarms the timer. Caller holds the
// lock; returns the peer name that was cleared.
func (t *TypingTracker) clearLocked() string {
	name := t.peerName
	t.typing = false
	t.peerID = ""
	t.peerName = ""
	t.armGen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	return name
}

func (t *TypingTracker) notifyChange(active bool, userName string) {
	if t.opts.OnChange != nil {
		t.opts.OnChange(active, userName)
	}
}
