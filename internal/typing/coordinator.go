package typing

import (
	"sort"
	"sync"
	"time"
)

// state is one armed typing indicator. gen identifies the arming; an expiry
// callback from an earlier arming carries a stale gen and is ignored.
type state struct {
	timer *time.Timer
	gen   uint64
}

// Coordinator tracks short-lived per-peer typing state fed by push events.
//
// A start event arms (or re-arms) an expiry timer so the indicator clears
// even when the matching stop event is lost. Stop events and peer removal
// cancel the timer immediately. The coordinator only manages inbound expiry;
// outbound typing frames are debounced by the caller.
type Coordinator struct {
	mu       sync.Mutex
	window   time.Duration
	peers    map[string]*state
	gen      uint64
	onExpire func(peer string)
	closed   bool
}

// DefaultWindow is the expiry applied when no window is configured.
const DefaultWindow = 4 * time.Second

// NewCoordinator creates a coordinator with the given expiry window.
// onExpire, if non-nil, is invoked without the coordinator lock held when a
// peer's typing state lapses without an explicit stop.
func NewCoordinator(window time.Duration, onExpire func(peer string)) *Coordinator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Coordinator{
		window:   window,
		peers:    make(map[string]*state),
		onExpire: onExpire,
	}
}

// Start marks a peer as typing and arms the expiry timer. Repeat events
// replace the timer under a fresh generation, so an expiry callback already
// fired for the previous arming cannot clear the refreshed state.
func (c *Coordinator) Start(peer string) {
	if peer == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if prev, ok := c.peers[peer]; ok {
		prev.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.peers[peer] = &state{
		timer: time.AfterFunc(c.window, func() { c.expire(peer, gen) }),
		gen:   gen,
	}
}

// Stop clears a peer's typing state. A stop for a peer that is not typing,
// including a late stop after expiry, is a no-op.
func (c *Coordinator) Stop(peer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked(peer)
}

// Remove is Stop under a name that matches peer-deletion call sites.
func (c *Coordinator) Remove(peer string) {
	c.Stop(peer)
}

// IsTyping reports whether the peer currently has an armed typing state.
func (c *Coordinator) IsTyping(peer string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.peers[peer]
	return ok
}

// Typing returns the peers currently typing, sorted by identity.
func (c *Coordinator) Typing() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.peers))
	for peer := range c.peers {
		out = append(out, peer)
	}
	sort.Strings(out)
	return out
}

// Close cancels every timer and rejects further starts. Safe to call more
// than once.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for peer := range c.peers {
		c.clearLocked(peer)
	}
	c.closed = true
}

// Reset cancels all timers but keeps the coordinator usable, for transport
// drops where the session lives on.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for peer := range c.peers {
		c.clearLocked(peer)
	}
}

func (c *Coordinator) clearLocked(peer string) {
	if st, ok := c.peers[peer]; ok {
		st.timer.Stop()
		delete(c.peers, peer)
	}
}

func (c *Coordinator) expire(peer string, gen uint64) {
	c.mu.Lock()
	st, ok := c.peers[peer]
	expired := ok && st.gen == gen
	if expired {
		delete(c.peers, peer)
	}
	notify := expired && !c.closed
	c.mu.Unlock()

	if notify && c.onExpire != nil {
		c.onExpire(peer)
	}
}
