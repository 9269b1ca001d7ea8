package presence

import (
	"log/slog"
	"sort"
	"sync"

	"waveline/internal/logging"
)

// Entry is one online peer with its optional activity string (for example
// the track currently playing, or a typing hint).
type Entry struct {
	Peer     string
	Activity string
}

// Registry tracks which peers are currently online. Absence from the
// registry means offline; there is no tri-state. All methods are safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	logger  *slog.Logger
	entries map[string]string // peer -> activity
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:  logging.WithComponent(logger, "presence"),
		entries: make(map[string]string),
	}
}

// MarkOnline records that a peer connected. The activity of an already
// online peer is preserved.
func (r *Registry) MarkOnline(peer string) {
	if peer == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[peer]; !ok {
		r.entries[peer] = ""
	}
}

// MarkOffline removes a peer from the online set.
func (r *Registry) MarkOffline(peer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, peer)
}

// ReplaceOnline applies a full online-set snapshot. Peers absent from the
// snapshot go offline; activity strings of retained peers are preserved so a
// snapshot replay is idempotent.
func (r *Registry) ReplaceOnline(peers []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make(map[string]string, len(peers))
	for _, peer := range peers {
		if peer == "" {
			continue
		}
		next[peer] = r.entries[peer]
	}
	r.entries = next
}

// UpdateActivity sets the activity string for a peer. An update for an
// unknown peer creates an online entry, since activity implies liveness.
func (r *Registry) UpdateActivity(peer, activity string) {
	if peer == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[peer]; !ok {
		r.logger.Debug("activity for unknown peer, marking online", slog.String("peer", peer))
	}
	r.entries[peer] = activity
}

// Remove drops a deleted peer entirely, regardless of prior state.
func (r *Registry) Remove(peer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, peer)
}

// Clear empties the registry. Used on disconnect and session teardown.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]string)
}

// IsOnline reports whether the peer is in the online set.
func (r *Registry) IsOnline(peer string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[peer]
	return ok
}

// Activity returns the peer's activity string and whether the peer is
// online.
func (r *Registry) Activity(peer string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	activity, ok := r.entries[peer]
	return activity, ok
}

// Online returns a snapshot of all online peers sorted by identity.
func (r *Registry) Online() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for peer, activity := range r.entries {
		out = append(out, Entry{Peer: peer, Activity: activity})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Peer < out[j].Peer })
	return out
}

// Len returns the number of online peers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
