package presence_test

import (
	"testing"

	"waveline/internal/logging"
	"waveline/internal/presence"
)

func newRegistry() *presence.Registry {
	return presence.NewRegistry(logging.NewNop())
}

func TestLastEventWins(t *testing.T) {
	cases := []struct {
		name   string
		events func(r *presence.Registry)
		online bool
	}{
		{
			name:   "connect",
			events: func(r *presence.Registry) { r.MarkOnline("a") },
			online: true,
		},
		{
			name: "connect then disconnect",
			events: func(r *presence.Registry) {
				r.MarkOnline("a")
				r.MarkOffline("a")
			},
			online: false,
		},
		{
			name: "disconnect then snapshot includes peer",
			events: func(r *presence.Registry) {
				r.MarkOnline("a")
				r.MarkOffline("a")
				r.ReplaceOnline([]string{"a", "b"})
			},
			online: true,
		},
		{
			name: "snapshot excludes peer",
			events: func(r *presence.Registry) {
				r.MarkOnline("a")
				r.ReplaceOnline([]string{"b"})
			},
			online: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRegistry()
			tc.events(r)
			if got := r.IsOnline("a"); got != tc.online {
				t.Fatalf("IsOnline(a) = %v, want %v", got, tc.online)
			}
		})
	}
}

func TestSnapshotIdempotent(t *testing.T) {
	r := newRegistry()
	r.ReplaceOnline([]string{"a", "b", "c"})
	r.UpdateActivity("b", "listening to Night Drive")

	first := r.Online()
	r.ReplaceOnline([]string{"a", "b", "c"})
	second := r.Online()

	if len(first) != len(second) {
		t.Fatalf("snapshot reapply changed size: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("snapshot reapply changed entry %d: %+v vs %+v", i, first[i], second[i])
		}
	}
	if activity, _ := r.Activity("b"); activity != "listening to Night Drive" {
		t.Fatalf("activity lost on snapshot reapply: %q", activity)
	}
}

func TestActivityForUnknownPeerCreatesOnlineEntry(t *testing.T) {
	r := newRegistry()
	r.UpdateActivity("ghost", "listening")
	if !r.IsOnline("ghost") {
		t.Fatal("activity update should imply liveness")
	}
	if activity, ok := r.Activity("ghost"); !ok || activity != "listening" {
		t.Fatalf("unexpected activity: %q ok=%v", activity, ok)
	}
}

func TestRemoveIsTerminal(t *testing.T) {
	r := newRegistry()
	r.MarkOnline("a")
	r.UpdateActivity("a", "listening")
	r.Remove("a")

	if r.IsOnline("a") {
		t.Fatal("removed peer must be offline")
	}
	if _, ok := r.Activity("a"); ok {
		t.Fatal("removed peer must have no activity entry")
	}

	// Only a fresh connect resurrects the peer.
	r.MarkOnline("a")
	if !r.IsOnline("a") {
		t.Fatal("fresh connect should bring peer back online")
	}
}

func TestClear(t *testing.T) {
	r := newRegistry()
	r.ReplaceOnline([]string{"a", "b"})
	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d entries", r.Len())
	}
}
