// Package session wires the push channel, REST client, snapshot cache, and
// the four realtime registries into one per-login object. The session owns
// the event dispatch loop, the resync performed after connecting, and the
// teardown ordering; everything the registries know flows through it, so
// closing the session leaves no goroutines or timers behind.
package session
