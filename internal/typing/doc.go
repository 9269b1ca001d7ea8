// Package typing holds the ephemeral per-peer typing indicators. State here
// is never persisted and never appears in REST payloads; the only resource it
// owns is the expiry timers, which must be cleared on teardown.
package typing
