// Package ledger is the single source of truth for conversation state on the
// client: per-peer message lists, thread metadata, and unread counters.
//
// Two ingest paths feed it. Push events arrive one at a time in delivery
// order; REST snapshots arrive whenever the UI refreshes. Both merge through
// the same id-keyed rules, so duplicate deliveries, races between an
// optimistic send and its push echo, and stale fetch responses all collapse
// to a single copy per server message ID.
//
// Mutation revert policy differs by field on purpose: pin and mute roll back
// when the confirming request fails, the read state does not. See MarkRead.
package ledger
