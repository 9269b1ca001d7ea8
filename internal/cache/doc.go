// Package cache persists the last known conversation, message, and
// notification snapshots in a local SQLite database. The cache lets the CLI
// show recent state without a network round trip; registries always treat
// the server as authoritative and overwrite cached rows on resync.
package cache
