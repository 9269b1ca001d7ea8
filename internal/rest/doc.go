// Package rest is the HTTP client for the streaming service backend. It
// implements the confirmation surfaces the ledger and feed mutate against,
// plus the snapshot fetches (conversations, messages, notifications, online
// peers) used to reconcile registries after a reconnect.
package rest
