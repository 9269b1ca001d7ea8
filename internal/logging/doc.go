// Package logging assembles the structured slog loggers shared by the
// waveline client.
//
// It owns the console and JSON handlers, centralizes level parsing and file
// output plumbing, and provides a no-op logger for tests and wiring code that
// cannot fail. Components receive a logger tagged via WithComponent so every
// line carries its origin.
//
// Prefer these constructors over hand-rolled slog setup so all packages emit
// records with the same shape.
package logging
