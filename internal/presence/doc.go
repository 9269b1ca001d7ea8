// Package presence maintains the set of online peers and their activity
// strings, fed by push channel events.
//
// The registry is deliberately memoryless about offline peers: a peer is
// either in the online set or not, and a deleted peer cannot resurface
// without a fresh connect event.
package presence
