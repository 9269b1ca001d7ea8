// Package push owns the persistent websocket connection to the realtime
// endpoint. It decodes wire frames into a closed set of typed events and
// exposes them on a buffered channel; it performs no retries and holds no
// registry state, so consumers see every transition including the final
// Disconnected.
package push
