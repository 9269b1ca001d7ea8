package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Frame mirrors the push wire envelope so tests can assert on what the
// client sent and craft what the server emits.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// PushServer is an in-process websocket endpoint standing in for the realtime
// backend. It records every inbound frame and lets tests emit frames to the
// connected client.
type PushServer struct {
	t   testing.TB
	srv *httptest.Server

	mu     sync.Mutex
	conn   *websocket.Conn
	frames []Frame
	auth   []string

	connected chan struct{}
}

// NewPushServer starts the fake endpoint and registers cleanup.
func NewPushServer(t testing.TB) *PushServer {
	t.Helper()

	s := &PushServer{t: t, connected: make(chan struct{}, 8)}
	upgrader := websocket.Upgrader{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conn = conn
		s.auth = append(s.auth, r.Header.Get("Authorization"))
		s.mu.Unlock()
		select {
		case s.connected <- struct{}{}:
		default:
		}
		s.readFrames(conn)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *PushServer) readFrames(conn *websocket.Conn) {
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		s.mu.Lock()
		s.frames = append(s.frames, f)
		s.mu.Unlock()
	}
}

// URL returns the websocket URL of the endpoint.
func (s *PushServer) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// WaitForConnection blocks until a client connects or the timeout elapses.
func (s *PushServer) WaitForConnection(timeout time.Duration) {
	s.t.Helper()
	select {
	case <-s.connected:
	case <-time.After(timeout):
		s.t.Fatal("no client connected to push server")
	}
}

// Emit sends one frame to the connected client.
func (s *PushServer) Emit(event string, data any) {
	s.t.Helper()

	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			s.t.Fatalf("marshal %s payload: %v", event, err)
		}
		raw = encoded
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		s.t.Fatalf("emit %s: no client connected", event)
	}
	if err := conn.WriteJSON(Frame{Event: event, Data: raw}); err != nil {
		s.t.Fatalf("emit %s: %v", event, err)
	}
}

// EmitRaw sends a frame with a verbatim JSON payload, valid or not.
func (s *PushServer) EmitRaw(payload string) {
	s.t.Helper()

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		s.t.Fatal("emit raw: no client connected")
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		s.t.Fatalf("emit raw: %v", err)
	}
}

// DropClient severs the current connection without shutting the server down,
// simulating a network failure from the client's point of view.
func (s *PushServer) DropClient() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Frames returns a copy of the inbound frames recorded so far.
func (s *PushServer) Frames() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// WaitForFrame polls until an inbound frame with the given event arrives.
func (s *PushServer) WaitForFrame(event string, timeout time.Duration) Frame {
	s.t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, f := range s.Frames() {
			if f.Event == event {
				return f
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.t.Fatalf("no %s frame received", event)
	return Frame{}
}

// AuthHeaders returns the Authorization header of each accepted connection.
func (s *PushServer) AuthHeaders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.auth))
	copy(out, s.auth)
	return out
}

// Close shuts the server down. Safe to call more than once.
func (s *PushServer) Close() {
	s.DropClient()
	s.srv.Close()
}
