package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"waveline/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	readLimit  = 64 * 1024
)

// ErrNotConnected is returned for outbound operations on a closed channel.
var ErrNotConnected = errors.New("push channel not connected")

// ErrUnknownEvent marks frames whose kind is outside the closed variant set.
var ErrUnknownEvent = errors.New("unknown push event")

// DefaultEventBuffer is the event queue depth used when none is configured.
const DefaultEventBuffer = 256

// Channel manages the single persistent push connection for a session. It is
// a thin lifecycle and event wrapper: it does not retry on its own, and a
// transport failure surfaces as a Disconnected event, leaving the retry
// policy to the session shell.
type Channel struct {
	url    string
	token  string
	dialer *websocket.Dialer
	logger *slog.Logger
	events chan Event

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}
}

// NewChannel creates a channel pointing at the push endpoint. Events are
// buffered; when the consumer falls behind by more than the buffer depth,
// further events are dropped and logged.
func NewChannel(url, token string, buffer int, logger *slog.Logger) *Channel {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &Channel{
		url:    url,
		token:  token,
		dialer: websocket.DefaultDialer,
		logger: logging.WithComponent(logger, "push"),
		events: make(chan Event, buffer),
	}
}

// Connect opens the connection, authenticates, and announces the caller's
// identity with a user_connected frame. Calling Connect while connected is a
// no-op; a second socket is never opened.
func (c *Channel) Connect(ctx context.Context, self string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial push channel: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dial push channel: %w", err)
	}

	announce := frame{Event: "user_connected", Data: mustMarshal(peerPayload{Peer: self})}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(announce); err != nil {
		_ = conn.Close()
		return fmt.Errorf("announce identity: %w", err)
	}

	done := make(chan struct{})
	c.conn = conn
	c.done = done

	c.deliver(Connected{})
	go c.readLoop(conn, done)
	go c.pingLoop(conn, done)

	c.logger.Info("connected", slog.String("peer", self))
	return nil
}

// Disconnect tears the connection down. The final event delivered is
// Disconnected; nothing more is emitted until the next Connect.
func (c *Channel) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	close(c.done)
	err := c.conn.Close()
	c.conn = nil
	c.done = nil
	c.deliver(Disconnected{})
	c.logger.Info("disconnected")
	return err
}

// Connected reports whether a connection is currently open.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Events is the typed event stream. The channel is shared across reconnects
// and never closed; consumers stop on Disconnected or their own context.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// SendTyping writes an outbound typing indicator for the given peer.
// Debouncing is the caller's responsibility.
func (c *Channel) SendTyping(peer string, typing bool) error {
	event := "typing_stop"
	if typing {
		event = "typing_start"
	}
	return c.write(frame{Event: event, Data: mustMarshal(typingPayload{Peer: peer})})
}

func (c *Channel) write(f frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("write %s frame: %w", f.Event, err)
	}
	return nil
}

func (c *Channel) readLoop(conn *websocket.Conn, done chan struct{}) {
	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(conn, done, err)
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Warn("malformed push frame", slog.Any("error", err))
			continue
		}
		event, err := decodeEvent(f)
		if err != nil {
			c.logger.Warn("rejecting push frame", slog.String("event", f.Event), slog.Any("error", err))
			continue
		}
		if !c.deliverFrom(conn, event) {
			return
		}
	}
}

// deliverFrom enqueues an event only while conn is still the active
// connection. Disconnect swaps the connection under the same lock, so no
// frame lands after the Disconnected event.
func (c *Channel) deliverFrom(conn *websocket.Conn, event Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return false
	}
	c.deliver(event)
	return true
}

// handleReadError distinguishes a transport failure from an explicit
// Disconnect, which closed done before closing the socket.
func (c *Channel) handleReadError(conn *websocket.Conn, done chan struct{}, err error) {
	select {
	case <-done:
		return
	default:
	}

	c.mu.Lock()
	if c.conn == conn {
		close(c.done)
		_ = c.conn.Close()
		c.conn = nil
		c.done = nil
		c.deliver(Disconnected{Err: err})
		c.logger.Warn("connection lost", slog.Any("error", err))
	}
	c.mu.Unlock()
}

func (c *Channel) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.ping(conn); err != nil {
				return
			}
		}
	}
}

// ping serializes with other writers; gorilla connections allow only one
// concurrent writer.
func (c *Channel) ping(conn *websocket.Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return ErrNotConnected
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *Channel) deliver(event Event) {
	select {
	case c.events <- event:
	default:
		c.logger.Warn("event buffer full, dropping event")
	}
}
