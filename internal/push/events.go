package push

import (
	"encoding/json"
	"fmt"
	"time"

	"waveline/internal/feed"
	"waveline/internal/ledger"
)

// Event is one typed push-channel event. The variant set is closed; frames
// with an unknown kind fail decoding and are logged rather than silently
// ignored.
type Event interface{ event() }

// Connected reports that the channel established its connection and the
// identity handshake was sent.
type Connected struct{}

// Disconnected reports that the connection is gone. Err is nil for an
// explicit disconnect and carries the transport error otherwise.
type Disconnected struct{ Err error }

// PeerConnected reports a peer coming online.
type PeerConnected struct{ Peer string }

// PeerDisconnected reports a peer going offline.
type PeerDisconnected struct{ Peer string }

// OnlineSet is a full snapshot of the online peers.
type OnlineSet struct{ Peers []string }

// ActivityUpdated carries a peer's new activity string.
type ActivityUpdated struct {
	Peer     string
	Activity string
}

// TypingStart reports that a peer started typing to us.
type TypingStart struct {
	Peer string
	Meta string
}

// TypingStop reports that a peer stopped typing.
type TypingStop struct{ Peer string }

// MessageReceived delivers a direct message.
type MessageReceived struct{ Message ledger.Message }

// ReadReceipt reports that a peer read our conversation.
type ReadReceipt struct {
	Peer string
	At   time.Time
}

// UnreadUpdate carries server-authoritative unread counters.
type UnreadUpdate struct {
	Peer  string
	Count int
	Total int
}

// NotificationPushed delivers a new notification.
type NotificationPushed struct{ Notification feed.Notification }

// NotificationCount carries the server-authoritative unread notification
// total.
type NotificationCount struct{ Total int }

// PeerDeleted reports that a peer's account no longer exists.
type PeerDeleted struct{ Peer string }

func (Connected) event()          {}
func (Disconnected) event()       {}
func (PeerConnected) event()      {}
func (PeerDisconnected) event()   {}
func (OnlineSet) event()          {}
func (ActivityUpdated) event()    {}
func (TypingStart) event()        {}
func (TypingStop) event()         {}
func (MessageReceived) event()    {}
func (ReadReceipt) event()        {}
func (UnreadUpdate) event()       {}
func (NotificationPushed) event() {}
func (NotificationCount) event()  {}
func (PeerDeleted) event()        {}

// frame is the wire envelope for both directions.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type peerPayload struct {
	Peer string `json:"peer_id"`
}

type onlineSetPayload struct {
	Peers []string `json:"peer_ids"`
}

type activityPayload struct {
	Peer     string `json:"peer_id"`
	Activity string `json:"activity"`
}

type typingPayload struct {
	Peer string `json:"peer_id"`
	Meta string `json:"meta,omitempty"`
}

type readReceiptPayload struct {
	Peer string    `json:"peer_id"`
	At   time.Time `json:"timestamp"`
}

type unreadPayload struct {
	Peer  string `json:"peer_id"`
	Count int    `json:"count"`
	Total int    `json:"total"`
}

type countPayload struct {
	Count int `json:"count"`
}

// decodeEvent converts a wire frame into its typed event.
func decodeEvent(f frame) (Event, error) {
	switch f.Event {
	case "peer_connected":
		var p peerPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, decodeErr(f.Event, err)
		}
		return PeerConnected{Peer: p.Peer}, nil
	case "peer_disconnected":
		var p peerPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, decodeErr(f.Event, err)
		}
		return PeerDisconnected{Peer: p.Peer}, nil
	case "online_set":
		var p onlineSetPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, decodeErr(f.Event, err)
		}
		return OnlineSet{Peers: p.Peers}, nil
	case "activity_updated":
		var p activityPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, decodeErr(f.Event, err)
		}
		return ActivityUpdated{Peer: p.Peer, Activity: p.Activity}, nil
	case "typing_start":
		var p typingPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, decodeErr(f.Event, err)
		}
		return TypingStart{Peer: p.Peer, Meta: p.Meta}, nil
	case "typing_stop":
		var p typingPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, decodeErr(f.Event, err)
		}
		return TypingStop{Peer: p.Peer}, nil
	case "message_received":
		var m ledger.Message
		if err := json.Unmarshal(f.Data, &m); err != nil {
			return nil, decodeErr(f.Event, err)
		}
		return MessageReceived{Message: m}, nil
	case "read_receipt":
		var p readReceiptPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, decodeErr(f.Event, err)
		}
		return ReadReceipt{Peer: p.Peer, At: p.At}, nil
	case "unread_count_update":
		var p unreadPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, decodeErr(f.Event, err)
		}
		return UnreadUpdate{Peer: p.Peer, Count: p.Count, Total: p.Total}, nil
	case "new_notification":
		var n feed.Notification
		if err := json.Unmarshal(f.Data, &n); err != nil {
			return nil, decodeErr(f.Event, err)
		}
		return NotificationPushed{Notification: n}, nil
	case "notification_count_update":
		var p countPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, decodeErr(f.Event, err)
		}
		return NotificationCount{Total: p.Count}, nil
	case "peer_deleted":
		var p peerPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, decodeErr(f.Event, err)
		}
		return PeerDeleted{Peer: p.Peer}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, f.Event)
	}
}

func decodeErr(event string, err error) error {
	return fmt.Errorf("decode %s payload: %w", event, err)
}

// mustMarshal is for payload types fully under our control; marshaling them
// cannot fail.
func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
