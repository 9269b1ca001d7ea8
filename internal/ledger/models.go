package ledger

import (
	"context"
	"io"
	"time"
)

// Message is one direct message. Identity is the server-assigned ID; a
// message still waiting for confirmation carries only a LocalID.
type Message struct {
	ID         string    `json:"id"`
	LocalID    string    `json:"-"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	Attachment string    `json:"attachment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Edited     bool      `json:"edited"`
}

// Confirmed reports whether the message has a server identity.
func (m Message) Confirmed() bool { return m.ID != "" }

// PeerOf returns the conversation partner for the given local identity.
func (m Message) PeerOf(self string) string {
	if m.SenderID == self {
		return m.ReceiverID
	}
	return m.SenderID
}

// Conversation is the per-peer thread metadata. One record exists per peer
// with whom any message has ever been exchanged.
type Conversation struct {
	PeerID          string    `json:"peer_id"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	Pinned          bool      `json:"is_pinned"`
	Muted           bool      `json:"is_muted"`
	Unread          int       `json:"unread_count"`
	PeerLastRead    time.Time `json:"-"`
}

// SendRequest describes an outbound message. Attachment may be nil for
// text-only sends.
type SendRequest struct {
	ReceiverID     string
	Content        string
	AttachmentName string
	Attachment     io.Reader
}

// API is the REST surface the ledger confirms its mutations against.
type API interface {
	FetchConversations(ctx context.Context) ([]Conversation, error)
	FetchMessages(ctx context.Context, peer string) ([]Message, error)
	SendMessage(ctx context.Context, req SendRequest) (Message, error)
	EditMessage(ctx context.Context, id, content string) (Message, error)
	DeleteMessage(ctx context.Context, id string) error
	MarkConversationRead(ctx context.Context, peer string) error
	SetConversationPinned(ctx context.Context, peer string, pinned bool) error
	SetConversationMuted(ctx context.Context, peer string, muted bool) error
}
