package ledger

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"waveline/internal/logging"
)

// Ledger maintains per-peer message lists, conversation metadata, and unread
// counters. It merges push events with REST snapshots, de-duplicating by
// server message ID so replays and overlapping fetches never double-count.
//
// Push events and UI-triggered mutations may interleave freely; every method
// is an atomic read-modify-write under the ledger lock, and the unread
// invariant (sum of per-peer counts equals the total) holds after each one.
type Ledger struct {
	mu          sync.RWMutex
	self        string
	api         API
	logger      *slog.Logger
	matchWindow time.Duration

	conversations map[string]*Conversation
	messages      map[string][]*Message // per peer, ordered by CreatedAt asc
	byServerID    map[string]*Message
	byLocalID     map[string]*Message
	totalUnread   int
}

// DefaultMatchWindow bounds how far apart an optimistic send and its push
// echo may be timestamped while still matching.
const DefaultMatchWindow = 10 * time.Second

// New creates a ledger for the authenticated identity.
func New(self string, api API, matchWindow time.Duration, logger *slog.Logger) *Ledger {
	if matchWindow <= 0 {
		matchWindow = DefaultMatchWindow
	}
	return &Ledger{
		self:        self,
		api:         api,
		logger:      logging.WithComponent(logger, "ledger"),
		matchWindow: matchWindow,

		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]*Message),
		byServerID:    make(map[string]*Message),
		byLocalID:     make(map[string]*Message),
	}
}

// ApplyIncoming merges a push-delivered message.
//
// A replayed message (already present by server ID) is dropped. An echo of
// an optimistic local send replaces the local copy in place. Anything else
// is inserted, creating the conversation record if needed, and increments
// unread counts when the local identity is the receiver.
func (l *Ledger) ApplyIncoming(m Message) {
	if m.ID == "" {
		l.logger.Warn("dropping push message without server id",
			slog.String("sender", m.SenderID))
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.byServerID[m.ID]; ok {
		l.logger.Debug("duplicate message delivery dropped", slog.String("id", m.ID))
		return
	}

	peer := m.PeerOf(l.self)
	inserted := false

	if m.SenderID == l.self {
		if local := l.matchOptimisticLocked(peer, m); local != nil {
			local.ID = m.ID
			local.CreatedAt = m.CreatedAt
			local.Content = m.Content
			local.Attachment = m.Attachment
			local.Edited = m.Edited
			l.byServerID[m.ID] = local
			l.resortLocked(peer)
			inserted = true
		}
	}

	if !inserted {
		copied := m
		l.insertLocked(peer, &copied)
		if m.ReceiverID == l.self {
			conv := l.ensureConversationLocked(peer)
			conv.Unread++
			l.totalUnread++
		}
	}

	conv := l.ensureConversationLocked(peer)
	if !m.CreatedAt.Before(conv.LastMessageTime) {
		conv.LastMessage = m.Content
		conv.LastMessageTime = m.CreatedAt
	}
}

// ApplyReadReceipt records that the peer has read the conversation up to the
// given time.
func (l *Ledger) ApplyReadReceipt(peer string, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	conv := l.ensureConversationLocked(peer)
	if at.After(conv.PeerLastRead) {
		conv.PeerLastRead = at
	}
}

// ApplyUnreadUpdate applies a server-pushed unread counter for one peer. The
// aggregate is recomputed from the per-peer records so the sum invariant
// holds; a disagreement with the server total is logged.
func (l *Ledger) ApplyUnreadUpdate(peer string, count, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	conv := l.ensureConversationLocked(peer)
	conv.Unread = count
	l.recomputeTotalLocked()
	if l.totalUnread != total {
		l.logger.Debug("unread total disagrees with server",
			slog.Int("local", l.totalUnread), slog.Int("server", total))
	}
}

// MergeMessages merges a REST message snapshot for one peer. Entries are
// keyed by server ID: known messages take the authoritative content, new
// ones are inserted, and unconfirmed local sends are preserved. Unread
// counters are untouched; those are owned by push events and the
// conversation snapshot.
func (l *Ledger) MergeMessages(peer string, msgs []Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, m := range msgs {
		if m.ID == "" {
			continue
		}
		if existing, ok := l.byServerID[m.ID]; ok {
			existing.Content = m.Content
			existing.Attachment = m.Attachment
			existing.CreatedAt = m.CreatedAt
			existing.Edited = m.Edited
			continue
		}
		copied := m
		l.insertLocked(peer, &copied)
	}
	l.resortLocked(peer)
	l.refreshLastMessageLocked(peer)
}

// MergeConversations applies a REST conversation-list snapshot. Fetched
// records are authoritative for metadata and unread counts; records the
// server does not know about (purely local optimistic sends) survive.
func (l *Ledger) MergeConversations(convs []Conversation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, fetched := range convs {
		if fetched.PeerID == "" {
			continue
		}
		conv := l.ensureConversationLocked(fetched.PeerID)
		conv.LastMessage = fetched.LastMessage
		conv.LastMessageTime = fetched.LastMessageTime
		conv.Pinned = fetched.Pinned
		conv.Muted = fetched.Muted
		conv.Unread = fetched.Unread
	}
	l.recomputeTotalLocked()
}

// RemovePeer drops the conversation and all messages for a deleted peer.
func (l *Ledger) RemovePeer(peer string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages[peer] {
		if m.ID != "" {
			delete(l.byServerID, m.ID)
		}
		if m.LocalID != "" {
			delete(l.byLocalID, m.LocalID)
		}
	}
	delete(l.messages, peer)
	delete(l.conversations, peer)
	l.recomputeTotalLocked()
}

// Clear wipes all ledger state. Used on session teardown.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conversations = make(map[string]*Conversation)
	l.messages = make(map[string][]*Message)
	l.byServerID = make(map[string]*Message)
	l.byLocalID = make(map[string]*Message)
	l.totalUnread = 0
}

// Conversations returns the conversation list ordered for display: pinned
// first, then most recent message first.
func (l *Ledger) Conversations() []Conversation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Conversation, 0, len(l.conversations))
	for _, conv := range l.conversations {
		out = append(out, *conv)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		if !out[i].LastMessageTime.Equal(out[j].LastMessageTime) {
			return out[i].LastMessageTime.After(out[j].LastMessageTime)
		}
		return out[i].PeerID < out[j].PeerID
	})
	return out
}

// Conversation returns the record for one peer.
func (l *Ledger) Conversation(peer string) (Conversation, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	conv, ok := l.conversations[peer]
	if !ok {
		return Conversation{}, false
	}
	return *conv, true
}

// MessagesFor returns the messages exchanged with a peer, ordered by
// creation time ascending.
func (l *Ledger) MessagesFor(peer string) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	msgs := l.messages[peer]
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, *m)
	}
	return out
}

// TotalUnread returns the aggregate unread count across all conversations.
func (l *Ledger) TotalUnread() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalUnread
}

// UnreadFor returns the unread count for one peer.
func (l *Ledger) UnreadFor(peer string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if conv, ok := l.conversations[peer]; ok {
		return conv.Unread
	}
	return 0
}

func (l *Ledger) ensureConversationLocked(peer string) *Conversation {
	conv, ok := l.conversations[peer]
	if !ok {
		conv = &Conversation{PeerID: peer}
		l.conversations[peer] = conv
	}
	return conv
}

func (l *Ledger) matchOptimisticLocked(peer string, m Message) *Message {
	msgs := l.messages[peer]
	for i := len(msgs) - 1; i >= 0; i-- {
		local := msgs[i]
		if local.Confirmed() {
			continue
		}
		if local.SenderID != m.SenderID || local.ReceiverID != m.ReceiverID {
			continue
		}
		if local.Content != m.Content {
			continue
		}
		delta := m.CreatedAt.Sub(local.CreatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= l.matchWindow {
			return local
		}
	}
	return nil
}

func (l *Ledger) insertLocked(peer string, m *Message) {
	msgs := l.messages[peer]
	idx := sort.Search(len(msgs), func(i int) bool {
		return msgs[i].CreatedAt.After(m.CreatedAt)
	})
	msgs = append(msgs, nil)
	copy(msgs[idx+1:], msgs[idx:])
	msgs[idx] = m
	l.messages[peer] = msgs

	if m.ID != "" {
		l.byServerID[m.ID] = m
	}
	if m.LocalID != "" {
		l.byLocalID[m.LocalID] = m
	}
}

func (l *Ledger) removeLocked(peer string, target *Message) {
	msgs := l.messages[peer]
	for i, m := range msgs {
		if m == target {
			l.messages[peer] = append(msgs[:i], msgs[i+1:]...)
			break
		}
	}
	if target.ID != "" {
		delete(l.byServerID, target.ID)
	}
	if target.LocalID != "" {
		delete(l.byLocalID, target.LocalID)
	}
}

func (l *Ledger) resortLocked(peer string) {
	msgs := l.messages[peer]
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}

func (l *Ledger) refreshLastMessageLocked(peer string) {
	msgs := l.messages[peer]
	if len(msgs) == 0 {
		return
	}
	last := msgs[len(msgs)-1]
	conv := l.ensureConversationLocked(peer)
	if !last.CreatedAt.Before(conv.LastMessageTime) {
		conv.LastMessage = last.Content
		conv.LastMessageTime = last.CreatedAt
	}
}

func (l *Ledger) recomputeTotalLocked() {
	total := 0
	for _, conv := range l.conversations {
		total += conv.Unread
	}
	l.totalUnread = total
}
