package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"waveline/internal/optimistic"
)

// Send appends an optimistic local message, issues the REST send, and
// reconciles the response with the local copy. If the push echo arrives
// before the REST response, the echo wins and the response is treated as a
// duplicate. On failure the local copy is removed and the error returned so
// the caller can show a send-failure indicator.
func (l *Ledger) Send(ctx context.Context, req SendRequest) (Message, error) {
	local := Message{
		LocalID:    uuid.NewString(),
		SenderID:   l.self,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
		Attachment: req.AttachmentName,
		CreatedAt:  time.Now().UTC(),
	}

	l.mu.Lock()
	copied := local
	l.insertLocked(req.ReceiverID, &copied)
	conv := l.ensureConversationLocked(req.ReceiverID)
	if !local.CreatedAt.Before(conv.LastMessageTime) {
		conv.LastMessage = local.Content
		conv.LastMessageTime = local.CreatedAt
	}
	l.mu.Unlock()

	sent, err := l.api.SendMessage(ctx, req)
	if err != nil {
		l.discardLocal(local.LocalID, req.ReceiverID)
		return Message{}, fmt.Errorf("send message: %w", err)
	}

	return l.confirmLocal(local.LocalID, req.ReceiverID, sent), nil
}

// MarkRead zeroes the unread count for a peer immediately and confirms via
// REST. The optimistic zero is kept even when the REST call fails: a missed
// read-ack is survivable and will settle on the next snapshot, whereas
// double-counting is not.
func (l *Ledger) MarkRead(ctx context.Context, peer string) error {
	return optimistic.Run(ctx, optimistic.Mutation{
		Apply: func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			conv := l.ensureConversationLocked(peer)
			l.totalUnread -= conv.Unread
			conv.Unread = 0
		},
	}, false, func(ctx context.Context) error {
		if err := l.api.MarkConversationRead(ctx, peer); err != nil {
			l.logger.Warn("read confirmation failed, keeping local state",
				slog.String("peer", peer), slog.Any("error", err))
			return fmt.Errorf("mark conversation read: %w", err)
		}
		return nil
	})
}

// SetPinned toggles the pin flag optimistically and reverts on REST failure.
func (l *Ledger) SetPinned(ctx context.Context, peer string, pinned bool) error {
	var prior bool
	return optimistic.Run(ctx, optimistic.Mutation{
		Apply: func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			conv := l.ensureConversationLocked(peer)
			prior = conv.Pinned
			conv.Pinned = pinned
		},
		Revert: func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.ensureConversationLocked(peer).Pinned = prior
		},
	}, true, func(ctx context.Context) error {
		if err := l.api.SetConversationPinned(ctx, peer, pinned); err != nil {
			return fmt.Errorf("pin conversation: %w", err)
		}
		return nil
	})
}

// SetMuted toggles the mute flag optimistically and reverts on REST failure.
func (l *Ledger) SetMuted(ctx context.Context, peer string, muted bool) error {
	var prior bool
	return optimistic.Run(ctx, optimistic.Mutation{
		Apply: func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			conv := l.ensureConversationLocked(peer)
			prior = conv.Muted
			conv.Muted = muted
		},
		Revert: func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.ensureConversationLocked(peer).Muted = prior
		},
	}, true, func(ctx context.Context) error {
		if err := l.api.SetConversationMuted(ctx, peer, muted); err != nil {
			return fmt.Errorf("mute conversation: %w", err)
		}
		return nil
	})
}

// Edit replaces message content after REST confirmation and sets the edited
// flag. The mutation is not optimistic; the caller sees the error directly.
func (l *Ledger) Edit(ctx context.Context, peer, id, content string) error {
	updated, err := l.api.EditMessage(ctx, id, content)
	if err != nil {
		return fmt.Errorf("edit message: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.byServerID[id]; ok {
		existing.Content = updated.Content
		existing.Edited = true
	} else {
		// Editing a message we never saw; adopt the server copy.
		copied := updated
		copied.Edited = true
		l.insertLocked(peer, &copied)
	}
	l.refreshLastMessageLocked(peer)
	return nil
}

// Delete removes a message after REST confirmation.
func (l *Ledger) Delete(ctx context.Context, peer, id string) error {
	if err := l.api.DeleteMessage(ctx, id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.byServerID[id]; ok {
		l.removeLocked(peer, existing)
	}
	return nil
}

// Refresh pulls the conversation-list snapshot and merges it.
func (l *Ledger) Refresh(ctx context.Context) error {
	convs, err := l.api.FetchConversations(ctx)
	if err != nil {
		return fmt.Errorf("fetch conversations: %w", err)
	}
	l.MergeConversations(convs)
	return nil
}

// RefreshMessages pulls the message snapshot for one peer and merges it.
// Overlapping or stale fetches are safe: the merge is idempotent per message
// ID.
func (l *Ledger) RefreshMessages(ctx context.Context, peer string) error {
	msgs, err := l.api.FetchMessages(ctx, peer)
	if err != nil {
		return fmt.Errorf("fetch messages for %s: %w", peer, err)
	}
	l.MergeMessages(peer, msgs)
	return nil
}

func (l *Ledger) discardLocal(localID, peer string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	local, ok := l.byLocalID[localID]
	if !ok || local.Confirmed() {
		// Already replaced by the push echo; nothing to roll back.
		return
	}
	l.removeLocked(peer, local)
	l.refreshLastMessageLocked(peer)
}

func (l *Ledger) confirmLocal(localID, peer string, sent Message) Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	local, ok := l.byLocalID[localID]
	if !ok {
		if existing, found := l.byServerID[sent.ID]; found {
			return *existing
		}
		copied := sent
		l.insertLocked(peer, &copied)
		return copied
	}

	if local.Confirmed() {
		// Push echo won the race; the REST response is a duplicate.
		if sent.ID != "" && sent.ID != local.ID {
			l.logger.Warn("send confirmation id mismatch",
				slog.String("echo", local.ID), slog.String("rest", sent.ID))
		}
		return *local
	}

	if sent.ID != "" {
		if existing, found := l.byServerID[sent.ID]; found && existing != local {
			// The same message arrived independently; keep one copy.
			l.removeLocked(peer, local)
			return *existing
		}
	}

	local.ID = sent.ID
	local.Content = sent.Content
	local.Attachment = sent.Attachment
	local.CreatedAt = sent.CreatedAt
	local.Edited = sent.Edited
	if sent.ID != "" {
		l.byServerID[sent.ID] = local
	}
	l.resortLocked(peer)
	l.refreshLastMessageLocked(peer)
	return *local
}
