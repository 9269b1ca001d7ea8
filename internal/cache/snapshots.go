package cache

import (
	"context"
	"fmt"
	"time"

	"waveline/internal/feed"
	"waveline/internal/ledger"
)

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// SaveConversations replaces the cached conversation snapshot.
func (s *Store) SaveConversations(ctx context.Context, conversations []ledger.Conversation) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin conversations tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, "DELETE FROM conversations"); err != nil {
			return fmt.Errorf("clear conversations: %w", err)
		}
		for _, conv := range conversations {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO conversations (peer_id, last_message, last_message_time, is_pinned, is_muted, unread_count)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				conv.PeerID, conv.LastMessage, encodeTime(conv.LastMessageTime),
				boolToInt(conv.Pinned), boolToInt(conv.Muted), conv.Unread,
			); err != nil {
				return fmt.Errorf("insert conversation %s: %w", conv.PeerID, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit conversations: %w", err)
		}
		return nil
	})
}

// Conversations returns the cached conversation snapshot.
func (s *Store) Conversations(ctx context.Context) ([]ledger.Conversation, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT peer_id, last_message, last_message_time, is_pinned, is_muted, unread_count
		 FROM conversations ORDER BY is_pinned DESC, last_message_time DESC, peer_id`)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var out []ledger.Conversation
	for rows.Next() {
		var (
			conv    ledger.Conversation
			lastRaw string
			pinned  int
			muted   int
		)
		if err := rows.Scan(&conv.PeerID, &conv.LastMessage, &lastRaw, &pinned, &muted, &conv.Unread); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conv.LastMessageTime = decodeTime(lastRaw)
		conv.Pinned = pinned != 0
		conv.Muted = muted != 0
		out = append(out, conv)
	}
	return out, rows.Err()
}

// SaveMessages replaces the cached history for one peer. Unconfirmed
// messages have no server identity and are skipped.
func (s *Store) SaveMessages(ctx context.Context, self, peer string, messages []ledger.Message) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin messages tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE peer_id = ?", peer); err != nil {
			return fmt.Errorf("clear messages for %s: %w", peer, err)
		}
		for _, msg := range messages {
			if !msg.Confirmed() {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO messages (id, peer_id, sender_id, receiver_id, content, attachment, created_at, edited)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				msg.ID, msg.PeerOf(self), msg.SenderID, msg.ReceiverID,
				msg.Content, msg.Attachment, encodeTime(msg.CreatedAt), boolToInt(msg.Edited),
			); err != nil {
				return fmt.Errorf("insert message %s: %w", msg.ID, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit messages: %w", err)
		}
		return nil
	})
}

// Messages returns the cached history for one peer, oldest first.
func (s *Store) Messages(ctx context.Context, peer string) ([]ledger.Message, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender_id, receiver_id, content, attachment, created_at, edited
		 FROM messages WHERE peer_id = ? ORDER BY created_at, id`, peer)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []ledger.Message
	for rows.Next() {
		var (
			msg        ledger.Message
			createdRaw string
			edited     int
		)
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.Attachment, &createdRaw, &edited); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.CreatedAt = decodeTime(createdRaw)
		msg.Edited = edited != 0
		out = append(out, msg)
	}
	return out, rows.Err()
}

// SaveNotifications replaces the cached notification snapshot, preserving
// feed order through the position column.
func (s *Store) SaveNotifications(ctx context.Context, notifications []feed.Notification) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin notifications tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, "DELETE FROM notifications"); err != nil {
			return fmt.Errorf("clear notifications: %w", err)
		}
		for i, n := range notifications {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO notifications (id, position, kind, title, message, is_read, created_at, sender_ref, action_target)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				n.ID, i, string(n.Kind), n.Title, n.Message,
				boolToInt(n.Read), encodeTime(n.CreatedAt), n.SenderRef, n.ActionTarget,
			); err != nil {
				return fmt.Errorf("insert notification %s: %w", n.ID, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit notifications: %w", err)
		}
		return nil
	})
}

// Notifications returns the cached notification snapshot in feed order.
func (s *Store) Notifications(ctx context.Context) ([]feed.Notification, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, title, message, is_read, created_at, sender_ref, action_target
		 FROM notifications ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []feed.Notification
	for rows.Next() {
		var (
			n          feed.Notification
			kind       string
			read       int
			createdRaw string
		)
		if err := rows.Scan(&n.ID, &kind, &n.Title, &n.Message, &read, &createdRaw, &n.SenderRef, &n.ActionTarget); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Kind = feed.Kind(kind)
		n.Read = read != 0
		n.CreatedAt = decodeTime(createdRaw)
		out = append(out, n)
	}
	return out, rows.Err()
}

// RemovePeer drops the cached conversation and history for a deleted peer.
func (s *Store) RemovePeer(ctx context.Context, peer string) error {
	if err := s.execWithRetry(ctx, "DELETE FROM conversations WHERE peer_id = ?", peer); err != nil {
		return fmt.Errorf("remove conversation %s: %w", peer, err)
	}
	if err := s.execWithRetry(ctx, "DELETE FROM messages WHERE peer_id = ?", peer); err != nil {
		return fmt.Errorf("remove messages for %s: %w", peer, err)
	}
	return nil
}
