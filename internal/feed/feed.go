package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"waveline/internal/logging"
	"waveline/internal/optimistic"
)

// Kind enumerates the notification categories the client understands.
type Kind string

const (
	KindFriendRequest         Kind = "friend_request"
	KindFriendRequestAccepted Kind = "friend_request_accepted"
	KindArtistApproved        Kind = "artist_approved"
	KindNewMessage            Kind = "new_message"
	KindOther                 Kind = "other"
)

// Notification is one feed entry.
type Notification struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	Read         bool      `json:"is_read"`
	CreatedAt    time.Time `json:"created_at"`
	SenderRef    string    `json:"sender_ref,omitempty"`
	ActionTarget string    `json:"action_target,omitempty"`
}

// API is the REST surface the feed confirms its mutations against.
type API interface {
	FetchNotifications(ctx context.Context, page, pageSize int) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
}

// Feed holds the ordered notification list: push-delivered entries at the
// head, REST pages appended at the tail. Entries are de-duplicated by ID so
// a pushed notification showing up again in a later page keeps its place.
type Feed struct {
	mu       sync.RWMutex
	api      API
	logger   *slog.Logger
	pageSize int

	entries []*Notification
	byID    map[string]*Notification
	unread  int
}

// DefaultPageSize is used when no page size is configured.
const DefaultPageSize = 20

// New creates an empty feed.
func New(api API, pageSize int, logger *slog.Logger) *Feed {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Feed{
		api:      api,
		logger:   logging.WithComponent(logger, "feed"),
		pageSize: pageSize,
		byID:     make(map[string]*Notification),
	}
}

// FetchPage loads one REST page. Page 1 replaces the feed so a refresh never
// duplicates; later pages append, skipping IDs already present.
func (f *Feed) FetchPage(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	fetched, err := f.api.FetchNotifications(ctx, page, f.pageSize)
	if err != nil {
		return fmt.Errorf("fetch notifications page %d: %w", page, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if page == 1 {
		f.entries = f.entries[:0]
		f.byID = make(map[string]*Notification, len(fetched))
		f.unread = 0
	}
	for _, n := range fetched {
		if n.ID == "" {
			continue
		}
		if _, ok := f.byID[n.ID]; ok {
			continue
		}
		copied := n
		f.entries = append(f.entries, &copied)
		f.byID[n.ID] = &copied
		if !copied.Read {
			f.unread++
		}
	}
	return nil
}

// Push prepends a push-delivered notification. Pushed entries are unread by
// definition; a replayed ID is dropped.
func (f *Feed) Push(n Notification) {
	if n.ID == "" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[n.ID]; ok {
		f.logger.Debug("duplicate notification dropped", slog.String("id", n.ID))
		return
	}
	copied := n
	copied.Read = false
	f.entries = append([]*Notification{&copied}, f.entries...)
	f.byID[copied.ID] = &copied
	f.unread++
}

// ApplyCount applies a server-pushed unread total.
func (f *Feed) ApplyCount(total int) {
	if total < 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unread = total
}

// MarkRead flips one notification to read optimistically and confirms via
// REST, reverting both the flag and the counter on failure.
func (f *Feed) MarkRead(ctx context.Context, id string) error {
	var flipped bool
	return optimistic.Run(ctx, optimistic.Mutation{
		Apply: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if n, ok := f.byID[id]; ok && !n.Read {
				n.Read = true
				f.unread--
				flipped = true
			}
		},
		Revert: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if n, ok := f.byID[id]; ok && flipped {
				n.Read = false
				f.unread++
			}
		},
	}, true, func(ctx context.Context) error {
		if err := f.api.MarkNotificationRead(ctx, id); err != nil {
			return fmt.Errorf("mark notification read: %w", err)
		}
		return nil
	})
}

// MarkAllRead flips every entry and zeroes the counter optimistically. When
// the bulk REST call fails no partial revert is attempted; the next page-1
// fetch restores server truth.
func (f *Feed) MarkAllRead(ctx context.Context) error {
	return optimistic.Run(ctx, optimistic.Mutation{
		Apply: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			for _, n := range f.entries {
				n.Read = true
			}
			f.unread = 0
		},
	}, false, func(ctx context.Context) error {
		if err := f.api.MarkAllNotificationsRead(ctx); err != nil {
			f.logger.Warn("bulk read confirmation failed, local state kept", slog.Any("error", err))
			return fmt.Errorf("mark all notifications read: %w", err)
		}
		return nil
	})
}

// Delete removes a notification optimistically and re-inserts it at its
// prior position when the REST call fails.
func (f *Feed) Delete(ctx context.Context, id string) error {
	var (
		removed *Notification
		index   int
	)
	return optimistic.Run(ctx, optimistic.Mutation{
		Apply: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			for i, n := range f.entries {
				if n.ID == id {
					removed, index = n, i
					f.entries = append(f.entries[:i], f.entries[i+1:]...)
					delete(f.byID, id)
					if !n.Read {
						f.unread--
					}
					break
				}
			}
		},
		Revert: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if removed == nil {
				return
			}
			if index > len(f.entries) {
				index = len(f.entries)
			}
			f.entries = append(f.entries[:index], append([]*Notification{removed}, f.entries[index:]...)...)
			f.byID[id] = removed
			if !removed.Read {
				f.unread++
			}
		},
	}, true, func(ctx context.Context) error {
		if err := f.api.DeleteNotification(ctx, id); err != nil {
			return fmt.Errorf("delete notification: %w", err)
		}
		return nil
	})
}

// Notifications returns a snapshot of the feed in display order.
func (f *Feed) Notifications() []Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Notification, 0, len(f.entries))
	for _, n := range f.entries {
		out = append(out, *n)
	}
	return out
}

// Unread returns the unread counter.
func (f *Feed) Unread() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.unread
}

// Clear wipes the feed. Used on session teardown.
func (f *Feed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = nil
	f.byID = make(map[string]*Notification)
	f.unread = 0
}
