package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"waveline/internal/feed"
)

// FetchNotifications returns one page of the notification feed, newest
// first.
func (c *Client) FetchNotifications(ctx context.Context, page, pageSize int) ([]feed.Notification, error) {
	if page < 1 {
		return nil, fmt.Errorf("page must be >= 1, got %d", page)
	}
	query := url.Values{}
	query.Set("page", fmt.Sprint(page))
	if pageSize > 0 {
		query.Set("page_size", fmt.Sprint(pageSize))
	}
	var out []feed.Notification
	if err := c.doJSON(ctx, http.MethodGet, "/api/notifications?"+query.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkNotificationRead marks one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("notification id required")
	}
	return c.doJSON(ctx, http.MethodPost, "/api/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

// MarkAllNotificationsRead marks the whole feed as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/notifications/read_all", nil, nil)
}

// DeleteNotification removes a notification.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("notification id required")
	}
	return c.doJSON(ctx, http.MethodDelete, "/api/notifications/"+url.PathEscape(id), nil, nil)
}

// NotificationUnreadCount returns the server's unread notification total.
func (c *Client) NotificationUnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/notifications/unread_count", nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}
