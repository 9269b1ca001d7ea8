package rest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"waveline/internal/ledger"
)

// FetchConversations returns the authoritative conversation list.
func (c *Client) FetchConversations(ctx context.Context) ([]ledger.Conversation, error) {
	var out []ledger.Conversation
	if err := c.doJSON(ctx, http.MethodGet, "/api/messages/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchMessages returns the message history with the given peer, oldest
// first.
func (c *Client) FetchMessages(ctx context.Context, peer string) ([]ledger.Message, error) {
	if strings.TrimSpace(peer) == "" {
		return nil, errors.New("peer id required")
	}
	var out []ledger.Message
	path := "/api/messages/" + url.PathEscape(peer)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendMessage posts a new message. Text-only sends go as JSON; an attachment
// switches the request to multipart form data.
func (c *Client) SendMessage(ctx context.Context, req ledger.SendRequest) (ledger.Message, error) {
	if strings.TrimSpace(req.ReceiverID) == "" {
		return ledger.Message{}, errors.New("receiver id required")
	}
	if req.Attachment == nil {
		payload := map[string]string{
			"receiver_id": req.ReceiverID,
			"content":     req.Content,
		}
		var out ledger.Message
		if err := c.doJSON(ctx, http.MethodPost, "/api/messages", payload, &out); err != nil {
			return ledger.Message{}, err
		}
		return out, nil
	}
	return c.sendMultipart(ctx, req)
}

func (c *Client) sendMultipart(ctx context.Context, req ledger.SendRequest) (ledger.Message, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("receiver_id", req.ReceiverID); err != nil {
		return ledger.Message{}, fmt.Errorf("write receiver field: %w", err)
	}
	if err := form.WriteField("content", req.Content); err != nil {
		return ledger.Message{}, fmt.Errorf("write content field: %w", err)
	}
	name := req.AttachmentName
	if name == "" {
		name = "attachment"
	}
	part, err := form.CreateFormFile("attachment", name)
	if err != nil {
		return ledger.Message{}, fmt.Errorf("create attachment part: %w", err)
	}
	if _, err := io.Copy(part, req.Attachment); err != nil {
		return ledger.Message{}, fmt.Errorf("copy attachment: %w", err)
	}
	if err := form.Close(); err != nil {
		return ledger.Message{}, fmt.Errorf("finalize form: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/messages", &buf)
	if err != nil {
		return ledger.Message{}, err
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	var out ledger.Message
	if err := c.do(httpReq, &out); err != nil {
		return ledger.Message{}, err
	}
	return out, nil
}

// EditMessage replaces the content of an existing message and returns the
// server's updated copy.
func (c *Client) EditMessage(ctx context.Context, id, content string) (ledger.Message, error) {
	if strings.TrimSpace(id) == "" {
		return ledger.Message{}, errors.New("message id required")
	}
	payload := map[string]string{"content": content}
	var out ledger.Message
	path := "/api/messages/" + url.PathEscape(id)
	if err := c.doJSON(ctx, http.MethodPatch, path, payload, &out); err != nil {
		return ledger.Message{}, err
	}
	return out, nil
}

// DeleteMessage removes a message.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("message id required")
	}
	return c.doJSON(ctx, http.MethodDelete, "/api/messages/"+url.PathEscape(id), nil, nil)
}

// MarkConversationRead marks every message from peer as read.
func (c *Client) MarkConversationRead(ctx context.Context, peer string) error {
	if strings.TrimSpace(peer) == "" {
		return errors.New("peer id required")
	}
	path := "/api/messages/conversations/" + url.PathEscape(peer) + "/read"
	return c.doJSON(ctx, http.MethodPost, path, nil, nil)
}

// SetConversationPinned updates the pin flag on a conversation.
func (c *Client) SetConversationPinned(ctx context.Context, peer string, pinned bool) error {
	if strings.TrimSpace(peer) == "" {
		return errors.New("peer id required")
	}
	path := "/api/messages/conversations/" + url.PathEscape(peer) + "/pin"
	return c.doJSON(ctx, http.MethodPut, path, map[string]bool{"pinned": pinned}, nil)
}

// SetConversationMuted updates the mute flag on a conversation.
func (c *Client) SetConversationMuted(ctx context.Context, peer string, muted bool) error {
	if strings.TrimSpace(peer) == "" {
		return errors.New("peer id required")
	}
	path := "/api/messages/conversations/" + url.PathEscape(peer) + "/mute"
	return c.doJSON(ctx, http.MethodPut, path, map[string]bool{"muted": muted}, nil)
}
