package rest

import (
	"context"
	"net/http"
)

// PeerPresence is one entry of the online snapshot.
type PeerPresence struct {
	PeerID   string `json:"peer_id"`
	Activity string `json:"activity,omitempty"`
}

// FetchOnlinePeers returns the authoritative set of currently online peers,
// with their activity strings when the server knows one.
func (c *Client) FetchOnlinePeers(ctx context.Context) ([]PeerPresence, error) {
	var out []PeerPresence
	if err := c.doJSON(ctx, http.MethodGet, "/api/presence/online", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
