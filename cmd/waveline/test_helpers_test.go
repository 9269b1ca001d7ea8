package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"waveline/internal/cache"
	"waveline/internal/config"
	"waveline/internal/feed"
	"waveline/internal/ledger"
)

type cliTestEnv struct {
	configPath string
	cfg        *config.Config
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	cacheDir := filepath.Join(base, "cache")
	logDir := filepath.Join(base, "logs")
	configPath := filepath.Join(base, "config.toml")

	content := fmt.Sprintf(`[server]
api_base_url = "http://127.0.0.1:0"
push_url = "ws://127.0.0.1:0/realtime"
auth_token = "test-token"
user_id = "u-1"

[paths]
cache_dir = %q
log_dir = %q
`, cacheDir, logDir)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return &cliTestEnv{configPath: configPath, cfg: cfg}
}

// seedCache fills the snapshot cache the way a previous `waveline run` would
// have.
func (env *cliTestEnv) seedCache(t *testing.T) {
	t.Helper()

	store, err := cache.Open(env.cfg)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	now := time.Now().UTC()
	conversations := []ledger.Conversation{
		{PeerID: "u-2", LastMessage: "see you there", LastMessageTime: now, Pinned: true, Unread: 2},
		{PeerID: "u-3", LastMessage: "ok", LastMessageTime: now.Add(-2 * time.Hour)},
	}
	if err := store.SaveConversations(ctx, conversations); err != nil {
		t.Fatalf("seed conversations: %v", err)
	}

	messages := []ledger.Message{
		{ID: "m-1", SenderID: "u-2", ReceiverID: "u-1", Content: "concert tonight?", CreatedAt: now.Add(-time.Hour)},
		{ID: "m-2", SenderID: "u-1", ReceiverID: "u-2", Content: "see you there", CreatedAt: now, Edited: true},
	}
	if err := store.SaveMessages(ctx, "u-1", "u-2", messages); err != nil {
		t.Fatalf("seed messages: %v", err)
	}

	notifications := []feed.Notification{
		{ID: "n-1", Kind: feed.KindFriendRequest, Title: "New friend request", CreatedAt: now},
		{ID: "n-2", Kind: feed.KindArtistApproved, Title: "Artist profile approved", Read: true, CreatedAt: now.Add(-time.Hour)},
	}
	if err := store.SaveNotifications(ctx, notifications); err != nil {
		t.Fatalf("seed notifications: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, error) {
	t.Helper()

	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("output missing %q:\n%s", needle, haystack)
	}
}
