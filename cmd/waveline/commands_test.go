package main

import (
	"strings"
	"testing"
)

func TestConversationsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	env.seedCache(t)

	out, err := runCLI(t, []string{"conversations"}, env.configPath)
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}
	requireContains(t, out, "u-2")
	requireContains(t, out, "see you there")
	requireContains(t, out, "pinned")

	// Pinned conversation sorts first.
	if strings.Index(out, "u-2") > strings.Index(out, "u-3") {
		t.Fatalf("pinned conversation not first:\n%s", out)
	}
}

func TestConversationsCommandEmptyCache(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, []string{"conversations"}, env.configPath)
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}
	requireContains(t, out, "No cached conversations")
}

func TestMessagesCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	env.seedCache(t)

	out, err := runCLI(t, []string{"messages", "u-2"}, env.configPath)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	requireContains(t, out, "concert tonight?")
	requireContains(t, out, "(edited)")

	out, err = runCLI(t, []string{"messages", "u-9"}, env.configPath)
	if err != nil {
		t.Fatalf("messages for unknown peer: %v", err)
	}
	requireContains(t, out, "No cached messages")
}

func TestNotificationsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	env.seedCache(t)

	out, err := runCLI(t, []string{"notifications"}, env.configPath)
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	requireContains(t, out, "Friend Request")
	requireContains(t, out, "Artist Approved")

	out, err = runCLI(t, []string{"notifications", "--unread"}, env.configPath)
	if err != nil {
		t.Fatalf("notifications --unread: %v", err)
	}
	requireContains(t, out, "Friend Request")
	if strings.Contains(out, "Artist Approved") {
		t.Fatalf("read notification shown with --unread:\n%s", out)
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	env.seedCache(t)

	out, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Conversations")
	requireContains(t, out, "2 cached")
	requireContains(t, out, "1 unread of 2")
}

func TestRunFailsWhenPushUnreachable(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, err := runCLI(t, []string{"run"}, env.configPath); err == nil {
		t.Fatal("expected run to fail when the push endpoint is unreachable")
	}
}
