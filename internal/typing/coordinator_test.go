package typing_test

import (
	"sync"
	"testing"
	"time"

	"waveline/internal/typing"
)

func TestStartThenExplicitStop(t *testing.T) {
	c := typing.NewCoordinator(time.Minute, nil)
	defer c.Close()

	c.Start("a")
	if !c.IsTyping("a") {
		t.Fatal("peer should be typing after start")
	}
	c.Stop("a")
	if c.IsTyping("a") {
		t.Fatal("peer should not be typing after stop")
	}
}

func TestExpiryWithoutStop(t *testing.T) {
	var mu sync.Mutex
	expired := []string{}
	c := typing.NewCoordinator(20*time.Millisecond, func(peer string) {
		mu.Lock()
		expired = append(expired, peer)
		mu.Unlock()
	})
	defer c.Close()

	c.Start("a")
	deadline := time.Now().Add(2 * time.Second)
	for c.IsTyping("a") {
		if time.Now().After(deadline) {
			t.Fatal("typing state never expired")
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(expired) != 1 || expired[0] != "a" {
		t.Fatalf("unexpected expiry notifications: %v", expired)
	}

	// A late stop after expiry is a no-op.
	c.Stop("a")
	if c.IsTyping("a") {
		t.Fatal("late stop should not recreate state")
	}
}

func TestRepeatStartRefreshesTimer(t *testing.T) {
	c := typing.NewCoordinator(60*time.Millisecond, nil)
	defer c.Close()

	c.Start("a")
	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		c.Start("a")
	}
	// Four refreshes at half the window; without Reset the state would have
	// expired long ago.
	if !c.IsTyping("a") {
		t.Fatal("refreshed typing state expired early")
	}
}

func TestCloseClearsTimersAndRejectsStarts(t *testing.T) {
	c := typing.NewCoordinator(time.Minute, nil)
	c.Start("a")
	c.Start("b")
	c.Close()

	if len(c.Typing()) != 0 {
		t.Fatalf("expected no typing peers after close, got %v", c.Typing())
	}
	c.Start("c")
	if c.IsTyping("c") {
		t.Fatal("closed coordinator must reject starts")
	}
}

func TestResetKeepsCoordinatorUsable(t *testing.T) {
	c := typing.NewCoordinator(time.Minute, nil)
	defer c.Close()

	c.Start("a")
	c.Reset()
	if c.IsTyping("a") {
		t.Fatal("reset should clear typing state")
	}
	c.Start("a")
	if !c.IsTyping("a") {
		t.Fatal("coordinator should accept starts after reset")
	}
}
