package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"waveline/internal/ledger"
	"waveline/internal/logging"
)

const self = "me"

type fakeAPI struct {
	sendResult   ledger.Message
	sendErr      error
	readErr      error
	pinErr       error
	muteErr      error
	editResult   ledger.Message
	editErr      error
	deleteErr    error
	convs        []ledger.Conversation
	msgs         map[string][]ledger.Message
	readCalls    []string
	pinnedCalls  []bool
	sendRequests []ledger.SendRequest
	sendStarted  chan struct{}
	sendRelease  chan struct{}
}

func (f *fakeAPI) FetchConversations(context.Context) ([]ledger.Conversation, error) {
	return f.convs, nil
}

func (f *fakeAPI) FetchMessages(_ context.Context, peer string) ([]ledger.Message, error) {
	return f.msgs[peer], nil
}

func (f *fakeAPI) SendMessage(_ context.Context, req ledger.SendRequest) (ledger.Message, error) {
	f.sendRequests = append(f.sendRequests, req)
	if f.sendStarted != nil {
		close(f.sendStarted)
	}
	if f.sendRelease != nil {
		<-f.sendRelease
	}
	return f.sendResult, f.sendErr
}

func (f *fakeAPI) EditMessage(context.Context, string, string) (ledger.Message, error) {
	return f.editResult, f.editErr
}

func (f *fakeAPI) DeleteMessage(context.Context, string) error { return f.deleteErr }

func (f *fakeAPI) MarkConversationRead(_ context.Context, peer string) error {
	f.readCalls = append(f.readCalls, peer)
	return f.readErr
}

func (f *fakeAPI) SetConversationPinned(_ context.Context, _ string, pinned bool) error {
	f.pinnedCalls = append(f.pinnedCalls, pinned)
	return f.pinErr
}

func (f *fakeAPI) SetConversationMuted(context.Context, string, bool) error { return f.muteErr }

func newLedger(api ledger.API) *ledger.Ledger {
	return ledger.New(self, api, 10*time.Second, logging.NewNop())
}

func incoming(id, sender, receiver, content string, at time.Time) ledger.Message {
	return ledger.Message{
		ID: id, SenderID: sender, ReceiverID: receiver,
		Content: content, CreatedAt: at,
	}
}

func TestEchoCollapsesWithOptimisticSend(t *testing.T) {
	now := time.Now().UTC()
	echoFirst := func(l *ledger.Ledger, api *fakeAPI) error {
		l.ApplyIncoming(incoming("m-1", self, "peer", "hello", now))
		_, err := l.Send(context.Background(), ledger.SendRequest{ReceiverID: "peer", Content: "hello"})
		return err
	}
	sendFirst := func(l *ledger.Ledger, api *fakeAPI) error {
		_, err := l.Send(context.Background(), ledger.SendRequest{ReceiverID: "peer", Content: "hello"})
		l.ApplyIncoming(incoming("m-1", self, "peer", "hello", now))
		return err
	}

	for name, run := range map[string]func(*ledger.Ledger, *fakeAPI) error{
		"echo before rest response": echoFirst,
		"rest response before echo": sendFirst,
	} {
		t.Run(name, func(t *testing.T) {
			api := &fakeAPI{sendResult: incoming("m-1", self, "peer", "hello", now)}
			l := newLedger(api)
			if err := run(l, api); err != nil {
				t.Fatalf("send failed: %v", err)
			}
			msgs := l.MessagesFor("peer")
			if len(msgs) != 1 {
				t.Fatalf("expected exactly one message, got %d: %+v", len(msgs), msgs)
			}
			if msgs[0].ID != "m-1" {
				t.Fatalf("message not confirmed: %+v", msgs[0])
			}
		})
	}
}

func TestDuplicatePushDeliveryDropped(t *testing.T) {
	l := newLedger(&fakeAPI{})
	m := incoming("m-7", "peer", self, "hey", time.Now().UTC())
	l.ApplyIncoming(m)
	l.ApplyIncoming(m)

	if got := len(l.MessagesFor("peer")); got != 1 {
		t.Fatalf("expected one message after replay, got %d", got)
	}
	if l.UnreadFor("peer") != 1 || l.TotalUnread() != 1 {
		t.Fatalf("replay double-counted unread: peer=%d total=%d", l.UnreadFor("peer"), l.TotalUnread())
	}
}

func TestSendFailureRemovesOptimisticCopy(t *testing.T) {
	api := &fakeAPI{sendErr: errors.New("boom")}
	l := newLedger(api)
	if _, err := l.Send(context.Background(), ledger.SendRequest{ReceiverID: "peer", Content: "hello"}); err == nil {
		t.Fatal("expected send error")
	}
	if got := len(l.MessagesFor("peer")); got != 0 {
		t.Fatalf("failed send left %d messages behind", got)
	}
}

func TestUnreadScenario(t *testing.T) {
	api := &fakeAPI{}
	l := newLedger(api)

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		l.ApplyIncoming(incoming(fmt.Sprintf("a-%d", i), "A", self, "hi", base.Add(time.Duration(i)*time.Second)))
	}
	if l.UnreadFor("A") != 3 || l.TotalUnread() != 3 {
		t.Fatalf("expected 3 unread, got peer=%d total=%d", l.UnreadFor("A"), l.TotalUnread())
	}

	// Optimistic zero happens regardless of the REST outcome.
	api.readErr = errors.New("ack lost")
	if err := l.MarkRead(context.Background(), "A"); err == nil {
		t.Fatal("expected read-ack error to surface")
	}
	if l.UnreadFor("A") != 0 || l.TotalUnread() != 0 {
		t.Fatalf("read state must not roll back: peer=%d total=%d", l.UnreadFor("A"), l.TotalUnread())
	}
}

func TestUnreadInvariantUnderInterleaving(t *testing.T) {
	api := &fakeAPI{}
	l := newLedger(api)
	rng := rand.New(rand.NewSource(42))
	peers := []string{"a", "b", "c", "d"}

	base := time.Now().UTC()
	for step := 0; step < 500; step++ {
		peer := peers[rng.Intn(len(peers))]
		switch rng.Intn(3) {
		case 0, 1:
			l.ApplyIncoming(incoming(
				fmt.Sprintf("m-%d", step), peer, self, "msg",
				base.Add(time.Duration(step)*time.Millisecond)))
		case 2:
			_ = l.MarkRead(context.Background(), peer)
		}

		sum := 0
		for _, conv := range l.Conversations() {
			sum += conv.Unread
		}
		if sum != l.TotalUnread() {
			t.Fatalf("invariant broken at step %d: sum=%d total=%d", step, sum, l.TotalUnread())
		}
	}
}

func TestPinRevertsOnFailure(t *testing.T) {
	api := &fakeAPI{pinErr: errors.New("rejected")}
	l := newLedger(api)
	l.ApplyIncoming(incoming("m-1", "peer", self, "hi", time.Now().UTC()))

	before, _ := l.Conversation("peer")
	if err := l.SetPinned(context.Background(), "peer", true); err == nil {
		t.Fatal("expected pin error")
	}
	after, _ := l.Conversation("peer")
	if after.Pinned {
		t.Fatal("pin must revert on REST failure")
	}
	if after.Unread != before.Unread || after.LastMessage != before.LastMessage {
		t.Fatalf("pin revert touched unrelated fields: %+v vs %+v", before, after)
	}
}

func TestPinSticksOnSuccess(t *testing.T) {
	api := &fakeAPI{}
	l := newLedger(api)
	if err := l.SetPinned(context.Background(), "peer", true); err != nil {
		t.Fatalf("pin failed: %v", err)
	}
	conv, _ := l.Conversation("peer")
	if !conv.Pinned {
		t.Fatal("pin not applied")
	}
}

func TestConversationOrdering(t *testing.T) {
	api := &fakeAPI{}
	l := newLedger(api)
	base := time.Now().UTC()

	l.ApplyIncoming(incoming("1", "old", self, "first", base.Add(-2*time.Hour)))
	l.ApplyIncoming(incoming("2", "recent", self, "second", base))
	l.ApplyIncoming(incoming("3", "pinned-peer", self, "third", base.Add(-24*time.Hour)))
	if err := l.SetPinned(context.Background(), "pinned-peer", true); err != nil {
		t.Fatalf("pin failed: %v", err)
	}

	convs := l.Conversations()
	if len(convs) != 3 {
		t.Fatalf("expected 3 conversations, got %d", len(convs))
	}
	if convs[0].PeerID != "pinned-peer" {
		t.Fatalf("pinned conversation must sort first, got %s", convs[0].PeerID)
	}
	if convs[1].PeerID != "recent" || convs[2].PeerID != "old" {
		t.Fatalf("unpinned conversations must sort by recency: %s, %s", convs[1].PeerID, convs[2].PeerID)
	}
}

func TestSnapshotMergeIdempotent(t *testing.T) {
	now := time.Now().UTC()
	api := &fakeAPI{
		msgs: map[string][]ledger.Message{
			"peer": {
				incoming("s-1", "peer", self, "from snapshot", now.Add(-time.Minute)),
				incoming("s-2", "peer", self, "also snapshot", now),
			},
		},
	}
	l := newLedger(api)

	// A superseded fetch that resolves late must not corrupt state.
	if err := l.RefreshMessages(context.Background(), "peer"); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if err := l.RefreshMessages(context.Background(), "peer"); err != nil {
		t.Fatalf("second refresh failed: %v", err)
	}

	msgs := l.MessagesFor("peer")
	if len(msgs) != 2 {
		t.Fatalf("overlapping snapshot merges duplicated entries: %d", len(msgs))
	}
}

func TestSnapshotMergePreservesOptimisticSend(t *testing.T) {
	now := time.Now().UTC()
	api := &fakeAPI{
		sendStarted: make(chan struct{}),
		sendRelease: make(chan struct{}),
		sendResult:  incoming("m-9", self, "peer", "pending", now),
	}
	l := newLedger(api)

	done := make(chan error, 1)
	go func() {
		_, err := l.Send(context.Background(), ledger.SendRequest{ReceiverID: "peer", Content: "pending"})
		done <- err
	}()
	<-api.sendStarted

	// Snapshot arrives while the send is still in flight; the unconfirmed
	// local entry must survive the merge.
	l.MergeMessages("peer", []ledger.Message{
		incoming("s-1", "peer", self, "older", now.Add(-time.Minute)),
	})
	msgs := l.MessagesFor("peer")
	if len(msgs) != 2 {
		t.Fatalf("optimistic entry lost during merge: %+v", msgs)
	}

	close(api.sendRelease)
	if err := <-done; err != nil {
		t.Fatalf("send failed: %v", err)
	}
	msgs = l.MessagesFor("peer")
	if len(msgs) != 2 {
		t.Fatalf("expected two messages after confirmation, got %d", len(msgs))
	}
	var confirmed bool
	for _, m := range msgs {
		if m.ID == "m-9" {
			confirmed = true
		}
	}
	if !confirmed {
		t.Fatal("optimistic entry never confirmed")
	}
}

func TestMessageOrderWithinConversation(t *testing.T) {
	l := newLedger(&fakeAPI{})
	base := time.Now().UTC()
	l.ApplyIncoming(incoming("b", "peer", self, "second", base.Add(time.Second)))
	l.ApplyIncoming(incoming("a", "peer", self, "first", base))
	l.ApplyIncoming(incoming("c", "peer", self, "third", base.Add(2*time.Second)))

	msgs := l.MessagesFor("peer")
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatalf("messages out of order at %d: %+v", i, msgs)
		}
	}
	if msgs[0].Content != "first" || msgs[2].Content != "third" {
		t.Fatalf("unexpected ordering: %+v", msgs)
	}
}

func TestUnreadUpdateEvent(t *testing.T) {
	l := newLedger(&fakeAPI{})
	l.ApplyUnreadUpdate("a", 2, 5)
	l.ApplyUnreadUpdate("b", 3, 5)

	if l.TotalUnread() != 5 {
		t.Fatalf("expected total 5, got %d", l.TotalUnread())
	}
	if l.UnreadFor("a") != 2 || l.UnreadFor("b") != 3 {
		t.Fatalf("per-peer counts wrong: a=%d b=%d", l.UnreadFor("a"), l.UnreadFor("b"))
	}
}

func TestRemovePeerDropsEverything(t *testing.T) {
	l := newLedger(&fakeAPI{})
	l.ApplyIncoming(incoming("m-1", "peer", self, "hi", time.Now().UTC()))
	l.RemovePeer("peer")

	if len(l.MessagesFor("peer")) != 0 {
		t.Fatal("messages survived peer deletion")
	}
	if _, ok := l.Conversation("peer"); ok {
		t.Fatal("conversation survived peer deletion")
	}
	if l.TotalUnread() != 0 {
		t.Fatalf("unread total not adjusted: %d", l.TotalUnread())
	}

	// A replayed message for the deleted peer recreates state defensively.
	l.ApplyIncoming(incoming("m-2", "peer", self, "again", time.Now().UTC()))
	if _, ok := l.Conversation("peer"); !ok {
		t.Fatal("push for unknown peer must create the conversation")
	}
}

func TestMergeConversationsAuthoritative(t *testing.T) {
	l := newLedger(&fakeAPI{})
	l.ApplyIncoming(incoming("m-1", "peer", self, "hi", time.Now().UTC()))

	l.MergeConversations([]ledger.Conversation{
		{PeerID: "peer", LastMessage: "server copy", Unread: 4, Pinned: true},
		{PeerID: "other", LastMessage: "new thread", Unread: 1},
	})

	conv, _ := l.Conversation("peer")
	if conv.Unread != 4 || !conv.Pinned || conv.LastMessage != "server copy" {
		t.Fatalf("snapshot not authoritative: %+v", conv)
	}
	if l.TotalUnread() != 5 {
		t.Fatalf("total not recomputed from snapshot: %d", l.TotalUnread())
	}
}

func TestEditSetsFlagAfterConfirmation(t *testing.T) {
	now := time.Now().UTC()
	api := &fakeAPI{editResult: incoming("m-1", self, "peer", "fixed", now)}
	l := newLedger(api)
	l.ApplyIncoming(incoming("m-1", self, "peer", "tpyo", now))

	if err := l.Edit(context.Background(), "peer", "m-1", "fixed"); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	msgs := l.MessagesFor("peer")
	if msgs[0].Content != "fixed" || !msgs[0].Edited {
		t.Fatalf("edit not applied: %+v", msgs[0])
	}
}

func TestDeleteRemovesAfterConfirmation(t *testing.T) {
	api := &fakeAPI{}
	l := newLedger(api)
	l.ApplyIncoming(incoming("m-1", self, "peer", "oops", time.Now().UTC()))

	if err := l.Delete(context.Background(), "peer", "m-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if len(l.MessagesFor("peer")) != 0 {
		t.Fatal("message not removed")
	}

	api.deleteErr = errors.New("rejected")
	l.ApplyIncoming(incoming("m-2", self, "peer", "keep", time.Now().UTC()))
	if err := l.Delete(context.Background(), "peer", "m-2"); err == nil {
		t.Fatal("expected delete error")
	}
	if len(l.MessagesFor("peer")) != 1 {
		t.Fatal("message removed despite REST failure")
	}
}
