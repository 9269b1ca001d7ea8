package session

import (
	"context"
	"errors"
	"log/slog"

	"waveline/internal/logging"
	"waveline/internal/push"
)

func (s *Session) dispatch(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.channel.Events():
			s.handle(ctx, ev)
		}
	}
}

// handle fans one push event out to the registries it concerns. Registry
// methods are synchronous and lock internally, so events apply in arrival
// order.
func (s *Session) handle(ctx context.Context, ev push.Event) {
	switch e := ev.(type) {
	case push.Connected:
		if s.onConnectivity != nil {
			s.onConnectivity(true, nil)
		}

	case push.Disconnected:
		// Presence is only meaningful while the channel is up; typing
		// indicators die with it. Conversations and notifications keep
		// their last known state for the reconnect resync.
		s.presence.Clear()
		s.typing.Reset()
		if e.Err != nil {
			s.logger.Warn("push channel lost", logging.Error(e.Err))
		}
		if s.onConnectivity != nil {
			s.onConnectivity(false, e.Err)
		}

	case push.PeerConnected:
		s.presence.MarkOnline(e.Peer)

	case push.PeerDisconnected:
		s.presence.MarkOffline(e.Peer)
		s.typing.Remove(e.Peer)

	case push.OnlineSet:
		s.presence.ReplaceOnline(e.Peers)

	case push.ActivityUpdated:
		s.presence.UpdateActivity(e.Peer, e.Activity)

	case push.TypingStart:
		// A typing peer is necessarily online even if the connect event
		// was missed.
		if !s.presence.IsOnline(e.Peer) {
			s.presence.MarkOnline(e.Peer)
		}
		s.typing.Start(e.Peer)

	case push.TypingStop:
		s.typing.Stop(e.Peer)

	case push.MessageReceived:
		s.typing.Remove(e.Message.PeerOf(s.self))
		s.ledger.ApplyIncoming(e.Message)

	case push.ReadReceipt:
		s.ledger.ApplyReadReceipt(e.Peer, e.At)

	case push.UnreadUpdate:
		s.ledger.ApplyUnreadUpdate(e.Peer, e.Count, e.Total)

	case push.NotificationPushed:
		s.feed.Push(e.Notification)

	case push.NotificationCount:
		s.feed.ApplyCount(e.Total)

	case push.PeerDeleted:
		s.presence.Remove(e.Peer)
		s.typing.Remove(e.Peer)
		s.ledger.RemovePeer(e.Peer)
		if err := s.store.RemovePeer(ctx, e.Peer); err != nil {
			s.logger.Warn("evict deleted peer from cache", slog.String("peer", e.Peer), logging.Error(err))
		}

	default:
		s.logger.Warn("unhandled push event", slog.Any("event", ev))
	}
}

// Resync reconciles every registry against REST snapshots. Optimistic
// entries in the ledger survive the merge; presence is replaced outright.
func (s *Session) Resync(ctx context.Context) error {
	var errs []error

	conversations, err := s.api.FetchConversations(ctx)
	if err != nil {
		errs = append(errs, err)
	} else {
		s.ledger.MergeConversations(conversations)
		if err := s.store.SaveConversations(ctx, conversations); err != nil {
			s.logger.Warn("cache conversations", logging.Error(err))
		}
	}

	online, err := s.api.FetchOnlinePeers(ctx)
	if err != nil {
		errs = append(errs, err)
	} else {
		peers := make([]string, 0, len(online))
		for _, p := range online {
			peers = append(peers, p.PeerID)
		}
		s.presence.ReplaceOnline(peers)
		for _, p := range online {
			if p.Activity != "" {
				s.presence.UpdateActivity(p.PeerID, p.Activity)
			}
		}
	}

	if err := s.feed.FetchPage(ctx, 1); err != nil {
		errs = append(errs, err)
	} else {
		if count, err := s.api.NotificationUnreadCount(ctx); err == nil {
			s.feed.ApplyCount(count)
		}
		if err := s.store.SaveNotifications(ctx, s.feed.Notifications()); err != nil {
			s.logger.Warn("cache notifications", logging.Error(err))
		}
	}

	return errors.Join(errs...)
}

// RefreshMessages reloads one conversation's history from REST and persists
// the merged result to the cache.
func (s *Session) RefreshMessages(ctx context.Context, peer string) error {
	if err := s.ledger.RefreshMessages(ctx, peer); err != nil {
		return err
	}
	if err := s.store.SaveMessages(ctx, s.self, peer, s.ledger.MessagesFor(peer)); err != nil {
		s.logger.Warn("cache messages", slog.String("peer", peer), logging.Error(err))
	}
	return nil
}
