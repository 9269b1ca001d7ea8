package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"waveline/internal/cache"
	"waveline/internal/config"
	"waveline/internal/feed"
	"waveline/internal/ledger"
	"waveline/internal/logging"
	"waveline/internal/presence"
	"waveline/internal/push"
	"waveline/internal/rest"
	"waveline/internal/typing"
)

// ConnectivityFunc is invoked on every connection state change. err is nil
// for an intentional disconnect.
type ConnectivityFunc func(connected bool, err error)

// Session is the per-login realtime context. One session exists per signed-in
// user; a sign-out closes it and a new login builds a fresh one.
type Session struct {
	cfg    *config.Config
	self   string
	logger *slog.Logger

	channel  *push.Channel
	api      *rest.Client
	store    *cache.Store
	presence *presence.Registry
	typing   *typing.Coordinator
	ledger   *ledger.Ledger
	feed     *feed.Feed

	lockPath string
	lock     *flock.Flock

	onConnectivity ConnectivityFunc

	outMu          sync.Mutex
	typingSent     map[string]time.Time
	typingDebounce time.Duration

	running atomic.Bool
	closed  atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Session.
type Option func(*Session)

// WithConnectivityFunc registers a callback for connection state changes.
func WithConnectivityFunc(fn ConnectivityFunc) Option {
	return func(s *Session) {
		s.onConnectivity = fn
	}
}

// WithRESTClient overrides the REST client, primarily for tests.
func WithRESTClient(client *rest.Client) Option {
	return func(s *Session) {
		if client != nil {
			s.api = client
		}
	}
}

// New builds a session for the given user. Nothing connects until Start.
func New(cfg *config.Config, self string, logger *slog.Logger, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("session requires config")
	}
	if self == "" {
		return nil, errors.New("session requires a user id")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	api, err := rest.New(cfg.Server.APIBaseURL, cfg.Server.AuthToken,
		rest.WithTimeout(time.Duration(cfg.Server.RequestTimeout)*time.Second))
	if err != nil {
		return nil, fmt.Errorf("build rest client: %w", err)
	}

	store, err := cache.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open snapshot cache: %w", err)
	}

	sessionLogger := logging.WithComponent(logger, "session")
	typingWindow := time.Duration(cfg.Realtime.TypingExpirySeconds) * time.Second
	matchWindow := time.Duration(cfg.Realtime.EchoMatchWindowSecs) * time.Second
	lockPath := filepath.Join(cfg.Paths.CacheDir, "waveline.lock")

	s := &Session{
		cfg:      cfg,
		self:     self,
		logger:   sessionLogger,
		channel:  push.NewChannel(cfg.Server.PushURL, cfg.Server.AuthToken, cfg.Realtime.EventBuffer, logger),
		api:      api,
		store:    store,
		presence: presence.NewRegistry(logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),

		typingSent:     make(map[string]time.Time),
		typingDebounce: typingWindow,
	}
	s.typing = typing.NewCoordinator(typingWindow, func(peer string) {
		sessionLogger.Debug("typing indicator expired", slog.String("peer", peer))
	})

	for _, opt := range opts {
		opt(s)
	}

	s.ledger = ledger.New(self, s.api, matchWindow, logger)
	s.feed = feed.New(s.api, cfg.Realtime.NotificationPageSize, logger)
	return s, nil
}

// Start acquires the single-instance lock, connects the push channel, starts
// the dispatch loop, and reconciles registries against REST snapshots.
func (s *Session) Start(ctx context.Context) error {
	if s.closed.Load() {
		return errors.New("session is closed")
	}
	if s.running.Load() {
		return nil
	}

	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire session lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another waveline session holds %s", s.lockPath)
	}

	if err := s.channel.Connect(ctx, s.self); err != nil {
		_ = s.lock.Unlock()
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.dispatch(loopCtx)

	s.running.Store(true)
	if err := s.Resync(ctx); err != nil {
		s.logger.Warn("initial resync incomplete", logging.Error(err))
	}
	s.logger.Info("session started", slog.String("user", s.self))
	return nil
}

// Reconnect re-establishes the push channel after a transport failure and
// reconciles state. The session never retries on its own.
func (s *Session) Reconnect(ctx context.Context) error {
	if s.closed.Load() {
		return errors.New("session is closed")
	}
	if !s.running.Load() {
		return errors.New("session not started")
	}
	if err := s.channel.Connect(ctx, s.self); err != nil {
		return err
	}
	return s.Resync(ctx)
}

// Connected reports whether the push channel is up.
func (s *Session) Connected() bool {
	return s.channel.Connected()
}

// Close disconnects, stops the dispatch loop, and empties all four
// registries before closing the cache and releasing the instance lock. The
// cached snapshots stay on disk for the next session. Safe to call more than
// once.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	if err := s.channel.Disconnect(); err != nil {
		errs = append(errs, err)
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.typing.Close()
	s.presence.Clear()
	s.ledger.Clear()
	s.feed.Clear()
	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.running.Load() {
		if err := s.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("release session lock: %w", err))
		}
	}
	s.running.Store(false)
	s.logger.Info("session closed", slog.String("user", s.self))
	return errors.Join(errs...)
}

// Self returns the signed-in user's id.
func (s *Session) Self() string { return s.self }

// Presence returns the online peer registry.
func (s *Session) Presence() *presence.Registry { return s.presence }

// Typing returns the incoming typing coordinator.
func (s *Session) Typing() *typing.Coordinator { return s.typing }

// Ledger returns the conversation ledger.
func (s *Session) Ledger() *ledger.Ledger { return s.ledger }

// Feed returns the notification feed.
func (s *Session) Feed() *feed.Feed { return s.feed }

// Cache returns the local snapshot store.
func (s *Session) Cache() *cache.Store { return s.store }

// API returns the REST client.
func (s *Session) API() *rest.Client { return s.api }

// StartTyping sends an outbound typing indicator, debounced so holding a key
// down does not flood the channel.
func (s *Session) StartTyping(peer string) error {
	s.outMu.Lock()
	last, seen := s.typingSent[peer]
	now := time.Now()
	if seen && now.Sub(last) < s.typingDebounce/2 {
		s.outMu.Unlock()
		return nil
	}
	s.typingSent[peer] = now
	s.outMu.Unlock()
	return s.channel.SendTyping(peer, true)
}

// StopTyping sends an outbound typing stop and clears the debounce state.
func (s *Session) StopTyping(peer string) error {
	s.outMu.Lock()
	delete(s.typingSent, peer)
	s.outMu.Unlock()
	return s.channel.SendTyping(peer, false)
}
