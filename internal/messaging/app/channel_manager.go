package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"realtime_messaging_service/internal/messaging/domain"
	"realtime_messaging_service/internal/messaging/repository"
	"realtime_messaging_service/pkg/logger"

	"go.uber.org/zap"
)

// ConnectionState 連線狀態
type ConnectionState int

const (
	// StateDisconnected no session
	StateDisconnected ConnectionState = iota
	// StateConnecting first attempt of a session
	StateConnecting
	// StateConnected every topic is open
	StateConnected
	// StateReconnecting waiting for or running a retry
	StateReconnecting
	// StateUnreachable every retry attempt failed, no more are scheduled
	StateUnreachable
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateUnreachable:
		return "unreachable"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

const (
	// DefaultReconnectBaseDelay delay of the first retry
	DefaultReconnectBaseDelay = time.Second
	// DefaultMaxReconnectAttempts consecutive failed attempts before giving up
	DefaultMaxReconnectAttempts = 5
)

// ChannelManagerConfig reconnect policy; retry n waits BaseDelay*n
type ChannelManagerConfig struct {
	BaseDelay   time.Duration
	MaxAttempts int
}

func (c ChannelManagerConfig) withDefaults() ChannelManagerConfig {
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultReconnectBaseDelay
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxReconnectAttempts
	}
	return c
}

// Session identifies one Initialize..Disconnect lifetime
type Session struct {
	UserID string
	gen    uint64
	m      *ChannelManager
}

// Deliver runs fn only while this session is still the active one; it reports whether fn ran
func (s Session) Deliver(fn func()) bool {
	return s.m.deliver(s.gen, fn)
}

// TopicOpener opens one logical topic for a session
type TopicOpener func(ctx context.Context, s Session) (repository.Subscription, error)

type binding struct {
	name string
	open TopicOpener
}

// ChannelManager owns the topic subscriptions of one user and the reconnect state machine
type ChannelManager struct {
	cfg      ChannelManagerConfig
	bindings []binding

	mu        sync.Mutex
	state     ConnectionState
	userID    string
	gen       uint64
	ctx       context.Context
	cancel    context.CancelFunc
	subs      map[string]repository.Subscription
	failures  int
	lastErr   error
	listeners []func(ConnectionState)

	// gate makes Disconnect atomic with respect to handler dispatch
	gate      sync.RWMutex
	activeGen uint64
}

// NewChannelManager create ChannelManager
func NewChannelManager(cfg ChannelManagerConfig) *ChannelManager {
	return &ChannelManager{
		cfg:   cfg.withDefaults(),
		state: StateDisconnected,
	}
}

// Bind register a topic opened on every connect attempt; call before Initialize
func (m *ChannelManager) Bind(name string, open TopicOpener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings = append(m.bindings, binding{name: name, open: open})
}

// OnStateChange listener is called after every transition, outside any lock
func (m *ChannelManager) OnStateChange(listener func(ConnectionState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, listener)
}

// Initialize start a session for userID. The first attempt runs inline; if it fails
// the manager moves to Reconnecting and retries in the background.
func (m *ChannelManager) Initialize(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: empty user id", domain.ErrNotInitialized)
	}

	m.mu.Lock()
	switch m.state {
	case StateDisconnected, StateUnreachable:
	default:
		same := m.userID == userID
		m.mu.Unlock()
		if same {
			return nil
		}
		return domain.ErrAlreadyInitialized
	}

	if m.cancel != nil {
		m.cancel()
	}
	m.gen++
	gen := m.gen
	m.ctx, m.cancel = context.WithCancel(context.Background())
	sessionCtx := m.ctx
	m.userID = userID
	m.failures = 0
	m.lastErr = nil
	m.state = StateConnecting
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	m.gate.Lock()
	m.activeGen = gen
	m.gate.Unlock()

	notify(listeners, StateConnecting)

	if err := m.connect(sessionCtx, gen); err != nil {
		if m.attemptFailed(gen, err) {
			go m.retryLoop(sessionCtx, gen)
		}
	}
	return nil
}

// Disconnect close every subscription, stop pending retries, and wait for an in-flight dispatch.
// No handler runs after it returns. Must not be called from inside a handler.
func (m *ChannelManager) Disconnect() {
	m.gate.Lock()
	m.activeGen = 0
	m.gate.Unlock()

	m.mu.Lock()
	if m.state == StateDisconnected {
		m.mu.Unlock()
		return
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	subs := m.subs
	m.subs = nil
	m.gen++
	m.userID = ""
	m.failures = 0
	m.lastErr = nil
	m.state = StateDisconnected
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	closeAll(subs)
	notify(listeners, StateDisconnected)
}

// IsConnected every topic is open
func (m *ChannelManager) IsConnected() bool {
	return m.State() == StateConnected
}

// State current state
func (m *ChannelManager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CurrentUserID user of the running session
func (m *ChannelManager) CurrentUserID() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateDisconnected || m.userID == "" {
		return "", false
	}
	return m.userID, true
}

// LastError error of the last failed attempt or drop; wraps ErrTransportUnavailable once Unreachable
func (m *ChannelManager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Session handle of the running session
func (m *ChannelManager) Session() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateDisconnected {
		return Session{}, false
	}
	return Session{UserID: m.userID, gen: m.gen, m: m}, true
}

func (m *ChannelManager) deliver(gen uint64, fn func()) bool {
	m.gate.RLock()
	defer m.gate.RUnlock()
	if gen == 0 || m.activeGen != gen {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("handler panic", zap.Any("panic", r))
		}
	}()
	fn()
	return true
}

// connect open every binding; on any failure the opened ones are closed again
func (m *ChannelManager) connect(ctx context.Context, gen uint64) error {
	m.mu.Lock()
	bindings := append([]binding(nil), m.bindings...)
	session := Session{UserID: m.userID, gen: gen, m: m}
	m.mu.Unlock()

	subs := make(map[string]repository.Subscription, len(bindings))
	for _, b := range bindings {
		sub, err := b.open(ctx, session)
		if err != nil {
			closeAll(subs)
			return fmt.Errorf("open %s: %w", b.name, err)
		}
		subs[b.name] = sub
	}

	m.mu.Lock()
	if m.gen != gen || ctx.Err() != nil {
		m.mu.Unlock()
		closeAll(subs)
		return context.Canceled
	}
	m.subs = subs
	m.failures = 0
	m.lastErr = nil
	m.state = StateConnected
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	logger.Log.Info("realtime connected", zap.String("user_id", session.UserID), zap.Int("topics", len(subs)))
	notify(listeners, StateConnected)

	for name, sub := range subs {
		go m.watch(ctx, gen, name, sub)
	}
	return nil
}

// attemptFailed records a failed attempt and reports whether another one should be scheduled
func (m *ChannelManager) attemptFailed(gen uint64, err error) bool {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return false
	}
	m.failures++
	failures := m.failures

	next := StateReconnecting
	if failures >= m.cfg.MaxAttempts {
		next = StateUnreachable
		m.lastErr = fmt.Errorf("%w: %d consecutive attempts failed: %v", domain.ErrTransportUnavailable, failures, err)
		if m.cancel != nil {
			m.cancel()
		}
	} else {
		m.lastErr = err
	}
	m.state = next
	userID := m.userID
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	if next == StateUnreachable {
		logger.Log.Error("realtime unreachable", zap.String("user_id", userID), zap.Int("attempts", failures), zap.Error(err))
	} else {
		logger.Log.Warn("realtime connect failed", zap.String("user_id", userID), zap.Int("attempt", failures), zap.Error(err))
	}
	notify(listeners, next)
	return next == StateReconnecting
}

func (m *ChannelManager) retryLoop(ctx context.Context, gen uint64) {
	for {
		m.mu.Lock()
		attempt := m.failures
		m.mu.Unlock()
		if attempt < 1 {
			attempt = 1
		}

		timer := time.NewTimer(m.cfg.BaseDelay * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		err := m.connect(ctx, gen)
		if err == nil {
			return
		}
		if ctx.Err() != nil || !m.attemptFailed(gen, err) {
			return
		}
	}
}

// watch turns a transport drop into Reconnecting
func (m *ChannelManager) watch(ctx context.Context, gen uint64, name string, sub repository.Subscription) {
	select {
	case <-ctx.Done():
		return
	case <-sub.Done():
	}
	dropErr := sub.Err()
	if dropErr == nil {
		return
	}

	m.mu.Lock()
	// a sub of an earlier attempt may report late, only the current set counts
	if m.gen != gen || m.state != StateConnected || m.subs[name] != sub {
		m.mu.Unlock()
		return
	}
	subs := m.subs
	m.subs = nil
	m.failures = 0
	m.lastErr = dropErr
	m.state = StateReconnecting
	userID := m.userID
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	logger.Log.Warn("realtime topic dropped", zap.String("user_id", userID), zap.String("topic", name), zap.Error(dropErr))
	closeAll(subs)
	notify(listeners, StateReconnecting)
	go m.retryLoop(ctx, gen)
}

// snapshotListeners caller holds m.mu
func (m *ChannelManager) snapshotListeners() []func(ConnectionState) {
	out := make([]func(ConnectionState), len(m.listeners))
	copy(out, m.listeners)
	return out
}

func notify(listeners []func(ConnectionState), state ConnectionState) {
	for _, l := range listeners {
		l(state)
	}
}

func closeAll(subs map[string]repository.Subscription) {
	for name, sub := range subs {
		if err := sub.Close(); err != nil {
			logger.Log.Warn("close subscription", zap.String("topic", name), zap.Error(err))
		}
	}
}
