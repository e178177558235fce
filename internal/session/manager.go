// Package session owns the authentication state of the local profile: the
// bearer token and the cached user profile, kept consistent between durable
// storage and memory.
//
// A Manager is created once at startup and shared by every consumer. It moves
// from initializing to anonymous or authenticated when Initialize reads
// storage, and between those two states on Login and Logout. The token and
// the user are always present together or absent together.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrStorageUnavailable is returned when storage could not be read at
	// startup or written on login
	ErrStorageUnavailable = errors.New("session storage unavailable")
	// ErrCorruptState marks a stored user record that is not valid JSON
	ErrCorruptState = errors.New("corrupt session state")
	// ErrIncompleteCredentials is returned when the auth service answers
	// without a token or without a user
	ErrIncompleteCredentials = errors.New("auth service returned incomplete credentials")
)

const (
	// DefaultProfile is the storage scope used when none is configured
	DefaultProfile = "default"
	// DefaultLoginTimeout bounds the remote login call
	DefaultLoginTimeout = 10 * time.Second
)

// TokenKey is the storage key holding the bearer token of profile
func TokenKey(profile string) string {
	return fmt.Sprintf("essence:%s:auth_token", profile)
}

// UserKey is the storage key holding the JSON user profile of profile
func UserKey(profile string) string {
	return fmt.Sprintf("essence:%s:user_data", profile)
}

// Authenticator exchanges a username and password for credentials
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*Credentials, error)
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger used for advisory messages
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithProfile scopes the storage keys
func WithProfile(profile string) Option {
	return func(m *Manager) {
		if profile != "" {
			m.profile = profile
		}
	}
}

// WithTTL expires stored credentials after ttl. Zero keeps them until logout.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// WithLoginTimeout bounds the remote login call
func WithLoginTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.loginTimeout = d
		}
	}
}

// WithSinks registers event sinks
func WithSinks(sinks ...EventSink) Option {
	return func(m *Manager) { m.sinks = append(m.sinks, sinks...) }
}

// Manager is the single source of truth for who is logged in
type Manager struct {
	store        Store
	auth         Authenticator
	logger       *slog.Logger
	profile      string
	ttl          time.Duration
	loginTimeout time.Duration
	sinks        []EventSink

	// loginMu serializes Login calls end to end
	loginMu sync.Mutex
	// commitMu orders storage writes together with the memory swap that
	// follows them
	commitMu sync.Mutex

	mu    sync.RWMutex
	state State
	token string
	user  *UserProfile

	subMu   sync.Mutex
	subs    map[uint64]subscriber
	nextSub uint64
}

// NewManager creates a manager in the initializing state
func NewManager(store Store, auth Authenticator, opts ...Option) *Manager {
	m := &Manager{
		store:        store,
		auth:         auth,
		logger:       slog.Default(),
		profile:      DefaultProfile,
		loginTimeout: DefaultLoginTimeout,
		state:        StateInitializing,
		subs:         make(map[uint64]subscriber),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Profile returns the storage scope of the manager
func (m *Manager) Profile() string {
	return m.profile
}

// Initialize reads the stored session. Missing, partial or corrupt records
// leave the manager anonymous; partial and corrupt records are deleted.
func (m *Manager) Initialize(ctx context.Context) error {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	tokenKey, userKey := TokenKey(m.profile), UserKey(m.profile)

	token, tokenErr := m.store.Get(ctx, tokenKey)
	data, userErr := m.store.Get(ctx, userKey)

	for _, err := range []error{tokenErr, userErr} {
		if err != nil && !errors.Is(err, ErrKeyNotFound) {
			m.swap(StateAnonymous, "", nil)
			m.logger.Error("Failed to read session storage",
				"profile", m.profile,
				"error", err,
			)
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}

	hasToken := tokenErr == nil && token != ""
	hasUser := userErr == nil

	if !hasToken && !hasUser {
		m.swap(StateAnonymous, "", nil)
		return nil
	}

	if !hasToken || !hasUser {
		m.purge(ctx, "partial session")
		return nil
	}

	user, err := decodeUser(data)
	if err != nil {
		m.logger.Warn("Discarding stored session",
			"profile", m.profile,
			"error", err,
		)
		m.purge(ctx, err.Error())
		return nil
	}

	m.swap(StateAuthenticated, token, user)
	m.emit(ctx, Event{Type: EventRestored, UserID: user.ID, Username: user.Username})
	return nil
}

// purge deletes both keys and goes anonymous. Caller holds commitMu.
func (m *Manager) purge(ctx context.Context, reason string) {
	// the caller going away must not leave the session on disk
	if err := m.store.Delete(context.WithoutCancel(ctx), TokenKey(m.profile), UserKey(m.profile)); err != nil {
		m.logger.Warn("Failed to purge session storage",
			"profile", m.profile,
			"error", err,
		)
	}
	m.swap(StateAnonymous, "", nil)
	m.emit(ctx, Event{Type: EventPurged, Reason: reason})
}

func decodeUser(data string) (*UserProfile, error) {
	var user *UserProfile
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: empty user record", ErrCorruptState)
	}
	return user, nil
}

// Login authenticates against the remote service and, on success, stores
// both the token and the user before any consumer can observe the change.
// On failure the session is left exactly as it was.
//
// Login while authenticated replaces the current session. A Logout that
// completes while Login is waiting on the network does not cancel it: the
// last commit wins.
func (m *Manager) Login(ctx context.Context, username, password string) (*UserProfile, error) {
	m.loginMu.Lock()
	defer m.loginMu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, m.loginTimeout)
	creds, err := m.auth.Login(callCtx, username, password)
	cancel()
	if err != nil {
		m.emit(ctx, Event{Type: EventLoginFailed, Username: username, Reason: err.Error()})
		return nil, fmt.Errorf("login: %w", err)
	}
	if creds == nil || creds.Token == "" || creds.User == nil {
		m.emit(ctx, Event{Type: EventLoginFailed, Username: username, Reason: ErrIncompleteCredentials.Error()})
		return nil, ErrIncompleteCredentials
	}

	userJSON, err := json.Marshal(creds.User)
	if err != nil {
		return nil, fmt.Errorf("marshal user: %w", err)
	}
	user := creds.User.Clone()

	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	err = m.store.SetMulti(ctx, map[string]string{
		TokenKey(m.profile): creds.Token,
		UserKey(m.profile):  string(userJSON),
	}, m.ttl)
	if err != nil {
		m.emit(ctx, Event{Type: EventLoginFailed, Username: username, Reason: err.Error()})
		return nil, fmt.Errorf("persist session: %w: %w", ErrStorageUnavailable, err)
	}

	m.swap(StateAuthenticated, creds.Token, user)
	m.emit(ctx, Event{Type: EventLogin, UserID: user.ID, Username: user.Username})

	return user.Clone(), nil
}

// Logout clears the session. Storage errors are logged, never returned.
func (m *Manager) Logout(ctx context.Context) {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	m.mu.RLock()
	prev := m.user
	m.mu.RUnlock()

	// the caller going away must not leave the session on disk
	if err := m.store.Delete(context.WithoutCancel(ctx), TokenKey(m.profile), UserKey(m.profile)); err != nil {
		m.logger.Warn("Failed to delete session from storage",
			"profile", m.profile,
			"error", err,
		)
	}

	m.swap(StateAnonymous, "", nil)

	ev := Event{Type: EventLogout}
	if prev != nil {
		ev.UserID = prev.ID
		ev.Username = prev.Username
	}
	m.emit(ctx, ev)
}

// Current returns a snapshot of the session
func (m *Manager) Current() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// State returns the lifecycle state
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Token returns the bearer token when authenticated
func (m *Manager) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateAuthenticated {
		return "", false
	}
	return m.token, true
}

// Subscribe returns a channel receiving a snapshot after every transition.
// A slow reader only ever misses intermediate snapshots, never the latest.
// The channel is closed by cancel.
func (m *Manager) Subscribe() (<-chan Snapshot, func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	id := m.nextSub
	m.nextSub++
	sub := subscriber{ch: make(chan Snapshot, 1)}
	m.subs[id] = sub

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.subMu.Lock()
			defer m.subMu.Unlock()
			delete(m.subs, id)
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// swap replaces the in-memory state and notifies subscribers. Caller holds commitMu.
func (m *Manager) swap(state State, token string, user *UserProfile) {
	m.mu.Lock()
	m.state = state
	m.token = token
	m.user = user
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.subMu.Lock()
	for _, sub := range m.subs {
		sub.offer(snap)
	}
	m.subMu.Unlock()
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		Authenticated: m.state == StateAuthenticated,
		User:          m.user.Clone(),
	}
}

func (m *Manager) emit(ctx context.Context, ev Event) {
	ev.Profile = m.profile
	ev.At = time.Now()
	for _, sink := range m.sinks {
		sink.HandleSessionEvent(ctx, ev)
	}
}
