package session

import (
	"context"
	"sync"
)

// ManagerOption customizes Manager construction.
type ManagerOption func(*Manager)

// WithManagerLogger overrides the logger used for profile fetch and notifier
// failures.
func WithManagerLogger(logger Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithManagerNotifier sets the Notifier that receives user-facing notices for
// identity-affecting operations.
func WithManagerNotifier(notifier Notifier) ManagerOption {
	return func(m *Manager) {
		m.notifier = normalizeNotifier(notifier)
	}
}

// Manager is the single source of truth for the current session. It consumes
// Gateway notifications in order, fetches the profile for each signed-in
// identity, and exposes the combined state to subscribers.
//
// Manager is single-writer: only the notification handler and the synchronous
// logout path mutate state, serialized by a mutex. Each state change bumps an
// epoch; a profile fetch result is committed only if its epoch is still
// current, so a fetch that resolves after a newer sign-in or sign-out is
// discarded rather than applied to a stale session.
type Manager struct {
	gateway  *Gateway
	logger   Logger
	notifier Notifier

	mu       sync.Mutex
	session  Session
	epoch    uint64
	subs     map[int]func(Session)
	keys     []int
	nextSub  int
	fetchCtx context.Context
	stop     func()
}

// NewManager returns a Manager in the Resolving state. Call Start to begin
// consuming gateway notifications.
func NewManager(gateway *Gateway, opts ...ManagerOption) *Manager {
	m := &Manager{
		gateway:  gateway,
		logger:   defLogger{},
		notifier: noopNotifier{},
		session:  Session{Status: StatusResolving},
		subs:     map[int]func(Session){},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// Start subscribes to the gateway. The provider's guaranteed initial
// notification moves the session from Resolving to exactly one Resolved
// state. ctx bounds the background profile fetches.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	m.fetchCtx = ctx
	m.mu.Unlock()

	unsubscribe := m.gateway.Subscribe(m.handleChange)

	m.mu.Lock()
	m.stop = unsubscribe
	m.mu.Unlock()
}

// Close unsubscribes from the gateway. In-flight profile fetches resolve
// against a bumped epoch and are discarded.
func (m *Manager) Close() {
	m.mu.Lock()
	stop := m.stop
	m.stop = nil
	m.epoch++
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// Current returns a snapshot of the session.
func (m *Manager) Current() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Subscribe registers fn for session changes and immediately delivers the
// current snapshot. The returned function unsubscribes.
//
// fn may run on the provider's dispatch path. Calling Login, Logout, or any
// other identity-affecting operation from inside fn deadlocks; spawn a
// goroutine for that instead.
func (m *Manager) Subscribe(fn func(Session)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.keys = append(m.keys, id)
	current := m.session
	m.mu.Unlock()

	fn(current)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
		for i, k := range m.keys {
			if k == id {
				m.keys = append(m.keys[:i], m.keys[i+1:]...)
				break
			}
		}
	}
}

// handleChange is the single state writer for gateway notifications. It runs
// synchronously on the provider's dispatch path, so notifications apply in
// provider order.
func (m *Manager) handleChange(identity Identity) {
	m.mu.Lock()
	m.epoch++
	epoch := m.epoch

	if identity == nil {
		m.session = Session{Status: StatusResolved, ProfileState: ProfileNone}
		m.mu.Unlock()
		m.publish()
		return
	}

	m.session = Session{
		Identity:     identity,
		Status:       StatusResolved,
		ProfileState: ProfilePending,
	}
	ctx := m.fetchCtx
	m.mu.Unlock()
	m.publish()

	if ctx == nil {
		ctx = context.Background()
	}
	go m.fetchProfile(ctx, identity, epoch)
}

func (m *Manager) fetchProfile(ctx context.Context, identity Identity, epoch uint64) {
	profile, err := m.loadProfile(ctx, identity)
	m.commitProfile(epoch, profile, err)
}

func (m *Manager) loadProfile(ctx context.Context, identity Identity) (*Profile, error) {
	token, err := m.gateway.Token(ctx, identity)
	if err != nil {
		return nil, err
	}
	return m.gateway.profiles.Me(ctx, token)
}

// commitProfile applies a fetch result if and only if its epoch is still the
// active one. A not-found result and a network failure both degrade to the
// absent-profile state; only the latter is worth a log line.
func (m *Manager) commitProfile(epoch uint64, profile *Profile, err error) {
	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		m.logger.Debug("discarding stale profile fetch result at epoch %d", epoch)
		return
	}

	switch {
	case err == nil && profile != nil:
		m.session.Profile = profile
		m.session.ProfileState = ProfileReady
	case IsProfileNotFound(err):
		m.session.Profile = nil
		m.session.ProfileState = ProfileAbsent
	default:
		m.session.Profile = nil
		m.session.ProfileState = ProfileAbsent
		m.mu.Unlock()
		m.logger.Warn("profile fetch failed, session degrades to absent profile: %v", err)
		m.publish()
		return
	}

	m.mu.Unlock()
	m.publish()
}

// RefreshProfile re-fetches the profile for the current identity. It is a
// no-op returning nil when signed out, and never changes the identity.
// Fetch failures are logged and swallowed, leaving the session untouched:
// profile-affecting errors shape internal state, they do not reach callers.
func (m *Manager) RefreshProfile(ctx context.Context) (*Profile, error) {
	m.mu.Lock()
	identity := m.session.Identity
	epoch := m.epoch
	m.mu.Unlock()

	if identity == nil {
		return nil, nil
	}

	profile, err := m.loadProfile(ctx, identity)
	if err != nil && !IsProfileNotFound(err) {
		m.logger.Warn("profile refresh failed: %v", err)
		return nil, nil
	}

	m.commitProfile(epoch, profile, err)

	if IsProfileNotFound(err) {
		return nil, nil
	}
	return profile, nil
}

// Register passes through to the gateway and surfaces a user-facing notice.
func (m *Manager) Register(ctx context.Context, params RegisterParams) (Identity, error) {
	identity, err := m.gateway.Register(ctx, params)
	if err != nil {
		m.notify(ctx, Notice{Level: NoticeError, Code: "register_failed", Message: "Registration failed"})
		return nil, err
	}

	m.notify(ctx, Notice{Level: NoticeSuccess, Code: "register_ok", Message: "Registration successful!"})
	return identity, nil
}

// Login passes through to the gateway and surfaces a user-facing notice.
func (m *Manager) Login(ctx context.Context, email, password string) (Identity, error) {
	identity, err := m.gateway.Login(ctx, email, password)
	if err != nil {
		m.notify(ctx, Notice{Level: NoticeError, Code: "login_failed", Message: "Login failed"})
		return nil, err
	}

	m.notify(ctx, Notice{Level: NoticeSuccess, Code: "login_ok", Message: "Login successful!"})
	return identity, nil
}

// LoginFederated passes through to the gateway and surfaces a user-facing
// notice.
func (m *Manager) LoginFederated(ctx context.Context) (Identity, error) {
	identity, err := m.gateway.LoginFederated(ctx)
	if err != nil {
		m.notify(ctx, Notice{Level: NoticeError, Code: "login_failed", Message: "Login failed"})
		return nil, err
	}

	m.notify(ctx, Notice{Level: NoticeSuccess, Code: "login_ok", Message: "Login successful!"})
	return identity, nil
}

// Logout forces the signed-out state synchronously, before the provider round
// trip, then passes through to the gateway. The epoch bump makes any in-flight
// profile fetch land stale. Idempotent: a second call is another no-op
// sign-out.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.epoch++
	m.session = Session{Status: StatusResolved, ProfileState: ProfileNone}
	m.mu.Unlock()
	m.publish()

	err := m.gateway.Logout(ctx)
	if err != nil {
		m.notify(ctx, Notice{Level: NoticeError, Code: "logout_failed", Message: "Logout failed"})
		return err
	}

	m.notify(ctx, Notice{Level: NoticeSuccess, Code: "logout_ok", Message: "Logged out successfully!"})
	return nil
}

func (m *Manager) publish() {
	m.mu.Lock()
	current := m.session
	fns := make([]func(Session), 0, len(m.keys))
	for _, k := range m.keys {
		if fn, ok := m.subs[k]; ok {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(current)
	}
}

func (m *Manager) notify(ctx context.Context, notice Notice) {
	if err := m.notifier.Notify(ctx, notice); err != nil {
		m.logger.Warn("notifier error: %v", err)
	}
}
