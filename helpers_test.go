package session_test

import (
	"context"
	"fmt"
	"sync"

	session "github.com/clubsphere/go-session"
)

// testIdentity is a simple implementation of the Identity interface for testing
type testIdentity struct {
	subjectID   string
	email       string
	displayName string
	avatarURL   string
}

func (t testIdentity) SubjectID() string   { return t.subjectID }
func (t testIdentity) Email() string       { return t.email }
func (t testIdentity) DisplayName() string { return t.displayName }
func (t testIdentity) AvatarURL() string   { return t.avatarURL }

func newTestIdentity(email string) testIdentity {
	return testIdentity{
		subjectID:   "subject-" + email,
		email:       email,
		displayName: "Test User",
	}
}

// fakeProvider implements IdentityProvider on top of the shared hub, with
// per-call behavior overridable through function fields.
type fakeProvider struct {
	hub *session.IdentityHub

	createFn  func(ctx context.Context, email, password string) (session.Identity, error)
	authFn    func(ctx context.Context, email, password string) (session.Identity, error)
	fedFn     func(ctx context.Context) (session.Identity, error)
	signOutFn func(ctx context.Context) error
	tokenFn   func(ctx context.Context, identity session.Identity) (string, error)
	attrsFn   func(ctx context.Context, identity session.Identity, attrs session.DisplayAttributes) error

	mu        sync.Mutex
	lastAttrs session.DisplayAttributes
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{hub: session.NewIdentityHub()}
}

func (p *fakeProvider) CreateIdentity(ctx context.Context, email, password string) (session.Identity, error) {
	if p.createFn != nil {
		return p.createFn(ctx, email, password)
	}
	identity := newTestIdentity(email)
	p.hub.Publish(identity)
	return identity, nil
}

func (p *fakeProvider) Authenticate(ctx context.Context, email, password string) (session.Identity, error) {
	if p.authFn != nil {
		return p.authFn(ctx, email, password)
	}
	identity := newTestIdentity(email)
	p.hub.Publish(identity)
	return identity, nil
}

func (p *fakeProvider) AuthenticateFederated(ctx context.Context) (session.Identity, error) {
	if p.fedFn != nil {
		return p.fedFn(ctx)
	}
	identity := newTestIdentity("federated@example.com")
	p.hub.Publish(identity)
	return identity, nil
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	if p.signOutFn != nil {
		return p.signOutFn(ctx)
	}
	p.hub.Publish(nil)
	return nil
}

func (p *fakeProvider) Subscribe(fn func(session.Identity)) func() {
	return p.hub.Subscribe(fn)
}

func (p *fakeProvider) Token(ctx context.Context, identity session.Identity) (string, error) {
	if p.tokenFn != nil {
		return p.tokenFn(ctx, identity)
	}
	return "bearer-" + identity.SubjectID(), nil
}

func (p *fakeProvider) UpdateDisplayAttributes(ctx context.Context, identity session.Identity, attrs session.DisplayAttributes) error {
	if p.attrsFn != nil {
		return p.attrsFn(ctx, identity, attrs)
	}
	p.mu.Lock()
	p.lastAttrs = attrs
	p.mu.Unlock()
	return nil
}

func (p *fakeProvider) displayAttrs() session.DisplayAttributes {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastAttrs
}

// captureLogger records formatted log lines for assertions.
type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) log(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *captureLogger) Debug(format string, args ...any) { l.log(format, args...) }
func (l *captureLogger) Info(format string, args ...any)  { l.log(format, args...) }
func (l *captureLogger) Warn(format string, args ...any)  { l.log(format, args...) }
func (l *captureLogger) Error(format string, args ...any) { l.log(format, args...) }

func (l *captureLogger) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// fakeProfiles implements ProfileService in memory.
type fakeProfiles struct {
	meFn     func(ctx context.Context, token string) (*session.Profile, error)
	ensureFn func(ctx context.Context, token string, params session.ProvisionParams) error

	mu          sync.Mutex
	provisioned []session.ProvisionParams
}

func (f *fakeProfiles) Me(ctx context.Context, token string) (*session.Profile, error) {
	if f.meFn != nil {
		return f.meFn(ctx, token)
	}
	return &session.Profile{Email: "test@example.com", Role: session.RoleMember}, nil
}

func (f *fakeProfiles) EnsureProfile(ctx context.Context, token string, params session.ProvisionParams) error {
	if f.ensureFn != nil {
		return f.ensureFn(ctx, token, params)
	}
	f.mu.Lock()
	f.provisioned = append(f.provisioned, params)
	f.mu.Unlock()
	return nil
}

func (f *fakeProfiles) lastProvisioned() (session.ProvisionParams, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.provisioned) == 0 {
		return session.ProvisionParams{}, false
	}
	return f.provisioned[len(f.provisioned)-1], true
}
