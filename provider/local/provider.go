// Package local implements a bun/sqlite-backed identity provider for
// deployments that own their identity store instead of delegating to a hosted
// provider. Bearer tokens are HS256 JWTs minted on demand.
package local

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	session "github.com/clubsphere/go-session"
)

// MaxLoginAttempts is the number of failed attempts an account gets inside
// one cooldown window.
var MaxLoginAttempts = 5

// CoolDownPeriod is the window after which the attempt counter resets.
var CoolDownPeriod = 24 * time.Hour

const minPasswordLength = 8

// Config configures the local identity provider.
type Config struct {
	// SigningKey signs the HS256 bearer tokens.
	SigningKey string

	// TokenExpiration is the token lifetime in hours.
	TokenExpiration int

	// Issuer and Audience are stamped into every token.
	Issuer   string
	Audience []string

	// ResumeToken, when set, restores the signed-in identity from a
	// previously stored token so the initial notification carries it.
	ResumeToken string
}

// Option customizes the provider.
type Option func(*Provider)

// WithLogger overrides the provider logger.
func WithLogger(logger session.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Provider implements session.IdentityProvider over a local account store.
type Provider struct {
	accounts Accounts
	tokens   *tokenService
	hub      *session.IdentityHub
	logger   session.Logger
}

var _ session.IdentityProvider = (*Provider)(nil)

// New creates the provider. When cfg.ResumeToken validates against an
// existing account the provider starts signed in, and the initial
// subscription notification carries that identity.
func New(ctx context.Context, accounts Accounts, cfg Config, opts ...Option) (*Provider, error) {
	if strings.TrimSpace(cfg.SigningKey) == "" {
		return nil, errors.New("local provider requires a signing key", errors.CategoryBadInput)
	}
	if cfg.TokenExpiration <= 0 {
		cfg.TokenExpiration = 24
	}

	p := &Provider{
		accounts: accounts,
		hub:      session.NewIdentityHub(),
		logger:   session.NewDefaultLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	p.tokens = newTokenService([]byte(cfg.SigningKey), cfg.TokenExpiration, cfg.Issuer, cfg.Audience, p.logger)

	if cfg.ResumeToken != "" {
		p.resume(ctx, cfg.ResumeToken)
	}

	return p, nil
}

// resume restores the current identity from a stored token. Failures are
// logged, not fatal: the provider just starts signed out.
func (p *Provider) resume(ctx context.Context, token string) {
	claims, err := p.tokens.Validate(token)
	if err != nil {
		p.logger.Debug("resume token rejected, starting signed out: %v", err)
		return
	}

	account, err := p.accounts.GetByEmail(ctx, claims.Email)
	if err != nil {
		p.logger.Debug("resume account lookup failed, starting signed out: %v", err)
		return
	}

	p.hub.Publish(identityFromAccount(account))
}

// CreateIdentity registers a new account and signs it in.
func (p *Provider) CreateIdentity(ctx context.Context, email, password string) (session.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if _, err := mail.ParseAddress(email); err != nil {
		return nil, richClone(session.ErrInvalidIdentifier, map[string]any{"email": email})
	}

	if len(password) < minPasswordLength {
		return nil, session.ErrWeakSecret
	}

	if _, err := p.accounts.GetByEmail(ctx, email); err == nil {
		return nil, richClone(session.ErrCredentialsTaken, map[string]any{"email": email})
	} else if !isNotFound(err) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}

	account := &Account{
		Email:        email,
		PasswordHash: string(hash),
	}

	// Deterministic ID from the email keeps re-registration after a purge
	// stable across environments.
	if id, err := hashid.NewUUID(email); err == nil {
		account.ID = id
	} else {
		account.ID = uuid.New()
	}

	account, err = p.accounts.Create(ctx, account)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryConflict, "could not create account")
	}

	identity := identityFromAccount(account)
	p.hub.Publish(identity)
	return identity, nil
}

// Authenticate verifies email/password and signs the account in. Unknown
// email and wrong password answer identically.
func (p *Provider) Authenticate(ctx context.Context, email, password string) (session.Identity, error) {
	account, err := p.accounts.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, session.ErrAuthentication
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load account during authentication")
	}

	if account.LoginAttemptAt != nil && time.Since(*account.LoginAttemptAt) > CoolDownPeriod {
		account.LoginAttempts = 0
	}

	if account.LoginAttempts > MaxLoginAttempts {
		return nil, session.ErrTooManyLoginAttempts
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		if err2 := p.accounts.TrackAttemptedLogin(ctx, account); err2 != nil {
			return nil, errors.Wrap(err2, errors.CategoryInternal, "failed to track login attempt")
		}
		return nil, session.ErrAuthentication
	}

	if err := p.accounts.TrackSuccessfulLogin(ctx, account); err != nil {
		p.logger.Error("failed to track successful login: %v", err)
	}

	identity := identityFromAccount(account)
	p.hub.Publish(identity)
	return identity, nil
}

// AuthenticateFederated is not supported: the local provider has no hosted
// flow to delegate to.
func (p *Provider) AuthenticateFederated(ctx context.Context) (session.Identity, error) {
	return nil, richClone(session.ErrFederatedAuth, map[string]any{
		"reason": "federated sign-in is not supported by the local provider",
	})
}

// SignOut clears the current identity and notifies subscribers.
func (p *Provider) SignOut(ctx context.Context) error {
	p.hub.Publish(nil)
	return nil
}

// Subscribe registers for identity-change notifications.
func (p *Provider) Subscribe(fn func(session.Identity)) func() {
	return p.hub.Subscribe(fn)
}

// Token mints a fresh bearer token for the identity.
func (p *Provider) Token(ctx context.Context, identity session.Identity) (string, error) {
	if identity == nil {
		return "", errors.New("identity is required", errors.CategoryBadInput)
	}
	return p.tokens.Mint(identity)
}

// UpdateDisplayAttributes stores presentation fields on the account. Empty
// fields are left unchanged.
func (p *Provider) UpdateDisplayAttributes(ctx context.Context, identity session.Identity, attrs session.DisplayAttributes) error {
	if identity == nil {
		return errors.New("identity is required", errors.CategoryBadInput)
	}

	account, err := p.accounts.GetByEmail(ctx, identity.Email())
	if err != nil {
		return err
	}

	if attrs.DisplayName != "" {
		account.DisplayName = attrs.DisplayName
	}
	if attrs.AvatarURL != "" {
		account.AvatarURL = attrs.AvatarURL
	}

	if _, err := p.accounts.Upsert(ctx, account, repository.UpdateSkipZeroValues()); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to update display attributes")
	}

	return nil
}

func richClone(base *errors.Error, metadata map[string]any) *errors.Error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	clone.Source = base
	return clone.WithMetadata(metadata)
}
