// Package oidc implements a session.IdentityProvider that delegates sign-in
// to a provider-hosted OpenID Connect flow: the user authenticates in their
// browser and the provider redirects back to a short-lived loopback listener.
package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/goliatone/go-errors"
	"golang.org/x/oauth2"

	session "github.com/clubsphere/go-session"
)

const (
	defaultListenAddr   = "127.0.0.1:0"
	defaultCallbackPath = "/auth/callback"
	defaultFlowTimeout  = 3 * time.Minute
)

// Config configures the federated provider.
type Config struct {
	// IssuerURL is the OpenID Connect issuer, discovered at startup.
	IssuerURL string

	// ClientID and ClientSecret identify this client to the issuer.
	ClientID     string
	ClientSecret string

	// Scopes defaults to openid, email, profile.
	Scopes []string

	// ListenAddr is the loopback address for the callback listener.
	ListenAddr string

	// CallbackPath is the path the issuer redirects back to.
	CallbackPath string

	// Launcher opens the authorization URL, typically in a browser. Required
	// for AuthenticateFederated.
	Launcher func(url string) error

	// FlowTimeout bounds the whole interactive flow.
	FlowTimeout time.Duration
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

// Provider implements session.IdentityProvider for provider-hosted login.
type Provider struct {
	cfg      Config
	provider *gooidc.Provider
	verifier *gooidc.IDTokenVerifier
	hub      *session.IdentityHub
	logger   session.Logger

	mu          sync.Mutex
	tokenSource oauth2.TokenSource
	rawIDToken  string
}

var _ session.IdentityProvider = (*Provider)(nil)

// New discovers the issuer and prepares the verifier.
func New(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	if cfg.IssuerURL == "" {
		return nil, errors.New("oidc provider requires an issuer URL", errors.CategoryBadInput)
	}
	if cfg.ClientID == "" {
		return nil, errors.New("oidc provider requires a client ID", errors.CategoryBadInput)
	}

	discovered, err := gooidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "oidc issuer discovery failed")
	}

	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{gooidc.ScopeOpenID, "email", "profile"}
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.CallbackPath == "" {
		cfg.CallbackPath = defaultCallbackPath
	}
	if cfg.FlowTimeout <= 0 {
		cfg.FlowTimeout = defaultFlowTimeout
	}

	p := &Provider{
		cfg:      cfg,
		provider: discovered,
		verifier: discovered.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		hub:      session.NewIdentityHub(),
		logger:   session.NewDefaultLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p, nil
}

// CreateIdentity is not supported; identities are managed by the issuer.
func (p *Provider) CreateIdentity(ctx context.Context, email, password string) (session.Identity, error) {
	return nil, errors.New("oidc: identity creation is managed by the identity provider", errors.CategoryOperation)
}

// Authenticate is not supported; use the provider-hosted flow.
func (p *Provider) Authenticate(ctx context.Context, email, password string) (session.Identity, error) {
	return nil, errors.New("oidc: direct password verification not supported; use the hosted flow", errors.CategoryOperation)
}

// AuthenticateFederated runs the interactive authorization-code flow with
// PKCE: open the hosted page, wait for the loopback callback, exchange the
// code, verify the ID token, and publish the identity.
func (p *Provider) AuthenticateFederated(ctx context.Context) (session.Identity, error) {
	if p.cfg.Launcher == nil {
		return nil, federatedErr("launcher", fmt.Errorf("no URL launcher configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.FlowTimeout)
	defer cancel()

	listener, err := net.Listen("tcp", p.cfg.ListenAddr)
	if err != nil {
		return nil, federatedErr("listener", err)
	}
	defer listener.Close()

	state, err := randomToken()
	if err != nil {
		return nil, federatedErr("state", err)
	}
	pkceVerifier := oauth2.GenerateVerifier()

	oauthCfg := oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		Endpoint:     p.provider.Endpoint(),
		RedirectURL:  fmt.Sprintf("http://%s%s", listener.Addr().String(), p.cfg.CallbackPath),
		Scopes:       p.cfg.Scopes,
	}

	authURL := oauthCfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(pkceVerifier),
	)

	code, err := p.awaitCallback(ctx, listener, state, authURL)
	if err != nil {
		return nil, err
	}

	token, err := oauthCfg.Exchange(ctx, code, oauth2.VerifierOption(pkceVerifier))
	if err != nil {
		return nil, federatedErr("exchange", err)
	}

	rawIDToken, _ := token.Extra("id_token").(string)
	if rawIDToken == "" {
		return nil, federatedErr("exchange", fmt.Errorf("token response is missing id_token"))
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, federatedErr("verify", err)
	}

	var claims struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, federatedErr("claims", err)
	}

	identity := federatedIdentity{
		subjectID:   idToken.Subject,
		email:       claims.Email,
		displayName: claims.Name,
		avatarURL:   claims.Picture,
	}

	p.mu.Lock()
	p.tokenSource = oauthCfg.TokenSource(context.Background(), token)
	p.rawIDToken = rawIDToken
	p.mu.Unlock()

	p.logger.Debug("authorization flow completed for subject %s", idToken.Subject)

	p.hub.Publish(identity)
	return identity, nil
}

// awaitCallback serves the loopback redirect target until the issuer calls
// back or the flow is cancelled.
func (p *Provider) awaitCallback(ctx context.Context, listener net.Listener, state, authURL string) (string, error) {
	type callbackResult struct {
		code string
		err  error
	}
	results := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(p.cfg.CallbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			results <- callbackResult{err: federatedErr("callback", fmt.Errorf("state mismatch"))}
			return
		}

		if errCode := q.Get("error"); errCode != "" {
			http.Error(w, "sign-in failed", http.StatusBadRequest)
			results <- callbackResult{err: federatedErr("callback", fmt.Errorf("provider returned %q", errCode))}
			return
		}

		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			results <- callbackResult{err: federatedErr("callback", fmt.Errorf("missing authorization code"))}
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body>Signed in. You may close this window.</body></html>")
		results <- callbackResult{code: code}
	})

	server := &http.Server{Handler: mux}
	go server.Serve(listener)
	defer server.Close()

	if err := p.cfg.Launcher(authURL); err != nil {
		return "", federatedErr("launcher", err)
	}

	select {
	case <-ctx.Done():
		return "", federatedErr("cancelled", ctx.Err())
	case result := <-results:
		if result.err != nil {
			return "", result.err
		}
		return result.code, nil
	}
}

// SignOut drops the local token source and notifies subscribers. Issuer-side
// session revocation is the issuer's concern.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.tokenSource = nil
	p.rawIDToken = ""
	p.mu.Unlock()

	p.hub.Publish(nil)
	return nil
}

// Subscribe registers for identity-change notifications.
func (p *Provider) Subscribe(fn func(session.Identity)) func() {
	return p.hub.Subscribe(fn)
}

// Token returns the current ID token, refreshing through the stored token
// source when the access token has expired.
func (p *Provider) Token(ctx context.Context, identity session.Identity) (string, error) {
	p.mu.Lock()
	source := p.tokenSource
	p.mu.Unlock()

	if source == nil {
		return "", errors.New("oidc: no active session", errors.CategoryAuth)
	}

	token, err := source.Token()
	if err != nil {
		return "", federatedErr("refresh", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if raw, ok := token.Extra("id_token").(string); ok && raw != "" {
		p.rawIDToken = raw
	}
	if p.rawIDToken != "" {
		return p.rawIDToken, nil
	}
	return token.AccessToken, nil
}

// UpdateDisplayAttributes is managed by the issuer and not supported here.
func (p *Provider) UpdateDisplayAttributes(ctx context.Context, identity session.Identity, attrs session.DisplayAttributes) error {
	return errors.New("oidc: display attributes are managed by the identity provider", errors.CategoryOperation)
}

type federatedIdentity struct {
	subjectID   string
	email       string
	displayName string
	avatarURL   string
}

var _ session.Identity = federatedIdentity{}

func (f federatedIdentity) SubjectID() string   { return f.subjectID }
func (f federatedIdentity) Email() string       { return f.email }
func (f federatedIdentity) DisplayName() string { return f.displayName }
func (f federatedIdentity) AvatarURL() string   { return f.avatarURL }

func federatedErr(stage string, cause error) *errors.Error {
	clone := session.ErrFederatedAuth.Clone()
	if clone == nil {
		return session.ErrFederatedAuth
	}
	clone.Source = session.ErrFederatedAuth
	return clone.WithMetadata(map[string]any{
		"stage": stage,
		"cause": cause.Error(),
	})
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
