package session

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

// Gateway adapts the external identity provider and the backend profile
// service into the four identity operations plus the change subscription.
// Every successful sign-in path persists the bearer token and ensures a
// backend profile exists; the profile's role is assigned server-side, never
// by this client.
type Gateway struct {
	provider IdentityProvider
	profiles ProfileService
	tokens   TokenStore
	logger   Logger
}

// NewGateway returns a new Gateway
func NewGateway(provider IdentityProvider, profiles ProfileService, tokens TokenStore) *Gateway {
	return &Gateway{
		provider: provider,
		profiles: profiles,
		tokens:   tokens,
		logger:   defLogger{},
	}
}

func (g *Gateway) WithLogger(logger Logger) *Gateway {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// RegisterParams is the payload for creating a new identity.
type RegisterParams struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	AvatarURL string `json:"photoURL,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Validate applies the local registration policy. Upstream providers apply
// their own policy on top; this keeps obviously bad payloads from a network
// round trip.
func (p RegisterParams) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&p.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&p.AvatarURL, is.URL),
	)
	if err != nil {
		return p.classifyValidation(err)
	}

	if p.Phone != "" {
		num, err := phonenumbers.Parse(p.Phone, "US")
		if err != nil || !phonenumbers.IsValidNumber(num) {
			return errors.New("phone number is not valid", errors.CategoryValidation).
				WithTextCode("INVALID_PHONE").
				WithCode(errors.CodeBadRequest).
				WithMetadata(map[string]any{"phone": p.Phone})
		}
	}

	return nil
}

func (p RegisterParams) classifyValidation(err error) error {
	verrs, ok := err.(validation.Errors)
	if !ok {
		return errors.Wrap(err, errors.CategoryValidation, "invalid registration payload")
	}

	if _, bad := verrs["Email"]; bad {
		return cloneWithMetadata(ErrInvalidIdentifier, map[string]any{"email": p.Email})
	}
	if _, bad := verrs["Password"]; bad {
		return ErrWeakSecret
	}

	return errors.Wrap(err, errors.CategoryValidation, "invalid registration payload")
}

// Register creates a new identity upstream, pushes display attributes,
// persists the token, and provisions the backend profile. Provisioning
// failures fail the whole registration so the caller can retry.
func (g *Gateway) Register(ctx context.Context, params RegisterParams) (Identity, error) {
	if err := params.Validate(); err != nil {
		g.logger.Error("Register payload validation error: %v", err)
		return nil, err
	}

	identity, err := g.provider.CreateIdentity(ctx, params.Email, params.Password)
	if err != nil {
		g.logger.Error("Register create identity error: %v", err)
		return nil, err
	}

	if params.Name != "" || params.AvatarURL != "" {
		attrs := DisplayAttributes{DisplayName: params.Name, AvatarURL: params.AvatarURL}
		if err := g.provider.UpdateDisplayAttributes(ctx, identity, attrs); err != nil {
			// Display attributes are presentation only; the identity exists.
			g.logger.Warn("Register display attribute update error: %v", err)
		}
	}

	token, err := g.persistToken(ctx, identity)
	if err != nil {
		return nil, err
	}

	if err := g.ensureProfile(ctx, token, identity, params.Name, params.AvatarURL, params.Phone); err != nil {
		g.logger.Error("Register profile provisioning error: %v", err)
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to provision profile")
	}

	return identity, nil
}

// Login authenticates against the provider, persists the token, and
// idempotently ensures the profile exists. A backend "already exists" answer
// is the normal case, and any other provisioning failure is logged but does
// not fail the sign-in: identity-level success is what establishes the
// session.
func (g *Gateway) Login(ctx context.Context, email, password string) (Identity, error) {
	identity, err := g.provider.Authenticate(ctx, email, password)
	if err != nil {
		g.logger.Error("Login authenticate error: %v", err)
		return nil, err
	}

	token, err := g.persistToken(ctx, identity)
	if err != nil {
		return nil, err
	}

	if err := g.ensureProfile(ctx, token, identity, identity.DisplayName(), identity.AvatarURL(), ""); err != nil {
		g.logger.Warn("Login profile provisioning error: %v", err)
	}

	return identity, nil
}

// LoginFederated delegates to the provider-hosted interactive flow, then runs
// the same token persistence and profile provisioning as Login.
func (g *Gateway) LoginFederated(ctx context.Context) (Identity, error) {
	identity, err := g.provider.AuthenticateFederated(ctx)
	if err != nil {
		g.logger.Error("LoginFederated error: %v", err)
		return nil, err
	}

	token, err := g.persistToken(ctx, identity)
	if err != nil {
		return nil, err
	}

	if err := g.ensureProfile(ctx, token, identity, identity.DisplayName(), identity.AvatarURL(), ""); err != nil {
		g.logger.Warn("LoginFederated profile provisioning error: %v", err)
	}

	return identity, nil
}

// Logout signs out upstream and clears the token store. The local clear runs
// regardless of the provider outcome; only a provider-side failure surfaces,
// as ErrLogout. Safe to call when already signed out.
func (g *Gateway) Logout(ctx context.Context) error {
	signOutErr := g.provider.SignOut(ctx)

	if err := g.tokens.Clear(); err != nil {
		g.logger.Warn("Logout token clear error: %v", err)
	}

	if signOutErr != nil {
		g.logger.Error("Logout provider sign-out error: %v", signOutErr)
		return cloneWithMetadata(ErrLogout, map[string]any{"cause": signOutErr.Error()})
	}

	return nil
}

// Subscribe registers fn for identity-change notifications, delivered in
// provider order with one guaranteed initial notification.
func (g *Gateway) Subscribe(fn func(Identity)) func() {
	return g.provider.Subscribe(fn)
}

// Token returns the current bearer credential for an identity.
func (g *Gateway) Token(ctx context.Context, identity Identity) (string, error) {
	return g.provider.Token(ctx, identity)
}

func (g *Gateway) persistToken(ctx context.Context, identity Identity) (string, error) {
	token, err := g.provider.Token(ctx, identity)
	if err != nil {
		g.logger.Error("Token retrieval error: %v", err)
		return "", errors.Wrap(err, errors.CategoryAuth, "failed to obtain bearer token")
	}

	if err := g.tokens.Save(token); err != nil {
		g.logger.Error("Token persistence error: %v", err)
		return "", err
	}

	return token, nil
}

func (g *Gateway) ensureProfile(ctx context.Context, token string, identity Identity, name, avatarURL, phone string) error {
	if name == "" {
		name = "User"
	}

	err := g.profiles.EnsureProfile(ctx, token, ProvisionParams{
		Name:      name,
		Email:     identity.Email(),
		AvatarURL: avatarURL,
		Phone:     phone,
	})
	if err != nil && IsCredentialsTaken(err) {
		// Profile already provisioned; the self-healing upsert succeeded.
		return nil
	}

	return err
}
