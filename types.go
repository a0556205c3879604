package session

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an externally issued identity. It is
// replaced wholesale on re-authentication, never mutated in place.
type Identity interface {
	SubjectID() string
	Email() string
	DisplayName() string
	AvatarURL() string
}

// DisplayAttributes carries optional presentation fields pushed to the
// identity provider after registration. Empty fields are left unchanged.
type DisplayAttributes struct {
	DisplayName string
	AvatarURL   string
}

// IdentityProvider is the contract the external identity provider must
// satisfy. Subscribe delivers the signed-in identity (or nil for "none") in
// the order the provider emits changes, and fires exactly one initial
// notification so consumers can distinguish "not yet checked" from "checked,
// signed out". Token returns the current bearer credential for an identity,
// refreshing upstream when needed.
type IdentityProvider interface {
	CreateIdentity(ctx context.Context, email, password string) (Identity, error)
	Authenticate(ctx context.Context, email, password string) (Identity, error)
	AuthenticateFederated(ctx context.Context) (Identity, error)
	SignOut(ctx context.Context) error
	Subscribe(fn func(Identity)) (unsubscribe func())
	Token(ctx context.Context, identity Identity) (string, error)
	UpdateDisplayAttributes(ctx context.Context, identity Identity, attrs DisplayAttributes) error
}

// ProfileService is the backend contract for application profiles. Me returns
// ErrProfileNotFound when the identity has no profile yet; that is a valid
// state, not a fault. EnsureProfile is an idempotent upsert: a backend
// "already exists" response is success.
type ProfileService interface {
	Me(ctx context.Context, token string) (*Profile, error)
	EnsureProfile(ctx context.Context, token string, params ProvisionParams) error
}

// ProvisionParams is the provisioning payload. It deliberately carries no
// role; the backend assigns roles server-side.
type ProvisionParams struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"photoURL"`
	Phone     string `json:"phone,omitempty"`
}

// Config holds session core options
type Config interface {
	GetLoginRoute() string
	GetHomeRoute() string
	GetBackendURL() string
	GetTokenPath() string
}

// NewDefaultLogger returns the stdout fallback logger used when an embedder
// does not supply one.
func NewDefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SESSION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SESSION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SESSION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SESSION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
