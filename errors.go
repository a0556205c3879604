package session

import (
	"github.com/goliatone/go-errors"
)

const (
	textCodeCredentialsTaken  = "CREDENTIALS_TAKEN"
	textCodeWeakSecret        = "WEAK_SECRET"
	textCodeInvalidIdentifier = "INVALID_IDENTIFIER"
	textCodeAuthentication    = "AUTHENTICATION_FAILED"
	textCodeFederatedAuth     = "FEDERATED_AUTH_FAILED"
	textCodeLogout            = "LOGOUT_FAILED"
	textCodeProfileNotFound   = "PROFILE_NOT_FOUND"
	textCodeTooManyAttempts   = "TOO_MANY_LOGIN_ATTEMPTS"
)

// ErrCredentialsTaken is returned when registering an email that already has
// an identity upstream.
var ErrCredentialsTaken = errors.New("email is already registered", errors.CategoryConflict).
	WithTextCode(textCodeCredentialsTaken).
	WithCode(errors.CodeConflict)

// ErrWeakSecret is returned when a password fails the upstream policy.
var ErrWeakSecret = errors.New("password does not meet the provider policy", errors.CategoryValidation).
	WithTextCode(textCodeWeakSecret).
	WithCode(errors.CodeBadRequest)

// ErrInvalidIdentifier is returned for malformed emails.
var ErrInvalidIdentifier = errors.New("email address is malformed", errors.CategoryValidation).
	WithTextCode(textCodeInvalidIdentifier).
	WithCode(errors.CodeBadRequest)

// ErrAuthentication is returned on bad credentials. It is deliberately vague:
// unknown email and wrong password surface identically.
var ErrAuthentication = errors.New("invalid email or password", errors.CategoryAuth).
	WithTextCode(textCodeAuthentication).
	WithCode(errors.CodeUnauthorized)

// ErrFederatedAuth covers the provider-hosted interactive flow: user
// cancellation, blocked callbacks, and network failure during the flow.
var ErrFederatedAuth = errors.New("federated sign-in failed", errors.CategoryAuth).
	WithTextCode(textCodeFederatedAuth).
	WithCode(errors.CodeUnauthorized)

// ErrLogout is returned only when the provider-side sign-out fails; local
// state is cleared regardless.
var ErrLogout = errors.New("provider sign-out failed", errors.CategoryOperation).
	WithTextCode(textCodeLogout)

// ErrProfileNotFound marks an identity whose backend profile has not been
// provisioned yet. Session treats this as a valid absent-profile state.
var ErrProfileNotFound = errors.New("profile not provisioned", errors.CategoryNotFound).
	WithTextCode(textCodeProfileNotFound).
	WithCode(errors.CodeNotFound)

// ErrTooManyLoginAttempts is returned while an account is cooling down.
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryAuth).
	WithTextCode(textCodeTooManyAttempts).
	WithCode(errors.CodeUnauthorized)

// IsProfileNotFound reports whether err is the not-provisioned case, which
// callers must treat as an absent profile rather than a failure.
func IsProfileNotFound(err error) bool {
	return hasTextCode(err, textCodeProfileNotFound)
}

// IsCredentialsTaken reports whether err is the already-registered case,
// which the login provisioning path treats as success.
func IsCredentialsTaken(err error) bool {
	return hasTextCode(err, textCodeCredentialsTaken)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var rich *errors.Error
	if errors.As(err, &rich) {
		return rich.TextCode == code
	}
	return false
}

func cloneWithMetadata(base *errors.Error, metadata map[string]any) *errors.Error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	clone.Source = base
	return clone.WithMetadata(metadata)
}
