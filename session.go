package session

import "fmt"

// Status tells whether the initial provider notification has been observed.
type Status string

const (
	// StatusResolving means no notification has arrived yet; the guard shows
	// a placeholder instead of redirecting.
	StatusResolving Status = "resolving"
	// StatusResolved means the provider state has been observed at least
	// once, even if that state is "signed out".
	StatusResolved Status = "resolved"
)

// ProfileState is the sub-state of a resolved session's profile.
type ProfileState string

const (
	// ProfileNone: signed out, no profile applies.
	ProfileNone ProfileState = "none"
	// ProfilePending: signed in, fetch in flight.
	ProfilePending ProfileState = "pending"
	// ProfileReady: signed in, profile populated.
	ProfileReady ProfileState = "ready"
	// ProfileAbsent: signed in but the backend has no record yet, or the
	// fetch failed; a valid state, not an error.
	ProfileAbsent ProfileState = "absent"
)

// Session is the merged, UI-facing view of identity, profile, and resolution
// status. Invariant: Profile is non-nil only when Identity is non-nil.
type Session struct {
	Identity     Identity
	Profile      *Profile
	Status       Status
	ProfileState ProfileState
}

// Resolved reports whether the initial provider state has been observed.
func (s Session) Resolved() bool {
	return s.Status == StatusResolved
}

// SignedIn reports whether an identity is present.
func (s Session) SignedIn() bool {
	return s.Identity != nil
}

// Role returns the profile role when a profile is present.
func (s Session) Role() (Role, bool) {
	if s.Profile == nil {
		return "", false
	}
	return s.Profile.Role, true
}

func (s Session) String() string {
	subject := "<none>"
	if s.Identity != nil {
		subject = s.Identity.SubjectID()
	}
	role := "<none>"
	if s.Profile != nil {
		role = string(s.Profile.Role)
	}
	return fmt.Sprintf("subject=%s role=%s status=%s profile=%s", subject, role, s.Status, s.ProfileState)
}
