// Package session implements the authenticated-session core of a ClubSphere
// client: who is using the app right now, in what capacity, and which routes
// they may reach.
//
// Session lifecycle:
//   - Gateway adapts an external IdentityProvider (password or federated) plus
//     the backend profile service into register/login/logout operations and an
//     identity-change subscription with a guaranteed initial notification.
//   - Manager consumes those notifications and maintains the Session state
//     machine: resolving, resolved signed-out, or resolved signed-in with a
//     pending, ready, or absent profile. Profile fetches are tagged with an
//     epoch so a result that lands after a newer sign-in or sign-out is
//     discarded instead of repopulating a stale session.
//
// Route gating:
//   - Guard evaluates a Session against a RouteDescriptor and yields a
//     Decision: render, show a loading placeholder, or redirect to login or
//     home. Role checks never pass while the profile is absent, and roles are
//     deliberately non-hierarchical (an admin does not implicitly hold the
//     clubManager role).
//   - DefaultLandingRoute maps a profile to its dashboard root and is total
//     over its input, including a nil profile.
//
// Notices:
//   - Notifier is a best-effort emitter for user-facing success/failure
//     notices produced by Manager operations. Notifier errors are logged, not
//     propagated, so a UI toast layer can never block authentication.
package session
