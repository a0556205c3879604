package session

// Action is what a protected view should do for the current session.
type Action string

const (
	// ActionRender: show the protected content.
	ActionRender Action = "render"
	// ActionLoading: session still resolving, show a neutral placeholder and
	// make no redirect decision yet.
	ActionLoading Action = "loading"
	// ActionRedirectLogin: not signed in, go to the login route.
	ActionRedirectLogin Action = "redirect_login"
	// ActionRedirectHome: signed in but not authorized, go home.
	ActionRedirectHome Action = "redirect_home"
)

// Decision is the guard's verdict for one route evaluation. Guard decisions
// are values, never errors: denial manifests only as a redirect target.
type Decision struct {
	Action Action
	// Target is the redirect destination for the redirect actions.
	Target string
	// From carries the originally requested path on a login redirect so the
	// login flow can return the user afterward.
	From string
}

// GuardOption customizes Guard behavior.
type GuardOption func(*Guard)

// WithGuardRoutes overrides the login and home redirect targets.
func WithGuardRoutes(login, home string) GuardOption {
	return func(g *Guard) {
		if login != "" {
			g.loginRoute = login
		}
		if home != "" {
			g.homeRoute = home
		}
	}
}

// WithGuardLogger sets the logger used for denial diagnostics.
func WithGuardLogger(logger Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Guard decides renderability of a protected view given the current session
// and a route's authorization descriptor.
type Guard struct {
	loginRoute string
	homeRoute  string
	logger     Logger
}

// NewGuard returns a Guard redirecting to the default login and home routes.
func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{
		loginRoute: RouteLogin,
		homeRoute:  RouteHome,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// Evaluate runs the guard algorithm for one render of a protected route:
//
//  1. Session still resolving: loading placeholder, no redirect yet.
//  2. No identity: redirect to login, carrying the requested path.
//  3. Role-gated route, profile present, role not in the set: redirect home.
//  4. Role-gated route, profile absent: redirect home. Absence of role
//     information never grants role-gated access.
//  5. Otherwise: render.
//
// Role checks only evaluate once the profile is available; a signed-in but
// unprovisioned identity is never granted a role-gated route.
func (g *Guard) Evaluate(s Session, route RouteDescriptor) Decision {
	if !s.Resolved() {
		return Decision{Action: ActionLoading}
	}

	if !s.SignedIn() {
		return Decision{
			Action: ActionRedirectLogin,
			Target: g.loginRoute,
			From:   route.Path,
		}
	}

	if route.Open() {
		return Decision{Action: ActionRender}
	}

	role, hasProfile := s.Role()
	if !hasProfile {
		g.logger.Debug("role-gated route %s blocked, profile not available", route.Path)
		return Decision{Action: ActionRedirectHome, Target: g.homeRoute, From: route.Path}
	}

	if !route.Allows(role) {
		g.logger.Debug("role-gated route %s denied for role %s", route.Path, role)
		return Decision{Action: ActionRedirectHome, Target: g.homeRoute, From: route.Path}
	}

	return Decision{Action: ActionRender}
}
