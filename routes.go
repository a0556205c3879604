package session

// Default route paths used by the guard and the role router. Embedders with a
// different route table can override them through GuardOption values.
const (
	RouteHome             = "/"
	RouteLogin            = "/login"
	RouteMemberDashboard  = "/dashboard/member"
	RouteManagerDashboard = "/dashboard/manager"
	RouteAdminDashboard   = "/dashboard/admin"
)

// RouteDescriptor is the static authorization descriptor for one protected
// route. An empty RequiredRoles set means "any authenticated identity".
type RouteDescriptor struct {
	Path          string
	RequiredRoles []Role
}

// Open reports whether the route accepts any authenticated identity.
func (d RouteDescriptor) Open() bool {
	return len(d.RequiredRoles) == 0
}

// Allows reports whether the given role is in the descriptor's required set.
// Roles are not hierarchical: admin is allowed on a manager route only if the
// route lists admin explicitly.
func (d RouteDescriptor) Allows(role Role) bool {
	for _, r := range d.RequiredRoles {
		if r == role {
			return true
		}
	}
	return false
}

// RouteTable is an ordered set of route descriptors, unchanged at runtime.
type RouteTable []RouteDescriptor

// Find returns the descriptor for path, if present.
func (t RouteTable) Find(path string) (RouteDescriptor, bool) {
	for _, d := range t {
		if d.Path == path {
			return d, true
		}
	}
	return RouteDescriptor{}, false
}

// DefaultRouteTable mirrors the dashboard route table: the member dashboard
// admits every role, the manager and admin dashboards admit only their own.
func DefaultRouteTable() RouteTable {
	return RouteTable{
		{Path: RouteMemberDashboard, RequiredRoles: []Role{RoleMember, RoleClubManager, RoleAdmin}},
		{Path: RouteManagerDashboard, RequiredRoles: []Role{RoleClubManager}},
		{Path: RouteAdminDashboard, RequiredRoles: []Role{RoleAdmin}},
	}
}

// DefaultLandingRoute maps a profile to its dashboard root. It is total over
// its input: unknown roles and a nil profile land on the member dashboard.
func DefaultLandingRoute(profile *Profile) string {
	if profile == nil {
		return RouteMemberDashboard
	}

	switch profile.Role {
	case RoleAdmin:
		return RouteAdminDashboard
	case RoleClubManager:
		return RouteManagerDashboard
	default:
		return RouteMemberDashboard
	}
}
