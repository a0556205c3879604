package routeguard_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	session "github.com/clubsphere/go-session"
	"github.com/clubsphere/go-session/middleware/routeguard"
)

type stubSource struct {
	session session.Session
}

func (s stubSource) Current() session.Session { return s.session }

var adminRoute = session.RouteDescriptor{
	Path:          session.RouteAdminDashboard,
	RequiredRoles: []session.Role{session.RoleAdmin},
}

func newApp(s session.Session) *fiber.App {
	app := fiber.New()
	app.Get(session.RouteAdminDashboard,
		routeguard.New(routeguard.Config{
			Sessions: stubSource{session: s},
			Route:    adminRoute,
		}),
		func(c *fiber.Ctx) error {
			return c.SendString("admin area")
		},
	)
	return app
}

func testRequest(t *testing.T, app *fiber.App) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, session.RouteAdminDashboard, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestRouteGuardMiddleware(t *testing.T) {
	t.Run("resolving session answers retryable unavailable", func(t *testing.T) {
		app := newApp(session.Session{Status: session.StatusResolving})

		resp := testRequest(t, app)

		assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "1", resp.Header.Get(fiber.HeaderRetryAfter))
	})

	t.Run("signed out redirects to login with the origin path", func(t *testing.T) {
		app := newApp(session.Session{Status: session.StatusResolved})

		resp := testRequest(t, app)

		assert.Equal(t, fiber.StatusFound, resp.StatusCode)

		location, err := url.Parse(resp.Header.Get(fiber.HeaderLocation))
		require.NoError(t, err)
		assert.Equal(t, session.RouteLogin, location.Path)
		assert.Equal(t, session.RouteAdminDashboard, location.Query().Get("from"))
	})

	t.Run("wrong role redirects home", func(t *testing.T) {
		app := newApp(session.Session{
			Identity:     stubIdentity{},
			Profile:      &session.Profile{Role: session.RoleClubManager},
			Status:       session.StatusResolved,
			ProfileState: session.ProfileReady,
		})

		resp := testRequest(t, app)

		assert.Equal(t, fiber.StatusFound, resp.StatusCode)
		assert.Equal(t, session.RouteHome, resp.Header.Get(fiber.HeaderLocation))
	})

	t.Run("matching role renders the view", func(t *testing.T) {
		app := newApp(session.Session{
			Identity:     stubIdentity{},
			Profile:      &session.Profile{Role: session.RoleAdmin},
			Status:       session.StatusResolved,
			ProfileState: session.ProfileReady,
		})

		resp := testRequest(t, app)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("absent profile is denied on a role-gated route", func(t *testing.T) {
		app := newApp(session.Session{
			Identity:     stubIdentity{},
			Status:       session.StatusResolved,
			ProfileState: session.ProfileAbsent,
		})

		resp := testRequest(t, app)

		assert.Equal(t, fiber.StatusFound, resp.StatusCode)
		assert.Equal(t, session.RouteHome, resp.Header.Get(fiber.HeaderLocation))
	})
}

func TestRouteGuardLoginRedirectEncoding(t *testing.T) {
	// A login route that already carries a query keeps it, and the origin
	// path is escaped rather than spliced in raw.
	guard := session.NewGuard(session.WithGuardRoutes("/signin?tenant=club", ""))
	route := session.RouteDescriptor{
		Path:          "/reports?club=a&b",
		RequiredRoles: []session.Role{session.RoleAdmin},
	}

	app := fiber.New()
	app.Get("/reports",
		routeguard.New(routeguard.Config{
			Sessions: stubSource{session: session.Session{Status: session.StatusResolved}},
			Route:    route,
			Guard:    guard,
		}),
		func(c *fiber.Ctx) error { return c.SendString("reports") },
	)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/reports", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusFound, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get(fiber.HeaderLocation))
	require.NoError(t, err)
	assert.Equal(t, "/signin", location.Path)
	assert.Equal(t, "club", location.Query().Get("tenant"))
	assert.Equal(t, "/reports?club=a&b", location.Query().Get("from"))
}

func TestRouteGuardFilter(t *testing.T) {
	app := fiber.New()
	app.Get("/health",
		routeguard.New(routeguard.Config{
			Sessions: stubSource{session: session.Session{Status: session.StatusResolving}},
			Filter:   func(c *fiber.Ctx) bool { return c.Path() == "/health" },
		}),
		func(c *fiber.Ctx) error { return c.SendString("ok") },
	)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRouteGuardRequiresSessions(t *testing.T) {
	assert.Panics(t, func() {
		routeguard.New(routeguard.Config{})
	})
}

type stubIdentity struct{}

func (stubIdentity) SubjectID() string   { return "subject-1" }
func (stubIdentity) Email() string       { return "user@example.com" }
func (stubIdentity) DisplayName() string { return "User" }
func (stubIdentity) AvatarURL() string   { return "" }
