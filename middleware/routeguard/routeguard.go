// Package routeguard exposes the session guard as a Fiber middleware, for
// embedders that serve the gated views over HTTP instead of driving the guard
// directly.
package routeguard

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"

	session "github.com/clubsphere/go-session"
)

// SessionSource supplies the session snapshot a request is evaluated against.
// *session.Manager satisfies it.
type SessionSource interface {
	Current() session.Session
}

type Config struct {
	// Filter skips the guard for matching requests.
	Filter func(*fiber.Ctx) bool

	// Sessions is required.
	Sessions SessionSource

	// Route describes the gated route. Zero RequiredRoles means the route
	// only needs a signed-in visitor.
	Route session.RouteDescriptor

	// Guard evaluates the session against the route.
	Guard *session.Guard

	// LoadingHandler answers requests that arrive before the session has
	// resolved.
	LoadingHandler fiber.Handler

	// RedirectHandler performs the login/home redirects.
	RedirectHandler func(c *fiber.Ctx, decision session.Decision) error

	Logger session.Logger
}

// New returns a middleware that lets the request through only when the guard
// decides the route may render.
func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		route := cfg.Route
		if route.Path == "" {
			route.Path = c.Path()
		}

		decision := cfg.Guard.Evaluate(cfg.Sessions.Current(), route)

		switch decision.Action {
		case session.ActionRender:
			return c.Next()
		case session.ActionLoading:
			return cfg.LoadingHandler(c)
		default:
			cfg.Logger.Debug("route denied: %s", print.MaybePrettyJSON(map[string]any{
				"path":   route.Path,
				"action": string(decision.Action),
				"target": decision.Target,
			}))
			return cfg.RedirectHandler(c, decision)
		}
	}
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Sessions == nil {
		panic("SESSION: route guard middleware configuration: Sessions is required.")
	}

	if cfg.Guard == nil {
		cfg.Guard = session.NewGuard()
	}

	if cfg.Logger == nil {
		cfg.Logger = session.NewDefaultLogger()
	}

	if cfg.LoadingHandler == nil {
		cfg.LoadingHandler = func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderRetryAfter, "1")
			return c.Status(fiber.StatusServiceUnavailable).SendString("session resolving")
		}
	}

	if cfg.RedirectHandler == nil {
		cfg.RedirectHandler = func(c *fiber.Ctx, decision session.Decision) error {
			target := decision.Target
			if decision.Action == session.ActionRedirectLogin && decision.From != "" {
				if u, err := url.Parse(target); err == nil {
					q := u.Query()
					q.Set("from", decision.From)
					u.RawQuery = q.Encode()
					target = u.String()
				}
			}
			return c.Redirect(target, fiber.StatusFound)
		}
	}

	return cfg
}
