package session

import (
	"github.com/caarlos0/env/v11"
	"github.com/goliatone/go-errors"
)

// EnvConfig implements Config from environment variables.
type EnvConfig struct {
	LoginRoute string `env:"CLUBSPHERE_LOGIN_ROUTE" envDefault:"/login"`
	HomeRoute  string `env:"CLUBSPHERE_HOME_ROUTE" envDefault:"/"`
	BackendURL string `env:"CLUBSPHERE_BACKEND_URL" envDefault:"https://club-sphere-server-arghya.vercel.app"`
	TokenPath  string `env:"CLUBSPHERE_TOKEN_PATH" envDefault:".clubsphere/token"`
}

var _ Config = (*EnvConfig)(nil)

// LoadConfig reads configuration from the process environment.
func LoadConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to parse session configuration")
	}
	return cfg, nil
}

func (c *EnvConfig) GetLoginRoute() string { return c.LoginRoute }
func (c *EnvConfig) GetHomeRoute() string  { return c.HomeRoute }
func (c *EnvConfig) GetBackendURL() string { return c.BackendURL }
func (c *EnvConfig) GetTokenPath() string  { return c.TokenPath }
