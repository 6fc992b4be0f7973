package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds server configuration loaded from environment variables.
type Config struct {
	Port        int    `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	Env         string `envconfig:"ENV" default:"dev"`
	Version     string `envconfig:"VERSION" default:"dev"`
	BcryptCost  int    `envconfig:"BCRYPT_COST" default:"12"`

	IdPJWKSURL   string        `envconfig:"IDP_JWKS_URL" default:""`
	IdPAudience  string        `envconfig:"IDP_AUDIENCE" default:""`
	IdPIssuer    string        `envconfig:"IDP_ISSUER" default:""`
	JWKSCacheTTL time.Duration `envconfig:"JWKS_CACHE_TTL" default:"1h"`

	// LoginRate is the sustained per-client login rate per minute.
	LoginRate  int `envconfig:"LOGIN_RATE" default:"10"`
	LoginBurst int `envconfig:"LOGIN_BURST" default:"5"`
	// TrustProxy honours X-Forwarded-For when keying the login limiter.
	TrustProxy bool `envconfig:"TRUST_PROXY" default:"false"`

	BootstrapAdminEmail    string `envconfig:"BOOTSTRAP_ADMIN_EMAIL" default:""`
	BootstrapAdminPassword string `envconfig:"BOOTSTRAP_ADMIN_PASSWORD" default:""`
	SeedFile               string `envconfig:"SEED_FILE" default:""`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ClientConfig holds portalctl configuration, read from PORTAL_* variables.
type ClientConfig struct {
	APIURL      string        `envconfig:"API_URL" default:"http://localhost:8080"`
	Env         string        `envconfig:"ENV" default:"dev"`
	Timeout     time.Duration `envconfig:"TIMEOUT" default:"15s"`
	SessionFile string        `envconfig:"SESSION_FILE" default:""`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"warn"`
}

// LoadClient reads the CLI configuration.
func LoadClient() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process("portal", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
