package app

import (
	"fmt"
	"time"

	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/caarlos0/env/v11"
)

type Config struct {
	Issuer         string `env:"DEVIDP_ISSUER" envDefault:"http://localhost:8080"`
	DatabaseFile   string `env:"DEVIDP_DATABASE_FILE" envDefault:"devidp.db"`
	SigningKeyFile string `env:"DEVIDP_SIGNING_KEY_FILE"` // empty: generate an ephemeral key
	KeyID          string `env:"DEVIDP_KEY_ID"`

	AccessTokenTTL  time.Duration `env:"DEVIDP_ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"DEVIDP_REFRESH_TOKEN_TTL" envDefault:"168h"`
	SessionTTL      time.Duration `env:"DEVIDP_SESSION_TTL" envDefault:"24h"`
	ActionTokenTTL  time.Duration `env:"DEVIDP_ACTION_TOKEN_TTL" envDefault:"1h"`

	RequireEmailVerification bool   `env:"DEVIDP_REQUIRE_EMAIL_VERIFICATION"`
	SessionCookie            string `env:"DEVIDP_SESSION_COOKIE" envDefault:"gatekeep_session"`
	CookieSecure             bool   `env:"DEVIDP_COOKIE_SECURE"`

	// Seed* create an account on startup unless the username exists.
	SeedUsername string   `env:"DEVIDP_SEED_USERNAME"`
	SeedPassword string   `env:"DEVIDP_SEED_PASSWORD"`
	SeedEmail    string   `env:"DEVIDP_SEED_EMAIL"`
	SeedGroups   []string `env:"DEVIDP_SEED_GROUPS" envSeparator:","`

	// Endpoints are read from DEVIDP_AUTHENTICATION_ENDPOINT and friends.
	Endpoints authsdk.Endpoints `envPrefix:"DEVIDP_"`

	Env                  string        `env:"ENV" envDefault:"dev"`
	LogLevel             string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat            string        `env:"LOG_FORMAT" envDefault:"json"`
	Port                 int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`
}

func LoadConfig() (Config, error) {
	return LoadConfigFrom(nil)
}

// LoadConfigFrom reads from environ instead of the process environment when
// it is non-nil.
func LoadConfigFrom(environ map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("devidp: parse env: %w", err)
	}

	if cfg.SeedUsername != "" && cfg.SeedPassword == "" {
		return Config{}, fmt.Errorf("devidp: DEVIDP_SEED_PASSWORD is required with DEVIDP_SEED_USERNAME")
	}
	if cfg.SeedUsername != "" && cfg.SeedEmail == "" {
		cfg.SeedEmail = cfg.SeedUsername + "@localhost.localdomain"
	}
	return cfg, nil
}
