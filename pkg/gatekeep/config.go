package gatekeep

import (
	"fmt"
	"time"

	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable LoadConfig reads.
const EnvPrefix = "GATEKEEP_"

type Config struct {
	// BaseURL is the application's own root. Endpoints on this origin use
	// cookie sessions; anything else goes through OAuth.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// AppOrigin overrides the origin endpoints are compared against.
	AppOrigin string `env:"APP_ORIGIN"`

	Endpoints authsdk.Endpoints

	TokenStoreType   string `env:"OAUTH_DEFAULT_TOKEN_STORE_TYPE" envDefault:"memory"`
	TokenStorePath   string `env:"TOKEN_STORE_PATH" envDefault:"gatekeep-tokens.db"`
	TokenStorageName string `env:"OAUTH_TOKEN_STORAGE_NAME" envDefault:"oauth-token"`

	// AuthorizedURIs are regular expressions for URLs that get a bearer
	// token. Empty means everything under the endpoint root.
	AuthorizedURIs []string `env:"AUTO_AUTHORIZED_URIS" envSeparator:","`

	FormArrayFormat string        `env:"FORM_ARRAY_FORMAT" envDefault:"indices"`
	HTTPTimeout     time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`

	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// LoadConfig reads GATEKEEP_* variables, e.g. GATEKEEP_BASE_URL or
// GATEKEEP_AUTHENTICATION_ENDPOINT.
func LoadConfig() (Config, error) {
	return LoadConfigFrom(nil)
}

// LoadConfigFrom reads from environ instead of the process environment
// when it is non-nil.
func LoadConfigFrom(environ map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("gatekeep: parse env: %w", err)
	}
	return cfg, nil
}
