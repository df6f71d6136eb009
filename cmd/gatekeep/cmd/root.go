package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeep/pkg/gatekeep"
	"github.com/aussiebroadwan/gatekeep/pkg/oauth"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
	"github.com/aussiebroadwan/gatekeep/pkg/tokenstore"
	"github.com/spf13/cobra"
)

// Exit codes for scripting.
const (
	ExitCodeSuccess      = 0
	ExitCodeError        = 1
	ExitCodeAuthRequired = 2
)

// cliOrigin is the origin the CLI claims for itself. No endpoint can match
// it, so every session is an OAuth session whose tokens land in the
// persistent store.
const cliOrigin = "http://gatekeep-cli.invalid"

// Options plumb the process environment into the command tree.
type Options struct {
	// Environ replaces the process environment when non-nil.
	Environ map[string]string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Transport is the base round tripper under the bearer interceptor.
	Transport http.RoundTripper
}

type cli struct {
	opts Options

	idp       string
	storeType string
	storePath string
	logLevel  string
}

// Execute runs the CLI and exits with a code from the Exit* constants on
// failure.
func Execute(version string) {
	root := NewRootCmd(version, Options{})
	if err := root.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd(version string, opts Options) *cobra.Command {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	c := &cli{opts: opts}

	root := &cobra.Command{
		Use:   "gatekeep",
		Short: "Log in to an identity provider and inspect the session",
		Long: `gatekeep drives the gatekeep SDK from a terminal.

Tokens are kept in a local store between invocations, bolt by default, so
"gatekeep login" followed by "gatekeep token" behaves like a browser tab
that logged in and later makes an authorized request.

Every GATEKEEP_* variable the SDK understands applies, e.g.
GATEKEEP_BASE_URL or GATEKEEP_AUTHENTICATION_ENDPOINT.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(`{{printf "gatekeep version %s\n" .Version}}`)
	root.SetIn(opts.Stdin)
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&c.idp, "idp", "", "identity provider root URL (default GATEKEEP_ENDPOINT_PREFIX, then GATEKEEP_BASE_URL)")
	flags.StringVar(&c.storeType, "token-store", tokenstore.Bolt, "token store: bolt, sqlite or memory")
	flags.StringVar(&c.storePath, "token-store-path", "", "token store file (default under the user config directory)")
	flags.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error (default GATEKEEP_LOG_LEVEL)")

	root.AddCommand(
		c.newLoginCmd(),
		c.newLogoutCmd(),
		c.newWhoamiCmd(),
		c.newTokenCmd(),
		c.newNavCmd(),
	)
	return root
}

func (c *cli) lookupEnv(key string) (string, bool) {
	if c.opts.Environ != nil {
		v, ok := c.opts.Environ[key]
		return v, ok
	}
	return os.LookupEnv(key)
}

// config layers flags over GATEKEEP_* variables.
func (c *cli) config(cmd *cobra.Command) (gatekeep.Config, error) {
	cfg, err := gatekeep.LoadConfigFrom(c.opts.Environ)
	if err != nil {
		return gatekeep.Config{}, err
	}

	if c.idp != "" {
		cfg.Endpoints.Prefix = c.idp
	}
	if cfg.Endpoints.Prefix == "" {
		cfg.Endpoints.Prefix = cfg.BaseURL
	}
	cfg.AppOrigin = cliOrigin

	_, envStore := c.lookupEnv(gatekeep.EnvPrefix + "OAUTH_DEFAULT_TOKEN_STORE_TYPE")
	if cmd.Flags().Changed("token-store") || !envStore {
		cfg.TokenStoreType = c.storeType
	}

	_, envPath := c.lookupEnv(gatekeep.EnvPrefix + "TOKEN_STORE_PATH")
	switch {
	case c.storePath != "":
		cfg.TokenStorePath = c.storePath
	case !envPath:
		p, err := defaultStorePath(cfg.TokenStoreType)
		if err != nil {
			return gatekeep.Config{}, err
		}
		cfg.TokenStorePath = p
	}

	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	return cfg, nil
}

func defaultStorePath(storeType string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config directory: %w", err)
	}
	dir = filepath.Join(dir, "gatekeep")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	return filepath.Join(dir, "tokens."+storeType+".db"), nil
}

// run opens the SDK for the duration of fn.
func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, g *gatekeep.Gatekeep) error) error {
	cfg, err := c.config(cmd)
	if err != nil {
		return err
	}

	logger := slogx.New(slogx.Config{
		Service: "gatekeep",
		Version: cmd.Root().Version,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Output:  cmd.ErrOrStderr(),
	})

	g, err := gatekeep.New(cfg,
		gatekeep.WithLogger(logger),
		gatekeep.WithBaseTransport(c.opts.Transport),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := g.Close(); err != nil {
			logger.Warn("failed to close token store", "error", err)
		}
	}()

	logger.Debug("gatekeep cli",
		"command", cmd.Name(),
		"idp", cfg.Endpoints.Prefix,
		"token_store", cfg.TokenStoreType,
		"token_store_path", cfg.TokenStorePath,
	)
	return fn(cmd.Context(), g)
}

// AuthRequiredError means the command needs a session and there is none.
type AuthRequiredError struct {
	Err error
}

func (e *AuthRequiredError) Error() string {
	return "not logged in, run \"gatekeep login\" first: " + e.Err.Error()
}

func (e *AuthRequiredError) Unwrap() error { return e.Err }

// requireAuth turns "no session" failures into an AuthRequiredError.
func requireAuth(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, oauth.ErrNoToken) ||
		errors.Is(err, oauth.ErrTokenExpired) ||
		authsdk.StatusCode(err) == http.StatusUnauthorized {
		return &AuthRequiredError{Err: err}
	}
	return err
}

func exitCode(err error) int {
	var authRequired *AuthRequiredError
	if errors.As(err, &authRequired) {
		return ExitCodeAuthRequired
	}
	return ExitCodeError
}

