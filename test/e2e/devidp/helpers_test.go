//go:build e2e

package devidp_test

import (
	"context"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeep/pkg/gatekeep"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Container setup and SDK wiring shared by the development identity
 * provider end-to-end tests.
 */

const (
	testImageName = "gatekeep-devidp-test:latest"

	adminUsername = "admin"
	adminPassword = "Admin123!"
	adminGroup    = "admins"
)

// TestMain builds the image once for the whole package.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building devidp Docker image...")
	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up devidp Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	cmd := exec.CommandContext(context.Background(), "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/devidp/Dockerfile",
		"../../../")
	cmd.Stdout = os.Stdout
	return cmd.Run()
}

func cleanupDockerImage() {
	_ = exec.CommandContext(context.Background(), "docker", "rmi", "-f", testImageName).Run()
}

// setupContainer starts the provider with a seeded admin and returns its
// base URL. extra overrides the default environment.
func setupContainer(t *testing.T, extra map[string]string) string {
	t.Helper()
	ctx := context.Background()

	env := map[string]string{
		"DEVIDP_ISSUER":        "http://devidp.test",
		"DEVIDP_SEED_USERNAME": adminUsername,
		"DEVIDP_SEED_PASSWORD": adminPassword,
		"DEVIDP_SEED_GROUPS":   adminGroup,
		"ENV":                  "test",
		"LOG_LEVEL":            "info",
		"LOG_FORMAT":           "json",
		// the suites log in far more often than the production limits allow
		"RATELIMIT_STRICT_REQUESTS":   "1000",
		"RATELIMIT_STRICT_WINDOW_SEC": "60",
		"RATELIMIT_STRICT_BURST":      "1000",
		"RATELIMIT_MODERATE_REQUESTS": "1000",
		"RATELIMIT_MODERATE_BURST":    "1000",
	}
	maps.Copy(env, extra)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        testImageName,
			ExposedPorts: []string{"8080/tcp"},
			Env:          env,
			WaitingFor: wait.ForHTTP("/readyz").
				WithPort("8080/tcp").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)
	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
}

// newClient wires the SDK at baseURL. With crossDomain the application
// claims another origin, so sessions use OAuth tokens.
func newClient(t *testing.T, baseURL string, crossDomain bool) *gatekeep.Gatekeep {
	t.Helper()

	cfg, err := gatekeep.LoadConfigFrom(map[string]string{})
	require.NoError(t, err)
	cfg.BaseURL = baseURL
	if crossDomain {
		cfg.BaseURL = "https://app.example.test"
		cfg.Endpoints.Prefix = baseURL
	}

	g, err := gatekeep.New(cfg, gatekeep.WithLogger(slogx.Discard()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}
