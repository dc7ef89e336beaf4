package main

import (
	"bufio"
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appdeps "github.com/upb/authflow/backend/app"
	"github.com/upb/authflow/backend/config"
	"github.com/upb/authflow/backend/routes"
	"github.com/upb/authflow/client"
	"go.uber.org/zap"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		Environment: "test",
		Server:      config.ServerConfig{RequestTimeout: 10 * time.Second},
		Database:    config.DatabaseConfig{Driver: config.DriverMemory},
		Auth: config.AuthConfig{
			JWTSecret:         "authctl-test-secret",
			AccessTokenTTL:    15 * time.Minute,
			RefreshTokenTTL:   7 * 24 * time.Hour,
			BcryptCost:        4,
			RefreshCookieName: "refreshToken",
			CookieSameSite:    "lax",
			CookiePath:        "/",
			SweepInterval:     time.Hour,
		},
		Audit: config.AuditConfig{BufferSize: 100, WorkerCount: 1, StopTimeout: 2 * time.Second},
	}

	deps, err := appdeps.NewDependencies(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	srv := httptest.NewServer(routes.SetupRoutes(deps))
	t.Cleanup(func() {
		srv.Close()
		_ = deps.Close(context.Background())
	})
	return srv
}

func runScript(t *testing.T, serverURL string, lines ...string) string {
	t.Helper()

	c, err := client.New(client.Config{BaseURL: serverURL}, client.NewSession())
	require.NoError(t, err)
	defer c.Close()

	var out bytes.Buffer
	a := newApp(c, &out)
	a.init(context.Background())

	scanner := bufio.NewScanner(strings.NewReader(strings.Join(lines, "\n")))
	runREPL(context.Background(), a, scanner, &out)
	return out.String()
}

func TestREPL_SessionCommands(t *testing.T) {
	srv := newServer(t)

	out := runScript(t, srv.URL,
		"help",
		"register Alice Liddell alice@example.com secret123",
		"register Alice Liddell alice@example.com secret123",
		"login alice@example.com secret123",
		"me",
		"rename Alice L.",
		"logout-all",
		"login alice@example.com secret123",
		"logout",
		"me",
		"frobnicate",
		"",
		"exit",
		"me",
	)

	assert.Contains(t, out, "commands: register, login, me, rename, logout, logout-all, exit")
	assert.Contains(t, out, "registered Alice Liddell <alice@example.com>")
	assert.Contains(t, out, "error: server returned 409")
	assert.Contains(t, out, "logged in as Alice Liddell")
	assert.Contains(t, out, "authctl [alice@example.com]> ")
	assert.Contains(t, out, "Alice Liddell <alice@example.com> id=")
	assert.Contains(t, out, "name changed to Alice L.")
	assert.Contains(t, out, "logged out everywhere (1 sessions)")
	assert.Contains(t, out, "logged out")
	assert.Contains(t, out, "error: server returned 401")
	assert.Contains(t, out, "unknown command: frobnicate")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "Bye!"), "commands after exit are not run")
}

func TestREPL_UsageErrors(t *testing.T) {
	srv := newServer(t)

	out := runScript(t, srv.URL,
		"register onlyname",
		"login alice@example.com",
		"rename",
	)

	assert.Contains(t, out, "usage: register NAME EMAIL PASSWORD")
	assert.Contains(t, out, "usage: login EMAIL PASSWORD")
	assert.Contains(t, out, "usage: rename NAME")
}

func TestREPL_UnreachableServer(t *testing.T) {
	out := runScript(t, "http://127.0.0.1:1", "exit")
	assert.Contains(t, out, "could not reach server")
}

func TestREPL_StopsOnCancelledContext(t *testing.T) {
	c, err := client.New(client.Config{BaseURL: "http://127.0.0.1:1"}, client.NewSession())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	runREPL(ctx, newApp(c, &out), bufio.NewScanner(strings.NewReader("me\n")), &out)
	assert.Empty(t, out.String())
}

func TestParseFlags(t *testing.T) {
	t.Setenv("AUTHCTL_SERVER", "http://auth.internal:3000")
	t.Setenv("AUTHCTL_REDIS_ADDR", "")

	opts, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, "http://auth.internal:3000", opts.server)
	assert.Empty(t, opts.redisAddr)

	opts, err = parseFlags([]string{"-server", "http://localhost:8080", "-redis", "localhost:6379", "-v"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", opts.server)
	assert.Equal(t, "localhost:6379", opts.redisAddr)
	assert.True(t, opts.verbose)

	_, err = parseFlags([]string{"-unknown"})
	assert.Error(t, err)
}
