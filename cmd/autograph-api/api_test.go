package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukex/autograph/pkg/cache"
	"github.com/dukex/autograph/pkg/dispatch"
	"github.com/dukex/autograph/pkg/generation"
	"github.com/dukex/autograph/pkg/persistence/file"
	"github.com/dukex/autograph/pkg/security"
	"github.com/dukex/autograph/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestApp(t *testing.T, generator generation.Generator) *fiber.App {
	t.Helper()

	api := NewAPI(discardLogger(), Dependencies{
		Persistence: file.NewPersistence(t.TempDir()),
		Cache:       cache.NewMemory(0),
		Generator:   generator,
		Scanner:     security.MustNewScanner(security.DefaultPolicy()),
		Dispatcher:  dispatch.New(discardLogger()),
		Config:      services.DefaultConfig(),
	})

	app, err := api.App()
	require.NoError(t, err)

	return app
}

func get(t *testing.T, app *fiber.App, path string) (int, string) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := setupTestApp(t, nil)

	status, body := get(t, app, "/")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Autograph API", body)
}

func TestAPI_HealthEndpoints(t *testing.T) {
	app := setupTestApp(t, nil)

	for _, path := range []string{"/livez", "/readyz", "/health"} {
		status, _ := get(t, app, path)
		assert.Equal(t, http.StatusOK, status, path)
	}
}

func TestAPI_ChatThroughGenerator(t *testing.T) {
	generator := generation.GeneratorFunc(func(_ context.Context, prompt generation.Prompt) (string, error) {
		assert.NotEmpty(t, prompt.System)

		return `{"name": "Manual", "nodes": [{"id": "1", "name": "Start", "type": "n8n-nodes-base.manualTrigger", "typeVersion": 1, "position": [0, 0], "parameters": {}}], "connections": {}}`, nil
	})

	app := setupTestApp(t, generator)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message": "start manually"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "alice")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_InvalidConfig(t *testing.T) {
	api := NewAPI(discardLogger(), Dependencies{
		Persistence: file.NewPersistence(t.TempDir()),
		Cache:       cache.NewMemory(0),
		Scanner:     security.MustNewScanner(security.DefaultPolicy()),
	})

	_, err := api.App()
	require.Error(t, err)
}
