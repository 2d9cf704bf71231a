package web

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/autograph/pkg/apperr"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleServiceError_ViolationsExtendProblem(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	app := fiber.New()
	app.Get("/fail", func(c fiber.Ctx) error {
		return handleServiceError(c, logger, apperr.Schema("Validate", []apperr.Violation{
			{Path: "nodes.0.name", Message: "name is required"},
		}))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/fail", nil))
	require.NoError(t, err)

	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, string(apperr.KindSchemaValidation), body["type"])
	assert.Equal(t, float64(http.StatusUnprocessableEntity), body["status"])
	assert.Equal(t, "/fail", body["instance"])
	assert.NotEmpty(t, body["title"])

	violations, ok := body["violations"].([]any)
	require.True(t, ok)
	assert.Len(t, violations, 1)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{err: apperr.New("op", apperr.KindInput, "bad"), status: http.StatusBadRequest},
		{err: apperr.New("op", apperr.KindForbidden, "no"), status: http.StatusForbidden},
		{err: apperr.New("op", apperr.KindSecurityPolicy, "unsafe"), status: http.StatusUnprocessableEntity},
		{err: apperr.New("op", apperr.KindUpstreamGeneration, "down"), status: http.StatusBadGateway},
		{err: &apperr.Error{Op: "op", Kind: apperr.KindExecutionTransport, Status: http.StatusUnauthorized}, status: http.StatusUnauthorized},
		{err: &apperr.Error{Op: "op", Kind: apperr.KindExecutionTransport, Status: http.StatusServiceUnavailable}, status: http.StatusBadGateway},
		{err: io.EOF, status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, StatusOf(tt.err), tt.err.Error())
	}
}
