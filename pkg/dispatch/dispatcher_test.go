package dispatch_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/dukex/autograph/pkg/apperr"
	"github.com/dukex/autograph/pkg/dispatch"
	"github.com/dukex/autograph/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatcher() *dispatch.Dispatcher {
	return dispatch.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func graph() *models.AutomationGraph {
	return &models.AutomationGraph{
		ID:          "local-id",
		Name:        "Digest",
		Nodes:       []models.Node{{ID: "1", Name: "Start", Type: "n8n-nodes-base.manualTrigger", TypeVersion: 1, Parameters: map[string]any{}}},
		Connections: models.Connections{},
		Active:      true,
		Tags:        []map[string]any{{"name": "generated"}},
	}
}

func TestDispatch_Success(t *testing.T) {
	var received map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/workflows", r.URL.Path)
		assert.Equal(t, "secret-key", r.Header.Get(dispatch.APIKeyHeader))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "engine-42", "name": "Digest"}`))
	}))
	defer server.Close()

	result, err := newDispatcher().Dispatch(context.Background(), dispatch.Request{
		InstanceURL: server.URL + "/",
		APIKey:      "secret-key",
		Graph:       graph(),
	})
	require.NoError(t, err)

	assert.Equal(t, "engine-42", result.EngineID)
	assert.Equal(t, http.StatusOK, result.Status)

	assert.Equal(t, "Digest", received["name"])
	assert.Contains(t, received, "nodes")
	assert.Contains(t, received, "connections")
	assert.Equal(t, map[string]any{}, received["settings"])
	assert.NotContains(t, received, "id")
	assert.NotContains(t, received, "active")
	assert.NotContains(t, received, "tags")
}

func TestDispatch_AcceptedWithPlainBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))
	defer server.Close()

	result, err := newDispatcher().Dispatch(context.Background(), dispatch.Request{
		InstanceURL: server.URL,
		APIKey:      "secret-key",
		Graph:       graph(),
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, result.Status)
	assert.Empty(t, result.EngineID)
}

func TestDispatch_EngineErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message": "X-N8N-API-KEY header required"}`))
	}))
	defer server.Close()

	_, err := newDispatcher().Dispatch(context.Background(), dispatch.Request{InstanceURL: server.URL, APIKey: "k", Graph: graph()})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrExecutionTransport)
	assert.Contains(t, err.Error(), "X-N8N-API-KEY header required")
	assert.Contains(t, err.Error(), "401")

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusUnauthorized, appErr.Status)
}

func TestDispatch_EngineErrorWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer server.Close()

	_, err := newDispatcher().Dispatch(context.Background(), dispatch.Request{InstanceURL: server.URL, APIKey: "k", Graph: graph()})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrExecutionTransport)
	assert.Contains(t, err.Error(), "unknown error")
}

func TestDispatch_NoRetry(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newDispatcher().Dispatch(context.Background(), dispatch.Request{InstanceURL: server.URL, APIKey: "k", Graph: graph()})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDispatch_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newDispatcher().Dispatch(context.Background(), dispatch.Request{InstanceURL: url, APIKey: "k", Graph: graph()})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrExecutionTransport)
	assert.Contains(t, err.Error(), "engine unreachable")
}

func TestDispatch_InvalidInput(t *testing.T) {
	d := newDispatcher()

	tests := []dispatch.Request{
		{InstanceURL: "", APIKey: "k", Graph: graph()},
		{InstanceURL: "ftp://engine", APIKey: "k", Graph: graph()},
		{InstanceURL: "http://engine", APIKey: "", Graph: graph()},
		{InstanceURL: "http://engine", APIKey: "k"},
	}

	for _, req := range tests {
		_, err := d.Dispatch(context.Background(), req)
		assert.ErrorIs(t, err, apperr.ErrInput, req.InstanceURL)
	}
}

func TestEndpoint(t *testing.T) {
	endpoint, err := dispatch.Endpoint("https://n8n.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://n8n.example.com/api/v1/workflows", endpoint)
}
