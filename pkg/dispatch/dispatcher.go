// Package dispatch submits validated graphs to an external execution engine.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukex/autograph/pkg/apperr"
	"github.com/dukex/autograph/pkg/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// APIKeyHeader carries the per-call engine credential.
	APIKeyHeader = "X-N8N-API-KEY"

	workflowsPath    = "/api/v1/workflows"
	maxResponseBytes = 1 << 20
	defaultTimeout   = 30 * time.Second
)

// Request is one dispatch. Credentials are supplied per call and never stored.
type Request struct {
	InstanceURL string
	APIKey      string
	Graph       *models.AutomationGraph
}

// Result is the engine's answer to a successful dispatch. EngineID is informational.
type Result struct {
	EngineID string `json:"id"`
	Status   int    `json:"status"`
}

// Dispatcher posts graphs to the engine's create-workflow endpoint. It never retries.
type Dispatcher struct {
	client *http.Client
	logger *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		d.client = client
	}
}

// New creates a dispatcher whose client is traced with otelhttp.
func New(logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		client: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// enginePayload is the subset of the graph the engine accepts on creation;
// id, active and tags are read-only there.
type enginePayload struct {
	Name        string             `json:"name"`
	Nodes       []models.Node      `json:"nodes"`
	Connections models.Connections `json:"connections"`
	Settings    map[string]any     `json:"settings"`
}

// Endpoint returns the create-workflow URL for an instance address.
func Endpoint(instanceURL string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(instanceURL), "/")

	u, err := url.Parse(trimmed)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", apperr.New("dispatch.Endpoint", apperr.KindInput, fmt.Sprintf("instance url %q must be an absolute http(s) URL", instanceURL))
	}

	return trimmed + workflowsPath, nil
}

// Dispatch issues exactly one request to the engine.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	const op = "dispatch.Dispatch"

	if req.APIKey == "" || req.Graph == nil {
		return Result{}, apperr.New(op, apperr.KindInput, "instance url, api key and graph are required")
	}

	endpoint, err := Endpoint(req.InstanceURL)
	if err != nil {
		return Result{}, err
	}

	settings := req.Graph.Settings
	if settings == nil {
		settings = map[string]any{}
	}

	body, err := json.Marshal(enginePayload{
		Name:        req.Graph.Name,
		Nodes:       req.Graph.Nodes,
		Connections: req.Graph.Connections,
		Settings:    settings,
	})
	if err != nil {
		return Result{}, apperr.Wrap(op, apperr.KindInternal, "failed to encode graph", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, apperr.Wrap(op, apperr.KindExecutionTransport, "failed to build engine request", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(APIKeyHeader, req.APIKey)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		d.logger.WarnContext(ctx, "Engine unreachable", "endpoint", endpoint, "error", err)

		return Result{}, apperr.Wrap(op, apperr.KindExecutionTransport, "engine unreachable: "+transportMessage(err), err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	payload, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := engineMessage(payload)

		d.logger.WarnContext(ctx, "Engine rejected workflow", "endpoint", endpoint, "status", resp.StatusCode, "message", message)

		return Result{}, &apperr.Error{
			Op:      op,
			Kind:    apperr.KindExecutionTransport,
			Message: fmt.Sprintf("engine returned status %d: %s", resp.StatusCode, message),
			Status:  resp.StatusCode,
		}
	}

	result := Result{Status: resp.StatusCode, EngineID: d.engineID(ctx, endpoint, payload, readErr)}

	d.logger.InfoContext(ctx, "Workflow dispatched", "endpoint", endpoint, "engine_id", result.EngineID)

	return result, nil
}

// engineID reads the created workflow's id. The engine has accepted the graph at
// this point, so an unreadable body only loses the id.
func (d *Dispatcher) engineID(ctx context.Context, endpoint string, payload []byte, readErr error) string {
	if readErr != nil {
		d.logger.WarnContext(ctx, "Failed to read engine response", "endpoint", endpoint, "error", readErr)

		return ""
	}

	if len(bytes.TrimSpace(payload)) == 0 {
		return ""
	}

	var created struct {
		ID any `json:"id"`
	}

	if err := json.Unmarshal(payload, &created); err != nil {
		d.logger.WarnContext(ctx, "Engine returned an unreadable response", "endpoint", endpoint, "error", err)

		return ""
	}

	if created.ID == nil {
		return ""
	}

	return fmt.Sprint(created.ID)
}

// engineMessage extracts the engine's own error text from a failure body.
func engineMessage(payload []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}

	if err := json.Unmarshal(payload, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}

		if body.Error != "" {
			return body.Error
		}
	}

	return "unknown error"
}

func transportMessage(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err.Error()
	}

	return err.Error()
}
