package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/autograph/pkg/apperr"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Generator produces unstructured model text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt Prompt) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt Prompt) (string, error) {
	return f(ctx, prompt)
}

const maxCompletionBytes = 4 << 20

// ClientConfig configures an OpenAI-compatible chat completions client.
type ClientConfig struct {
	BaseURL    string `validate:"required,url"`
	APIKey     string `validate:"required"`
	Model      string `validate:"required"`
	HTTPClient *http.Client
}

// Client calls an OpenAI-compatible /chat/completions endpoint with deterministic
// decoding. It never retries; the caller bounds it with a context deadline.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient creates a generation client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	return &Client{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		http:     httpClient,
		logger:   logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends prompt and returns the first choice's content.
func (c *Client) Generate(ctx context.Context, prompt Prompt) (string, error) {
	const op = "generation.Generate"

	messages := make([]chatMessage, 0, len(prompt.Messages)+1)
	messages = append(messages, chatMessage{Role: "system", Content: prompt.System})

	for _, turn := range prompt.Messages {
		messages = append(messages, chatMessage{Role: string(turn.Role), Content: turn.Content})
	}

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages, Temperature: 0})
	if err != nil {
		return "", apperr.Wrap(op, apperr.KindInternal, "failed to encode generation request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", apperr.Wrap(op, apperr.KindUpstreamGeneration, "failed to build generation request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	started := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", apperr.Wrap(op, apperr.KindUpstreamGeneration, "generation timed out", err)
		}

		return "", apperr.Wrap(op, apperr.KindUpstreamGeneration, "generation service unreachable", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxCompletionBytes))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", apperr.Wrap(op, apperr.KindUpstreamGeneration, "generation timed out", err)
		}

		return "", apperr.Wrap(op, apperr.KindUpstreamGeneration, "failed to read generation response", err)
	}

	var completion chatResponse
	decodeErr := json.Unmarshal(payload, &completion)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := fmt.Sprintf("generation service returned status %d", resp.StatusCode)
		if decodeErr == nil && completion.Error != nil && completion.Error.Message != "" {
			message += ": " + completion.Error.Message
		}

		return "", &apperr.Error{Op: op, Kind: apperr.KindUpstreamGeneration, Message: message, Status: resp.StatusCode}
	}

	if decodeErr != nil {
		return "", apperr.Wrap(op, apperr.KindUpstreamGeneration, "generation service returned an unreadable response", decodeErr)
	}

	if len(completion.Choices) == 0 {
		return "", apperr.New(op, apperr.KindUpstreamGeneration, "generation service returned no choices")
	}

	c.logger.DebugContext(ctx, "Generation completed", "model", c.model, "duration", time.Since(started))

	return completion.Choices[0].Message.Content, nil
}
