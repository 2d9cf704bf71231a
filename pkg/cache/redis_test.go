//go:build integration

package cache_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/autograph/pkg/cache"
	"github.com/dukex/autograph/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, container.Terminate(context.Background()))
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	return "redis://" + endpoint + "/0"
}

func TestRedis_RoundTrip(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	c, err := cache.NewRedis(ctx, logger, setupRedis(t), time.Minute)
	require.NoError(t, err)
	defer c.Close()

	_, ok, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	title := "Digest"
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, c.Set(ctx, "alice", []models.ConversationSummary{{ID: "c1", Title: &title, CreatedAt: created}}))

	got, ok, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "Digest", *got[0].Title)
	assert.True(t, created.Equal(got[0].CreatedAt))

	require.NoError(t, c.Set(ctx, "bob", nil))

	empty, ok, err := c.Get(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, empty)

	require.NoError(t, c.Invalidate(ctx, "alice"))

	_, ok, err = c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_InvalidURL(t *testing.T) {
	_, err := cache.NewRedis(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), "http://nope", time.Minute)
	assert.Error(t, err)
}
