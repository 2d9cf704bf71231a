package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/autograph/pkg/models"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "autograph:conversations:"

// Redis stores summaries as one JSON value per user with a TTL.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedis connects to the redis:// URL and verifies the connection.
func NewRedis(ctx context.Context, logger *slog.Logger, url string, ttl time.Duration) (*Redis, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", options.Addr, "db", options.DB)

	return NewRedisWithClient(client, ttl, logger), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Redis {
	return &Redis{client: client, ttl: ttl, logger: logger}
}

func key(userID string) string {
	return keyPrefix + userID
}

func (r *Redis) Get(ctx context.Context, userID string) ([]models.ConversationSummary, bool, error) {
	payload, err := r.client.Get(ctx, key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("failed to read cached conversations: %w", err)
	}

	var summaries []models.ConversationSummary
	if err := json.Unmarshal(payload, &summaries); err != nil {
		r.logger.WarnContext(ctx, "Dropping unreadable cache entry", "user_id", userID, "error", err)
		_ = r.client.Del(ctx, key(userID)).Err()

		return nil, false, nil
	}

	return summaries, true, nil
}

func (r *Redis) Set(ctx context.Context, userID string, summaries []models.ConversationSummary) error {
	if summaries == nil {
		summaries = []models.ConversationSummary{}
	}

	payload, err := json.Marshal(summaries)
	if err != nil {
		return fmt.Errorf("failed to encode conversations: %w", err)
	}

	if err := r.client.Set(ctx, key(userID), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache conversations: %w", err)
	}

	return nil
}

func (r *Redis) Invalidate(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached conversations: %w", err)
	}

	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
