package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/autograph/pkg/models"
	"github.com/dukex/autograph/pkg/persistence"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// foreignKeyViolation is the PostgreSQL SQLSTATE for a missing referenced row.
const foreignKeyViolation = "23503"

// MessageRepository handles message database operations.
type MessageRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// Append inserts a message.
func (r *MessageRepository) Append(ctx context.Context, message *models.MessageRecord) error {
	if message.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate message ID: %w", err)
		}

		message.ID = id.String()
	}

	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	metadata, err := jsonParam(message.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal message metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, metadata, tokens, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, message.ID, message.ConversationID, string(message.Role), message.Content, metadata, message.Tokens, message.Error, message.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return persistence.NewConversationError("AppendMessage", message.ConversationID, persistence.ErrConversationNotFound)
		}

		return fmt.Errorf("failed to insert message: %w", err)
	}

	return nil
}

// ListByConversation returns messages oldest first, truncated to the oldest limit when limit is positive.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*models.MessageRecord, error) {
	query := `
		SELECT
			id
		  , conversation_id
		  , role
		  , content
		  , metadata
		  , tokens
		  , error
		  , created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`
	args := []any{conversationID}

	if limit > 0 {
		query += " LIMIT $2"

		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	messages := make([]*models.MessageRecord, 0)

	for rows.Next() {
		var (
			message  models.MessageRecord
			role     string
			metadata []byte
		)

		err := rows.Scan(&message.ID, &message.ConversationID, &role, &message.Content, &metadata, &message.Tokens, &message.Error, &message.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		message.Role = models.MessageRole(role)
		message.CreatedAt = message.CreatedAt.UTC()

		if len(metadata) > 0 {
			message.Metadata = json.RawMessage(metadata)
		}

		messages = append(messages, &message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error

	return errors.As(err, &pqErr) && string(pqErr.Code) == foreignKeyViolation
}
