package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/autograph/pkg/models"
	"github.com/dukex/autograph/pkg/persistence"
	"github.com/google/uuid"
)

// ConversationRepository handles conversation database operations.
type ConversationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const conversationColumns = `
			id
		  , user_id
		  , title
		  , created_at`

func scanConversation(row scanner) (*models.ConversationRecord, error) {
	var conversation models.ConversationRecord

	err := row.Scan(&conversation.ID, &conversation.UserID, &conversation.Title, &conversation.CreatedAt)
	if err != nil {
		return nil, err
	}

	conversation.CreatedAt = conversation.CreatedAt.UTC()

	return &conversation, nil
}

// Create inserts a new conversation.
func (r *ConversationRepository) Create(ctx context.Context, conversation *models.ConversationRecord) error {
	if conversation.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate conversation ID: %w", err)
		}

		conversation.ID = id.String()
	}

	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, title, created_at)
		VALUES ($1, $2, $3, $4)
	`, conversation.ID, conversation.UserID, conversation.Title, conversation.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert conversation %s: %w", conversation.ID, err)
	}

	return nil
}

// GetByID retrieves a conversation by its ID.
func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*models.ConversationRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)

	conversation, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewConversationError("GetByID", id, persistence.ErrConversationNotFound)
		}

		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}

	return conversation, nil
}

// ListByUser returns the user's conversations, newest first.
func (r *ConversationRepository) ListByUser(ctx context.Context, userID string) ([]*models.ConversationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	conversations := make([]*models.ConversationRecord, 0)

	for rows.Next() {
		conversation, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}

		conversations = append(conversations, conversation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}

	return conversations, nil
}

// UpdateTitle replaces the conversation title.
func (r *ConversationRepository) UpdateTitle(ctx context.Context, id string, title *string) (*models.ConversationRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE conversations SET title = $1 WHERE id = $2
		RETURNING `+conversationColumns, title, id)

	conversation, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewConversationError("UpdateTitle", id, persistence.ErrConversationNotFound)
		}

		return nil, fmt.Errorf("failed to update conversation %s: %w", id, err)
	}

	return conversation, nil
}

// Delete removes a conversation; messages and workflow records cascade.
func (r *ConversationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewConversationError("Delete", id, persistence.ErrConversationNotFound)
	}

	return nil
}
