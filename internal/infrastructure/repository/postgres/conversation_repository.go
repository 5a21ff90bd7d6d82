package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mkoval/chatpoint/internal/core/domain"
)

type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) EnsureConversation(ctx context.Context, tenantID, sessionID string) (*domain.Conversation, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO conversations (tenant_id, session_id, message_count, created_at, updated_at)
VALUES ($1, $2, 0, $3, $3)
ON CONFLICT (tenant_id, session_id) DO NOTHING
`, tenantID, sessionID, now)
	if err != nil {
		return nil, fmt.Errorf("ensure conversation insert: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
SELECT tenant_id, session_id, message_count, created_at, updated_at
FROM conversations
WHERE tenant_id = $1 AND session_id = $2
`, tenantID, sessionID)

	var conv domain.Conversation
	if err := row.Scan(
		&conv.TenantID,
		&conv.SessionID,
		&conv.MessageCount,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("ensure conversation select: %w", err)
	}
	return &conv, nil
}

// AppendMessage stores the message and bumps the conversation's message
// count in one transaction, so first-turn detection stays consistent with
// the history.
func (r *ConversationRepository) AppendMessage(ctx context.Context, message domain.ConversationMessage) error {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO conversation_messages (id, tenant_id, session_id, role, content, channel, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, message.ID, message.TenantID, message.SessionID, message.Role, message.Content, string(message.Channel), message.CreatedAt)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
UPDATE conversations
SET message_count = message_count + 1, updated_at = $3
WHERE tenant_id = $1 AND session_id = $2
`, message.TenantID, message.SessionID, message.CreatedAt)
	if err != nil {
		return fmt.Errorf("bump message count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append tx: %w", err)
	}
	return nil
}

func (r *ConversationRepository) ListRecentMessages(ctx context.Context, tenantID, sessionID string, limit int) ([]domain.ConversationMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, tenant_id, session_id, role, content, channel, created_at
FROM conversation_messages
WHERE tenant_id = $1 AND session_id = $2
ORDER BY created_at DESC
LIMIT $3
`, tenantID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ConversationMessage, 0, limit)
	for rows.Next() {
		var msg domain.ConversationMessage
		var channel string
		if err := rows.Scan(
			&msg.ID,
			&msg.TenantID,
			&msg.SessionID,
			&msg.Role,
			&msg.Content,
			&channel,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan recent message: %w", err)
		}
		msg.Channel = domain.Channel(channel)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent messages: %w", err)
	}

	// Returned in descending order from SQL; reverse to keep chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
