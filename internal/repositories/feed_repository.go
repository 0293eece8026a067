package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"skrolls-chat/internal/models"
)

// FeedRepository builds per-user conversation lists.
type FeedRepository interface {
	ListConversations(ctx context.Context, userID int, chatType models.ChatType, limit, offset int) ([]models.Conversation, error)
}

// FeedRepo is a sqlx implementation of FeedRepository.
type FeedRepo struct {
	db *sqlx.DB
}

// NewFeedRepo constructs a FeedRepo.
func NewFeedRepo(db *sqlx.DB) *FeedRepo {
	return &FeedRepo{db: db}
}

type conversationRow struct {
	ChatID             int             `db:"chat_id"`
	Type               models.ChatType `db:"chat_type"`
	Name               *string         `db:"name"`
	Icon               *string         `db:"icon"`
	OtherUserID        *int            `db:"other_user_id"`
	LastMessageID      *int            `db:"last_message_id"`
	LastMessageSender  *int            `db:"last_message_sender"`
	LastMessageContent *string         `db:"last_message_content"`
	LastMessageAt      *time.Time      `db:"last_message_at"`
	UnreadCount        int             `db:"unread_count"`
}

// ListConversations returns the user's inbox for one chat type: each chat
// the user belongs to, joined to its latest visible regular message and the
// caller's unread count, ordered newest activity first. Chats emptied by a
// deletion horizon (no message newer than it) are dropped entirely;
// conversations without any message sort last via the epoch fallback.
func (r *FeedRepo) ListConversations(ctx context.Context, userID int, chatType models.ChatType, limit, offset int) ([]models.Conversation, error) {
	query := `SELECT c.id AS chat_id, c.chat_type, c.name, c.icon,
            CASE WHEN c.chat_type = 'personal' THEN
                (SELECT o.user_id FROM chat_members o
                 WHERE o.chat_id = c.id AND o.user_id <> $1 LIMIT 1)
            END AS other_user_id,
            lm.id AS last_message_id,
            lm.sender_id AS last_message_sender,
            lm.content AS last_message_content,
            lm.created_at AS last_message_at,
            (SELECT COUNT(*) FROM message_statuses ms
             JOIN messages um ON um.id = ms.message_id
             WHERE um.chat_id = c.id AND ms.user_id = $1
               AND ms.status IN ('sent', 'received')
               AND um.message_active AND um.delete_for_everyone = FALSE
               AND (dc.deleted_at IS NULL OR um.created_at >= dc.deleted_at)) AS unread_count
        FROM chats c
        JOIN chat_members cm ON cm.chat_id = c.id AND cm.user_id = $1
        LEFT JOIN deleted_chats dc ON dc.chat_id = c.id AND dc.user_id = $1
        LEFT JOIN LATERAL (
            SELECT m.id, m.sender_id, m.content, m.created_at
            FROM messages m
            WHERE m.chat_id = c.id
              AND m.message_type = 'regular'
              AND m.message_active
              AND (dc.deleted_at IS NULL OR m.created_at >= dc.deleted_at)
            ORDER BY m.created_at DESC
            LIMIT 1
        ) lm ON TRUE
        WHERE c.chat_type = $2
          AND (dc.deleted_at IS NULL OR lm.id IS NOT NULL)
        ORDER BY COALESCE(lm.created_at, 'epoch'::timestamptz) DESC
        LIMIT $3 OFFSET $4`

	var rows []conversationRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, chatType, limit, offset); err != nil {
		return nil, err
	}

	conversations := make([]models.Conversation, 0, len(rows))
	for _, row := range rows {
		conv := models.Conversation{
			ChatID:      row.ChatID,
			Type:        row.Type,
			Name:        row.Name,
			Icon:        row.Icon,
			OtherUserID: row.OtherUserID,
			UnreadCount: row.UnreadCount,
		}
		if row.LastMessageID != nil {
			conv.LastMessage = &models.LastMessage{
				ID:        *row.LastMessageID,
				SenderID:  *row.LastMessageSender,
				Content:   *row.LastMessageContent,
				CreatedAt: *row.LastMessageAt,
			}
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}
