package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"skrolls-chat/internal/models"
)

type messageInsert struct {
	ChatID     int
	SenderID   int
	Content    string
	MediaURLs  []string
	Type       models.MessageType
	ReplyToID  *int
	SentAt     time.Time
	Recipients []int
}

// insertMessage writes a message row plus one "sent" status row per
// recipient inside the caller's transaction. System and chatAction messages
// pass an empty recipient list and stay at overall "sent".
func insertMessage(ctx context.Context, tx sqlx.ExtContext, p messageInsert) (models.Message, error) {
	if p.SentAt.IsZero() {
		p.SentAt = time.Now()
	}
	if p.MediaURLs == nil {
		p.MediaURLs = []string{}
	}

	var msg models.Message
	row := tx.QueryRowxContext(ctx, `INSERT INTO messages
            (chat_id, sender_id, content, media_urls, message_type, reply_to_id, overall_status, sent_at)
        VALUES ($1, $2, $3, $4, $5, $6, 'sent', $7)
        RETURNING id, chat_id, sender_id, content, media_urls, message_type, reply_to_id,
            overall_status, delete_for_everyone, message_active, sent_at, created_at`,
		p.ChatID, p.SenderID, p.Content, pq.Array(p.MediaURLs), p.Type, p.ReplyToID, p.SentAt)
	if err := row.StructScan(&msg); err != nil {
		return models.Message{}, err
	}

	for _, userID := range p.Recipients {
		if userID == p.SenderID {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO message_statuses (message_id, user_id, status, sent_at)
            VALUES ($1, $2, 'sent', $3)`, msg.ID, userID, p.SentAt); err != nil {
			return models.Message{}, err
		}
	}
	return msg, nil
}
