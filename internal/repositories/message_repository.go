package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"skrolls-chat/internal/models"
	"skrolls-chat/internal/status"
)

// SendMessageParams carries one outgoing message. Recipients lists every
// chat member except the sender; each gets a "sent" status row.
type SendMessageParams struct {
	ChatID     int
	SenderID   int
	Content    string
	MediaURLs  []string
	ReplyToID  *int
	SentAt     time.Time
	Recipients []int
}

// StatusChange is the outcome of a recipient acknowledgement.
type StatusChange struct {
	ChatID  int
	Overall models.DeliveryStatus
	Changed bool
}

// MessageRepository defines interactions for messages, per-recipient
// delivery statuses and per-user message deletion.
type MessageRepository interface {
	SendMessage(ctx context.Context, p SendMessageParams) (models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	ListMessages(ctx context.Context, chatID, userID, limit, offset int) ([]models.MessageView, error)
	TombstoneMessage(ctx context.Context, messageID int, content string) error
	MarkMessageDeleted(ctx context.Context, messageID, userID int, deletedAt time.Time) error
	AdvanceStatus(ctx context.Context, messageID, userID int, target models.DeliveryStatus, at time.Time) (StatusChange, error)
}

// MessageRepo is a sqlx-backed implementation of MessageRepository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, chat_id, sender_id, content, media_urls, message_type, reply_to_id,
    overall_status, delete_for_everyone, message_active, sent_at, created_at`

// SendMessage stores the message and its recipient status rows atomically.
func (r *MessageRepo) SendMessage(ctx context.Context, p SendMessageParams) (msg models.Message, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	msg, err = insertMessage(ctx, tx, messageInsert{
		ChatID:     p.ChatID,
		SenderID:   p.SenderID,
		Content:    p.Content,
		MediaURLs:  p.MediaURLs,
		Type:       models.MessageTypeRegular,
		ReplyToID:  p.ReplyToID,
		SentAt:     p.SentAt,
		Recipients: p.Recipients,
	})
	if err != nil {
		return models.Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// GetMessage fetches a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE id=$1 AND message_active`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

type messageRow struct {
	models.Message
	ReplyID       *int    `db:"reply_id"`
	ReplySenderID *int    `db:"reply_sender_id"`
	ReplyContent  *string `db:"reply_content"`
}

// ListMessages returns the chat history visible to one user, newest first:
// bounded by the caller's chat deletion horizon, with individually deleted
// and inactive rows excluded. Tombstoned messages are still included.
// Reply references are resolved one level deep; sender names are layered on
// by the caller.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID, userID, limit, offset int) ([]models.MessageView, error) {
	query := `SELECT m.id, m.chat_id, m.sender_id, m.content, m.media_urls, m.message_type,
            m.reply_to_id, m.overall_status, m.delete_for_everyone, m.message_active,
            m.sent_at, m.created_at,
            r.id AS reply_id, r.sender_id AS reply_sender_id, r.content AS reply_content
        FROM messages m
        LEFT JOIN messages r ON r.id = m.reply_to_id
        LEFT JOIN deleted_chats dc ON dc.chat_id = m.chat_id AND dc.user_id = $2
        WHERE m.chat_id = $1
          AND m.message_active
          AND (dc.deleted_at IS NULL OR m.created_at >= dc.deleted_at)
          AND NOT EXISTS (SELECT 1 FROM deleted_messages dm
                          WHERE dm.message_id = m.id AND dm.user_id = $2)
        ORDER BY m.created_at DESC
        LIMIT $3 OFFSET $4`

	var rows []messageRow
	if err := r.db.SelectContext(ctx, &rows, query, chatID, userID, limit, offset); err != nil {
		return nil, err
	}

	views := make([]models.MessageView, 0, len(rows))
	for _, row := range rows {
		view := models.MessageView{Message: row.Message}
		if row.ReplyID != nil {
			view.ReplyTo = &models.ReplyPreview{
				ID:       *row.ReplyID,
				SenderID: *row.ReplySenderID,
				Content:  *row.ReplyContent,
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// TombstoneMessage replaces a message with placeholder content for everyone.
// Irreversible; the row is kept for thread integrity.
func (r *MessageRepo) TombstoneMessage(ctx context.Context, messageID int, content string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET
            content = $2, media_urls = '{}', delete_for_everyone = TRUE, message_type = 'chatAction'
        WHERE id = $1 AND message_active`, messageID, content)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// MarkMessageDeleted hides the message for one user only.
func (r *MessageRepo) MarkMessageDeleted(ctx context.Context, messageID, userID int, deletedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO deleted_messages (user_id, message_id, deleted_at)
        SELECT $1, $2, $3 WHERE EXISTS (SELECT 1 FROM messages WHERE id = $2)
        ON CONFLICT (user_id, message_id) DO UPDATE SET deleted_at = EXCLUDED.deleted_at`,
		userID, messageID, deletedAt)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// AdvanceStatus moves the caller's per-recipient status forward and
// recomputes the message's overall status in the same transaction, so the
// aggregate can never diverge from the rows it is derived from. Transitions
// only ever advance; a read acknowledgement backfills received_at.
func (r *MessageRepo) AdvanceStatus(ctx context.Context, messageID, userID int, target models.DeliveryStatus, at time.Time) (change StatusChange, err error) {
	if at.IsZero() {
		at = time.Now()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return StatusChange{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var msg struct {
		ID            int                   `db:"id"`
		ChatID        int                   `db:"chat_id"`
		SenderID      int                   `db:"sender_id"`
		OverallStatus models.DeliveryStatus `db:"overall_status"`
	}
	err = tx.QueryRowxContext(ctx,
		`SELECT id, chat_id, sender_id, overall_status FROM messages WHERE id=$1 AND message_active FOR UPDATE`,
		messageID).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrMessageNotFound
		return StatusChange{}, err
	}
	if err != nil {
		return StatusChange{}, err
	}
	if msg.SenderID == userID {
		err = ErrNotRecipient
		return StatusChange{}, err
	}

	switch target {
	case models.StatusReceived:
		_, err = tx.ExecContext(ctx, `UPDATE message_statuses
            SET status='received', received_at=COALESCE(received_at, $3)
            WHERE message_id=$1 AND user_id=$2 AND status='sent'`, messageID, userID, at)
	case models.StatusRead:
		_, err = tx.ExecContext(ctx, `UPDATE message_statuses
            SET status='read', read_at=COALESCE(read_at, $3), received_at=COALESCE(received_at, $3)
            WHERE message_id=$1 AND user_id=$2 AND status <> 'read'`, messageID, userID, at)
	default:
		err = errors.New("invalid target status")
	}
	if err != nil {
		return StatusChange{}, err
	}

	var exists bool
	if err = tx.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM message_statuses WHERE message_id=$1 AND user_id=$2)`,
		messageID, userID); err != nil {
		return StatusChange{}, err
	}
	if !exists {
		err = ErrNotRecipient
		return StatusChange{}, err
	}

	var counts struct {
		Total          int `db:"total"`
		ReceivedOrRead int `db:"received_or_read"`
		ReadCount      int `db:"read_count"`
	}
	err = tx.QueryRowxContext(ctx, `SELECT
            COUNT(*) AS total,
            COUNT(*) FILTER (WHERE status IN ('received', 'read')) AS received_or_read,
            COUNT(*) FILTER (WHERE status = 'read') AS read_count
        FROM message_statuses WHERE message_id=$1`, messageID).StructScan(&counts)
	if err != nil {
		return StatusChange{}, err
	}

	overall, changed := recomputeOverall(msg.OverallStatus, counts.Total, counts.ReceivedOrRead, counts.ReadCount)
	if changed {
		if _, err = tx.ExecContext(ctx,
			`UPDATE messages SET overall_status=$2 WHERE id=$1`, messageID, overall); err != nil {
			return StatusChange{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return StatusChange{}, err
	}
	return StatusChange{ChatID: msg.ChatID, Overall: overall, Changed: changed}, nil
}

// recomputeOverall derives the aggregate from the recipient counts. The
// result never regresses past the current value.
func recomputeOverall(current models.DeliveryStatus, total, receivedOrRead, read int) (models.DeliveryStatus, bool) {
	overall := status.Advance(current, status.Overall(total, receivedOrRead, read))
	return overall, overall != current
}
