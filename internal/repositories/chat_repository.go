package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"skrolls-chat/internal/models"
)

// CreateChatParams carries everything createChat persists atomically.
// MemberIDs must already include the creator, deduplicated and sorted.
type CreateChatParams struct {
	Type           models.ChatType
	Name           *string
	Icon           *string
	Description    *string
	CreatedBy      int
	MemberIDs      []int
	Hashtags       []string
	InitialContent string
	MediaURLs      []string
	SentAt         time.Time
}

// CreatedChat is the result of a successful chat creation.
type CreatedChat struct {
	Chat           models.Chat
	Members        []models.ChatMember
	InitialMessage *models.Message
}

// UpdateChatParams mutates chat fields. Nil pointers leave a field alone; a
// nil Hashtags slice skips hashtag reconciliation entirely.
type UpdateChatParams struct {
	ChatID      int
	ActorID     int
	Name        *string
	Icon        *string
	Description *string
	Hashtags    []string
	SystemText  string
}

// ChatRepository abstracts chat, membership and block persistence.
type ChatRepository interface {
	CreateChat(ctx context.Context, p CreateChatParams) (CreatedChat, error)
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	GetMember(ctx context.Context, chatID, userID int) (models.ChatMember, error)
	ListMembers(ctx context.Context, chatID int) ([]models.ChatMember, error)
	MemberChatIDs(ctx context.Context, userID int) ([]int, error)
	FindPersonalChat(ctx context.Context, userA, userB int) (models.Chat, error)
	UpdateChat(ctx context.Context, p UpdateChatParams) (models.Chat, models.Message, error)
	MarkChatDeleted(ctx context.Context, chatID, userID int, deletedAt time.Time) error
	AddMember(ctx context.Context, chatID, userID, actorID int, systemText string) (models.Message, error)
	SetAdmin(ctx context.Context, chatID, userID, actorID int, isAdmin bool, systemText string) (models.Message, error)
	RemoveMember(ctx context.Context, chatID, userID, actorID int, systemText string) (models.Message, error)
	LeaveChat(ctx context.Context, chatID, userID int, systemText string) (models.Message, error)
	ToggleBlock(ctx context.Context, chatID, blockedBy, blockedUser int) (bool, error)
	BlockEdges(ctx context.Context, chatID int) ([]models.BlockedChat, error)
	ListHashtags(ctx context.Context, chatID int) ([]models.Hashtag, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

const chatColumns = `id, chat_type, name, icon, description, created_by, created_at`

// CreateChat creates the chat, its members, the hashtag links and the
// optional initial message in one transaction.
func (r *ChatRepo) CreateChat(ctx context.Context, p CreateChatParams) (created CreatedChat, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return CreatedChat{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var chat models.Chat
	if err = tx.QueryRowxContext(ctx, `INSERT INTO chats (chat_type, name, icon, description, created_by)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+chatColumns,
		p.Type, p.Name, p.Icon, p.Description, p.CreatedBy).StructScan(&chat); err != nil {
		return CreatedChat{}, err
	}

	members := make([]models.ChatMember, 0, len(p.MemberIDs))
	for _, id := range p.MemberIDs {
		var member models.ChatMember
		if err = tx.QueryRowxContext(ctx, `INSERT INTO chat_members (chat_id, user_id, is_admin)
            VALUES ($1, $2, $3) RETURNING chat_id, user_id, is_admin, joined_at`,
			chat.ID, id, id == p.CreatedBy).StructScan(&member); err != nil {
			return CreatedChat{}, err
		}
		members = append(members, member)
	}

	if chat.Type == models.ChatTypeCommunity {
		if err = linkHashtags(ctx, tx, chat.ID, p.Hashtags); err != nil {
			return CreatedChat{}, err
		}
	}

	created = CreatedChat{Chat: chat, Members: members}
	if p.InitialContent != "" || len(p.MediaURLs) > 0 {
		var msg models.Message
		msg, err = insertMessage(ctx, tx, messageInsert{
			ChatID:     chat.ID,
			SenderID:   p.CreatedBy,
			Content:    p.InitialContent,
			MediaURLs:  p.MediaURLs,
			Type:       models.MessageTypeRegular,
			SentAt:     p.SentAt,
			Recipients: p.MemberIDs,
		})
		if err != nil {
			return CreatedChat{}, err
		}
		created.InitialMessage = &msg
	}

	if err = tx.Commit(); err != nil {
		return CreatedChat{}, err
	}
	return created, nil
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// GetMember fetches one membership row; ErrNotMember when absent.
func (r *ChatRepo) GetMember(ctx context.Context, chatID, userID int) (models.ChatMember, error) {
	var member models.ChatMember
	err := r.db.GetContext(ctx, &member,
		`SELECT chat_id, user_id, is_admin, joined_at FROM chat_members WHERE chat_id=$1 AND user_id=$2`,
		chatID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatMember{}, ErrNotMember
	}
	return member, err
}

// ListMembers returns all members of a chat.
func (r *ChatRepo) ListMembers(ctx context.Context, chatID int) ([]models.ChatMember, error) {
	var members []models.ChatMember
	err := r.db.SelectContext(ctx, &members,
		`SELECT chat_id, user_id, is_admin, joined_at FROM chat_members WHERE chat_id=$1 ORDER BY joined_at ASC`,
		chatID)
	return members, err
}

// MemberChatIDs returns ids of every chat the user belongs to, used to
// subscribe a fresh session to its rooms.
func (r *ChatRepo) MemberChatIDs(ctx context.Context, userID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT chat_id FROM chat_members WHERE user_id=$1`, userID)
	return ids, err
}

// FindPersonalChat locates the personal chat shared by the two users.
func (r *ChatRepo) FindPersonalChat(ctx context.Context, userA, userB int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT c.id, c.chat_type, c.name, c.icon, c.description,
            c.created_by, c.created_at FROM chats c
        JOIN chat_members a ON a.chat_id = c.id AND a.user_id = $1
        JOIN chat_members b ON b.chat_id = c.id AND b.user_id = $2
        WHERE c.chat_type = 'personal' LIMIT 1`, userA, userB)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// UpdateChat rewrites the mutable fields, reconciles hashtags and appends a
// system message, atomically.
func (r *ChatRepo) UpdateChat(ctx context.Context, p UpdateChatParams) (chat models.Chat, msg models.Message, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	err = tx.QueryRowxContext(ctx, `UPDATE chats SET
            name = COALESCE($2, name),
            icon = COALESCE($3, icon),
            description = COALESCE($4, description)
        WHERE id = $1 RETURNING `+chatColumns,
		p.ChatID, p.Name, p.Icon, p.Description).StructScan(&chat)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, models.Message{}, ErrChatNotFound
	}
	if err != nil {
		return models.Chat{}, models.Message{}, err
	}

	if p.Hashtags != nil {
		if err = reconcileHashtags(ctx, tx, p.ChatID, p.Hashtags); err != nil {
			return models.Chat{}, models.Message{}, err
		}
	}

	msg, err = insertMessage(ctx, tx, messageInsert{
		ChatID:   p.ChatID,
		SenderID: p.ActorID,
		Content:  p.SystemText,
		Type:     models.MessageTypeSystem,
	})
	if err != nil {
		return models.Chat{}, models.Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Chat{}, models.Message{}, err
	}
	return chat, msg, nil
}

// MarkChatDeleted upserts the caller's deletion horizon for the chat.
func (r *ChatRepo) MarkChatDeleted(ctx context.Context, chatID, userID int, deletedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO deleted_chats (user_id, chat_id, deleted_at)
        SELECT $1, $2, $3 WHERE EXISTS (SELECT 1 FROM chats WHERE id = $2)
        ON CONFLICT (user_id, chat_id) DO UPDATE SET deleted_at = EXCLUDED.deleted_at`,
		userID, chatID, deletedAt)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrChatNotFound
	}
	return nil
}

// AddMember inserts a membership row and the narrating system message.
func (r *ChatRepo) AddMember(ctx context.Context, chatID, userID, actorID int, systemText string) (msg models.Message, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `INSERT INTO chat_members (chat_id, user_id, is_admin)
        VALUES ($1, $2, FALSE) ON CONFLICT (chat_id, user_id) DO NOTHING`, chatID, userID)
	if err != nil {
		return models.Message{}, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return models.Message{}, err
	}
	if count == 0 {
		err = ErrAlreadyMember
		return models.Message{}, err
	}

	msg, err = insertMessage(ctx, tx, messageInsert{
		ChatID:   chatID,
		SenderID: actorID,
		Content:  systemText,
		Type:     models.MessageTypeSystem,
	})
	if err != nil {
		return models.Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// SetAdmin grants or revokes the admin flag. The creator cannot be demoted
// and the flag change must not leave a populated chat without admins.
func (r *ChatRepo) SetAdmin(ctx context.Context, chatID, userID, actorID int, isAdmin bool, systemText string) (msg models.Message, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var target models.ChatMember
	err = tx.QueryRowxContext(ctx,
		`SELECT chat_id, user_id, is_admin, joined_at FROM chat_members WHERE chat_id=$1 AND user_id=$2 FOR UPDATE`,
		chatID, userID).StructScan(&target)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotMember
		return models.Message{}, err
	}
	if err != nil {
		return models.Message{}, err
	}

	var createdBy *int
	var admins int
	if !isAdmin {
		if err = tx.GetContext(ctx, &createdBy, `SELECT created_by FROM chats WHERE id=$1`, chatID); err != nil {
			return models.Message{}, err
		}
		if err = tx.GetContext(ctx, &admins,
			`SELECT COUNT(*) FROM chat_members WHERE chat_id=$1 AND is_admin`, chatID); err != nil {
			return models.Message{}, err
		}
	}
	if err = setAdminGuard(target, isAdmin, createdBy, admins); err != nil {
		return models.Message{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE chat_members SET is_admin=$3 WHERE chat_id=$1 AND user_id=$2`, chatID, userID, isAdmin); err != nil {
		return models.Message{}, err
	}

	msg, err = insertMessage(ctx, tx, messageInsert{
		ChatID:   chatID,
		SenderID: actorID,
		Content:  systemText,
		Type:     models.MessageTypeSystem,
	})
	if err != nil {
		return models.Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// RemoveMember deletes a membership row; removing the creator or the last
// admin of a populated chat is rejected.
func (r *ChatRepo) RemoveMember(ctx context.Context, chatID, userID, actorID int, systemText string) (msg models.Message, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var createdBy *int
	err = tx.GetContext(ctx, &createdBy, `SELECT created_by FROM chats WHERE id=$1 FOR UPDATE`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrChatNotFound
		return models.Message{}, err
	}
	if err != nil {
		return models.Message{}, err
	}
	if createdBy != nil && *createdBy == userID {
		err = ErrCreatorImmutable
		return models.Message{}, err
	}

	if msg, err = removeMemberTx(ctx, tx, chatID, userID, actorID, systemText); err != nil {
		return models.Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// LeaveChat removes the caller. The last remaining admin of a chat that
// still has other members must promote a replacement first. When the
// creator leaves, created_by is cleared.
func (r *ChatRepo) LeaveChat(ctx context.Context, chatID, userID int, systemText string) (msg models.Message, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var createdBy *int
	err = tx.GetContext(ctx, &createdBy, `SELECT created_by FROM chats WHERE id=$1 FOR UPDATE`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrChatNotFound
		return models.Message{}, err
	}
	if err != nil {
		return models.Message{}, err
	}

	if msg, err = removeMemberTx(ctx, tx, chatID, userID, userID, systemText); err != nil {
		return models.Message{}, err
	}

	if createdBy != nil && *createdBy == userID {
		if _, err = tx.ExecContext(ctx, `UPDATE chats SET created_by=NULL WHERE id=$1`, chatID); err != nil {
			return models.Message{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// removeMemberTx deletes the membership row inside tx and enforces the
// at-least-one-admin invariant for chats that keep members.
func removeMemberTx(ctx context.Context, tx *sqlx.Tx, chatID, userID, actorID int, systemText string) (models.Message, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM chat_members WHERE chat_id=$1 AND user_id=$2`, chatID, userID)
	if err != nil {
		return models.Message{}, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return models.Message{}, err
	}
	if count == 0 {
		return models.Message{}, ErrNotMember
	}

	var members, admins int
	if err := tx.GetContext(ctx, &members, `SELECT COUNT(*) FROM chat_members WHERE chat_id=$1`, chatID); err != nil {
		return models.Message{}, err
	}
	if err := tx.GetContext(ctx, &admins, `SELECT COUNT(*) FROM chat_members WHERE chat_id=$1 AND is_admin`, chatID); err != nil {
		return models.Message{}, err
	}
	if err := remainingAdminsGuard(members, admins); err != nil {
		return models.Message{}, err
	}

	return insertMessage(ctx, tx, messageInsert{
		ChatID:   chatID,
		SenderID: actorID,
		Content:  systemText,
		Type:     models.MessageTypeSystem,
	})
}

// setAdminGuard validates an admin flag change. createdBy and admins are
// only consulted for demotions; the creator keeps the flag for life and a
// populated chat keeps at least one admin.
func setAdminGuard(target models.ChatMember, grant bool, createdBy *int, admins int) error {
	if grant {
		if target.IsAdmin {
			return ErrAlreadyAdmin
		}
		return nil
	}
	if !target.IsAdmin {
		return ErrNotAdminUser
	}
	if createdBy != nil && *createdBy == target.UserID {
		return ErrCreatorImmutable
	}
	if admins <= 1 {
		return ErrLastAdmin
	}
	return nil
}

// remainingAdminsGuard rejects a removal that would leave a populated chat
// without admins. An emptied chat is fine.
func remainingAdminsGuard(members, admins int) error {
	if members > 0 && admins == 0 {
		return ErrLastAdmin
	}
	return nil
}

// ToggleBlock flips the directed block edge and reports the resulting state.
func (r *ChatRepo) ToggleBlock(ctx context.Context, chatID, blockedBy, blockedUser int) (blocked bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM blocked_chats WHERE chat_id=$1 AND blocked_by=$2 AND blocked_user=$3`,
		chatID, blockedBy, blockedUser)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if count == 0 {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO blocked_chats (chat_id, blocked_by, blocked_user) VALUES ($1, $2, $3)`,
			chatID, blockedBy, blockedUser); err != nil {
			return false, err
		}
		blocked = true
	}

	if err = tx.Commit(); err != nil {
		return false, err
	}
	return blocked, nil
}

// BlockEdges returns every directed block edge of the chat.
func (r *ChatRepo) BlockEdges(ctx context.Context, chatID int) ([]models.BlockedChat, error) {
	var edges []models.BlockedChat
	err := r.db.SelectContext(ctx, &edges,
		`SELECT chat_id, blocked_by, blocked_user, created_at FROM blocked_chats WHERE chat_id=$1`, chatID)
	return edges, err
}

// ListHashtags returns the hashtags linked to a chat.
func (r *ChatRepo) ListHashtags(ctx context.Context, chatID int) ([]models.Hashtag, error) {
	var tags []models.Hashtag
	err := r.db.SelectContext(ctx, &tags, `SELECT h.id, h.name FROM hashtags h
        JOIN chat_hashtags ch ON ch.hashtag_id = h.id WHERE ch.chat_id=$1 ORDER BY h.name`, chatID)
	return tags, err
}

// linkHashtags find-or-creates each hashtag and links it to the chat.
func linkHashtags(ctx context.Context, tx *sqlx.Tx, chatID int, names []string) error {
	for _, name := range normalizeHashtags(names) {
		var tagID int
		if err := tx.QueryRowxContext(ctx, `INSERT INTO hashtags (name) VALUES ($1)
            ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id`, name).Scan(&tagID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO chat_hashtags (chat_id, hashtag_id)
            VALUES ($1, $2) ON CONFLICT DO NOTHING`, chatID, tagID); err != nil {
			return err
		}
	}
	return nil
}

// reconcileHashtags diffs the chat's hashtag set against the desired names,
// links additions, unlinks removals and deletes hashtag rows once unused.
func reconcileHashtags(ctx context.Context, tx *sqlx.Tx, chatID int, names []string) error {
	desired := map[string]bool{}
	for _, name := range normalizeHashtags(names) {
		desired[name] = true
	}

	var current []models.Hashtag
	if err := tx.SelectContext(ctx, &current, `SELECT h.id, h.name FROM hashtags h
        JOIN chat_hashtags ch ON ch.hashtag_id = h.id WHERE ch.chat_id=$1`, chatID); err != nil {
		return err
	}

	have := map[string]bool{}
	for _, tag := range current {
		have[tag.Name] = true
		if desired[tag.Name] {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chat_hashtags WHERE chat_id=$1 AND hashtag_id=$2`, chatID, tag.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM hashtags h WHERE h.id=$1
            AND NOT EXISTS (SELECT 1 FROM chat_hashtags ch WHERE ch.hashtag_id = h.id)`, tag.ID); err != nil {
			return err
		}
	}

	added := make([]string, 0, len(desired))
	for name := range desired {
		if !have[name] {
			added = append(added, name)
		}
	}
	sort.Strings(added)
	return linkHashtags(ctx, tx, chatID, added)
}

func normalizeHashtags(names []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
