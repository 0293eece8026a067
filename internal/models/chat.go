package models

import "time"

// ChatType discriminates the three chat flavours.
type ChatType string

const (
	ChatTypePersonal  ChatType = "personal"
	ChatTypeGroup     ChatType = "group"
	ChatTypeCommunity ChatType = "community"
)

// Valid reports whether t is one of the known chat types.
func (t ChatType) Valid() bool {
	return t == ChatTypePersonal || t == ChatTypeGroup || t == ChatTypeCommunity
}

// Chat is a container for messages. Personal chats have exactly two members;
// group and community chats carry a name and admin roles.
type Chat struct {
	ID          int       `db:"id" json:"id"`
	Type        ChatType  `db:"chat_type" json:"type"`
	Name        *string   `db:"name" json:"name,omitempty"`
	Icon        *string   `db:"icon" json:"icon,omitempty"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedBy   *int      `db:"created_by" json:"created_by,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ChatMember ties a user to a chat. A chat with members always has at least
// one admin.
type ChatMember struct {
	ChatID   int       `db:"chat_id" json:"chat_id"`
	UserID   int       `db:"user_id" json:"user_id"`
	IsAdmin  bool      `db:"is_admin" json:"is_admin"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// BlockedChat is a directed block edge inside a personal chat. Any edge in
// either direction disables message exchange for both sides.
type BlockedChat struct {
	ChatID      int       `db:"chat_id" json:"chat_id"`
	BlockedBy   int       `db:"blocked_by" json:"blocked_by"`
	BlockedUser int       `db:"blocked_user" json:"blocked_user"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// DeletedChat is a per-user deletion horizon: the user sees only messages
// created at or after DeletedAt. Re-deleting moves the horizon forward.
type DeletedChat struct {
	UserID    int       `db:"user_id" json:"user_id"`
	ChatID    int       `db:"chat_id" json:"chat_id"`
	DeletedAt time.Time `db:"deleted_at" json:"deleted_at"`
}

// Hashtag labels community chats. Rows are reference counted through the
// chat_hashtags junction and removed once unused.
type Hashtag struct {
	ID   int    `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
