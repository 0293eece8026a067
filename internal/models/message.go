package models

import (
	"time"

	"github.com/lib/pq"
)

// MessageType distinguishes user content from service-generated rows.
type MessageType string

const (
	MessageTypeRegular    MessageType = "regular"
	MessageTypeSystem     MessageType = "system"
	MessageTypeChatAction MessageType = "chatAction"
)

// DeliveryStatus is the per-recipient (and aggregated) delivery state of a
// message. Transitions are strictly forward: sent -> received -> read.
type DeliveryStatus string

const (
	StatusSent     DeliveryStatus = "sent"
	StatusReceived DeliveryStatus = "received"
	StatusRead     DeliveryStatus = "read"
)

// Message is a chat message. OverallStatus is derived from the per-recipient
// statuses and never regresses.
type Message struct {
	ID                int            `db:"id" json:"id"`
	ChatID            int            `db:"chat_id" json:"chat_id"`
	SenderID          int            `db:"sender_id" json:"sender_id"`
	Content           string         `db:"content" json:"content"`
	MediaURLs         pq.StringArray `db:"media_urls" json:"media_urls,omitempty"`
	Type              MessageType    `db:"message_type" json:"message_type"`
	ReplyToID         *int           `db:"reply_to_id" json:"reply_to_id,omitempty"`
	OverallStatus     DeliveryStatus `db:"overall_status" json:"overall_status"`
	DeleteForEveryone bool           `db:"delete_for_everyone" json:"delete_for_everyone"`
	MessageActive     bool           `db:"message_active" json:"-"`
	SentAt            time.Time      `db:"sent_at" json:"sent_at"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
}

// MessageStatus is one recipient's delivery record for one message. The
// sender never has a row; recipients advance it via acknowledgement events.
type MessageStatus struct {
	MessageID  int            `db:"message_id" json:"message_id"`
	UserID     int            `db:"user_id" json:"user_id"`
	Status     DeliveryStatus `db:"status" json:"status"`
	SentAt     time.Time      `db:"sent_at" json:"sent_at"`
	ReceivedAt *time.Time     `db:"received_at" json:"received_at,omitempty"`
	ReadAt     *time.Time     `db:"read_at" json:"read_at,omitempty"`
}

// DeletedMessage hides a single message for one user only.
type DeletedMessage struct {
	UserID    int       `db:"user_id" json:"user_id"`
	MessageID int       `db:"message_id" json:"message_id"`
	DeletedAt time.Time `db:"deleted_at" json:"deleted_at"`
}

// ReplyPreview is a one-level resolution of a replied-to message.
type ReplyPreview struct {
	ID             int    `json:"id"`
	SenderID       int    `json:"sender_id"`
	SenderUsername string `json:"sender_username,omitempty"`
	Content        string `json:"content"`
}

// MessageView is a message as rendered for one viewer, with the reply
// reference resolved and the sender's visible name attached.
type MessageView struct {
	Message
	SenderUsername string        `json:"sender_username,omitempty"`
	ReplyTo        *ReplyPreview `json:"reply_to,omitempty"`
}

// Conversation is one row of a user's inbox.
type Conversation struct {
	ChatID      int          `json:"chat_id"`
	Type        ChatType     `json:"type"`
	Name        *string      `json:"name,omitempty"`
	Icon        *string      `json:"icon,omitempty"`
	OtherUserID *int         `json:"other_user_id,omitempty"`
	LastMessage *LastMessage `json:"last_message,omitempty"`
	UnreadCount int          `json:"unread_messages_count"`
}

// LastMessage is the newest regular message shown in a conversation row.
type LastMessage struct {
	ID        int       `json:"id"`
	SenderID  int       `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
