package models

import "encoding/json"

// Event is the websocket wire envelope, both directions.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound event names.
const (
	EventChatCreated         = "chatCreated"
	EventChatUpdated         = "chatUpdated"
	EventNewMessage          = "newMessage"
	EventChatMembers         = "chatMembers"
	EventChatDetails         = "chatDetails"
	EventMemberAdded         = "memberAdded"
	EventAdminMade           = "adminMade"
	EventAdminDismissed      = "adminDismissed"
	EventMemberRemoved       = "memberRemoved"
	EventMemberLeaved        = "memberLeaved"
	EventJoinedChat          = "joinedChat"
	EventMessages            = "messages"
	EventMessageStatusUpdate = "messageStatusUpdate"
	EventDeleted             = "deleted"
	EventBlockStatus         = "blockStatus"
	EventConversations       = "conversations"
	EventError               = "error"
)
