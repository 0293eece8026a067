package handlers_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"skrolls-chat/internal/directory"
	"skrolls-chat/internal/handlers"
	"skrolls-chat/internal/mocks"
	"skrolls-chat/internal/models"
	"skrolls-chat/internal/repositories"
)

func strPtr(s string) *string { return &s }

func TestCreateChatPersonalWithInitialMessage(t *testing.T) {
	chats := new(mocks.ChatRepository)
	dir := new(mocks.DirectoryClient)
	em := new(mocks.Emitter)
	h := handlers.NewChatHandler(chats, dir, nil)

	dir.On("GetUser", mock.Anything, 2).
		Return(directory.User{ID: 2, Username: "bob", Active: true}, nil).Once()
	chats.On("FindPersonalChat", mock.Anything, 1, 2).
		Return(models.Chat{}, repositories.ErrChatNotFound).Once()

	initial := models.Message{ID: 100, ChatID: 7, SenderID: 1, Content: "hey"}
	chats.On("CreateChat", mock.Anything, mock.MatchedBy(func(p repositories.CreateChatParams) bool {
		return p.Type == models.ChatTypePersonal &&
			p.CreatedBy == 1 &&
			len(p.MemberIDs) == 2 &&
			p.InitialContent == "hey"
	})).Return(repositories.CreatedChat{
		Chat: models.Chat{ID: 7, Type: models.ChatTypePersonal},
		Members: []models.ChatMember{
			{ChatID: 7, UserID: 1, IsAdmin: true},
			{ChatID: 7, UserID: 2},
		},
		InitialMessage: &initial,
	}, nil).Once()

	em.On("Subscribe", 7, []int{1, 2}).Once()
	em.On("Emit", models.EventChatCreated, mock.Anything).Once()
	em.On("ToChat", 7, models.EventNewMessage, &initial).Once()

	raw, _ := json.Marshal(map[string]any{
		"type":            "personal",
		"members":         []int{2},
		"initial_message": "hey",
	})
	h.CreateChat(context.Background(), 1, em, raw)

	chats.AssertExpectations(t)
	dir.AssertExpectations(t)
	em.AssertExpectations(t)
	// The creation reply stays with the caller; only the message leg is
	// broadcast to the room.
	em.AssertNotCalled(t, "ToChat", 7, models.EventChatCreated, mock.Anything)
}

func TestCreateChatHonorsClientSentAt(t *testing.T) {
	chats := new(mocks.ChatRepository)
	dir := new(mocks.DirectoryClient)
	em := new(mocks.Emitter)
	h := handlers.NewChatHandler(chats, dir, nil)

	sentAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	chats.On("CreateChat", mock.Anything, mock.MatchedBy(func(p repositories.CreateChatParams) bool {
		return p.Type == models.ChatTypeGroup && p.SentAt.Equal(sentAt)
	})).Return(repositories.CreatedChat{
		Chat: models.Chat{ID: 8, Type: models.ChatTypeGroup, Name: strPtr("team")},
		Members: []models.ChatMember{
			{ChatID: 8, UserID: 1, IsAdmin: true},
			{ChatID: 8, UserID: 2},
		},
	}, nil).Once()

	em.On("Subscribe", 8, []int{1, 2}).Once()
	em.On("Emit", models.EventChatCreated, mock.Anything).Once()

	raw, _ := json.Marshal(map[string]any{
		"type":            "group",
		"name":            "team",
		"members":         []int{2},
		"initial_message": "kickoff",
		"sent_at":         sentAt,
	})
	h.CreateChat(context.Background(), 1, em, raw)

	chats.AssertExpectations(t)
	em.AssertExpectations(t)
}

func TestDeleteChatBackdatedHorizon(t *testing.T) {
	chats := new(mocks.ChatRepository)
	dir := new(mocks.DirectoryClient)
	em := new(mocks.Emitter)
	h := handlers.NewChatHandler(chats, dir, nil)

	deletedAt := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	chats.On("GetMember", mock.Anything, 5, 1).
		Return(models.ChatMember{ChatID: 5, UserID: 1}, nil).Once()
	chats.On("MarkChatDeleted", mock.Anything, 5, 1, mock.MatchedBy(func(at time.Time) bool {
		return at.Equal(deletedAt)
	})).Return(nil).Once()

	em.On("Emit", models.EventDeleted, map[string]any{"chat_id": 5}).Once()

	raw, _ := json.Marshal(map[string]any{"chat_id": 5, "deleted_at": deletedAt})
	h.DeleteChat(context.Background(), 1, em, raw)

	chats.AssertExpectations(t)
	em.AssertExpectations(t)
}

func TestCreateChatPersonalAlreadyExists(t *testing.T) {
	chats := new(mocks.ChatRepository)
	dir := new(mocks.DirectoryClient)
	em := new(mocks.Emitter)
	h := handlers.NewChatHandler(chats, dir, nil)

	dir.On("GetUser", mock.Anything, 2).
		Return(directory.User{ID: 2, Username: "bob", Active: true}, nil).Once()
	chats.On("FindPersonalChat", mock.Anything, 1, 2).
		Return(models.Chat{ID: 7, Type: models.ChatTypePersonal}, nil).Once()

	em.On("Emit", models.EventError, "chat already exists").Once()

	raw, _ := json.Marshal(map[string]any{"type": "personal", "members": []int{2}})
	h.CreateChat(context.Background(), 1, em, raw)

	chats.AssertNotCalled(t, "CreateChat", mock.Anything, mock.Anything)
	em.AssertExpectations(t)
}

func TestCreateChatGroupRequiresName(t *testing.T) {
	chats := new(mocks.ChatRepository)
	dir := new(mocks.DirectoryClient)
	em := new(mocks.Emitter)
	h := handlers.NewChatHandler(chats, dir, nil)

	em.On("Emit", models.EventError, "chat name is required").Once()

	raw, _ := json.Marshal(map[string]any{"type": "group", "members": []int{2, 3}})
	h.CreateChat(context.Background(), 1, em, raw)

	em.AssertExpectations(t)
}

func TestUpdateChatRejectsNonAdmin(t *testing.T) {
	chats := new(mocks.ChatRepository)
	dir := new(mocks.DirectoryClient)
	em := new(mocks.Emitter)
	h := handlers.NewChatHandler(chats, dir, nil)

	chats.On("GetMember", mock.Anything, 5, 1).
		Return(models.ChatMember{ChatID: 5, UserID: 1, IsAdmin: false}, nil).Once()
	em.On("Emit", models.EventError, "admin rights required").Once()

	raw, _ := json.Marshal(map[string]any{"chat_id": 5, "name": "new name"})
	h.UpdateChat(context.Background(), 1, em, raw)

	chats.AssertNotCalled(t, "UpdateChat", mock.Anything, mock.Anything)
	em.AssertExpectations(t)
}

func TestRemoveMemberBroadcastsAndUnsubscribes(t *testing.T) {
	chats := new(mocks.ChatRepository)
	dir := new(mocks.DirectoryClient)
	em := new(mocks.Emitter)
	h := handlers.NewChatHandler(chats, dir, nil)

	chats.On("GetMember", mock.Anything, 5, 1).
		Return(models.ChatMember{ChatID: 5, UserID: 1, IsAdmin: true}, nil).Once()
	dir.On("GetUser", mock.Anything, 1).
		Return(directory.User{ID: 1, Username: "alice", Active: true}, nil).Once()
	chats.On("GetChat", mock.Anything, 5).
		Return(models.Chat{ID: 5, Type: models.ChatTypeGroup, Name: strPtr("team")}, nil).Once()
	dir.On("GetUser", mock.Anything, 2).
		Return(directory.User{ID: 2, Username: "bob", Active: true}, nil).Once()

	sys := models.Message{ID: 40, ChatID: 5, Content: "alice removed bob from the chat", Type: models.MessageTypeSystem}
	chats.On("RemoveMember", mock.Anything, 5, 2, 1, "alice removed bob from the chat").
		Return(sys, nil).Once()

	em.On("ToChat", 5, models.EventMemberRemoved, mock.Anything).Once()
	em.On("ToChat", 5, models.EventNewMessage, sys).Once()
	em.On("Unsubscribe", 5, []int{2}).Once()

	raw, _ := json.Marshal(map[string]any{"chat_id": 5, "user_id": 2})
	h.RemoveMember(context.Background(), 1, em, raw)

	chats.AssertExpectations(t)
	em.AssertExpectations(t)
}

func TestRemoveMemberAlreadyGone(t *testing.T) {
	chats := new(mocks.ChatRepository)
	dir := new(mocks.DirectoryClient)
	em := new(mocks.Emitter)
	h := handlers.NewChatHandler(chats, dir, nil)

	chats.On("GetMember", mock.Anything, 5, 1).
		Return(models.ChatMember{ChatID: 5, UserID: 1, IsAdmin: true}, nil).Once()
	dir.On("GetUser", mock.Anything, 1).
		Return(directory.User{ID: 1, Username: "alice", Active: true}, nil).Once()
	chats.On("GetChat", mock.Anything, 5).
		Return(models.Chat{ID: 5, Type: models.ChatTypeGroup, Name: strPtr("team")}, nil).Once()
	dir.On("GetUser", mock.Anything, 2).
		Return(directory.User{ID: 2, Username: "bob", Active: true}, nil).Once()
	chats.On("RemoveMember", mock.Anything, 5, 2, 1, mock.Anything).
		Return(models.Message{}, repositories.ErrNotMember).Once()

	em.On("Emit", models.EventError, "not a member of this chat").Once()

	raw, _ := json.Marshal(map[string]any{"chat_id": 5, "user_id": 2})
	h.RemoveMember(context.Background(), 1, em, raw)

	em.AssertExpectations(t)
}

func TestLeaveChatLastAdminRejected(t *testing.T) {
	chats := new(mocks.ChatRepository)
	dir := new(mocks.DirectoryClient)
	em := new(mocks.Emitter)
	h := handlers.NewChatHandler(chats, dir, nil)

	dir.On("GetUser", mock.Anything, 1).
		Return(directory.User{ID: 1, Username: "alice", Active: true}, nil).Once()
	chats.On("LeaveChat", mock.Anything, 5, 1, "alice left the chat").
		Return(models.Message{}, repositories.ErrLastAdmin).Once()

	em.On("Emit", models.EventError, "cannot leave the chat as the only admin").Once()

	raw, _ := json.Marshal(map[string]any{"chat_id": 5})
	h.LeaveChat(context.Background(), 1, em, raw)

	em.AssertExpectations(t)
	em.AssertNotCalled(t, "Unsubscribe", mock.Anything, mock.Anything)
}

func TestJoinChatRejectsGroup(t *testing.T) {
	chats := new(mocks.ChatRepository)
	dir := new(mocks.DirectoryClient)
	em := new(mocks.Emitter)
	h := handlers.NewChatHandler(chats, dir, nil)

	chats.On("GetChat", mock.Anything, 5).
		Return(models.Chat{ID: 5, Type: models.ChatTypeGroup, Name: strPtr("team")}, nil).Once()
	em.On("Emit", models.EventError, "only community chats can be joined").Once()

	raw, _ := json.Marshal(map[string]any{"chat_id": 5})
	h.JoinChat(context.Background(), 1, em, raw)

	chats.AssertNotCalled(t, "AddMember", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	em.AssertExpectations(t)
}

func TestToggleBlockReportsBothParties(t *testing.T) {
	chats := new(mocks.ChatRepository)
	dir := new(mocks.DirectoryClient)
	em := new(mocks.Emitter)
	h := handlers.NewChatHandler(chats, dir, nil)

	chats.On("GetChat", mock.Anything, 7).
		Return(models.Chat{ID: 7, Type: models.ChatTypePersonal}, nil).Once()
	chats.On("GetMember", mock.Anything, 7, 1).
		Return(models.ChatMember{ChatID: 7, UserID: 1}, nil).Once()
	chats.On("ListMembers", mock.Anything, 7).
		Return([]models.ChatMember{{ChatID: 7, UserID: 1}, {ChatID: 7, UserID: 2}}, nil).Once()
	chats.On("ToggleBlock", mock.Anything, 7, 1, 2).Return(true, nil).Once()

	em.On("ToChat", 7, models.EventBlockStatus, mock.MatchedBy(func(data any) bool {
		payload, ok := data.(map[string]any)
		return ok && payload["blocked"] == true && payload["blocked_by"] == 1 && payload["blocked_user"] == 2
	})).Once()

	raw, _ := json.Marshal(map[string]any{"chat_id": 7})
	h.ToggleBlock(context.Background(), 1, em, raw)

	chats.AssertExpectations(t)
	em.AssertExpectations(t)
}

func TestGetChatMembersMasksMissingUsers(t *testing.T) {
	chats := new(mocks.ChatRepository)
	dir := new(mocks.DirectoryClient)
	em := new(mocks.Emitter)
	h := handlers.NewChatHandler(chats, dir, nil)

	chats.On("GetMember", mock.Anything, 5, 1).
		Return(models.ChatMember{ChatID: 5, UserID: 1}, nil).Once()
	chats.On("ListMembers", mock.Anything, 5).
		Return([]models.ChatMember{{ChatID: 5, UserID: 1, IsAdmin: true}, {ChatID: 5, UserID: 9}}, nil).Once()
	dir.On("BulkUsers", mock.Anything, []int{1, 9}).
		Return([]directory.User{{ID: 1, Username: "alice", Active: true}}, nil).Once()

	em.On("Emit", models.EventChatMembers, mock.MatchedBy(func(data any) bool {
		payload, ok := data.(map[string]any)
		if !ok {
			return false
		}
		raw, _ := json.Marshal(payload["members"])
		var members []struct {
			UserID   int    `json:"user_id"`
			Username string `json:"username"`
		}
		if err := json.Unmarshal(raw, &members); err != nil || len(members) != 2 {
			return false
		}
		return members[0].Username == "alice" && members[1].Username == directory.AnonymousUsername
	})).Once()

	raw, _ := json.Marshal(map[string]any{"chat_id": 5})
	h.GetChatMembers(context.Background(), 1, em, raw)

	em.AssertExpectations(t)
}
