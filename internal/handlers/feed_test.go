package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"

	"skrolls-chat/internal/content"
	"skrolls-chat/internal/directory"
	"skrolls-chat/internal/handlers"
	"skrolls-chat/internal/mocks"
	"skrolls-chat/internal/models"
)

func intPtr(i int) *int { return &i }

func TestConversationsTitlePersonalRows(t *testing.T) {
	feeds := new(mocks.FeedRepository)
	chats := new(mocks.ChatRepository)
	messages := new(mocks.MessageRepository)
	dir := new(mocks.DirectoryClient)
	cnt := new(mocks.ContentClient)
	em := new(mocks.Emitter)
	h := handlers.NewFeedHandler(feeds, chats, messages, dir, cnt)

	feeds.On("ListConversations", mock.Anything, 1, models.ChatTypePersonal, 20, 0).
		Return([]models.Conversation{
			{ChatID: 7, Type: models.ChatTypePersonal, OtherUserID: intPtr(2), UnreadCount: 3},
			{ChatID: 8, Type: models.ChatTypePersonal, OtherUserID: intPtr(3)},
		}, nil).Once()
	dir.On("BulkUsers", mock.Anything, []int{2, 3}).
		Return([]directory.User{
			{ID: 2, Username: "bob", Active: true},
			{ID: 3, Username: "carol", Active: true, Deactivated: true},
		}, nil).Once()

	em.On("Emit", models.EventConversations, mock.MatchedBy(func(data any) bool {
		payload, ok := data.(map[string]any)
		if !ok {
			return false
		}
		conversations, ok := payload["conversations"].([]models.Conversation)
		if !ok || len(conversations) != 2 {
			return false
		}
		// A deactivated counterpart is masked with the anonymous identity.
		return *conversations[0].Name == "bob" &&
			*conversations[1].Name == directory.AnonymousUsername
	})).Once()

	raw, _ := json.Marshal(map[string]any{"type": "personal"})
	h.GetUserConversations(context.Background(), 1, em, raw)

	feeds.AssertExpectations(t)
	em.AssertExpectations(t)
}

func TestConversationsRejectInvalidType(t *testing.T) {
	feeds := new(mocks.FeedRepository)
	chats := new(mocks.ChatRepository)
	messages := new(mocks.MessageRepository)
	dir := new(mocks.DirectoryClient)
	cnt := new(mocks.ContentClient)
	em := new(mocks.Emitter)
	h := handlers.NewFeedHandler(feeds, chats, messages, dir, cnt)

	em.On("Emit", models.EventError, "invalid chat type").Once()

	raw, _ := json.Marshal(map[string]any{"type": "broadcast"})
	h.GetUserConversations(context.Background(), 1, em, raw)

	feeds.AssertNotCalled(t, "ListConversations",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	em.AssertExpectations(t)
}

func TestCommunityViewDegradesWhenContentDown(t *testing.T) {
	feeds := new(mocks.FeedRepository)
	chats := new(mocks.ChatRepository)
	messages := new(mocks.MessageRepository)
	dir := new(mocks.DirectoryClient)
	cnt := new(mocks.ContentClient)
	em := new(mocks.Emitter)
	h := handlers.NewFeedHandler(feeds, chats, messages, dir, cnt)

	chats.On("GetChat", mock.Anything, 12).
		Return(models.Chat{ID: 12, Type: models.ChatTypeCommunity, Name: strPtr("gophers")}, nil).Once()
	chats.On("GetMember", mock.Anything, 12, 1).
		Return(models.ChatMember{ChatID: 12, UserID: 1}, nil).Once()
	messages.On("ListMessages", mock.Anything, 12, 1, 20, 0).
		Return([]models.MessageView{
			{Message: models.Message{ID: 60, ChatID: 12, SenderID: 2, Content: "welcome"}},
		}, nil).Once()
	dir.On("BulkUsers", mock.Anything, []int{2}).
		Return([]directory.User{{ID: 2, Username: "bob", Active: true}}, nil).Once()
	chats.On("ListHashtags", mock.Anything, 12).
		Return([]models.Hashtag{{ID: 1, Name: "golang"}}, nil).Once()
	cnt.On("FeedsByHashtags", mock.Anything, []string{"golang"}, 20).
		Return([]content.FeedItem{}, errors.New("content repository: unexpected status 502")).Once()

	em.On("Emit", models.EventMessages, mock.MatchedBy(func(data any) bool {
		payload, ok := data.(map[string]any)
		if !ok {
			return false
		}
		views, ok := payload["messages"].([]models.MessageView)
		if !ok || len(views) != 1 || views[0].SenderUsername != "bob" {
			return false
		}
		items, ok := payload["feeds"].([]content.FeedItem)
		return ok && len(items) == 0
	})).Once()

	raw, _ := json.Marshal(map[string]any{"chat_id": 12})
	h.GetCommunityMessagesAndFeeds(context.Background(), 1, em, raw)

	chats.AssertExpectations(t)
	cnt.AssertExpectations(t)
	em.AssertExpectations(t)
}

func TestCommunityViewRejectsNonCommunity(t *testing.T) {
	feeds := new(mocks.FeedRepository)
	chats := new(mocks.ChatRepository)
	messages := new(mocks.MessageRepository)
	dir := new(mocks.DirectoryClient)
	cnt := new(mocks.ContentClient)
	em := new(mocks.Emitter)
	h := handlers.NewFeedHandler(feeds, chats, messages, dir, cnt)

	chats.On("GetChat", mock.Anything, 7).
		Return(models.Chat{ID: 7, Type: models.ChatTypePersonal}, nil).Once()
	em.On("Emit", models.EventError, "not a community chat").Once()

	raw, _ := json.Marshal(map[string]any{"chat_id": 7})
	h.GetCommunityMessagesAndFeeds(context.Background(), 1, em, raw)

	messages.AssertNotCalled(t, "ListMessages",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	em.AssertExpectations(t)
}
