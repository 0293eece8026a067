// Package mocks holds testify mocks for the service's interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"skrolls-chat/internal/content"
	"skrolls-chat/internal/directory"
	"skrolls-chat/internal/handlers"
	"skrolls-chat/internal/models"
	"skrolls-chat/internal/repositories"
)

// ChatRepository mocks repositories.ChatRepository.
type ChatRepository struct {
	mock.Mock
}

var _ repositories.ChatRepository = (*ChatRepository)(nil)

func (m *ChatRepository) CreateChat(ctx context.Context, p repositories.CreateChatParams) (repositories.CreatedChat, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(repositories.CreatedChat), args.Error(1)
}

func (m *ChatRepository) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	return args.Get(0).(models.Chat), args.Error(1)
}

func (m *ChatRepository) GetMember(ctx context.Context, chatID, userID int) (models.ChatMember, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Get(0).(models.ChatMember), args.Error(1)
}

func (m *ChatRepository) ListMembers(ctx context.Context, chatID int) ([]models.ChatMember, error) {
	args := m.Called(ctx, chatID)
	return args.Get(0).([]models.ChatMember), args.Error(1)
}

func (m *ChatRepository) MemberChatIDs(ctx context.Context, userID int) ([]int, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]int), args.Error(1)
}

func (m *ChatRepository) FindPersonalChat(ctx context.Context, userA, userB int) (models.Chat, error) {
	args := m.Called(ctx, userA, userB)
	return args.Get(0).(models.Chat), args.Error(1)
}

func (m *ChatRepository) UpdateChat(ctx context.Context, p repositories.UpdateChatParams) (models.Chat, models.Message, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(models.Chat), args.Get(1).(models.Message), args.Error(2)
}

func (m *ChatRepository) MarkChatDeleted(ctx context.Context, chatID, userID int, deletedAt time.Time) error {
	args := m.Called(ctx, chatID, userID, deletedAt)
	return args.Error(0)
}

func (m *ChatRepository) AddMember(ctx context.Context, chatID, userID, actorID int, systemText string) (models.Message, error) {
	args := m.Called(ctx, chatID, userID, actorID, systemText)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *ChatRepository) SetAdmin(ctx context.Context, chatID, userID, actorID int, isAdmin bool, systemText string) (models.Message, error) {
	args := m.Called(ctx, chatID, userID, actorID, isAdmin, systemText)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *ChatRepository) RemoveMember(ctx context.Context, chatID, userID, actorID int, systemText string) (models.Message, error) {
	args := m.Called(ctx, chatID, userID, actorID, systemText)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *ChatRepository) LeaveChat(ctx context.Context, chatID, userID int, systemText string) (models.Message, error) {
	args := m.Called(ctx, chatID, userID, systemText)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *ChatRepository) ToggleBlock(ctx context.Context, chatID, blockedBy, blockedUser int) (bool, error) {
	args := m.Called(ctx, chatID, blockedBy, blockedUser)
	return args.Bool(0), args.Error(1)
}

func (m *ChatRepository) BlockEdges(ctx context.Context, chatID int) ([]models.BlockedChat, error) {
	args := m.Called(ctx, chatID)
	return args.Get(0).([]models.BlockedChat), args.Error(1)
}

func (m *ChatRepository) ListHashtags(ctx context.Context, chatID int) ([]models.Hashtag, error) {
	args := m.Called(ctx, chatID)
	return args.Get(0).([]models.Hashtag), args.Error(1)
}

// MessageRepository mocks repositories.MessageRepository.
type MessageRepository struct {
	mock.Mock
}

var _ repositories.MessageRepository = (*MessageRepository)(nil)

func (m *MessageRepository) SendMessage(ctx context.Context, p repositories.SendMessageParams) (models.Message, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessageRepository) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessageRepository) ListMessages(ctx context.Context, chatID, userID, limit, offset int) ([]models.MessageView, error) {
	args := m.Called(ctx, chatID, userID, limit, offset)
	return args.Get(0).([]models.MessageView), args.Error(1)
}

func (m *MessageRepository) TombstoneMessage(ctx context.Context, messageID int, content string) error {
	args := m.Called(ctx, messageID, content)
	return args.Error(0)
}

func (m *MessageRepository) MarkMessageDeleted(ctx context.Context, messageID, userID int, deletedAt time.Time) error {
	args := m.Called(ctx, messageID, userID, deletedAt)
	return args.Error(0)
}

func (m *MessageRepository) AdvanceStatus(ctx context.Context, messageID, userID int, target models.DeliveryStatus, at time.Time) (repositories.StatusChange, error) {
	args := m.Called(ctx, messageID, userID, target, at)
	return args.Get(0).(repositories.StatusChange), args.Error(1)
}

// FeedRepository mocks repositories.FeedRepository.
type FeedRepository struct {
	mock.Mock
}

var _ repositories.FeedRepository = (*FeedRepository)(nil)

func (m *FeedRepository) ListConversations(ctx context.Context, userID int, chatType models.ChatType, limit, offset int) ([]models.Conversation, error) {
	args := m.Called(ctx, userID, chatType, limit, offset)
	return args.Get(0).([]models.Conversation), args.Error(1)
}

// DirectoryClient mocks directory.Client.
type DirectoryClient struct {
	mock.Mock
}

var _ directory.Client = (*DirectoryClient)(nil)

func (m *DirectoryClient) GetUser(ctx context.Context, userID int) (directory.User, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(directory.User), args.Error(1)
}

func (m *DirectoryClient) BulkUsers(ctx context.Context, ids []int) ([]directory.User, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]directory.User), args.Error(1)
}

// ContentClient mocks content.Client.
type ContentClient struct {
	mock.Mock
}

var _ content.Client = (*ContentClient)(nil)

func (m *ContentClient) FeedsByHashtags(ctx context.Context, hashtags []string, limit int) ([]content.FeedItem, error) {
	args := m.Called(ctx, hashtags, limit)
	return args.Get(0).([]content.FeedItem), args.Error(1)
}

// Emitter mocks handlers.Emitter.
type Emitter struct {
	mock.Mock
}

var _ handlers.Emitter = (*Emitter)(nil)

func (m *Emitter) Emit(event string, data any) {
	m.Called(event, data)
}

func (m *Emitter) ToChat(chatID int, event string, data any) {
	m.Called(chatID, event, data)
}

func (m *Emitter) Subscribe(chatID int, userIDs ...int) {
	m.Called(chatID, userIDs)
}

func (m *Emitter) Unsubscribe(chatID int, userIDs ...int) {
	m.Called(chatID, userIDs)
}
