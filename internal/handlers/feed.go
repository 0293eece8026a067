package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"skrolls-chat/internal/content"
	"skrolls-chat/internal/directory"
	"skrolls-chat/internal/models"
	"skrolls-chat/internal/repositories"
)

// FeedHandler serves the conversation inbox and the community view that
// mixes chat history with content-repository feeds.
type FeedHandler struct {
	feeds    repositories.FeedRepository
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	dir      directory.Client
	content  content.Client
}

// NewFeedHandler constructs a FeedHandler.
func NewFeedHandler(feeds repositories.FeedRepository, chats repositories.ChatRepository,
	messages repositories.MessageRepository, dir directory.Client, cnt content.Client) *FeedHandler {
	return &FeedHandler{feeds: feeds, chats: chats, messages: messages, dir: dir, content: cnt}
}

// GetUserConversations returns the caller's inbox for one chat type. For
// personal chats the row is titled with the other party's visible identity.
func (h *FeedHandler) GetUserConversations(ctx context.Context, userID int, em Emitter, raw json.RawMessage) {
	var req struct {
		Type   models.ChatType `json:"type"`
		Limit  int             `json:"limit"`
		Offset int             `json:"offset"`
	}
	if err := decode(raw, &req); err != nil {
		emitError(em, err)
		return
	}
	if req.Type == "" {
		req.Type = models.ChatTypePersonal
	}
	if !req.Type.Valid() {
		emitError(em, errors.New("invalid chat type"))
		return
	}

	conversations, err := h.feeds.ListConversations(ctx, userID, req.Type, clampLimit(req.Limit), req.Offset)
	if err != nil {
		emitError(em, err)
		return
	}

	if req.Type == models.ChatTypePersonal {
		if err := h.titlePersonal(ctx, conversations); err != nil {
			emitError(em, err)
			return
		}
	}

	em.Emit(models.EventConversations, map[string]any{
		"type":          req.Type,
		"conversations": conversations,
	})
}

// titlePersonal replaces the name and icon of personal conversations with
// the other party's visible username and photo.
func (h *FeedHandler) titlePersonal(ctx context.Context, conversations []models.Conversation) error {
	ids := make([]int, 0, len(conversations))
	for _, conv := range conversations {
		if conv.OtherUserID != nil {
			ids = append(ids, *conv.OtherUserID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	identities, err := identitiesFor(ctx, h.dir, ids)
	if err != nil {
		return err
	}

	for i := range conversations {
		if conversations[i].OtherUserID == nil {
			continue
		}
		identity, ok := identities[*conversations[i].OtherUserID]
		if !ok {
			identity = directory.Identity{Username: directory.AnonymousUsername}
		}
		name := identity.Username
		conversations[i].Name = &name
		conversations[i].Icon = identity.Photo
	}
	return nil
}

// GetCommunityMessagesAndFeeds returns a community chat's history alongside
// the content-repository feeds matching its hashtags. A content outage
// degrades to an empty feed list rather than failing the whole view.
func (h *FeedHandler) GetCommunityMessagesAndFeeds(ctx context.Context, userID int, em Emitter, raw json.RawMessage) {
	var req struct {
		ChatID int `json:"chat_id"`
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}
	if err := decode(raw, &req); err != nil {
		emitError(em, err)
		return
	}

	chat, err := h.chats.GetChat(ctx, req.ChatID)
	if err != nil {
		emitError(em, err)
		return
	}
	if chat.Type != models.ChatTypeCommunity {
		emitError(em, errors.New("not a community chat"))
		return
	}
	if _, err := h.chats.GetMember(ctx, req.ChatID, userID); err != nil {
		emitError(em, err)
		return
	}

	limit := clampLimit(req.Limit)
	views, err := h.messages.ListMessages(ctx, req.ChatID, userID, limit, req.Offset)
	if err != nil {
		emitError(em, err)
		return
	}
	if err := attachSenderNames(ctx, h.dir, views); err != nil {
		emitError(em, err)
		return
	}

	tags, err := h.chats.ListHashtags(ctx, req.ChatID)
	if err != nil {
		emitError(em, err)
		return
	}
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}

	feeds, err := h.content.FeedsByHashtags(ctx, names, limit)
	if err != nil {
		log.Printf("content repository unavailable for chat %d: %v", req.ChatID, err)
		feeds = []content.FeedItem{}
	}

	em.Emit(models.EventMessages, map[string]any{
		"chat_id":  req.ChatID,
		"messages": views,
		"feeds":    feeds,
	})
}
