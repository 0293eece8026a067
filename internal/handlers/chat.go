package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"skrolls-chat/internal/directory"
	"skrolls-chat/internal/models"
	"skrolls-chat/internal/repositories"
	"skrolls-chat/internal/telemetry"
)

// ChatHandler serves the chat lifecycle and membership events.
type ChatHandler struct {
	chats repositories.ChatRepository
	dir   directory.Client
	audit *telemetry.AuditEmitter
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(chats repositories.ChatRepository, dir directory.Client, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{chats: chats, dir: dir, audit: audit}
}

type memberView struct {
	UserID   int     `json:"user_id"`
	IsAdmin  bool    `json:"is_admin"`
	Username string  `json:"username"`
	Photo    *string `json:"photo,omitempty"`
}

// CreateChat creates a personal, group or community chat with the caller as
// its creator-admin, optionally carrying an initial message.
func (h *ChatHandler) CreateChat(ctx context.Context, userID int, em Emitter, raw json.RawMessage) {
	var req struct {
		Type           models.ChatType `json:"type"`
		Name           *string         `json:"name"`
		Icon           *string         `json:"icon"`
		Description    *string         `json:"description"`
		Members        []int           `json:"members"`
		Hashtags       []string        `json:"hashtags"`
		InitialMessage string          `json:"initial_message"`
		MediaURLs      []string        `json:"media_urls"`
		SentAt         *time.Time      `json:"sent_at"`
	}
	if err := decode(raw, &req); err != nil {
		emitError(em, err)
		return
	}
	if !req.Type.Valid() {
		emitError(em, errors.New("invalid chat type"))
		return
	}

	memberIDs := uniqueInts(append(req.Members, userID))
	switch req.Type {
	case models.ChatTypePersonal:
		if len(memberIDs) != 2 {
			emitError(em, errors.New("personal chats require exactly two members"))
			return
		}
	default:
		if req.Name == nil || *req.Name == "" {
			emitError(em, errors.New("chat name is required"))
			return
		}
		if len(memberIDs) < 2 {
			emitError(em, errors.New("at least one other member is required"))
			return
		}
	}

	if req.Type == models.ChatTypePersonal {
		other := memberIDs[0]
		if other == userID {
			other = memberIDs[1]
		}
		if _, err := h.dir.GetUser(ctx, other); err != nil {
			emitError(em, err)
			return
		}
		_, err := h.chats.FindPersonalChat(ctx, userID, other)
		if err == nil {
			emitError(em, repositories.ErrChatExists)
			return
		}
		if !errors.Is(err, repositories.ErrChatNotFound) {
			emitError(em, err)
			return
		}
	}

	created, err := h.chats.CreateChat(ctx, repositories.CreateChatParams{
		Type:           req.Type,
		Name:           req.Name,
		Icon:           req.Icon,
		Description:    req.Description,
		CreatedBy:      userID,
		MemberIDs:      memberIDs,
		Hashtags:       req.Hashtags,
		InitialContent: req.InitialMessage,
		MediaURLs:      req.MediaURLs,
		SentAt:         timeOrNow(req.SentAt),
	})
	if err != nil {
		emitError(em, err)
		return
	}

	em.Subscribe(created.Chat.ID, memberIDs...)
	// The creation reply goes to the caller only; other members learn about
	// the chat through the message leg.
	em.Emit(models.EventChatCreated, map[string]any{
		"chat":    created.Chat,
		"members": created.Members,
	})
	if created.InitialMessage != nil {
		em.ToChat(created.Chat.ID, models.EventNewMessage, created.InitialMessage)
	}
	emitAudit(ctx, h.audit, "INFO", fmt.Sprintf("chat %d created", created.Chat.ID), userID)
}

// UpdateChat rewrites the chat's mutable fields; admin only.
func (h *ChatHandler) UpdateChat(ctx context.Context, userID int, em Emitter, raw json.RawMessage) {
	var req struct {
		ChatID      int      `json:"chat_id"`
		Name        *string  `json:"name"`
		Icon        *string  `json:"icon"`
		Description *string  `json:"description"`
		Hashtags    []string `json:"hashtags"`
	}
	if err := decode(raw, &req); err != nil {
		emitError(em, err)
		return
	}
	if req.Name == nil && req.Icon == nil && req.Description == nil && req.Hashtags == nil {
		emitError(em, errors.New("nothing to update"))
		return
	}

	actor, err := h.requireAdmin(ctx, req.ChatID, userID)
	if err != nil {
		emitError(em, err)
		return
	}

	chat, msg, err := h.chats.UpdateChat(ctx, repositories.UpdateChatParams{
		ChatID:      req.ChatID,
		ActorID:     userID,
		Name:        req.Name,
		Icon:        req.Icon,
		Description: req.Description,
		Hashtags:    req.Hashtags,
		SystemText:  fmt.Sprintf("%s updated the chat", actor.Username),
	})
	if err != nil {
		emitError(em, err)
		return
	}

	em.ToChat(chat.ID, models.EventChatUpdated, chat)
	em.ToChat(chat.ID, models.EventNewMessage, msg)
}

// DeleteChat hides the chat for the caller only by recording a deletion
// horizon; other members are unaffected.
func (h *ChatHandler) DeleteChat(ctx context.Context, userID int, em Emitter, raw json.RawMessage) {
	var req struct {
		ChatID    int        `json:"chat_id"`
		DeletedAt *time.Time `json:"deleted_at"`
	}
	if err := decode(raw, &req); err != nil {
		emitError(em, err)
		return
	}

	if _, err := h.chats.GetMember(ctx, req.ChatID, userID); err != nil {
		emitError(em, err)
		return
	}
	if err := h.chats.MarkChatDeleted(ctx, req.ChatID, userID, timeOrNow(req.DeletedAt)); err != nil {
		emitError(em, err)
		return
	}

	em.Emit(models.EventDeleted, map[string]any{"chat_id": req.ChatID})
	emitAudit(ctx, h.audit, "INFO", fmt.Sprintf("chat %d hidden", req.ChatID), userID)
}

// GetChatMembers lists the chat's members with their visible identities.
func (h *ChatHandler) GetChatMembers(ctx context.Context, userID int, em Emitter, raw json.RawMessage) {
	var req struct {
		ChatID int `json:"chat_id"`
	}
	if err := decode(raw, &req); err != nil {
		emitError(em, err)
		return
	}
	if _, err := h.chats.GetMember(ctx, req.ChatID, userID); err != nil {
		emitError(em, err)
		return
	}

	views, err := h.memberViews(ctx, req.ChatID)
	if err != nil {
		emitError(em, err)
		return
	}

	em.Emit(models.EventChatMembers, map[string]any{
		"chat_id": req.ChatID,
		"members": views,
	})
}

// GetChatDetails returns the chat row, its members, the community hashtags
// and, for personal chats, the block state from the caller's point of view.
func (h *ChatHandler) GetChatDetails(ctx context.Context, userID int, em Emitter, raw json.RawMessage) {
	var req struct {
		ChatID int `json:"chat_id"`
	}
	if err := decode(raw, &req); err != nil {
		emitError(em, err)
		return
	}
	if _, err := h.chats.GetMember(ctx, req.ChatID, userID); err != nil {
		emitError(em, err)
		return
	}

	chat, err := h.chats.GetChat(ctx, req.ChatID)
	if err != nil {
		emitError(em, err)
		return
	}
	views, err := h.memberViews(ctx, req.ChatID)
	if err != nil {
		emitError(em, err)
		return
	}

	details := map[string]any{
		"chat":    chat,
		"members": views,
	}
	if chat.Type == models.ChatTypeCommunity {
		tags, err := h.chats.ListHashtags(ctx, req.ChatID)
		if err != nil {
			emitError(em, err)
			return
		}
		details["hashtags"] = tags
	}
	if chat.Type == models.ChatTypePersonal {
		edges, err := h.chats.BlockEdges(ctx, req.ChatID)
		if err != nil {
			emitError(em, err)
			return
		}
		byYou, you := false, false
		for _, edge := range edges {
			if edge.BlockedBy == userID {
				byYou = true
			}
			if edge.BlockedUser == userID {
				you = true
			}
		}
		details["blocked_by_you"] = byYou
		details["blocked_you"] = you
	}

	em.Emit(models.EventChatDetails, details)
}

// AddMember adds a user to a group or community chat; admin only.
func (h *ChatHandler) AddMember(ctx context.Context, userID int, em Emitter, raw json.RawMessage) {
	var req struct {
		ChatID int `json:"chat_id"`
		UserID int `json:"user_id"`
	}
	if err := decode(raw, &req); err != nil {
		emitError(em, err)
		return
	}

	actor, err := h.requireAdmin(ctx, req.ChatID, userID)
	if err != nil {
		emitError(em, err)
		return
	}
	if err := h.forbidPersonal(ctx, req.ChatID); err != nil {
		emitError(em, err)
		return
	}
	target, err := h.dir.GetUser(ctx, req.UserID)
	if err != nil {
		emitError(em, err)
		return
	}

	targetName := directory.VisibleIdentity(target).Username
	msg, err := h.chats.AddMember(ctx, req.ChatID, req.UserID, userID,
		fmt.Sprintf("%s added %s to the chat", actor.Username, targetName))
	if err != nil {
		emitError(em, err)
		return
	}

	em.Subscribe(req.ChatID, req.UserID)
	em.ToChat(req.ChatID, models.EventMemberAdded, map[string]any{
		"chat_id": req.ChatID,
		"user_id": req.UserID,
	})
	em.ToChat(req.ChatID, models.EventNewMessage, msg)
}

// MakeAdmin grants admin rights; admin only.
func (h *ChatHandler) MakeAdmin(ctx context.Context, userID int, em Emitter, raw json.RawMessage) {
	h.setAdmin(ctx, userID, em, raw, true)
}

// DismissAdmin revokes admin rights; admin only. The creator cannot be
// dismissed, nor the only admin of a populated chat.
func (h *ChatHandler) DismissAdmin(ctx context.Context, userID int, em Emitter, raw json.RawMessage) {
	h.setAdmin(ctx, userID, em, raw, false)
}

func (h *ChatHandler) setAdmin(ctx context.Context, userID int, em Emitter, raw json.RawMessage, grant bool) {
	var req struct {
		ChatID int `json:"chat_id"`
		UserID int `json:"user_id"`
	}
	if err := decode(raw, &req); err != nil {
		emitError(em, err)
		return
	}

	actor, err := h.requireAdmin(ctx, req.ChatID, userID)
	if err != nil {
		emitError(em, err)
		return
	}
	if err := h.forbidPersonal(ctx, req.ChatID); err != nil {
		emitError(em, err)
		return
	}
	targetName, err := h.visibleName(ctx, req.UserID)
	if err != nil {
		emitError(em, err)
		return
	}

	text := fmt.Sprintf("%s made %s an admin", actor.Username, targetName)
	event := models.EventAdminMade
	if !grant {
		text = fmt.Sprintf("%s dismissed %s as admin", actor.Username, targetName)
		event = models.EventAdminDismissed
	}

	msg, err := h.chats.SetAdmin(ctx, req.ChatID, req.UserID, userID, grant, text)
	if err != nil {
		emitError(em, err)
		return
	}

	em.ToChat(req.ChatID, event, map[string]any{
		"chat_id": req.ChatID,
		"user_id": req.UserID,
	})
	em.ToChat(req.ChatID, models.EventNewMessage, msg)
}

// RemoveMember removes a user from a group or community chat; admin only.
// The creator cannot be removed.
func (h *ChatHandler) RemoveMember(ctx context.Context, userID int, em Emitter, raw json.RawMessage) {
	var req struct {
		ChatID int `json:"chat_id"`
		UserID int `json:"user_id"`
	}
	if err := decode(raw, &req); err != nil {
		emitError(em, err)
		return
	}

	actor, err := h.requireAdmin(ctx, req.ChatID, userID)
	if err != nil {
		emitError(em, err)
		return
	}
	if err := h.forbidPersonal(ctx, req.ChatID); err != nil {
		emitError(em, err)
		return
	}
	targetName, err := h.visibleName(ctx, req.UserID)
	if err != nil {
		emitError(em, err)
		return
	}

	msg, err := h.chats.RemoveMember(ctx, req.ChatID, req.UserID, userID,
		fmt.Sprintf("%s removed %s from the chat", actor.Username, targetName))
	if err != nil {
		emitError(em, err)
		return
	}

	// Broadcast before dropping the removed user's sessions from the room so
	// they see the removal too.
	em.ToChat(req.ChatID, models.EventMemberRemoved, map[string]any{
		"chat_id": req.ChatID,
		"user_id": req.UserID,
	})
	em.ToChat(req.ChatID, models.EventNewMessage, msg)
	em.Unsubscribe(req.ChatID, req.UserID)
}

// LeaveChat removes the caller from the chat.
func (h *ChatHandler) LeaveChat(ctx context.Context, userID int, em Emitter, raw json.RawMessage) {
	var req struct {
		ChatID int `json:"chat_id"`
	}
	if err := decode(raw, &req); err != nil {
		emitError(em, err)
		return
	}

	name, err := h.visibleName(ctx, userID)
	if err != nil {
		emitError(em, err)
		return
	}

	msg, err := h.chats.LeaveChat(ctx, req.ChatID, userID, fmt.Sprintf("%s left the chat", name))
	if err != nil {
		emitError(em, err)
		return
	}

	em.ToChat(req.ChatID, models.EventMemberLeaved, map[string]any{
		"chat_id": req.ChatID,
		"user_id": userID,
	})
	em.ToChat(req.ChatID, models.EventNewMessage, msg)
	em.Unsubscribe(req.ChatID, userID)
}

// JoinChat lets the caller join a community chat on their own.
func (h *ChatHandler) JoinChat(ctx context.Context, userID int, em Emitter, raw json.RawMessage) {
	var req struct {
		ChatID int `json:"chat_id"`
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
		emitError(em, errors.New("only community chats can be joined"))
		return
	}

	name, err := h.visibleName(ctx, userID)
	if err != nil {
		emitError(em, err)
		return
	}

	msg, err := h.chats.AddMember(ctx, req.ChatID, userID, userID,
		fmt.Sprintf("%s joined the chat", name))
	if err != nil {
		emitError(em, err)
		return
	}

	em.Subscribe(req.ChatID, userID)
	em.ToChat(req.ChatID, models.EventJoinedChat, map[string]any{
		"chat_id": req.ChatID,
		"user_id": userID,
	})
	em.ToChat(req.ChatID, models.EventNewMessage, msg)
}

// ToggleBlock flips the caller's block on the other party of a personal
// chat and reports the resulting state to both sides.
func (h *ChatHandler) ToggleBlock(ctx context.Context, userID int, em Emitter, raw json.RawMessage) {
	var req struct {
		ChatID int `json:"chat_id"`
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
	if chat.Type != models.ChatTypePersonal {
		emitError(em, errors.New("only personal chats can be blocked"))
		return
	}
	if _, err := h.chats.GetMember(ctx, req.ChatID, userID); err != nil {
		emitError(em, err)
		return
	}

	members, err := h.chats.ListMembers(ctx, req.ChatID)
	if err != nil {
		emitError(em, err)
		return
	}
	other := 0
	for _, m := range members {
		if m.UserID != userID {
			other = m.UserID
		}
	}

	blocked, err := h.chats.ToggleBlock(ctx, req.ChatID, userID, other)
	if err != nil {
		emitError(em, err)
		return
	}

	em.ToChat(req.ChatID, models.EventBlockStatus, map[string]any{
		"chat_id":      req.ChatID,
		"blocked":      blocked,
		"blocked_by":   userID,
		"blocked_user": other,
	})
	emitAudit(ctx, h.audit, "INFO", fmt.Sprintf("chat %d block toggled to %t", req.ChatID, blocked), userID)
}

// requireAdmin loads the actor's membership and visible identity, rejecting
// non-members and non-admins.
func (h *ChatHandler) requireAdmin(ctx context.Context, chatID, userID int) (directory.Identity, error) {
	member, err := h.chats.GetMember(ctx, chatID, userID)
	if err != nil {
		return directory.Identity{}, err
	}
	if !member.IsAdmin {
		return directory.Identity{}, ErrNotAdmin
	}
	user, err := h.dir.GetUser(ctx, userID)
	if err != nil {
		return directory.Identity{}, err
	}
	return directory.VisibleIdentity(user), nil
}

func (h *ChatHandler) forbidPersonal(ctx context.Context, chatID int) error {
	chat, err := h.chats.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.Type == models.ChatTypePersonal {
		return errors.New("cannot modify members of a personal chat")
	}
	return nil
}

func (h *ChatHandler) visibleName(ctx context.Context, userID int) (string, error) {
	user, err := h.dir.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return directory.VisibleIdentity(user).Username, nil
}

func (h *ChatHandler) memberViews(ctx context.Context, chatID int) ([]memberView, error) {
	members, err := h.chats.ListMembers(ctx, chatID)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	identities, err := identitiesFor(ctx, h.dir, ids)
	if err != nil {
		return nil, err
	}

	views := make([]memberView, 0, len(members))
	for _, m := range members {
		view := memberView{UserID: m.UserID, IsAdmin: m.IsAdmin}
		if id, ok := identities[m.UserID]; ok {
			view.Username = id.Username
			view.Photo = id.Photo
		} else {
			view.Username = directory.AnonymousUsername
		}
		views = append(views, view)
	}
	return views, nil
}
