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

// MessageHandler serves message sending, history, deletion and delivery
// acknowledgements.
type MessageHandler struct {
	messages repositories.MessageRepository
	chats    repositories.ChatRepository
	dir      directory.Client
	audit    *telemetry.AuditEmitter
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(messages repositories.MessageRepository, chats repositories.ChatRepository,
	dir directory.Client, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{messages: messages, chats: chats, dir: dir, audit: audit}
}

// SendMessage posts a message to a chat the caller belongs to and broadcasts
// it to the chat room.
func (h *MessageHandler) SendMessage(ctx context.Context, userID int, em Emitter, raw json.RawMessage) {
	var req struct {
		ChatID    int        `json:"chat_id"`
		Content   string     `json:"content"`
		MediaURLs []string   `json:"media_urls"`
		ReplyToID *int       `json:"reply_to_id"`
		SentAt    *time.Time `json:"sent_at"`
	}
	if err := decode(raw, &req); err != nil {
		emitError(em, err)
		return
	}

	if err := h.send(ctx, userID, em, req.ChatID, req.Content, req.MediaURLs, req.ReplyToID, req.SentAt); err != nil {
		emitError(em, err)
	}
}

// DirectMessage sends to a user rather than a chat: the shared personal chat
// is looked up, created on first contact, and the message posted to it.
func (h *MessageHandler) DirectMessage(ctx context.Context, userID int, em Emitter, raw json.RawMessage) {
	var req struct {
		UserID    int        `json:"user_id"`
		Content   string     `json:"content"`
		MediaURLs []string   `json:"media_urls"`
		SentAt    *time.Time `json:"sent_at"`
	}
	if err := decode(raw, &req); err != nil {
		emitError(em, err)
		return
	}
	if req.UserID == userID {
		emitError(em, errors.New("cannot message yourself"))
		return
	}
	if _, err := h.dir.GetUser(ctx, req.UserID); err != nil {
		emitError(em, err)
		return
	}

	chat, err := h.chats.FindPersonalChat(ctx, userID, req.UserID)
	if errors.Is(err, repositories.ErrChatNotFound) {
		created, cerr := h.chats.CreateChat(ctx, repositories.CreateChatParams{
			Type:      models.ChatTypePersonal,
			CreatedBy: userID,
			MemberIDs: uniqueInts([]int{userID, req.UserID}),
		})
		if cerr != nil {
			emitError(em, cerr)
			return
		}
		chat = created.Chat
		em.Subscribe(chat.ID, userID, req.UserID)
		em.Emit(models.EventChatCreated, map[string]any{
			"chat":    created.Chat,
			"members": created.Members,
		})
	} else if err != nil {
		emitError(em, err)
		return
	}

	if err := h.send(ctx, userID, em, chat.ID, req.Content, req.MediaURLs, nil, req.SentAt); err != nil {
		emitError(em, err)
	}
}

func (h *MessageHandler) send(ctx context.Context, userID int, em Emitter, chatID int,
	content string, mediaURLs []string, replyToID *int, sentAt *time.Time) error {
	if content == "" && len(mediaURLs) == 0 {
		return errors.New("message content or media required")
	}
	if _, err := h.chats.GetMember(ctx, chatID, userID); err != nil {
		return err
	}

	chat, err := h.chats.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.Type == models.ChatTypePersonal {
		if err := h.checkBlocked(ctx, chatID, userID); err != nil {
			return err
		}
	}

	members, err := h.chats.ListMembers(ctx, chatID)
	if err != nil {
		return err
	}
	recipients := make([]int, 0, len(members))
	for _, m := range members {
		recipients = append(recipients, m.UserID)
	}

	msg, err := h.messages.SendMessage(ctx, repositories.SendMessageParams{
		ChatID:     chatID,
		SenderID:   userID,
		Content:    content,
		MediaURLs:  mediaURLs,
		ReplyToID:  replyToID,
		SentAt:     timeOrNow(sentAt),
		Recipients: recipients,
	})
	if err != nil {
		return err
	}

	name, err := h.visibleName(ctx, userID)
	if err != nil {
		return err
	}
	em.ToChat(chatID, models.EventNewMessage, models.MessageView{
		Message:        msg,
		SenderUsername: name,
	})
	return nil
}

// checkBlocked rejects sending in a blocked personal chat. When the sender
// placed the block they get told so; otherwise they learn they are blocked.
func (h *MessageHandler) checkBlocked(ctx context.Context, chatID, userID int) error {
	edges, err := h.chats.BlockEdges(ctx, chatID)
	if err != nil {
		return err
	}
	blockedYou := false
	for _, edge := range edges {
		if edge.BlockedBy == userID {
			return ErrBlockedByYou
		}
		if edge.BlockedUser == userID {
			blockedYou = true
		}
	}
	if blockedYou {
		return ErrBlockedYou
	}
	return nil
}

// GetMessages returns a page of chat history visible to the caller, newest
// first, with sender names resolved.
func (h *MessageHandler) GetMessages(ctx context.Context, userID int, em Emitter, raw json.RawMessage) {
	var req struct {
		ChatID int `json:"chat_id"`
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}
	if err := decode(raw, &req); err != nil {
		emitError(em, err)
		return
	}
	if _, err := h.chats.GetMember(ctx, req.ChatID, userID); err != nil {
		emitError(em, err)
		return
	}

	views, err := h.listMessages(ctx, req.ChatID, userID, req.Limit, req.Offset)
	if err != nil {
		emitError(em, err)
		return
	}

	em.Emit(models.EventMessages, map[string]any{
		"chat_id":  req.ChatID,
		"messages": views,
	})
}

func (h *MessageHandler) listMessages(ctx context.Context, chatID, userID, limit, offset int) ([]models.MessageView, error) {
	views, err := h.messages.ListMessages(ctx, chatID, userID, clampLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	if err := attachSenderNames(ctx, h.dir, views); err != nil {
		return nil, err
	}
	return views, nil
}

// DeleteMessage hides a message for the caller, or tombstones it for
// everyone when requested by its sender or a chat admin.
func (h *MessageHandler) DeleteMessage(ctx context.Context, userID int, em Emitter, raw json.RawMessage) {
	var req struct {
		MessageID         int        `json:"message_id"`
		DeleteForEveryone bool       `json:"delete_for_everyone"`
		DeletedAt         *time.Time `json:"deleted_at"`
	}
	if err := decode(raw, &req); err != nil {
		emitError(em, err)
		return
	}

	msg, err := h.messages.GetMessage(ctx, req.MessageID)
	if err != nil {
		emitError(em, err)
		return
	}
	member, err := h.chats.GetMember(ctx, msg.ChatID, userID)
	if err != nil {
		emitError(em, err)
		return
	}

	if !req.DeleteForEveryone {
		if err := h.messages.MarkMessageDeleted(ctx, req.MessageID, userID, timeOrNow(req.DeletedAt)); err != nil {
			emitError(em, err)
			return
		}
		em.Emit(models.EventDeleted, map[string]any{"message_id": req.MessageID})
		return
	}

	if msg.SenderID != userID && !member.IsAdmin {
		emitError(em, errors.New("only the sender or an admin can delete for everyone"))
		return
	}
	content := "Deleted by user"
	if msg.SenderID != userID {
		content = "Deleted by admin"
	}
	if err := h.messages.TombstoneMessage(ctx, req.MessageID, content); err != nil {
		emitError(em, err)
		return
	}

	em.ToChat(msg.ChatID, models.EventDeleted, map[string]any{
		"chat_id":             msg.ChatID,
		"message_id":          req.MessageID,
		"delete_for_everyone": true,
	})
	emitAudit(ctx, h.audit, "INFO", fmt.Sprintf("message %d deleted for everyone", req.MessageID), userID)
}

// MessageReceived acknowledges delivery of a message to the caller.
func (h *MessageHandler) MessageReceived(ctx context.Context, userID int, em Emitter, raw json.RawMessage) {
	h.advanceStatus(ctx, userID, em, raw, models.StatusReceived)
}

// MessageRead acknowledges the caller reading a message. Skipping the
// received step is allowed; the receipt timestamp is backfilled.
func (h *MessageHandler) MessageRead(ctx context.Context, userID int, em Emitter, raw json.RawMessage) {
	h.advanceStatus(ctx, userID, em, raw, models.StatusRead)
}

func (h *MessageHandler) advanceStatus(ctx context.Context, userID int, em Emitter, raw json.RawMessage, target models.DeliveryStatus) {
	var req struct {
		MessageID int `json:"message_id"`
	}
	if err := decode(raw, &req); err != nil {
		emitError(em, err)
		return
	}

	change, err := h.messages.AdvanceStatus(ctx, req.MessageID, userID, target, time.Now())
	if err != nil {
		emitError(em, err)
		return
	}
	if !change.Changed {
		return
	}

	em.ToChat(change.ChatID, models.EventMessageStatusUpdate, map[string]any{
		"chat_id":        change.ChatID,
		"message_id":     req.MessageID,
		"overall_status": change.Overall,
	})
}

func (h *MessageHandler) visibleName(ctx context.Context, userID int) (string, error) {
	user, err := h.dir.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return directory.VisibleIdentity(user).Username, nil
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
