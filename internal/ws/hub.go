package ws

import (
	"context"
	"sync"
	"time"

	"skrolls-chat/internal/observability"
)

// Hub tracks live sessions and the chat rooms they subscribe to. A session
// joins the rooms of every chat its user belongs to at connect time; rooms
// gain members at runtime when chats are created or joined.
type Hub struct {
	rooms map[int]map[*Session]bool
	users map[int]map[*Session]bool
	mu    sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[int]map[*Session]bool),
		users: make(map[int]map[*Session]bool),
	}
}

// Register adds a session to the per-user index.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.users[s.userID]; !ok {
		h.users[s.userID] = make(map[*Session]bool)
	}
	h.users[s.userID][s] = true
}

// Unregister drops a session from the user index and every room.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sessions, ok := h.users[s.userID]; ok {
		delete(sessions, s)
		if len(sessions) == 0 {
			delete(h.users, s.userID)
		}
	}
	for chatID, sessions := range h.rooms {
		delete(sessions, s)
		if len(sessions) == 0 {
			delete(h.rooms, chatID)
		}
	}
}

// JoinRoom subscribes one session to a chat room.
func (h *Hub) JoinRoom(chatID int, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[chatID]; !ok {
		h.rooms[chatID] = make(map[*Session]bool)
	}
	h.rooms[chatID][s] = true
}

// Subscribe joins every live session of the given users to the chat room.
func (h *Hub) Subscribe(chatID int, userIDs ...int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, userID := range userIDs {
		for s := range h.users[userID] {
			if _, ok := h.rooms[chatID]; !ok {
				h.rooms[chatID] = make(map[*Session]bool)
			}
			h.rooms[chatID][s] = true
		}
	}
}

// Unsubscribe removes every live session of the given users from the room.
func (h *Hub) Unsubscribe(chatID int, userIDs ...int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sessions, ok := h.rooms[chatID]
	if !ok {
		return
	}
	for _, userID := range userIDs {
		for s := range h.users[userID] {
			delete(sessions, s)
		}
	}
	if len(sessions) == 0 {
		delete(h.rooms, chatID)
	}
}

// EmitToChat broadcasts an event to every session in the chat room.
// Delivery is at-least-once, fire-and-forget: a failed write closes and
// removes that connection, nothing is retried.
func (h *Hub) EmitToChat(chatID int, event string, data any) {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.rooms[chatID]))
	for s := range h.rooms[chatID] {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		if err := s.write(event, data); err != nil {
			s.close()
			h.Unregister(s)
			h.publishWSError(chatID, s, err)
		}
	}
}

// EmitToUser sends an event to every live session of one user.
func (h *Hub) EmitToUser(userID int, event string, data any) {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.users[userID]))
	for s := range h.users[userID] {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		if err := s.write(event, data); err != nil {
			s.close()
			h.Unregister(s)
		}
	}
}

func (h *Hub) publishWSError(chatID int, s *Session, err error) {
	info := s.info
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"resource_id": chatID,
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.sessions", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent("ws_error")
}
