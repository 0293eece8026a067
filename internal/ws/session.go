package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Session is one authenticated websocket connection. The user identity is
// fixed at handshake time; handlers never read it from event payloads.
type Session struct {
	hub     *Hub
	conn    *websocket.Conn
	userID  int
	info    ConnInfo
	writeMu sync.Mutex
}

func newSession(hub *Hub, conn *websocket.Conn, info ConnInfo) *Session {
	return &Session{hub: hub, conn: conn, userID: info.UserID, info: info}
}

// UserID returns the session-bound user identity.
func (s *Session) UserID() int {
	return s.userID
}

// Emit sends an event to this session only.
func (s *Session) Emit(event string, data any) {
	if err := s.write(event, data); err != nil {
		s.close()
		s.hub.Unregister(s)
	}
}

// ToChat broadcasts an event to the chat's room.
func (s *Session) ToChat(chatID int, event string, data any) {
	s.hub.EmitToChat(chatID, event, data)
}

// Subscribe joins the live sessions of the given users to the chat room.
func (s *Session) Subscribe(chatID int, userIDs ...int) {
	s.hub.Subscribe(chatID, userIDs...)
}

// Unsubscribe removes the live sessions of the given users from the room.
func (s *Session) Unsubscribe(chatID int, userIDs ...int) {
	s.hub.Unsubscribe(chatID, userIDs...)
}

func (s *Session) write(event string, data any) error {
	payload, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *Session) close() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
}
