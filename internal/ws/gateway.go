package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"skrolls-chat/internal/models"
	"skrolls-chat/internal/observability"
)

// TokenValidator resolves a bearer token to a user id.
type TokenValidator interface {
	Validate(token string) (int, error)
}

// MembershipSource lists the chats a user belongs to, so a fresh session
// can be subscribed to its rooms.
type MembershipSource interface {
	MemberChatIDs(ctx context.Context, userID int) ([]int, error)
}

// EventHandler processes one inbound event for one session.
type EventHandler func(ctx context.Context, sess *Session, data json.RawMessage)

// Gateway upgrades websocket connections and dispatches inbound events.
// Each event runs in its own goroutine; consistency is the store's job,
// not the gateway's.
type Gateway struct {
	hub      *Hub
	auth     TokenValidator
	chats    MembershipSource
	handlers map[string]EventHandler
}

// NewGateway constructs a Gateway.
func NewGateway(hub *Hub, auth TokenValidator, chats MembershipSource) *Gateway {
	return &Gateway{
		hub:      hub,
		auth:     auth,
		chats:    chats,
		handlers: make(map[string]EventHandler),
	}
}

// On registers the handler for an inbound event name.
func (g *Gateway) On(event string, handler EventHandler) {
	g.handlers[event] = handler
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection, binds the session identity and runs the
// read loop until the client goes away.
func (g *Gateway) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("skrolls-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		if q := c.Query("token"); q != "" {
			token = "Bearer " + q
		}
	}

	userID, err := g.validateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	sess := newSession(g.hub, conn, info)
	g.hub.Register(sess)

	// Join the rooms of every chat the user is already a member of.
	if chatIDs, err := g.chats.MemberChatIDs(context.Background(), userID); err != nil {
		log.Printf("room subscription failed for user %d: %v", userID, err)
	} else {
		for _, chatID := range chatIDs {
			g.hub.JoinRoom(chatID, sess)
		}
	}

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	g.publishLifecycleEvent(info, "ws_connect", "")

	defer func() {
		g.hub.Unregister(sess)
		sess.close()
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		g.publishLifecycleEvent(info, "ws_disconnect", "")
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				g.publishLifecycleEvent(info, "ws_error", err.Error())
			}
			return
		}

		var event models.Event
		if err := json.Unmarshal(raw, &event); err != nil {
			sess.Emit(models.EventError, "malformed event")
			continue
		}

		go g.dispatch(sess, event)
	}
}

// dispatch runs one inbound event. Events for the same chat may be in
// flight concurrently across sessions; per-operation transactions keep the
// store consistent.
func (g *Gateway) dispatch(sess *Session, event models.Event) {
	ctx, span := otel.Tracer("skrolls-chat/ws").Start(context.Background(), "ws.event."+event.Event)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic handling %q: %v", event.Event, r)
			sess.Emit(models.EventError, "internal error")
		}
	}()

	handler, ok := g.handlers[event.Event]
	if !ok {
		sess.Emit(models.EventError, fmt.Sprintf("unknown event %q", event.Event))
		return
	}

	start := time.Now()
	handler(ctx, sess, event.Data)
	observability.ObserveEventDuration(event.Event, time.Since(start))
	observability.IncWSEvent(event.Event)
}

func (g *Gateway) validateToken(header string) (int, error) {
	parts := strings.Split(header, " ")
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return g.auth.Validate(parts[1])
	}
	return 0, fmt.Errorf("invalid token")
}

func (g *Gateway) publishLifecycleEvent(info ConnInfo, name, reason string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       name,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
	_ = observability.PublishEvent(context.Background(), "ws_events.sessions", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload:   payload,
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
