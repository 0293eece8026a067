package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"skrolls-chat/internal/config"
	"skrolls-chat/internal/content"
	"skrolls-chat/internal/db"
	"skrolls-chat/internal/directory"
	"skrolls-chat/internal/handlers"
	"skrolls-chat/internal/middleware"
	"skrolls-chat/internal/observability"
	"skrolls-chat/internal/rabbitmq"
	"skrolls-chat/internal/repositories"
	"skrolls-chat/internal/telemetry"
	"skrolls-chat/internal/ws"
)

const serviceName = "skrolls-chat"

func main() {
	cfg := config.Load()
	ctx := context.Background()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTLPEndpoint, serviceName)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer shutdownTracing(ctx)

	chatDB, err := db.Connect(cfg.ChatDSN)
	if err != nil {
		log.Fatalf("failed to connect to chat db: %v", err)
	}
	defer chatDB.Close()

	directoryDB, err := sqlx.Connect("postgres", cfg.DirectoryDSN)
	if err != nil {
		log.Fatalf("failed to connect to directory db: %v", err)
	}
	defer directoryDB.Close()

	var cache *redis.Client
	if cfg.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := cache.Ping(ctx).Err(); err != nil {
			log.Printf("redis unavailable, directory cache disabled: %v", err)
			cache = nil
		}
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))

	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, serviceName, cfg.Environment)

	chatRepo := repositories.NewChatRepo(chatDB)
	messageRepo := repositories.NewMessageRepo(chatDB)
	feedRepo := repositories.NewFeedRepo(chatDB)

	dirClient := directory.NewDBClient(directoryDB, cache, cfg.DirectoryCacheTTL)
	contentClient := content.NewHTTPClient(cfg.ContentBaseURL, 5*time.Second)

	chatHandler := handlers.NewChatHandler(chatRepo, dirClient, audit)
	messageHandler := handlers.NewMessageHandler(messageRepo, chatRepo, dirClient, audit)
	feedHandler := handlers.NewFeedHandler(feedRepo, chatRepo, messageRepo, dirClient, contentClient)

	hub := ws.NewHub()
	gateway := ws.NewGateway(hub, middleware.NewJWTValidator(cfg.JWTSecret), chatRepo)
	registerEvents(gateway, chatHandler, messageHandler, feedHandler)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/ws", gateway.Handle)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.Printf("listening on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// registerEvents binds every inbound event name to its handler. The session
// doubles as the emitter, so handlers can answer the caller or the room.
func registerEvents(g *ws.Gateway, chats *handlers.ChatHandler, messages *handlers.MessageHandler, feeds *handlers.FeedHandler) {
	bind := func(h func(ctx context.Context, userID int, em handlers.Emitter, raw json.RawMessage)) ws.EventHandler {
		return func(ctx context.Context, sess *ws.Session, data json.RawMessage) {
			h(ctx, sess.UserID(), sess, data)
		}
	}

	g.On("createChat", bind(chats.CreateChat))
	g.On("updateChat", bind(chats.UpdateChat))
	g.On("deleteChat", bind(chats.DeleteChat))
	g.On("getChatMembers", bind(chats.GetChatMembers))
	g.On("getChatDetails", bind(chats.GetChatDetails))
	g.On("addMemberToChat", bind(chats.AddMember))
	g.On("makeAdmin", bind(chats.MakeAdmin))
	g.On("dismissAdmin", bind(chats.DismissAdmin))
	g.On("removeMemberFromChat", bind(chats.RemoveMember))
	g.On("leaveChat", bind(chats.LeaveChat))
	g.On("joinChat", bind(chats.JoinChat))
	g.On("toggleBlock", bind(chats.ToggleBlock))

	g.On("sendMessage", bind(messages.SendMessage))
	g.On("directMessage", bind(messages.DirectMessage))
	g.On("getMessages", bind(messages.GetMessages))
	g.On("deleteMessage", bind(messages.DeleteMessage))
	g.On("messageReceived", bind(messages.MessageReceived))
	g.On("messageRead", bind(messages.MessageRead))

	g.On("getUserConversations", bind(feeds.GetUserConversations))
	g.On("getCommunityMessagesAndFeeds", bind(feeds.GetCommunityMessagesAndFeeds))
}
