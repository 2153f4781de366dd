package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/thereayou/studdy-space/internal/assistant"
	"github.com/thereayou/studdy-space/internal/database"
	"github.com/thereayou/studdy-space/internal/handlers"
	"github.com/thereayou/studdy-space/internal/kvstore"
	"github.com/thereayou/studdy-space/internal/realtime"
	"github.com/thereayou/studdy-space/internal/state"
	"github.com/thereayou/studdy-space/internal/storage"
	"github.com/thereayou/studdy-space/internal/websocket"
	"github.com/thereayou/studdy-space/pkg/auth"
)

type Server struct {
	Router  *gin.Engine
	DB      *database.Database
	Redis   *redis.Client
	Bus     realtime.Bus
	Hub     *websocket.Hub
	Manager *state.Manager
}

func NewServer() *Server {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			logrus.Info(".env not found, using environment variables")
		}
	}

	dbConn := &database.Database{}
	if err := dbConn.Connect(); err != nil {
		logrus.Fatalf("Postgres connect failed: %v", err)
	}

	redisOpts, err := redis.ParseURL(os.Getenv("REDIS_URL"))
	if err != nil {
		logrus.Fatalf("invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logrus.Fatalf("Redis connect failed: %v", err)
	}

	jwtMgr := auth.NewJWTManager(
		os.Getenv("JWT_SECRET"),
		24*time.Hour,
	)

	// Шина изменений: внутрипроцессная для одного сервера,
	// Redis pub/sub для нескольких
	var bus realtime.Bus
	if os.Getenv("SYNC_BUS") == "redis" {
		bus = realtime.NewRedisBus(rdb, "")
	} else {
		bus = realtime.NewLocalBus()
	}

	// Хранилище комнат: документное в Postgres либо вся коллекция
	// под одним ключом Redis
	var store storage.RoomStore
	var history handlers.MessageHistory
	if os.Getenv("ROOM_STORE") == "kv" {
		kv := kvstore.New(rdb, "")
		store, history = kv, kv
	} else {
		store, history = dbConn, dbConn
	}

	manager := state.NewManager(store, bus)

	hub := websocket.NewHub()
	hub.OnRoomOpen = func(roomID uuid.UUID) error {
		if _, err := manager.Open(context.Background(), roomID); err != nil {
			logrus.WithError(err).WithField("room_id", roomID).Error("failed to open room session")
			return err
		}
		return nil
	}
	hub.OnRoomClose = manager.Release
	bus.Subscribe(hub.BroadcastEvent)

	ai := assistant.New(assistant.NewHTTPGenerator(
		os.Getenv("ASSISTANT_URL"),
		os.Getenv("ASSISTANT_API_KEY"),
	))

	authH := handlers.NewAuthHandler(dbConn, jwtMgr, rdb)
	userH := handlers.NewUserHandler(dbConn)
	roomH := handlers.NewRoomHandler(store, bus, hub)
	msgH := handlers.NewMessageHandler(store, history)
	syncH := handlers.NewSyncHandler(dbConn, manager, bus, ai)
	wsH := handlers.NewWebSocketHandler(hub, syncH)

	router := gin.Default()
	APIEndpoints(router, jwtMgr, rdb, authH, userH, roomH, msgH, wsH)

	go hub.Run()

	return &Server{
		Router:  router,
		DB:      dbConn,
		Redis:   rdb,
		Bus:     bus,
		Hub:     hub,
		Manager: manager,
	}
}

func (s *Server) Run() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	logrus.Infof("Server starting on port %s", port)
	if err := s.Router.Run(":" + port); err != nil {
		logrus.Fatalf("Server run error: %v", err)
	}
}
