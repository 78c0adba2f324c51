package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realtime_messaging_service/internal/messaging/app"
	"realtime_messaging_service/internal/messaging/domain"
	"realtime_messaging_service/internal/messaging/repository"
	"realtime_messaging_service/internal/messaging/router"
	"realtime_messaging_service/pkg/config"
	"realtime_messaging_service/pkg/database"
	"realtime_messaging_service/pkg/encrypt"
	"realtime_messaging_service/pkg/logger"
	testtool "realtime_messaging_service/pkg/test_tool"
	"realtime_messaging_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

const presenceCacheTTL = 10 * time.Minute

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.MessagingService, config.EnvConfig.MessagingLogPath)
	defer logger.Log.Sync()

	cfg, err := config.LoadConfig[config.Messaging](config.EnvConfig.MessagingService, config.EnvConfig.MessagingYAML)
	if err != nil {
		logger.Log.Fatal("load config", zap.Error(err))
	}
	token.SetSecret(cfg.Auth.JWTSecret, cfg.Auth.Expiration)

	// 1. Mongo (訊息 / 群組 / 通知 / 在線狀態 / 裝置)
	ctx := context.Background()
	uri := database.MongoURI(cfg.MongoSQL.Host, cfg.MongoSQL.Port, cfg.MongoSQL.User, cfg.MongoSQL.Password)
	mongo, err := database.NewMongoDB(ctx,
		database.Connection{
			ConnectStr:    uri,
			RetryCount:    cfg.MongoSQL.RetryCount,
			RetryInterval: time.Duration(cfg.MongoSQL.RetryInterval) * time.Second,
		},
		cfg.MongoSQL.Database)
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to mongoDB database after retries",
			zap.String("host", cfg.MongoSQL.Host),
			zap.Error(err),
		)
	}
	defer mongo.Close(ctx)

	if err := mongo.EnsureIndexes(ctx); err != nil {
		logger.Log.Fatal("ensure mongo indexes", zap.Error(err))
	}

	// 2. Redis (Pub/Sub + presence cache)
	masterName, sentinel := config.GetRedisSetting()
	redisClient, err := database.NewRedisClient(database.RedisConnection{
		Addr:          cfg.Redis.Addr,
		MasterName:    masterName,
		SentinelAddrs: sentinel,
		DB:            cfg.Redis.RedisDB,
	})
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}
	defer redisClient.Close()

	// 3. MinIO (附件)
	var attachments repository.AttachmentStorage
	minioClient, err := database.NewMinIOConnection(ctx, database.MinIOConnection{
		Endpoint:      cfg.MinIO.Endpoint,
		User:          cfg.MinIO.User,
		Password:      cfg.MinIO.Password,
		BucketName:    cfg.MinIO.Bucket,
		UseSSL:        cfg.MinIO.UseSSL,
		RetryCount:    cfg.MinIO.RetryCount,
		RetryInterval: time.Duration(cfg.MinIO.RetryInterval) * time.Second,
	})
	if err != nil {
		logger.Log.Warn("attachments disabled, minIO unavailable", zap.Error(err))
	} else {
		attachments = minioClient
	}

	// 4. 訊息加密金鑰, 沒有金鑰時送訊息會回 ErrKeyUnavailable, 舊的密文顯示為無法解密
	var key []byte
	if cfg.Encryption.Secret != "" {
		key, err = encrypt.DeriveKey(cfg.Encryption.Secret, cfg.Encryption.Salt)
		if err != nil {
			logger.Log.Fatal("derive message key", zap.Error(err))
		}
	} else {
		logger.Log.Warn("message encryption secret is empty, sending messages will fail")
	}
	cipher, err := encrypt.NewEnvelopeCipher(key)
	if err != nil {
		logger.Log.Fatal("init message cipher", zap.Error(err))
	}

	// 5. 初始化 Repository
	pubsub := repository.NewRedisPubSub(redisClient)
	feed := repository.NewChangeFeed(pubsub)
	msgRepo := repository.NewMongoMessageRepository(mongo.Database, feed)
	groupRepo := repository.NewMongoGroupRepository(mongo.Database, feed)
	notificationRepo := repository.NewMongoNotificationRepository(mongo.Database, feed)
	deviceRepo := repository.NewMongoDeviceRepository(mongo.Database)
	presenceRepo := repository.NewCachedPresenceRepository(
		repository.NewMongoPresenceRepository(mongo.Database, feed),
		database.NewRedisRepository[domain.PresenceStatus](redisClient, repository.PresenceCacheKeyPrefix()),
		presenceCacheTTL,
	)

	// 6. push
	var pusher app.Pusher = app.LogPusher{}
	if cfg.Firebase.Enabled {
		fcm, err := app.NewFCMClient(ctx, cfg.Firebase)
		if err != nil {
			logger.Log.Fatal("init firebase", zap.Error(err))
		}
		pusher = app.NewFCMPusher(fcm, deviceRepo)
	}

	// 7. 每條 websocket 連線一個 Service
	serviceCfg := app.ServiceConfig{
		Channel: app.ChannelManagerConfig{
			BaseDelay:   cfg.Realtime.ReconnectBaseDelay,
			MaxAttempts: cfg.Realtime.MaxReconnectAttempts,
		},
		TypingTTL:     cfg.Realtime.TypingTTL,
		PresignExpiry: cfg.MinIO.PresignExpiry,
	}
	newService := func() *app.Service {
		return app.NewService(app.Deps{
			PubSub:        pubsub,
			Messages:      msgRepo,
			Groups:        groupRepo,
			Notifications: notificationRepo,
			Presence:      presenceRepo,
			Devices:       deviceRepo,
			Attachments:   attachments,
			Cipher:        cipher,
			Pusher:        pusher,
			Config:        serviceCfg,
		})
	}

	var attachmentHandler *app.AttachmentHandler
	if attachments != nil {
		attachmentHandler = app.NewAttachmentHandler(app.NewAttachmentUseCase(attachments, cfg.MinIO.PresignExpiry))
	}

	testtool.StartPprof("127.0.0.1:6060")

	// 8. 啟動 Fiber
	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.MessagingLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	router.RegisterRoutes(r, app.NewMessagingWebsocketHandler(newService, 0), attachmentHandler)

	go func() {
		port := ":" + cfg.Port
		logger.Log.Info("Messaging Service listening", zap.String("port", port))
		if err := r.Listen(port); err != nil {
			logger.Log.Fatal("Failed to start Fiber", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("shutting down messaging service")
	if err := r.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Log.Errorf("fiber shutdown", err)
	}
}
