// Package main 是服务端的入口点。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dentgo-go/internal/config"
	"dentgo-go/internal/handler"
	"dentgo-go/internal/pipeline"
	"dentgo-go/internal/repository"
	"dentgo-go/internal/service"
	"dentgo-go/pkg/database"
	"dentgo-go/pkg/es"
	"dentgo-go/pkg/kafka"
	"dentgo-go/pkg/llm"
	"dentgo-go/pkg/log"
	"dentgo-go/pkg/oidc"
	"dentgo-go/pkg/payments"
	"dentgo-go/pkg/storage"
	"dentgo-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	configPath := os.Getenv("DENTGO_CONFIG")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}
	config.Init(configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis 与外部服务
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	chatRepo := repository.NewChatRepository(database.DB)
	cardRepo := repository.NewCardRepository(database.DB)
	notificationRepo := repository.NewNotificationRepository(database.DB)
	xrayRepo := repository.NewXRayRepository(database.DB)
	usageRepo := repository.NewUsageRepository(database.RDB)
	blacklist := repository.NewTokenBlacklist(database.RDB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	sessionIndex := es.NewSessionIndex(es.ESClient, cfg.Elasticsearch.IndexName)
	gateway := payments.NewStripeGateway(cfg.Stripe.SecretKey, nil)
	llmClient := llm.NewClient(cfg.LLM)

	services := handler.Services{
		Auth: service.NewAuthService(userRepo, blacklist, jwtManager, service.AuthOptions{
			Google:           oidc.Google(cfg.Auth.GoogleClientID),
			Apple:            oidc.Apple(cfg.Auth.AppleClientID),
			AppleClientID:    cfg.Auth.AppleClientID,
			AppleRedirectURL: cfg.Auth.AppleRedirectURL,
			Gateway:          gateway,
			Searcher:         sessionIndex,
		}),
		Chat: service.NewChatService(llmClient, chatRepo, usageRepo, service.ChatOptions{
			SystemPrompt:       cfg.LLM.SystemPrompt,
			HistoryLimit:       cfg.LLM.HistoryLimit,
			FreeMessagesPerDay: cfg.Plan.FreeMessagesPerDay,
		}),
		Session: service.NewSessionService(chatRepo, kafka.Producer{}, sessionIndex),
		Payment: service.NewPaymentService(gateway, userRepo, cardRepo, service.PaymentOptions{
			DefaultPriceID:  cfg.Stripe.PriceID,
			PortalReturnURL: cfg.Stripe.PortalReturnURL,
		}),
		Notification: service.NewNotificationService(notificationRepo),
		XRay:         service.NewXRayService(storage.BucketStore{Bucket: cfg.MinIO.BucketName}, xrayRepo),
		Admin:        service.NewAdminService(userRepo, notificationRepo),
	}

	// 6. 启动后台 Kafka 消费者
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	indexer := pipeline.NewSessionIndexer(chatRepo, sessionIndex)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		kafka.StartConsumer(consumerCtx, cfg.Kafka, indexer, kafka.RedisAttemptTracker{RDB: database.RDB})
	}()

	// 7. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(services, handler.RouterOptions{
		Cookies:        handler.CookieOptionsFromConfig(cfg.Auth, jwtManager),
		FrontendURL:    cfg.Server.FrontendURL,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	stopConsumer()
	select {
	case <-consumerDone:
	case <-ctx.Done():
		log.Warnf("Kafka 消费者未能在超时前退出")
	}
	log.Info("服务已优雅关闭")
}
