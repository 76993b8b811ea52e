package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-client/internal/api"
	"chat-client/internal/chat"
	"chat-client/internal/config"
	"chat-client/internal/db"
	"chat-client/internal/handlers"
	"chat-client/internal/middleware"
	"chat-client/internal/observability"
	"chat-client/internal/rabbitmq"
	"chat-client/internal/repositories"
	"chat-client/internal/store"
	"chat-client/internal/telemetry"
	"chat-client/internal/ws"
)

const serviceName = "chat-client"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.OTLPEndpoint, serviceName, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	if !rabbitmq.IsLive(publisher) {
		log.Printf("events and notices are logged only")
	}

	notices := telemetry.NewNoticeEmitter(publisher, "notices.chat", serviceName, cfg.Environment, 50)

	var cache repositories.CacheRepository
	if cfg.CacheDriver != "" {
		database, err := db.Connect(cfg.CacheDriver, cfg.CacheDSN)
		if err != nil {
			log.Printf("offline cache disabled: %v", err)
		} else {
			defer database.Close()
			cache = repositories.NewCacheRepo(database)
		}
	}

	client := api.NewClient(cfg.APIURL, cfg.Token, cfg.HTTPTimeout)
	var identity api.IdentityProvider = client
	if cfg.IdentitySource == config.IdentityToken {
		identity = api.NewTokenIdentity(cfg.Token, cfg.IdentityClaim)
	}

	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}
	manager := ws.NewManager(ws.Options{
		URL:            cfg.WSURL,
		Header:         header,
		ReconnectDelay: cfg.ReconnectDelay,
		OnStateChange: func(state ws.State) {
			log.Printf("chat socket state=%s", state)
		},
	})

	svc := chat.NewService(store.New(), client, manager, identity, cache, notices)
	if err := svc.Start(ctx); err != nil {
		log.Printf("chat service idle: %v", err)
	}
	defer svc.Stop()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(handlers.RequestIDMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := router.Group("/", middleware.AuthMiddleware(cfg.LocalToken))
	chatHandler := handlers.NewChatHandler(svc, notices)
	chatHandler.RegisterRoutes(authed)
	authed.POST("/identity/switch", func(c *gin.Context) {
		if err := svc.SwitchIdentity(c.Request.Context()); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, svc.Status())
	})
	handlers.RegisterDebugRoutes(authed, notices, svc.LocalID, cfg.DebugRoutes)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()
	log.Printf("local chat api listening port=%s", cfg.Port)

	<-ctx.Done()
	log.Printf("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}
