package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chatapi "campus-taskhub/backend/chat/api"
	chatmodels "campus-taskhub/backend/chat/models"
	chatrepo "campus-taskhub/backend/chat/repository"
	chatsvc "campus-taskhub/backend/chat/service"
	"campus-taskhub/backend/chat/ws"
	"campus-taskhub/backend/pkg/config"
	apperrors "campus-taskhub/backend/pkg/errors"
	"campus-taskhub/backend/pkg/health"
	"campus-taskhub/backend/pkg/jwt"
	"campus-taskhub/backend/pkg/logger"
	"campus-taskhub/backend/pkg/metrics"
	"campus-taskhub/backend/pkg/middleware"
	"campus-taskhub/backend/shared/redis"
	taskapi "campus-taskhub/backend/task/api"
	taskmodels "campus-taskhub/backend/task/models"
	taskrepo "campus-taskhub/backend/task/repository"
	tasksvc "campus-taskhub/backend/task/service"
	userapi "campus-taskhub/backend/user/api"
	usermodels "campus-taskhub/backend/user/models"
	userrepo "campus-taskhub/backend/user/repository"
	usersvc "campus-taskhub/backend/user/service"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

func main() {
	cfg := config.New()

	appLogger := logger.New(logger.Config{
		Level: cfg.Logging.Level,
		JSON:  cfg.Logging.Format == "json",
	})
	logger.SetGlobal(appLogger)

	db, err := config.NewDB()
	if err != nil {
		log.Fatalf("failed to setup database: %v", err)
	}
	if err := migrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	redisClient := redis.NewClient()

	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry)

	// Services
	userService := usersvc.NewUserService(userrepo.NewGormUserRepository(db), redisClient, jwtService)
	taskService := tasksvc.NewTaskService(taskrepo.NewGormTaskRepository(db), cfg.Chat.LookupCacheTTL)

	hub := ws.NewHub(appLogger)
	go hub.Run()

	chatService := chatsvc.NewChatService(
		chatrepo.NewGormMessageRepository(db),
		chatsvc.NewTaskDirectoryAdapter(taskService),
		chatsvc.NewUserDirectoryAdapter(userService),
		hub,
		appLogger,
		chatsvc.Options{
			DefaultPageSize: cfg.Chat.DefaultPageSize,
			MaxPageSize:     cfg.Chat.MaxPageSize,
			MaxContentSize:  cfg.Chat.MaxContentSize,
		},
	)

	// Router
	if cfg.Server.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	rateLimiter := middleware.NewRateLimiter(appLogger, middleware.RateLimiterOptions{
		Limit:          rate.Limit(cfg.Security.RateLimit),
		Burst:          cfg.Security.RateLimitBurst,
		ExpiryDuration: time.Hour,
		KeyFunc:        func(c *gin.Context) string { return c.ClientIP() },
	})

	router.Use(middleware.RequestID())
	router.Use(logger.Middleware(appLogger))
	router.Use(apperrors.RecoveryWithLogger())
	router.Use(apperrors.ErrorHandler())
	router.Use(metrics.Middleware())
	router.Use(rateLimiter.Middleware())

	// Handlers
	userapi.NewUserHandler(userService, jwtService).RegisterRoutes(router)
	taskapi.NewTaskHandler(taskService, jwtService).RegisterRoutes(router)
	chatapi.NewChatHandler(chatService, jwtService).RegisterRoutes(router)

	router.GET("/ws", func(c *gin.Context) {
		ws.ServeWs(hub, jwtService, c)
	})

	router.GET("/metrics", metrics.Handler())

	// Health checks
	checker := health.NewChecker(appLogger, 30*time.Second)
	checker.RegisterDatabaseCheck(func() error { return config.TestConnection(db) })
	checker.RegisterRedisCheck(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return redisClient.Ping(ctx)
	})
	checker.Start()
	router.GET("/health", gin.WrapF(checker.HTTPHandler()))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	go func() {
		appLogger.Info("server listening", "port", cfg.Server.Port, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("forced shutdown", "error", err.Error())
	}
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&usermodels.User{},
		&taskmodels.Task{},
		&taskmodels.Application{},
		&chatmodels.Message{},
	)
}
