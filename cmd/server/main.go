// Package main runs the call survey HTTP server: auth and scheduling API plus
// the voice questionnaire webhook.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/callvox/backend/config"
	"github.com/callvox/backend/internal/auth"
	"github.com/callvox/backend/internal/calls"
	"github.com/callvox/backend/internal/mailer"
	"github.com/callvox/backend/internal/middleware"
	"github.com/callvox/backend/internal/questions"
	"github.com/callvox/backend/internal/responses"
	"github.com/callvox/backend/internal/telephony"
	"github.com/callvox/backend/internal/voice"
	"github.com/callvox/backend/pkg/database"
	"github.com/callvox/backend/pkg/redis"
	"github.com/callvox/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		logger.Warn("unknown schedule timezone, using UTC", zap.String("timezone", cfg.Scheduler.Timezone))
		loc = time.UTC
	}

	var resetMailer auth.Mailer
	if m, err := mailer.New(cfg.Email); err != nil {
		logger.Warn("mailer disabled", zap.Error(err))
	} else {
		resetMailer = m
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	dialer := telephony.NewClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, logger)

	// Auth and user management
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, rdb.Client, resetMailer, cfg.Server.ResetURL, logger)

	// Scheduled calls
	callRepo := calls.NewRepository(pool)
	callHandler := calls.NewHandler(callRepo, dialer, loc, cfg.Server.BaseURL, cfg.Twilio.FromNumber, logger)

	// Questionnaire
	questionRepo := questions.NewRepository(pool)
	questionHandler := questions.NewHandler(questionRepo, logger)

	// Collected answers
	responseRepo := responses.NewRepository(pool)
	responseHandler := responses.NewHandler(responseRepo, logger)

	// Voice webhook
	voiceHandler := voice.NewHandler(questionRepo, responseRepo, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Telephony webhook (no JWT; the provider posts form-encoded callbacks here)
	router.POST(voice.AskPath, voiceHandler.Ask)

	api := router.Group("/api")
	{
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)
		api.POST("/forgot-password", authHandler.ForgotPassword)
		api.POST("/reset-password", authHandler.ResetPassword)
	}

	// Protected API (JWT required)
	protected := api.Group("")
	protected.Use(middleware.JWT(jwtService))
	{
		protected.GET("/profile", authHandler.Profile)

		protected.POST("/schedule-call", callHandler.Schedule)
		protected.GET("/scheduled-calls", callHandler.List)
		protected.POST("/direct-call", callHandler.DirectCall)

		protected.GET("/questions", questionHandler.Get)
		protected.POST("/questions", questionHandler.Replace)

		// Admin
		protected.GET("/users", middleware.RequireRole("admin"), authHandler.List)
		protected.PUT("/users/:id", middleware.RequireRole("admin"), authHandler.Update)
		protected.DELETE("/users/:id", middleware.RequireRole("admin"), authHandler.Delete)
		protected.GET("/responses", middleware.RequireRole("admin"), responseHandler.List)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
