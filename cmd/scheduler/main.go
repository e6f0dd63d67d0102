// Package main runs the due-call scheduler: a periodic scan that dials every
// scheduled call whose time has come. Pass -once to run a single pass (for an
// external cron trigger) instead of the built-in ticker loop.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/callvox/backend/config"
	"github.com/callvox/backend/internal/calls"
	"github.com/callvox/backend/internal/scheduler"
	"github.com/callvox/backend/internal/telephony"
	"github.com/callvox/backend/pkg/database"
	"github.com/callvox/backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single pass and exit")
	flag.Parse()

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

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	callRepo := calls.NewRepository(pool)
	dialer := telephony.NewClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, logger)
	sched := scheduler.New(
		callRepo,
		dialer,
		rdb.Client,
		cfg.Server.BaseURL,
		cfg.Twilio.FromNumber,
		time.Duration(cfg.Scheduler.IntervalSec)*time.Second,
		time.Duration(cfg.Scheduler.LockTTLSec)*time.Second,
		logger,
	)

	if *once {
		dialed, err := sched.RunOnce(ctx, time.Now())
		if err != nil {
			logger.Fatal("scheduler pass", zap.Error(err))
		}
		logger.Info("scheduler pass finished", zap.Int("dialed", dialed))
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go sched.Run(runCtx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("scheduler stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
