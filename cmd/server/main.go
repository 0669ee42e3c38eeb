package main // Entry point package

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/dormguard/patrol-service/internal/client"
	"github.com/dormguard/patrol-service/internal/config"
	"github.com/dormguard/patrol-service/internal/database"
	"github.com/dormguard/patrol-service/internal/handler"
	"github.com/dormguard/patrol-service/internal/logger"
	"github.com/dormguard/patrol-service/internal/middleware"
	"github.com/dormguard/patrol-service/internal/queue"
	"github.com/dormguard/patrol-service/internal/repository"
	"github.com/dormguard/patrol-service/internal/router"
	"github.com/dormguard/patrol-service/internal/service"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		log.Fatal("schema migration failed", zap.Error(err))
	}

	// Redis is optional: without it the API still works, just without
	// the read cache and the distributed rate limiter.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable, cache and rate limiting disabled")
	}

	// External collaborators.  An empty base URL selects the in-process
	// stub so the service runs standalone in dev.
	var roster service.IdentityRoster = client.IdentityStub{}
	if cfg.IdentityBaseURL != "" {
		roster = client.NewIdentityClient(cfg.IdentityBaseURL, cfg.ServiceToken, cfg.ExternalTimeout, log)
	}
	var leaves service.LeaveLedger = client.LeaveStub{}
	if cfg.LeaveBaseURL != "" {
		leaves = client.NewLeaveClient(cfg.LeaveBaseURL, cfg.ServiceToken, cfg.ExternalTimeout, log)
	}

	patrolRepo := repository.NewPatrolRepo(db)
	entryRepo := repository.NewPatrolEntryRepo(db)
	publisher := queue.NewPublisher(cfg.AMQPURL, log)

	svc := service.NewPatrolService(patrolRepo, entryRepo, roster, leaves, publisher, cfg.ExternalTimeout, log)

	cacheCfg := config.LoadCacheConfig()
	patrolHandler := handler.NewPatrolHandler(svc, rdb, cacheCfg.Prefix)
	healthHandler := handler.NewHealthHandler(db)

	// Consumer mirrors completed patrols into the audit log.  It keeps
	// reconnecting on its own; a dead broker never blocks the API.
	go func() {
		if err := queue.StartPatrolConsumer(cfg.AMQPURL, log); err != nil {
			log.Warn("patrol consumer stopped", zap.Error(err))
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())

	router.RegisterHealth(e, healthHandler)
	router.RegisterPatrols(e, patrolHandler, cfg.JWTSecret, rdb)

	addr := ":" + cfg.Port
	log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
