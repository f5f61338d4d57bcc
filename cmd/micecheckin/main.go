package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"

	"micecheckin/internal/config"
	"micecheckin/internal/logger"
	"micecheckin/internal/mongo"
	"micecheckin/internal/mysql"
	"micecheckin/internal/redis"
	"micecheckin/internal/routing"
	"micecheckin/pkg/audit"
	"micecheckin/pkg/cache"
	"micecheckin/pkg/checkin"
	"micecheckin/pkg/handlers"
	"micecheckin/pkg/login"
	"micecheckin/pkg/middleware"
)

func main() {
	cfg := config.Load() // load env var from .env

	logger := logger.Load(cfg.Production)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	db := mysql.LoadDB(cfg.MySQLDSN)
	defer db.Close()

	var tokens checkin.TokenStore
	switch cfg.CacheBackend {
	case config.CacheRedis:
		client, err := redis.New(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return fmt.Errorf("cannot connect to Redis: %w", err)
		}
		defer client.Close()
		tokens = checkin.NewRedisTokenStore(client, "")
	default:
		qrCache := cache.New[int64](cache.WithSweepInterval(cfg.CacheSweepInterval))
		defer qrCache.Close()
		tokens = checkin.NewMemoryTokenStore(qrCache)
	}

	sinks := audit.Multi{audit.NewLogSink(logger)}
	var reader handlers.AuditReader
	if cfg.MongoURI != "" {
		client, mongoDB := mongo.LoadDB(cfg.MongoURI, cfg.MongoDBName)
		defer func() { _ = client.Disconnect(context.Background()) }()

		mongoSink := audit.NewMongoSink(mongoDB, cfg.DBTimeout)
		sinks = append(sinks, mongoSink)
		reader = mongoSink
	}

	sessions := login.NewMySQLRepo(db)

	r := mux.NewRouter()
	r.Use(middleware.RequestID(logger))
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Panic(logger))
	api.Use(middleware.CheckJWT(cfg.JWTSecret, sessions, logger))

	cleanup := routing.InitRoutes(api, routing.Deps{
		Config:  cfg,
		DB:      db,
		Tokens:  tokens,
		Audit:   sinks,
		Reader:  reader,
		Logger:  logger,
		Session: sessions,
	})
	defer cleanup()
	routing.ServeFallback(r, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return routing.StartServer(ctx, r, cfg.Port, logger)
}
