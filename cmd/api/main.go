package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/contacthub/contacthub/internal/activity"
	"github.com/contacthub/contacthub/internal/config"
	"github.com/contacthub/contacthub/internal/files"
	"github.com/contacthub/contacthub/internal/infra"
	"github.com/contacthub/contacthub/internal/logging"
	"github.com/contacthub/contacthub/internal/routes"
	"github.com/contacthub/contacthub/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		if err := infra.Migrate(ctx, cfg.DatabaseURL); err != nil {
			logger.Error("migrate postgres", "error", err)
			os.Exit(1)
		}
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	var (
		broker *amqp.Connection
		sinks  []activity.Sink
	)
	if cfg.AMQPURL != "" {
		broker, err = infra.NewAMQPConnection(cfg.AMQPURL)
		if err != nil {
			logger.Error("connect amqp", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := broker.Close(); err != nil {
				logger.Warn("close amqp", "error", err)
			}
		}()

		publisher, err := activity.NewAMQPPublisher(broker)
		if err != nil {
			logger.Error("open activity publisher", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("close activity publisher", "error", err)
			}
		}()
		sinks = append(sinks, publisher)
	}

	var photos files.Store
	if cfg.StorageBackend == config.StorageS3 {
		photos, err = files.NewS3Store(ctx, files.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PublicURL: cfg.S3.PublicURL,
		})
		if err != nil {
			logger.Error("configure s3", "error", err)
			os.Exit(1)
		}
	}

	srv, err := server.New(routes.Deps{
		Cfg:           cfg,
		DB:            db,
		Cache:         cache,
		AMQP:          broker,
		ActivitySinks: sinks,
		Photos:        photos,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
