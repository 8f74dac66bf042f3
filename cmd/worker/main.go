package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"pulsepoint/internal/adapters/repo"
	"pulsepoint/internal/infra/cache"
	"pulsepoint/internal/infra/config"
	"pulsepoint/internal/infra/db"
	applog "pulsepoint/internal/infra/log"
	"pulsepoint/internal/infra/metrics"
	"pulsepoint/internal/infra/queue"
	"pulsepoint/internal/usecase/events"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)

	if cfg.PGDSN == "" {
		logger.Fatal().Msg("worker: не указан PG_DSN")
	}
	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: нет подключения к БД")
	}
	defer pool.Close()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: нет подключения к Redis")
		}
		defer redisClient.Close()
	}
	eventQueue, closeQueue, err := queue.Open(cfg.Queues.Driver, redisClient, cfg.Queues.AMQPURL, cfg.Queues.PollEvents)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: не удалось открыть очередь событий")
	}
	defer func() { _ = closeQueue() }()

	consumer := events.NewConsumer(eventQueue, repo.NewPostgres(pool), logger)
	logger.Info().Str("driver", cfg.Queues.Driver).Str("queue", cfg.Queues.PollEvents).Msg("worker: старт")
	if err := consumer.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("worker: обработчик остановлен с ошибкой")
	}
	logger.Info().Msg("worker: остановка")
}
