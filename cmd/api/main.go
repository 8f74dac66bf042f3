package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"pulsepoint/internal/adapters/api"
	"pulsepoint/internal/adapters/assist"
	"pulsepoint/internal/adapters/moderation"
	"pulsepoint/internal/adapters/ranker"
	"pulsepoint/internal/adapters/repo"
	"pulsepoint/internal/domain"
	"pulsepoint/internal/infra/cache"
	"pulsepoint/internal/infra/config"
	"pulsepoint/internal/infra/db"
	httpinfra "pulsepoint/internal/infra/http"
	applog "pulsepoint/internal/infra/log"
	"pulsepoint/internal/infra/metrics"
	"pulsepoint/internal/infra/openai"
	"pulsepoint/internal/infra/queue"
	"pulsepoint/internal/usecase/events"
	"pulsepoint/internal/usecase/polls"
	"pulsepoint/internal/usecase/submissions"
)

func pollsConfig(r config.RankingConfig) polls.Config {
	return polls.Config{
		Duplicates: ranker.DuplicateParams{
			TitleWeight:   r.DuplicateTitleWeight,
			MinScore:      r.DuplicateMinScore,
			MinTitleScore: r.DuplicateMinTitleScore,
		},
		Trending: ranker.TrendingParams{
			Percentile:    r.TrendingPercentile,
			MinVotes:      r.TrendingMinVotes,
			FallbackCount: r.TrendingFallbackCount,
		},
		DuplicateLimit:     r.DuplicateLimit,
		DuplicatePoolSize:  r.DuplicatePoolSize,
		SimilarLimit:       r.SimilarLimit,
		SimilarPoolSize:    r.SimilarPoolSize,
		SuggestionLimit:    r.SuggestionLimit,
		SuggestionPoolSize: r.SuggestionPoolSize,
		FeedPoolSize:       r.FeedPoolSize,
		SavedLimit:         r.SavedLimit,
	}
}

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.PGDSN == "" {
		logger.Fatal().Msg("api: не указан PG_DSN")
	}
	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	var (
		impressions domain.Cache = cache.NewMemory(cfg.Analytics.MemoryCacheSize)
		redisClient *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient, err = cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: нет подключения к Redis")
		}
		defer redisClient.Close()
		impressions = cache.NewRedis(redisClient, "pulsepoint")
	} else {
		logger.Warn().Msg("api: REDIS_ADDR не задан, показы схлопываются в памяти процесса")
	}
	eventQueue, closeQueue, err := queue.Open(cfg.Queues.Driver, redisClient, cfg.Queues.AMQPURL, cfg.Queues.PollEvents)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось открыть очередь событий")
	}
	defer func() { _ = closeQueue() }()

	heuristicAssist := assist.NewHeuristic(assist.NewEntityCorrector())
	var (
		classifier domain.Classifier = moderation.NewHeuristic()
		rewriter   domain.Rewriter   = heuristicAssist
	)
	aiClient := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
	if aiClient.Enabled() {
		classifier = moderation.NewOpenAI(aiClient, "", cfg.OpenAI.Timeout, applog.Component(logger, "moderation"))
		rewriter = assist.NewOpenAI(aiClient, cfg.OpenAI.Model, cfg.OpenAI.Timeout, heuristicAssist, logger)
	} else {
		logger.Info().Msg("api: OPENAI_API_KEY не задан, модерация и подсказки работают на эвристиках")
	}

	pollService := polls.NewService(repoAdapter, repoAdapter, repoAdapter, pollsConfig(cfg.Ranking), logger)
	submissionService := submissions.NewService(classifier, pollService, logger)
	tracker := events.NewTracker(eventQueue, impressions, cfg.Analytics.ImpressionTTL, logger)

	server := httpinfra.NewServer(applog.Component(logger, "http"))
	api.NewHandler(pollService, submissionService, rewriter, tracker, logger).Mount(server.Router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(fmt.Sprintf(":%d", cfg.Port))
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
		}
	}
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: корректная остановка не удалась")
	}
}
