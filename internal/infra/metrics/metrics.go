package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	RankingDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pulsepoint_ranking_duration_seconds",
		Help:    "Время ранжирования и отбора опросов",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"operation"})

	RankingCandidates = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pulsepoint_ranking_candidates",
		Help:    "Размер пула кандидатов для ранжирования",
		Buckets: []float64{0, 5, 10, 25, 50, 80, 100, 200, 300, 500},
	}, []string{"operation"})

	FailOpenTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pulsepoint_fail_open_total",
		Help: "Операции, вернувшие пустой результат из-за ошибки хранилища",
	}, []string{"operation"})

	TrendingPolls = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pulsepoint_trending_polls",
		Help: "Количество трендовых опросов при последнем расчёте ленты",
	})

	PollEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pulsepoint_poll_events_total",
		Help: "Аналитические события по типу и результату",
	}, []string{"type", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pulsepoint_http_request_duration_seconds",
		Help:    "Длительность обработки HTTP запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30, 60},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Длительность генерации ответа LLM",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Количество токенов, использованных LLM",
	}, []string{"model", "type"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		RankingDuration,
		RankingCandidates,
		FailOpenTotal,
		TrendingPolls,
		PollEventsTotal,
		HTTPRequestDuration,
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveLLMGeneration записывает длительность и токены генерации LLM.
func ObserveLLMGeneration(model string, duration time.Duration, promptTokens, completionTokens, totalTokens int) {
	if model == "" {
		model = "unknown"
	}
	LLMGenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	if totalTokens <= 0 {
		totalTokens = promptTokens + completionTokens
	}
	if totalTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "total").Add(float64(totalTokens))
	}
}

// ObserveRanking записывает длительность ранжирования и размер пула кандидатов.
func ObserveRanking(operation string, start time.Time, candidates int) {
	RankingDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	RankingCandidates.WithLabelValues(operation).Observe(float64(candidates))
}

// IncFailOpen учитывает операцию, отдавшую пустой результат вместо ошибки.
func IncFailOpen(operation string) {
	FailOpenTotal.WithLabelValues(operation).Inc()
}

// IncPollEvent учитывает аналитическое событие.
func IncPollEvent(eventType, status string) {
	PollEventsTotal.WithLabelValues(eventType, status).Inc()
}
