package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port != 8080 || cfg.Queues.Driver != "redis" || cfg.Queues.PollEvents != "poll_events" {
		t.Fatalf("неожиданные значения по умолчанию: %+v", cfg)
	}
	r := cfg.Ranking
	if r.DuplicateTitleWeight != 0.75 || r.DuplicateMinScore != 0.18 || r.DuplicateMinTitleScore != 0.25 {
		t.Fatalf("неожиданные пороги дубликатов: %+v", r)
	}
	if r.TrendingPercentile != 0.2 || r.TrendingMinVotes != 10 || r.TrendingFallbackCount != 5 {
		t.Fatalf("неожиданные параметры трендов: %+v", r)
	}
	if cfg.Analytics.ImpressionTTL != 30*time.Minute || cfg.OpenAI.Timeout != 15*time.Second {
		t.Fatalf("неожиданные таймауты: %+v %+v", cfg.Analytics, cfg.OpenAI)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("QUEUE_DRIVER", "rabbitmq")
	t.Setenv("TRENDING_MIN_VOTES", "3")
	t.Setenv("DUPLICATE_MIN_SCORE", "0.4")
	cfg := Load()
	if cfg.Queues.Driver != "rabbitmq" || cfg.Ranking.TrendingMinVotes != 3 || cfg.Ranking.DuplicateMinScore != 0.4 {
		t.Fatalf("переменные окружения не применились: %+v", cfg)
	}
}
