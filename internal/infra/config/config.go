package config

import (
	"errors"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Queues struct {
		Driver     string `envconfig:"QUEUE_DRIVER" default:"redis"`
		PollEvents string `envconfig:"POLL_EVENTS_QUEUE_KEY" default:"poll_events"`
		AMQPURL    string `envconfig:"AMQP_URL"`
	} `envconfig:""`

	Ranking RankingConfig `envconfig:""`

	Analytics struct {
		ImpressionTTL   time.Duration `envconfig:"IMPRESSION_DEDUPE_TTL" default:"30m"`
		MemoryCacheSize int           `envconfig:"MEMORY_CACHE_SIZE" default:"100000"`
	} `envconfig:""`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"15s"`
	} `envconfig:""`
}

// RankingConfig задаёт пороги ранжирования и ограничения выборок.
type RankingConfig struct {
	DuplicateTitleWeight   float64 `envconfig:"DUPLICATE_TITLE_WEIGHT" default:"0.75"`
	DuplicateMinScore      float64 `envconfig:"DUPLICATE_MIN_SCORE" default:"0.18"`
	DuplicateMinTitleScore float64 `envconfig:"DUPLICATE_MIN_TITLE_SCORE" default:"0.25"`
	DuplicateLimit         int     `envconfig:"DUPLICATE_LIMIT" default:"3"`
	DuplicatePoolSize      int     `envconfig:"DUPLICATE_POOL_SIZE" default:"300"`

	SimilarLimit    int `envconfig:"SIMILAR_LIMIT" default:"6"`
	SimilarPoolSize int `envconfig:"SIMILAR_POOL_SIZE" default:"80"`

	TrendingPercentile    float64 `envconfig:"TRENDING_PERCENTILE" default:"0.2"`
	TrendingMinVotes      int     `envconfig:"TRENDING_MIN_VOTES" default:"10"`
	TrendingFallbackCount int     `envconfig:"TRENDING_FALLBACK_COUNT" default:"5"`

	SuggestionLimit    int `envconfig:"SUGGESTION_LIMIT" default:"6"`
	SuggestionPoolSize int `envconfig:"SUGGESTION_POOL_SIZE" default:"200"`
	FeedPoolSize       int `envconfig:"FEED_POOL_SIZE" default:"200"`
	SavedLimit         int `envconfig:"SAVED_LIMIT" default:"100"`
}

// Load загружает конфиг из .env и окружения.
func Load() AppConfig {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("не удалось прочитать .env: %v", err)
	}
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
