package moderation

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"pulsepoint/internal/domain"
	openai "pulsepoint/internal/infra/openai"
)

const (
	defaultModerationModel = "omni-moderation-latest"
	sourceOpenAI           = "openai"
)

var severeCategories = []string{
	"hate", "hate/threatening", "harassment", "harassment/threatening",
	"violence", "violence/graphic", "sexual", "sexual/minors", "self_harm", "self-harm",
}

type moderationClient interface {
	CreateModeration(ctx context.Context, req openai.ModerationRequest) (openai.ModerationResponse, error)
}

// OpenAI проверяет текст через OpenAI Moderations и дополняет результат эвристикой.
type OpenAI struct {
	client   moderationClient
	model    string
	timeout  time.Duration
	fallback Heuristic
	log      zerolog.Logger
}

// NewOpenAI создаёт классификатор.
func NewOpenAI(client moderationClient, model string, timeout time.Duration, logger zerolog.Logger) *OpenAI {
	if model == "" {
		model = defaultModerationModel
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenAI{
		client:  client,
		model:   model,
		timeout: timeout,
		log:     logger.With().Str("component", "moderation").Logger(),
	}
}

// Classify блокирует текст с серьёзными категориями нарушений. При ошибке API используется эвристика.
func (o *OpenAI) Classify(ctx context.Context, text string) (domain.ModerationVerdict, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateModeration(ctx, openai.ModerationRequest{Model: o.model, Input: text})
	if err != nil {
		o.log.Warn().Err(err).Msg("модерация OpenAI недоступна, используем эвристику")
		return o.fallback.Classify(ctx, text)
	}
	if len(resp.Results) > 0 {
		result := resp.Results[0]
		if result.Flagged && anySevere(result.Categories) {
			return domain.ModerationVerdict{Action: domain.ModerationBlock, Reason: "unsafe content", Source: sourceOpenAI}, nil
		}
	}
	return o.fallback.Classify(ctx, text)
}

func anySevere(categories map[string]bool) bool {
	for _, c := range severeCategories {
		if categories[c] {
			return true
		}
	}
	return false
}
