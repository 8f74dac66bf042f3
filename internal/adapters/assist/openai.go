package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pulsepoint/internal/domain"
	openai "pulsepoint/internal/infra/openai"
)

const sourceOpenAI = "openai"

const systemPrompt = "You rewrite polls to neutral wording and generate concise blurb/description. " +
	"Keep politically and socially neutral framing, avoid persuasive language, and preserve intended names/entities and user meaning. " +
	"Fix obvious spelling mistakes in options without changing intent. " +
	`Return strict JSON with keys: title, blurb, description, options. No extra text.`

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI переписывает черновик через Chat Completions. При любой ошибке используется эвристика.
type OpenAI struct {
	client   chatClient
	model    string
	timeout  time.Duration
	fallback *Heuristic
	log      zerolog.Logger
}

// NewOpenAI создаёт переписчик на базе OpenAI.
func NewOpenAI(client chatClient, model string, timeout time.Duration, fallback *Heuristic, logger zerolog.Logger) *OpenAI {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if fallback == nil {
		fallback = NewHeuristic(nil)
	}
	return &OpenAI{
		client:   client,
		model:    model,
		timeout:  timeout,
		fallback: fallback,
		log:      logger.With().Str("component", "assist").Logger(),
	}
}

type assistPayload struct {
	Title       string   `json:"title"`
	Blurb       string   `json:"blurb"`
	Description string   `json:"description"`
	Options     []string `json:"options"`
}

// Rewrite возвращает нейтральную редакцию черновика.
func (o *OpenAI) Rewrite(ctx context.Context, draft domain.PollDraft) (domain.AssistResult, error) {
	result, err := o.rewrite(ctx, draft)
	if err != nil {
		o.log.Warn().Err(err).Msg("OpenAI недоступен, используем эвристику")
		return o.fallback.Rewrite(ctx, draft)
	}
	return result, nil
}

func (o *OpenAI) rewrite(ctx context.Context, draft domain.PollDraft) (domain.AssistResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	input, err := json.Marshal(struct {
		Title    string   `json:"title"`
		Category string   `json:"category"`
		Options  []string `json:"options"`
	}{draft.Title, draft.Category, draft.Options})
	if err != nil {
		return domain.AssistResult{}, fmt.Errorf("сериализация черновика: %w", err)
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.2,
		MaxTokens:   600,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: systemPrompt},
			{Role: openai.RoleUser, Content: string(input)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ResponseFormatTypeJSONObject},
	})
	if err != nil {
		return domain.AssistResult{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.AssistResult{}, errors.New("openai completion: пустой ответ")
	}
	var parsed assistPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Choices[0].Message.Content)), &parsed); err != nil {
		return domain.AssistResult{}, fmt.Errorf("распаковка ответа LLM: %w", err)
	}

	title := parsed.Title
	if strings.TrimSpace(title) == "" {
		title = draft.Title
	}
	options := parsed.Options
	if options == nil {
		options = draft.Options
	}
	corrected, changes := correctOptions(o.fallback.corrector, options)
	return domain.AssistResult{
		Title:         EnsureQuestion(title),
		Blurb:         strings.TrimSpace(parsed.Blurb),
		Description:   strings.TrimSpace(parsed.Description),
		Options:       CleanOptions(corrected),
		OptionChanges: changes,
		Source:        sourceOpenAI,
	}, nil
}
