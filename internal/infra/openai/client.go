package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pulsepoint/internal/infra/metrics"
)

const defaultBaseURL = "https://api.openai.com/v1"

// ErrNoAPIKey возвращается, если ключ API не задан.
var ErrNoAPIKey = errors.New("openai: api key is empty")

// Client выполняет запросы Chat Completions и Moderations.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// NewClient создаёт клиента OpenAI.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout + 5*time.Second}
	return &Client{http: httpClient, baseURL: baseURL, apiKey: apiKey}
}

// Enabled сообщает, настроен ли ключ API.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// ChatCompletionRequest описывает тело запроса.
type ChatCompletionRequest struct {
	Model          string                        `json:"model"`
	Messages       []ChatMessage                 `json:"messages"`
	Temperature    float64                       `json:"temperature,omitempty"`
	MaxTokens      int                           `json:"max_tokens,omitempty"`
	ResponseFormat *ChatCompletionResponseFormat `json:"response_format,omitempty"`
}

// ChatMessage представляет сообщение в диалоге.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	// RoleSystem системная инструкция.
	RoleSystem = "system"
	// RoleUser сообщение пользователя.
	RoleUser = "user"
)

// ChatCompletionResponseFormat задаёт формат ответа.
type ChatCompletionResponseFormat struct {
	Type string `json:"type"`
}

// ResponseFormatTypeJSONObject просит вернуть объект JSON.
const ResponseFormatTypeJSONObject = "json_object"

// ChatCompletionResponse описывает ответ модели.
type ChatCompletionResponse struct {
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   *ChatCompletionUsage   `json:"usage,omitempty"`
}

// ChatCompletionChoice содержит сообщение модели.
type ChatCompletionChoice struct {
	Message ChatMessage `json:"message"`
}

// ChatCompletionUsage описывает статистику использования токенов.
type ChatCompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ModerationRequest описывает запрос к /moderations.
type ModerationRequest struct {
	Model string `json:"model,omitempty"`
	Input string `json:"input"`
}

// ModerationResponse описывает ответ /moderations.
type ModerationResponse struct {
	Results []ModerationResult `json:"results"`
}

// ModerationResult содержит решение по одному входу.
type ModerationResult struct {
	Flagged    bool            `json:"flagged"`
	Categories map[string]bool `json:"categories"`
}

// CreateChatCompletion вызывает /chat/completions.
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	var completion ChatCompletionResponse
	start := time.Now()
	if err := c.post(ctx, "/chat/completions", "chat_completions", req.Model, req, &completion); err != nil {
		return ChatCompletionResponse{}, err
	}
	if completion.Usage != nil {
		metrics.ObserveLLMGeneration(req.Model, time.Since(start), completion.Usage.PromptTokens, completion.Usage.CompletionTokens, completion.Usage.TotalTokens)
	}
	return completion, nil
}

// CreateModeration вызывает /moderations.
func (c *Client) CreateModeration(ctx context.Context, req ModerationRequest) (ModerationResponse, error) {
	var out ModerationResponse
	if err := c.post(ctx, "/moderations", "moderations", req.Model, req, &out); err != nil {
		return ModerationResponse{}, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path, operation, model string, payload, out any) (err error) {
	if c.apiKey == "" {
		return ErrNoAPIKey
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("openai: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	defer func() {
		metrics.ObserveNetworkRequest("openai", operation, model, start, err)
	}()

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("openai: do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("openai: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr apiErrorResponse
		if jsonErr := json.Unmarshal(respBody, &apiErr); jsonErr == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("openai: %s", apiErr.Error.Message)
		}
		return fmt.Errorf("openai: unexpected status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("openai: decode response: %w", err)
	}
	return nil
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
