package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCreateChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("неожиданный путь %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("нет заголовка авторизации")
		}
		var req ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("разбор запроса: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"title\":\"ok\"}"}}],"usage":{"prompt_tokens":3,"completion_tokens":2}}`))
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL+"/", time.Second)
	resp, err := c.CreateChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(resp.Choices) != 1 || resp.Choices[0].Message.Content != `{"title":"ok"}` {
		t.Fatalf("неожиданный ответ: %+v", resp)
	}
}

func TestCreateModerationAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL, time.Second)
	_, err := c.CreateModeration(context.Background(), ModerationRequest{Input: "hi"})
	if err == nil || err.Error() != "openai: rate limited" {
		t.Fatalf("ожидали ошибку API, получили %v", err)
	}
}

func TestClientWithoutKey(t *testing.T) {
	c := NewClient("", "", 0)
	if c.Enabled() {
		t.Fatalf("клиент без ключа не должен быть активен")
	}
	if _, err := c.CreateModeration(context.Background(), ModerationRequest{Input: "x"}); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("ожидали ErrNoAPIKey, получили %v", err)
	}
}
