package domain

import (
	"context"
	"time"
)

// PollQuery задаёт выборку опросов из хранилища.
type PollQuery struct {
	IDs       []string
	Category  Category
	Statuses  []PollStatus
	ExcludeID string
	Limit     int
}

// PollRepo отдаёт опросы, варианты и голоса.
type PollRepo interface {
	ListPolls(ctx context.Context, query PollQuery) ([]Poll, error)
	GetPollBySlug(ctx context.Context, slug string) (Poll, error)
	GetPollByID(ctx context.Context, id string) (Poll, error)
	ListOptions(ctx context.Context, pollIDs []string) ([]Option, error)
	ListOptionTotals(ctx context.Context, pollIDs []string) ([]OptionTotal, error)
	ListVoteEvents(ctx context.Context, pollIDs []string, since time.Time) ([]VoteEvent, error)
}

// BookmarkRepo отдаёт закладки пользователя.
type BookmarkRepo interface {
	ListBookmarkedPollIDs(ctx context.Context, userID string, limit int) ([]string, error)
}

// CommentRepo считает комментарии.
type CommentRepo interface {
	CountComments(ctx context.Context, pollIDs []string) (map[string]int, error)
}

// ModerationAction описывает решение модерации.
type ModerationAction string

const (
	ModerationAllow ModerationAction = "allow"
	ModerationBlock ModerationAction = "block"
)

// ModerationVerdict содержит результат проверки текста.
type ModerationVerdict struct {
	Action ModerationAction `json:"action"`
	Reason string           `json:"reason,omitempty"`
	Source string           `json:"source"`
}

// Blocked сообщает, отклонён ли текст.
func (v ModerationVerdict) Blocked() bool {
	return v.Action == ModerationBlock
}

// Classifier проверяет текст на нарушения правил.
type Classifier interface {
	Classify(ctx context.Context, text string) (ModerationVerdict, error)
}

// PollDraft описывает черновик опроса до публикации.
type PollDraft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Options     []string `json:"options"`
}

// OptionChange описывает исправление подписи варианта.
type OptionChange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// AssistResult содержит предложенную редакцию черновика.
type AssistResult struct {
	Title         string         `json:"title"`
	Blurb         string         `json:"blurb"`
	Description   string         `json:"description"`
	Options       []string       `json:"options"`
	OptionChanges []OptionChange `json:"option_changes"`
	Source        string         `json:"source"`
}

// Rewriter предлагает нейтральную формулировку опроса.
type Rewriter interface {
	Rewrite(ctx context.Context, draft PollDraft) (AssistResult, error)
}

// Corrector исправляет опечатки в подписях вариантов.
type Corrector interface {
	Correct(label string) string
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}
