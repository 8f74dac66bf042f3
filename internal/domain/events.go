package domain

import (
	"context"
	"time"
)

// PollEventType описывает тип аналитического события.
type PollEventType string

const (
	PollEventImpression     PollEventType = "poll_impression"
	PollEventView           PollEventType = "poll_view"
	PollEventShare          PollEventType = "poll_share"
	PollEventVoteCast       PollEventType = "vote_cast"
	PollEventCommentPost    PollEventType = "comment_post"
	PollEventCommentUpvote  PollEventType = "comment_upvote"
	PollEventBookmarkAdd    PollEventType = "bookmark_add"
	PollEventBookmarkRemove PollEventType = "bookmark_remove"
	PollEventReportSubmit   PollEventType = "report_submit"
)

var pollEventTypes = map[PollEventType]bool{
	PollEventImpression:     true,
	PollEventView:           true,
	PollEventShare:          true,
	PollEventVoteCast:       true,
	PollEventCommentPost:    true,
	PollEventCommentUpvote:  true,
	PollEventBookmarkAdd:    true,
	PollEventBookmarkRemove: true,
	PollEventReportSubmit:   true,
}

// Valid сообщает, известен ли тип события.
func (t PollEventType) Valid() bool {
	return pollEventTypes[t]
}

// Public сообщает, можно ли принимать событие от анонимного клиента.
func (t PollEventType) Public() bool {
	switch t {
	case PollEventImpression, PollEventView, PollEventShare:
		return true
	default:
		return false
	}
}

// DefaultEventSource используется, если клиент не указал источник.
const DefaultEventSource = "web"

// PollEvent описывает аналитическое событие по опросу.
type PollEvent struct {
	ID         string         `json:"id"`
	PollID     string         `json:"poll_id"`
	UserID     string         `json:"user_id,omitempty"`
	Type       PollEventType  `json:"type"`
	Source     string         `json:"source"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// PollEventRepo сохраняет аналитические события.
type PollEventRepo interface {
	RecordPollEvent(ctx context.Context, event PollEvent) error
}

// PollEventQueue описывает очередь аналитических событий.
type PollEventQueue interface {
	Enqueue(ctx context.Context, event PollEvent) error
	Receive(ctx context.Context) (PollEvent, AckFunc, error)
}

// AckFunc подтверждает обработку или возвращает сообщение в очередь.
type AckFunc func(success bool) error
