package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pulsepoint/internal/domain"
	"pulsepoint/internal/infra/metrics"
)

var (
	// ErrInvalidEvent объединяет ошибки проверки события.
	ErrInvalidEvent = errors.New("некорректное событие")

	ErrPollIDRequired   = fmt.Errorf("%w: poll_id is required", ErrInvalidEvent)
	ErrUnknownEventType = fmt.Errorf("%w: unknown event type", ErrInvalidEvent)
	ErrEventNotAllowed  = fmt.Errorf("%w: event type is not accepted from clients", ErrInvalidEvent)
)

const maxSourceLength = 32

// TrackInput описывает событие до постановки в очередь.
type TrackInput struct {
	PollID    string
	UserID    string
	SessionID string
	Type      domain.PollEventType
	Source    string
	Metadata  map[string]any
	// Public ограничивает типы событий теми, что разрешены анонимным клиентам.
	Public bool
}

// Tracker проверяет события и ставит их в очередь.
type Tracker struct {
	queue         domain.PollEventQueue
	cache         domain.Cache
	impressionTTL time.Duration
	log           zerolog.Logger
	now           func() time.Time
	newID         func() string
}

// NewTracker создаёт трекер. cache может быть nil, тогда показы не схлопываются.
func NewTracker(queue domain.PollEventQueue, cache domain.Cache, impressionTTL time.Duration, logger zerolog.Logger) *Tracker {
	return &Tracker{
		queue:         queue,
		cache:         cache,
		impressionTTL: impressionTTL,
		log:           logger.With().Str("component", "events").Logger(),
		now:           time.Now,
		newID:         func() string { return uuid.NewString() },
	}
}

// Validate проверяет событие и заполняет значения по умолчанию.
func Validate(in TrackInput, now time.Time) (domain.PollEvent, error) {
	pollID := strings.TrimSpace(in.PollID)
	if pollID == "" {
		return domain.PollEvent{}, ErrPollIDRequired
	}
	if !in.Type.Valid() {
		return domain.PollEvent{}, ErrUnknownEventType
	}
	if in.Public && !in.Type.Public() {
		return domain.PollEvent{}, ErrEventNotAllowed
	}
	source := strings.ToLower(strings.TrimSpace(in.Source))
	if source == "" {
		source = domain.DefaultEventSource
	}
	if len(source) > maxSourceLength {
		source = source[:maxSourceLength]
	}
	return domain.PollEvent{
		PollID:     pollID,
		UserID:     strings.TrimSpace(in.UserID),
		Type:       in.Type,
		Source:     source,
		Metadata:   in.Metadata,
		OccurredAt: now.UTC(),
	}, nil
}

// Track проверяет событие и ставит его в очередь. Ошибки очереди только логируются.
func (t *Tracker) Track(ctx context.Context, in TrackInput) error {
	event, err := Validate(in, t.now())
	if err != nil {
		metrics.IncPollEvent(string(in.Type), "rejected")
		return err
	}
	event.ID = t.newID()

	viewer := event.UserID
	if viewer == "" {
		viewer = strings.TrimSpace(in.SessionID)
	}
	if event.Type != domain.PollEventImpression || t.cache == nil || viewer == "" {
		t.enqueue(ctx, event)
		return nil
	}

	key := fmt.Sprintf("impression:%s:%s", event.PollID, viewer)
	called := false
	err = t.cache.Once(ctx, key, t.impressionTTL, func() error {
		called = true
		return t.enqueue(ctx, event)
	})
	switch {
	case err != nil && !called:
		t.log.Warn().Err(err).Msg("кэш показов недоступен, событие без схлопывания")
		t.enqueue(ctx, event)
	case !called:
		metrics.IncPollEvent(string(event.Type), "deduplicated")
	}
	return nil
}

func (t *Tracker) enqueue(ctx context.Context, event domain.PollEvent) error {
	if err := t.queue.Enqueue(ctx, event); err != nil {
		metrics.IncPollEvent(string(event.Type), "dropped")
		t.log.Error().Err(err).Str("poll_id", event.PollID).Str("type", string(event.Type)).Msg("не удалось поставить событие в очередь")
		return err
	}
	metrics.IncPollEvent(string(event.Type), "accepted")
	return nil
}
