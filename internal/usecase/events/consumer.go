package events

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"pulsepoint/internal/domain"
	"pulsepoint/internal/infra/metrics"
)

const receiveBackoff = time.Second

// Consumer переносит события из очереди в хранилище.
type Consumer struct {
	queue   domain.PollEventQueue
	repo    domain.PollEventRepo
	log     zerolog.Logger
	backoff time.Duration
}

// NewConsumer создаёт обработчик очереди событий.
func NewConsumer(queue domain.PollEventQueue, repo domain.PollEventRepo, logger zerolog.Logger) *Consumer {
	return &Consumer{
		queue:   queue,
		repo:    repo,
		log:     logger.With().Str("component", "events-consumer").Logger(),
		backoff: receiveBackoff,
	}
}

// Run обрабатывает события до отмены контекста.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info().Msg("обработчик событий запущен")
	for {
		event, ack, err := c.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info().Msg("обработчик событий остановлен")
				return nil
			}
			c.log.Error().Err(err).Msg("чтение очереди событий")
			if !c.wait(ctx) {
				return nil
			}
			continue
		}
		if !c.handle(ctx, event, ack) && !c.wait(ctx) {
			return nil
		}
	}
}

func (c *Consumer) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.backoff):
		return true
	}
}

// handle сохраняет событие и сообщает, удалось ли это.
func (c *Consumer) handle(ctx context.Context, event domain.PollEvent, ack domain.AckFunc) bool {
	err := c.repo.RecordPollEvent(ctx, event)
	logger := c.log.With().Str("event_id", event.ID).Str("poll_id", event.PollID).Str("type", string(event.Type)).Logger()
	switch {
	case err == nil:
		metrics.IncPollEvent(string(event.Type), "stored")
		logger.Debug().Msg("событие сохранено")
	case errors.Is(err, domain.ErrResourceNotConfigured):
		metrics.IncPollEvent(string(event.Type), "discarded")
		logger.Warn().Err(err).Msg("таблица событий не настроена, событие отброшено")
		err = nil
	default:
		metrics.IncPollEvent(string(event.Type), "failed")
		logger.Error().Err(err).Msg("не удалось сохранить событие, возвращаем в очередь")
	}
	if ackErr := ack(err == nil); ackErr != nil {
		logger.Error().Err(ackErr).Msg("подтверждение события")
	}
	return err == nil
}
