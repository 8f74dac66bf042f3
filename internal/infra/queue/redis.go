package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pulsepoint/internal/domain"
	"pulsepoint/internal/infra/metrics"
)

const redisPollTimeout = time.Second

// RedisPollEventQueue реализует очередь событий на базе Redis lists.
// Полученные сообщения лежат в списке обработки до подтверждения.
type RedisPollEventQueue struct {
	client     *redis.Client
	key        string
	processing string
}

// NewRedisPollEventQueue создаёт очередь по указанному ключу.
func NewRedisPollEventQueue(client *redis.Client, key string) *RedisPollEventQueue {
	return &RedisPollEventQueue{client: client, key: key, processing: key + ":processing"}
}

// Enqueue публикует событие в очередь.
func (q *RedisPollEventQueue) Enqueue(ctx context.Context, event domain.PollEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "lpush", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push event: %w", err)
	}
	return nil
}

// Receive блокирующе читает событие из очереди.
func (q *RedisPollEventQueue) Receive(ctx context.Context) (domain.PollEvent, domain.AckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.PollEvent{}, nil, err
		}

		raw, err := q.client.BLMove(ctx, q.key, q.processing, "RIGHT", "LEFT", redisPollTimeout).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.PollEvent{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.PollEvent{}, nil, err
		}

		var event domain.PollEvent
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			_ = q.client.LRem(context.Background(), q.processing, 1, raw).Err()
			return domain.PollEvent{}, nil, fmt.Errorf("decode event: %w", err)
		}
		return event, q.ackFunc(raw), nil
	}
}

func (q *RedisPollEventQueue) ackFunc(raw string) domain.AckFunc {
	return func(success bool) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LRem(ctx, q.processing, 1, raw)
			if !success {
				pipe.RPush(ctx, q.key, raw)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("ack event: %w", err)
		}
		return nil
	}
}
