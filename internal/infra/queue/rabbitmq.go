package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"pulsepoint/internal/domain"
	"pulsepoint/internal/infra/metrics"
)

// ErrConsumerClosed возвращается, если канал доставки закрыт брокером.
var ErrConsumerClosed = errors.New("rabbitmq: consumer closed")

// RabbitPollEventQueue реализует очередь событий через AMQP.
type RabbitPollEventQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	consumeOnce sync.Once
	deliveries  <-chan amqp.Delivery
	consumeErr  error
	publishMu   sync.Mutex
}

// NewRabbitPollEventQueue подключается к брокеру и объявляет устойчивую очередь.
func NewRabbitPollEventQueue(amqpURL, queue string) (*RabbitPollEventQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &RabbitPollEventQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue публикует событие в очередь.
func (q *RabbitPollEventQueue) Enqueue(ctx context.Context, event domain.PollEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	q.publishMu.Lock()
	defer q.publishMu.Unlock()
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Receive блокирующе читает событие из очереди.
func (q *RabbitPollEventQueue) Receive(ctx context.Context) (domain.PollEvent, domain.AckFunc, error) {
	q.consumeOnce.Do(func() {
		q.deliveries, q.consumeErr = q.ch.Consume(q.queue, "", false, false, false, false, nil)
	})
	if q.consumeErr != nil {
		return domain.PollEvent{}, nil, fmt.Errorf("consume: %w", q.consumeErr)
	}

	select {
	case <-ctx.Done():
		return domain.PollEvent{}, nil, ctx.Err()
	case d, ok := <-q.deliveries:
		if !ok {
			return domain.PollEvent{}, nil, ErrConsumerClosed
		}
		var event domain.PollEvent
		if err := json.Unmarshal(d.Body, &event); err != nil {
			_ = d.Nack(false, false)
			return domain.PollEvent{}, nil, fmt.Errorf("decode event: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return d.Ack(false)
			}
			return d.Nack(false, true)
		}
		return event, ack, nil
	}
}

// Close закрывает канал и соединение.
func (q *RabbitPollEventQueue) Close() error {
	if err := q.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return q.conn.Close()
}
