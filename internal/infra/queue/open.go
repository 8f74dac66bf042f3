package queue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"pulsepoint/internal/domain"
)

const (
	DriverRedis    = "redis"
	DriverRabbitMQ = "rabbitmq"
)

// ErrUnknownDriver возвращается для неподдерживаемого QUEUE_DRIVER.
var ErrUnknownDriver = errors.New("неизвестный драйвер очереди")

// Open выбирает реализацию очереди событий. Возвращаемая функция закрывает соединение с брокером.
func Open(driver string, client *redis.Client, amqpURL, key string) (domain.PollEventQueue, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverRedis:
		if client == nil {
			return nil, nil, errors.New("для очереди redis нужен REDIS_ADDR")
		}
		return NewRedisPollEventQueue(client, key), func() error { return nil }, nil
	case DriverRabbitMQ:
		q, err := NewRabbitPollEventQueue(amqpURL, key)
		if err != nil {
			return nil, nil, fmt.Errorf("подключение к rabbitmq: %w", err)
		}
		return q, q.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
