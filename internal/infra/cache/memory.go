package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultMemorySize ограничивает число ключей в кэше процесса.
	DefaultMemorySize = 100_000

	memorySweepInterval = time.Minute
)

// Memory хранит ключи в памяти процесса. Используется, если Redis не настроен.
// Размер ограничен LRU, истёкшие ключи вычищаются не реже раза в memorySweepInterval.
type Memory struct {
	mu        sync.Mutex
	items     *lru.Cache[string, memoryItem]
	now       func() time.Time
	lastSweep time.Time
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

func (i memoryItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && !now.Before(i.expiresAt)
}

// NewMemory создаёт кэш в памяти не более чем на size ключей.
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = DefaultMemorySize
	}
	items, _ := lru.New[string, memoryItem](size)
	return &Memory{items: items, now: time.Now}
}

// Len возвращает число хранимых ключей.
func (m *Memory) Len() int {
	return m.items.Len()
}

func (m *Memory) alive(key string) (memoryItem, bool) {
	item, ok := m.items.Get(key)
	if !ok {
		return memoryItem{}, false
	}
	if item.expired(m.now()) {
		m.items.Remove(key)
		return memoryItem{}, false
	}
	return item, true
}

// sweep удаляет истёкшие ключи. Вызывается под m.mu.
func (m *Memory) sweep() {
	now := m.now()
	if now.Sub(m.lastSweep) < memorySweepInterval {
		return
	}
	m.lastSweep = now
	for _, key := range m.items.Keys() {
		if item, ok := m.items.Peek(key); ok && item.expired(now) {
			m.items.Remove(key)
		}
	}
}

func (m *Memory) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

// Once выполняет функцию, если ключ ещё не задан.
func (m *Memory) Once(_ context.Context, key string, ttl time.Duration, fn func() error) error {
	m.mu.Lock()
	m.sweep()
	if _, ok := m.alive(key); ok {
		m.mu.Unlock()
		return nil
	}
	m.items.Add(key, memoryItem{value: []byte("1"), expiresAt: m.expiry(ttl)})
	m.mu.Unlock()

	if err := fn(); err != nil {
		m.mu.Lock()
		m.items.Remove(key)
		m.mu.Unlock()
		return err
	}
	return nil
}

// Set задаёт значение.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
	m.items.Add(key, memoryItem{value: append([]byte(nil), value...), expiresAt: m.expiry(ttl)})
	return nil
}

// Get возвращает значение или ErrMiss.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.alive(key)
	if !ok {
		return nil, ErrMiss
	}
	return append([]byte(nil), item.value...), nil
}
