// throttle.go — ограничение частоты синхронизации ролей одного пользователя.
//
// Throttle рекомендательный: два параллельных запроса одного пользователя
// на границе окна могут пройти оба. Discord дополнительно ограничивает
// частоту на своей стороне.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// SyncThrottle решает, пора ли синхронизировать роли пользователя.
// true — попытка записана, вызывающий должен выполнить синхронизацию.
type SyncThrottle interface {
	ShouldSync(ctx context.Context, userID string, now time.Time) bool
}

// MemoryThrottle — throttle в памяти процесса. Время последней попытки
// хранится в LRU ограниченного размера: давно не заходившие пользователи
// вытесняются и при следующем запросе синхронизируются сразу.
type MemoryThrottle struct {
	window time.Duration

	mu   sync.Mutex
	seen *lru.Cache[string, time.Time]
}

// NewMemoryThrottle создаёт throttle на maxUsers пользователей.
func NewMemoryThrottle(window time.Duration, maxUsers int) (*MemoryThrottle, error) {
	seen, err := lru.New[string, time.Time](maxUsers)
	if err != nil {
		return nil, fmt.Errorf("создание LRU throttle: %w", err)
	}
	return &MemoryThrottle{window: window, seen: seen}, nil
}

// ShouldSync возвращает false, если последняя попытка была меньше window назад.
func (t *MemoryThrottle) ShouldSync(_ context.Context, userID string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.seen.Get(userID); ok && now.Sub(last) < t.window {
		return false
	}
	t.seen.Add(userID, now)
	return true
}

// RedisThrottle — общий throttle для нескольких реплик (SET NX PX).
// При недоступности Redis синхронизация разрешается (fail open).
type RedisThrottle struct {
	client redis.Cmdable
	window time.Duration
	prefix string
	logger *slog.Logger
}

// NewRedisThrottle создаёт throttle поверх Redis.
func NewRedisThrottle(client redis.Cmdable, window time.Duration, logger *slog.Logger) *RedisThrottle {
	return &RedisThrottle{
		client: client,
		window: window,
		prefix: "forum:role_sync:",
		logger: logger.With(slog.String("component", "redis_throttle")),
	}
}

// ShouldSync атомарно занимает ключ пользователя на window.
func (t *RedisThrottle) ShouldSync(ctx context.Context, userID string, now time.Time) bool {
	ok, err := t.client.SetNX(ctx, t.prefix+userID, now.UnixMilli(), t.window).Result()
	if err != nil {
		t.logger.Warn("Redis недоступен, throttle пропущен",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return true
	}
	return ok
}
