// ratelimit ограничивает частоту попыток на маршрутах аутентификации.
//
// Счётчики живут в Redis: INCR + EXPIRE на ключ (маршрут, адрес клиента)
// дают атомарное фиксированное окно без блокировок на стороне сервиса.
// Состояние эфемерно — сброс счётчиков при рестарте Redis допустим.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited — лимит попыток в окне исчерпан. HTTP 429.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnavailable — Redis недоступен; решение пропускать или
	// отклонять запрос принимает вызывающая сторона.
	ErrUnavailable = errors.New("rate limiter unavailable")
)

// Rule — окно и лимит попыток для одного маршрута.
type Rule struct {
	Max    int
	Window time.Duration
}

// Limiter считает попытки в Redis. Безопасен для конкурентного
// использования: вся арифметика выполняется на стороне Redis.
type Limiter struct {
	rdb    redis.UniversalClient
	prefix string
}

// New создаёт Limiter поверх готового клиента Redis.
// Пустой prefix заменяется на "rl:".
func New(rdb redis.UniversalClient, prefix string) *Limiter {
	if prefix == "" {
		prefix = "rl:"
	}

	return &Limiter{rdb: rdb, prefix: prefix}
}

// Allow учитывает попытку и возвращает ErrRateLimited, когда счётчик
// ключа (route, addr) превысил rule.Max в текущем окне. Попытка
// учитывается независимо от исхода последующей операции.
func (l *Limiter) Allow(ctx context.Context, route, addr string, rule Rule) error {
	const op = "ratelimit.Allow"

	if rule.Max <= 0 {
		return nil
	}

	key := l.prefix + route + ":" + addr

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}

	// Первый инкремент открывает окно.
	if count == 1 {
		if err := l.rdb.Expire(ctx, key, rule.Window).Err(); err != nil {
			return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
		}
	}

	if count > int64(rule.Max) {
		return fmt.Errorf("%s: %w", op, ErrRateLimited)
	}

	return nil
}
