// Package locks реализует распределённые блокировки выполнения
// поверх Redis.
//
// Блокировка — это ключ с TTL по сигнатуре "{boundary}.{processor}":
// пока ключ жив, та же работа не запускается повторно. TTL — защита
// от вечной блокировки после падения воркера: упавший владелец
// освобождает сигнатуру не позже чем через TTL. Отсюда требование
// к TTL: не меньше максимального ожидаемого времени работы одного
// процессора.
package locks

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL — время жизни блокировки по умолчанию.
const DefaultTTL = time.Hour

const keyPrefix = "autopkg:lock:"

// Manager выдаёт и освобождает блокировки сигнатур.
type Manager struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New создаёт Manager поверх готового клиента Redis.
func New(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// NewFromEnv создаёт Manager из переменных окружения:
// REDIS_URL (по умолчанию redis://localhost:6379/0) и
// AUTOPKG_LOCK_TTL (Go duration, по умолчанию 1h).
func NewFromEnv(ctx context.Context, logger *slog.Logger) (*Manager, error) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}

	ttl := DefaultTTL
	if raw := os.Getenv("AUTOPKG_LOCK_TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parse AUTOPKG_LOCK_TTL: %w", err)
		}
		ttl = parsed
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, ttl, logger), nil
}

func key(signature string) string {
	return keyPrefix + signature
}

// Acquire пытается захватить блокировку сигнатуры для владельца owner
// (id задачи). Возвращает false, если блокировка уже удерживается.
// Захват атомарен: SET NX, двух владельцев быть не может.
func (m *Manager) Acquire(ctx context.Context, signature, owner string) (bool, error) {
	acquired, err := m.client.SetNX(ctx, key(signature), owner, m.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", signature, err)
	}
	if acquired {
		m.logger.Debug("lock acquired", "signature", signature, "owner", owner, "ttl", m.ttl)
	}
	return acquired, nil
}

// Release снимает блокировку сигнатуры. Снятие уже истёкшей
// блокировки — no-op.
func (m *Manager) Release(ctx context.Context, signature string) error {
	if err := m.client.Del(ctx, key(signature)).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", signature, err)
	}
	m.logger.Debug("lock released", "signature", signature)
	return nil
}

// IsHeld проверяет, удерживается ли блокировка сигнатуры.
func (m *Manager) IsHeld(ctx context.Context, signature string) (bool, error) {
	count, err := m.client.Exists(ctx, key(signature)).Result()
	if err != nil {
		return false, fmt.Errorf("check lock %s: %w", signature, err)
	}
	return count > 0, nil
}

// Owner возвращает владельца блокировки сигнатуры либо "",
// если блокировка не удерживается.
func (m *Manager) Owner(ctx context.Context, signature string) (string, error) {
	owner, err := m.client.Get(ctx, key(signature)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("get lock owner %s: %w", signature, err)
	}
	return owner, nil
}
