package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

type BreakerSettings struct {
	Name string
	// Échecs consécutifs avant ouverture
	FailureThreshold uint32
	// Durée en état ouvert avant un essai (half-open)
	OpenTimeout time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{Name: "redis-cache", FailureThreshold: 5, OpenTimeout: 30 * time.Second}
}

// RedisCache implémente ports.Cache. Un Redis en panne ouvre le circuit :
// les appels échouent alors immédiatement en Transient et les services lisent la DB.
type RedisCache struct {
	client  redis.UniversalClient
	breaker *gobreaker.CircuitBreaker[[]byte]
}

var _ ports.Cache = (*RedisCache)(nil)

func NewRedisCache(client redis.UniversalClient, s BreakerSettings) *RedisCache {
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		// Un miss est une réponse normale de Redis
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrCacheMiss)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("⚡ Cache circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			if to == gobreaker.StateOpen {
				CacheBreakerState.Set(1)
			} else {
				CacheBreakerState.Set(0)
			}
		},
	})
	return &RedisCache{client: client, breaker: cb}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.breaker.Execute(func() ([]byte, error) {
		b, err := c.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrCacheMiss
		}
		return b, err
	})
	switch {
	case err == nil:
		CacheOpsTotal.WithLabelValues("get", "hit").Inc()
		return data, nil
	case errors.Is(err, domain.ErrCacheMiss):
		CacheOpsTotal.WithLabelValues("get", "miss").Inc()
		return nil, domain.ErrCacheMiss
	default:
		return nil, c.fail("get", err)
	}
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := c.breaker.Execute(func() ([]byte, error) {
		return nil, c.client.Set(ctx, key, value, ttl).Err()
	})
	if err != nil {
		return c.fail("set", err)
	}
	CacheOpsTotal.WithLabelValues("set", "ok").Inc()
	return nil
}

// Delete supprime plusieurs clés en un seul DEL.
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := c.breaker.Execute(func() ([]byte, error) {
		return nil, c.client.Del(ctx, keys...).Err()
	})
	if err != nil {
		return c.fail("delete", err)
	}
	CacheOpsTotal.WithLabelValues("delete", "ok").Inc()
	return nil
}

func (c *RedisCache) State() gobreaker.State { return c.breaker.State() }

func (c *RedisCache) fail(op string, err error) error {
	result := "error"
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		result = "open"
	}
	CacheOpsTotal.WithLabelValues(op, result).Inc()
	return domain.NewTransient("redis: "+op, err)
}
