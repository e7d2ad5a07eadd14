package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

// CachePolicy regroupe les TTL. Le feed doit expirer avant les posts.
type CachePolicy struct {
	PostTTL   time.Duration
	FeedTTL   time.Duration
	UserTTL   time.Duration
	OpTimeout time.Duration // timeout par appel cache, pour ne jamais bloquer une requête
}

func DefaultCachePolicy() CachePolicy {
	return CachePolicy{
		PostTTL:   30 * time.Minute,
		FeedTTL:   15 * time.Minute,
		UserTTL:   time.Hour,
		OpTimeout: 200 * time.Millisecond,
	}
}

// --- Clés ---

func postKey(postID string) string { return "post:" + postID }

func userKey(userID string) string { return "user:" + userID }

func feedKey(userID string, page, size int) string {
	return fmt.Sprintf("feed:%s:%d:%d", userID, page, size)
}

// Loader lit la source de vérité. cacheable=false : la valeur est servie mais pas écrite.
type Loader[T any] func(ctx context.Context) (value T, cacheable bool, err error)

// ReadThrough est le décorateur cache devant les stores.
// Lecture : hit => valeur décodée ; miss, erreur cache ou entrée illisible => Loader.
// Écriture et invalidation sont best effort : un échec est loggé, le TTL borne la staleness.
// Les erreurs du Loader ne sont jamais mises en cache.
type ReadThrough[T any] struct {
	cache     ports.Cache
	ttl       time.Duration
	opTimeout time.Duration
}

func NewReadThrough[T any](cache ports.Cache, ttl, opTimeout time.Duration) *ReadThrough[T] {
	return &ReadThrough[T]{cache: cache, ttl: ttl, opTimeout: opTimeout}
}

func (r *ReadThrough[T]) Get(ctx context.Context, key string, load Loader[T]) (T, error) {
	if v, ok := r.lookup(ctx, key); ok {
		return v, nil
	}

	v, cacheable, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if cacheable {
		r.Put(ctx, key, v)
	}
	return v, nil
}

// Put écrit la valeur (write-through après une création).
func (r *ReadThrough[T]) Put(ctx context.Context, key string, v T) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("⚠️ Cache encode failed", "key", key, "error", err)
		return
	}

	cctx, cancel := withOpTimeout(ctx, r.opTimeout)
	defer cancel()
	if err := r.cache.Set(cctx, key, data, r.ttl); err != nil {
		slog.Warn("⚠️ Cache write failed", "key", key, "error", err)
	}
}

func (r *ReadThrough[T]) Invalidate(ctx context.Context, keys ...string) {
	invalidate(ctx, r.cache, r.opTimeout, keys...)
}

func (r *ReadThrough[T]) lookup(ctx context.Context, key string) (T, bool) {
	var v T

	cctx, cancel := withOpTimeout(ctx, r.opTimeout)
	defer cancel()

	data, err := r.cache.Get(cctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			slog.Warn("⚠️ Cache read failed, falling back to store", "key", key, "error", err)
		}
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		slog.Warn("⚠️ Undecodable cache entry", "key", key, "error", err)
		var zero T
		return zero, false
	}
	return v, true
}

// invalidate : best effort, l'entrée expirera de toute façon.
func invalidate(ctx context.Context, cache ports.Cache, timeout time.Duration, keys ...string) {
	if len(keys) == 0 {
		return
	}
	cctx, cancel := withOpTimeout(ctx, timeout)
	defer cancel()
	if err := cache.Delete(cctx, keys...); err != nil {
		slog.Warn("⚠️ Cache invalidation failed", "keys", keys, "error", err)
	}
}

func withOpTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
