// Package quote 行情仓储的缓存装饰器。
package quote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cambiosur/exchange/internal/exchange/domain"
	"github.com/cambiosur/exchange/pkg/cache"
)

// CachedRepository 用 Redis 缓存最新报价，回源到底层仓储。
// 缓存故障时降级为直接回源，发布新报价时失效对应键。
type CachedRepository struct {
	inner  domain.QuoteRepository
	cache  *cache.RedisCache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedRepository 创建缓存装饰器
func NewCachedRepository(inner domain.QuoteRepository, c *cache.RedisCache, ttl time.Duration, logger *slog.Logger) *CachedRepository {
	return &CachedRepository{inner: inner, cache: c, ttl: ttl, logger: logger}
}

func cacheKey(currency domain.Currency) string {
	return fmt.Sprintf("exchange:quote:latest:%s", currency)
}

// Latest 先读缓存，未命中回源并写回
func (r *CachedRepository) Latest(ctx context.Context, currency domain.Currency) (*domain.Quote, error) {
	var cached domain.Quote
	err := r.cache.GetJSON(ctx, cacheKey(currency), &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		r.logger.WarnContext(ctx, "quote cache read failed", "currency", currency, "error", err)
	}

	quote, err := r.inner.Latest(ctx, currency)
	if err != nil {
		return nil, err
	}
	if err := r.cache.SetJSON(ctx, cacheKey(currency), quote, r.ttl); err != nil {
		r.logger.WarnContext(ctx, "quote cache write failed", "currency", currency, "error", err)
	}
	return quote, nil
}

// Save 写底层仓储并失效缓存
func (r *CachedRepository) Save(ctx context.Context, quote *domain.Quote) error {
	if err := r.inner.Save(ctx, quote); err != nil {
		return err
	}
	if err := r.cache.Delete(ctx, cacheKey(quote.Currency)); err != nil {
		r.logger.WarnContext(ctx, "quote cache invalidation failed", "currency", quote.Currency, "error", err)
	}
	return nil
}
