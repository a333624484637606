package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/optionsanalytics/internal/optionsrisk/domain"
	"github.com/wyfcoding/optionsanalytics/pkg/cache"
	"github.com/wyfcoding/optionsanalytics/pkg/logger"
)

// StaticQuoteProvider 内存行情源，用于本地联调与测试环境。
type StaticQuoteProvider struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

// NewStaticQuoteProvider 创建静态行情源。
func NewStaticQuoteProvider(prices map[string]decimal.Decimal) *StaticQuoteProvider {
	cloned := make(map[string]decimal.Decimal, len(prices))
	for k, v := range prices {
		cloned[k] = v
	}
	return &StaticQuoteProvider{prices: cloned}
}

// SetPrice 更新单个标的价格。
func (p *StaticQuoteProvider) SetPrice(symbol string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[symbol] = price
}

func (p *StaticQuoteProvider) GetPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	price, ok := p.prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", domain.ErrQuoteUnavailable, symbol)
	}
	return price, nil
}

// CachedQuoteProvider 行情读穿缓存。命中 Redis 直接返回，
// 未命中回源后写缓存；缓存故障只降级为回源，不阻断计算。
type CachedQuoteProvider struct {
	source domain.QuoteProvider
	cache  *cache.RedisCache
	ttl    time.Duration
}

// NewCachedQuoteProvider 创建带 Redis 缓存的行情源。
func NewCachedQuoteProvider(source domain.QuoteProvider, redisCache *cache.RedisCache, ttl time.Duration) *CachedQuoteProvider {
	return &CachedQuoteProvider{source: source, cache: redisCache, ttl: ttl}
}

func (p *CachedQuoteProvider) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	key := cacheKey(symbol)

	if p.cache != nil {
		cached, err := p.cache.Get(ctx, key)
		switch {
		case err != nil:
			logger.Warn(ctx, "Quote cache read failed", "symbol", symbol, "error", err)
		case cached != "":
			price, perr := decimal.NewFromString(cached)
			if perr == nil {
				return price, nil
			}
			logger.Warn(ctx, "Corrupt quote cache entry, refetching", "symbol", symbol, "value", cached)
		}
	}

	price, err := p.source.GetPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, price.String(), p.ttl); err != nil {
			logger.Warn(ctx, "Quote cache write failed", "symbol", symbol, "error", err)
		}
	}
	return price, nil
}

func cacheKey(symbol string) string {
	return "optionsrisk:quote:" + symbol
}
