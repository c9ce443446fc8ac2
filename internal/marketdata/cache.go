package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"crypto-scenario-engine/internal/candles"
	"crypto-scenario-engine/internal/levels"
)

// RedisConfig holds the cache connection settings.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// Cache TTLs. Candles refresh per timeframe; extremes move rarely.
const (
	candlesTTL = time.Minute
	metaTTL    = time.Hour
)

// CachedProvider wraps a Provider with a Redis read-through cache. Cache
// failures degrade gracefully to the underlying provider.
type CachedProvider struct {
	inner  Provider
	client *redis.Client
	log    zerolog.Logger
}

// NewCachedProvider connects to Redis and wraps the provider. The connection
// is verified eagerly so a misconfigured cache fails at startup, not on the
// first request.
func NewCachedProvider(inner Provider, cfg RedisConfig, log zerolog.Logger) (*CachedProvider, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &CachedProvider{
		inner:  inner,
		client: client,
		log:    log.With().Str("component", "marketdata_cache").Logger(),
	}, nil
}

// cachedSeries is the wire form of a series in Redis.
type cachedSeries struct {
	Symbol    string           `json:"symbol"`
	Timeframe time.Duration    `json:"timeframe"`
	Candles   []candles.Candle `json:"candles"`
}

// GetCandles serves candles from Redis when fresh, falling back to the
// provider and repopulating on miss.
func (p *CachedProvider) GetCandles(ctx context.Context, symbol, interval string, limit int) (*candles.Series, error) {
	key := fmt.Sprintf("md:candles:%s:%s:%d", symbol, interval, limit)

	if data, err := p.client.Get(ctx, key).Bytes(); err == nil {
		var cached cachedSeries
		if err := json.Unmarshal(data, &cached); err == nil {
			series, err := candles.FromCandles(cached.Symbol, cached.Timeframe, cached.Candles)
			if err == nil {
				return series, nil
			}
		}
		p.log.Warn().Str("key", key).Msg("discarding unreadable cache entry")
	}

	series, err := p.inner.GetCandles(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(cachedSeries{
		Symbol:    series.Symbol(),
		Timeframe: series.Timeframe(),
		Candles:   series.Snapshot(),
	})
	if err == nil {
		if err := p.client.Set(ctx, key, payload, candlesTTL).Err(); err != nil {
			p.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return series, nil
}

// GetMarketMeta serves extremes from Redis when fresh.
func (p *CachedProvider) GetMarketMeta(ctx context.Context, symbol string) (levels.MarketMeta, error) {
	key := fmt.Sprintf("md:meta:%s", symbol)

	if data, err := p.client.Get(ctx, key).Bytes(); err == nil {
		var meta levels.MarketMeta
		if err := json.Unmarshal(data, &meta); err == nil {
			return meta, nil
		}
	}

	meta, err := p.inner.GetMarketMeta(ctx, symbol)
	if err != nil {
		return levels.MarketMeta{}, err
	}
	if payload, err := json.Marshal(meta); err == nil {
		if err := p.client.Set(ctx, key, payload, metaTTL).Err(); err != nil {
			p.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return meta, nil
}

// GetCurrentPrice always goes to the provider; a cached last price is worse
// than no cache for tick-sensitive callers.
func (p *CachedProvider) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return p.inner.GetCurrentPrice(ctx, symbol)
}

// Close releases the Redis connection.
func (p *CachedProvider) Close() error {
	return p.client.Close()
}
