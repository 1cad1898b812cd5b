package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/keshav323/digital-clock-application/internal"
	"github.com/keshav323/digital-clock-application/internal/clock"
	"github.com/keshav323/digital-clock-application/internal/storage"
	"github.com/keshav323/digital-clock-application/internal/weather"
)

// WeatherResult tags a cache entry with whether it was served from cache.
type WeatherResult struct {
	Entry    internal.WeatherCacheEntry `json:"entry"`
	CacheHit bool                       `json:"cache_hit"`
}

// WeatherManager maps rounded coordinates to cached conditions with a TTL.
// Concurrent misses for the same key collapse into one upstream fetch via
// singleflight; provider failures propagate classified and are never cached.
type WeatherManager struct {
	cache    storage.WeatherCacheRepository
	provider weather.Provider
	clock    clock.Clock
	ttl      time.Duration
	timeout  time.Duration
	flight   singleflight.Group
	logger   internal.Logger
}

func NewWeatherManager(cache storage.WeatherCacheRepository, provider weather.Provider, clk clock.Clock, ttl, timeout time.Duration, logger internal.Logger) *WeatherManager {
	return &WeatherManager{
		cache:    cache,
		provider: provider,
		clock:    clk,
		ttl:      ttl,
		timeout:  timeout,
		logger:   logger,
	}
}

// LocationKey rounds coordinates to two decimal places (about 1.1 km) so
// nearby lookups inside one cache window share an entry and one upstream call.
func LocationKey(lat, lon float64) string {
	return fmt.Sprintf("%.2f,%.2f", lat, lon)
}

// Current returns the cached conditions for the coordinates, fetching from
// the provider on a miss or an expired entry.
func (m *WeatherManager) Current(ctx context.Context, lat, lon float64) (*WeatherResult, error) {
	key := LocationKey(lat, lon)

	e, err := m.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if e != nil && e.Fresh(m.clock.Now()) {
		return &WeatherResult{Entry: *e, CacheHit: true}, nil
	}

	v, err, _ := m.flight.Do(key, func() (any, error) {
		return m.refresh(ctx, key, lat, lon)
	})
	if err != nil {
		return nil, err
	}
	entry := v.(*internal.WeatherCacheEntry)
	return &WeatherResult{Entry: *entry, CacheHit: false}, nil
}

func (m *WeatherManager) refresh(ctx context.Context, key string, lat, lon float64) (*internal.WeatherCacheEntry, error) {
	// Re-check under the flight: a concurrent refresh may have just landed.
	if e, err := m.cache.Get(ctx, key); err != nil {
		return nil, err
	} else if e != nil && e.Fresh(m.clock.Now()) {
		return e, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	snapshot, location, err := m.provider.Fetch(fetchCtx, lat, lon)
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	entry := &internal.WeatherCacheEntry{
		LocationKey: key,
		Location:    *location,
		Current:     *snapshot,
		Source:      m.provider.Name(),
		CachedAt:    now,
		ExpiresAt:   now.Add(m.ttl),
	}
	if err := m.cache.Put(ctx, entry); err != nil {
		return nil, err
	}
	m.logger.Debugf("weather cache refreshed for %s from %s", key, m.provider.Name())
	return entry, nil
}

// StartSweeper deletes expired cache entries every interval until ctx is
// cancelled. Backends with native TTL eviction don't need it; the SQL
// backends do.
func (m *WeatherManager) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := m.cache.DeleteExpired(ctx, m.clock.Now())
				if err != nil {
					m.logger.Warnf("weather cache sweep failed: %v", err)
					continue
				}
				if n > 0 {
					m.logger.Debugf("weather cache sweep removed %d entries", n)
				}
			}
		}
	}()
}
