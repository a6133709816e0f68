package geocode

import (
	"context"
	"fmt"
	"time"

	"media-ingest/internal/metrics"

	"github.com/patrickmn/go-cache"
)

// Resolver resolves coordinates to a place name.
type Resolver interface {
	PlaceName(ctx context.Context, lat, lon float64) (string, error)
}

// Cached memoizes successful lookups of another Resolver. Coordinates are
// keyed at four decimals (about 11m), so photos from one spot share a
// single request.
type Cached struct {
	next  Resolver
	cache *cache.Cache
}

// NewCached wraps next with a TTL cache.
func NewCached(next Resolver, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lon)
}

// PlaceName implements Resolver. Failures are not cached.
func (c *Cached) PlaceName(ctx context.Context, lat, lon float64) (string, error) {
	key := cacheKey(lat, lon)
	if v, ok := c.cache.Get(key); ok {
		metrics.GeocodeLookupsTotal.WithLabelValues("hit").Inc()
		return v.(string), nil
	}

	name, err := c.next.PlaceName(ctx, lat, lon)
	if err != nil {
		metrics.GeocodeLookupsTotal.WithLabelValues("error").Inc()
		return "", err
	}
	metrics.GeocodeLookupsTotal.WithLabelValues("miss").Inc()
	c.cache.SetDefault(key, name)
	return name, nil
}

// Len returns the number of cached places.
func (c *Cached) Len() int {
	return c.cache.ItemCount()
}
