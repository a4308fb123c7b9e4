package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/chrisdamba/bhtraffic/internal/cache"
	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/chrisdamba/bhtraffic/internal/source"
	"github.com/sirupsen/logrus"
)

// CachedAggregator serves repeated queries from a cache. The source is read
// only, so a result stays valid for as long as the dataset is deployed; the
// ttl bounds staleness after a dataset swap.
type CachedAggregator struct {
	next    *Aggregator
	cache   cache.Cache
	dataset string
	ttl     time.Duration
	log     *logrus.Entry
}

func NewCachedAggregator(next *Aggregator, c cache.Cache, dataset string, ttl time.Duration) *CachedAggregator {
	return &CachedAggregator{
		next:    next,
		cache:   c,
		dataset: dataset,
		ttl:     ttl,
		log:     next.log.WithField("cache", "result"),
	}
}

func (c *CachedAggregator) Aggregate(ctx context.Context, src source.Source, filter models.Filter) (*models.AggregatedResult, error) {
	if err := filter.Validate(c.next.bounds); err != nil {
		return nil, err
	}

	key := cache.Key("bhtraffic", c.dataset, c.next.Fingerprint(), filter.Key())
	if data, err := c.cache.Get(ctx, key); err == nil {
		var result models.AggregatedResult
		if err := json.Unmarshal(data, &result); err == nil {
			c.log.WithField("filter", filter.Key()).Debug("cache hit")
			return &result, nil
		}
		c.log.WithField("key", key).Warn("dropping undecodable cache entry")
		_ = c.cache.Delete(ctx, key)
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		c.log.WithError(err).Warn("cache lookup failed, querying source")
	}

	result, err := c.next.Aggregate(ctx, src, filter)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(result); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			c.log.WithError(err).Warn("failed to store result in cache")
		}
	}
	return result, nil
}
