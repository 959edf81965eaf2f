package candidates

import (
	"context"
	"time"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/config"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/models"
	"github.com/sirupsen/logrus"
)

const cachePrefix = "candidates:carsxe:"

// CachedSearcher keeps successful search results in redis so repeat lookups
// across sessions skip the paid API. Failures are never cached. Without a
// redis connection it simply delegates.
type CachedSearcher struct {
	next   Searcher
	ttl    time.Duration
	logger *logrus.Logger
}

func NewCachedSearcher(next Searcher, ttl time.Duration, logger *logrus.Logger) *CachedSearcher {
	return &CachedSearcher{next: next, ttl: ttl, logger: logger}
}

func cacheKey(key models.SearchKey) string {
	return cachePrefix + key.String()
}

func (s *CachedSearcher) Search(ctx context.Context, key models.SearchKey) ([]string, error) {
	var cached []string
	hit, err := config.GetRedisObject(ctx, cacheKey(key), &cached)
	if err != nil {
		config.LogError(s.logger, "candidates", "CachedSearcher.Search", "redis get", key.String(), err)
	}
	if hit {
		return cached, nil
	}

	urls, err := s.next.Search(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(ctx, cacheKey(key), urls, s.ttl); err != nil {
		config.LogError(s.logger, "candidates", "CachedSearcher.Search", "redis set", key.String(), err)
	}
	return urls, nil
}
