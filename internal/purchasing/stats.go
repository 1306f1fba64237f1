package purchasing

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

const statsCacheKey = "purchasing:stats:overview"

// Stats is the dashboard aggregate over all non-deleted orders.
type Stats struct {
	TotalOrders        int64            `json:"totalOrders"`
	ByStatus           map[Status]int64 `json:"byStatus"`
	OutstandingBalance decimal.Decimal  `json:"outstandingBalance"`
	GeneratedAt        time.Time        `json:"generatedAt"`
}

// StatsPort is the aggregation query the stats service runs on misses.
type StatsPort interface {
	Aggregate(ctx context.Context) (Stats, error)
}

// StatsService answers dashboard queries from a short-lived Redis
// cache. Concurrent misses collapse into a single database query.
type StatsService struct {
	repo   StatsPort
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewStatsService constructs the cached stats reader. A nil cache
// client degrades to querying the database every time.
func NewStatsService(repo StatsPort, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *StatsService {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &StatsService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// Overview returns the order stats, served from cache when fresh.
func (s *StatsService) Overview(ctx context.Context) (Stats, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, statsCacheKey).Bytes(); err == nil {
			var stats Stats
			if err := json.Unmarshal(raw, &stats); err == nil {
				return stats, nil
			}
		}
	}
	v, err, _ := s.group.Do(statsCacheKey, func() (any, error) {
		stats, err := s.repo.Aggregate(ctx)
		if err != nil {
			return Stats{}, err
		}
		stats.GeneratedAt = time.Now()
		if s.cache != nil {
			if raw, err := json.Marshal(stats); err == nil {
				if err := s.cache.Set(ctx, statsCacheKey, raw, s.ttl).Err(); err != nil {
					s.logger.Warn("stats cache write failed", slog.Any("error", err))
				}
			}
		}
		return stats, nil
	})
	if err != nil {
		return Stats{}, err
	}
	return v.(Stats), nil
}

// Invalidate drops the cached overview after a mutation.
func (s *StatsService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statsCacheKey).Err(); err != nil {
		s.logger.Warn("stats cache invalidate failed", slog.Any("error", err))
	}
}
