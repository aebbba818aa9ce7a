package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

// RateLimitKeyPattern matches the token buckets written by the rate limiter.
const RateLimitKeyPattern = "zumo:rl:*"

type redisCollector struct {
	rdb    *redis.Client
	logger *slog.Logger

	upDesc      *prometheus.Desc
	bucketsDesc *prometheus.Desc
}

func newRedisCollector(rdb *redis.Client, logger *slog.Logger) *redisCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisCollector{
		rdb:    rdb,
		logger: logger,
		upDesc: prometheus.NewDesc(
			"zumo_redis_up",
			"Whether the rate limit store answered the last scrape (1) or not (0).",
			nil,
			nil,
		),
		bucketsDesc: prometheus.NewDesc(
			"zumo_ratelimit_buckets_active",
			"Current number of live rate limit buckets.",
			nil,
			nil,
		),
	}
}

func (c *redisCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.upDesc
	ch <- c.bucketsDesc
}

func (c *redisCollector) Collect(ch chan<- prometheus.Metric) {
	if c.rdb == nil {
		return
	}

	// Keep Redis reads bounded so scrapes do not hang.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		c.logger.Warn("prometheus redis collector failed", "err", err)
		emitGauge(ch, c.upDesc, 0)
		return
	}
	emitGauge(ch, c.upDesc, 1)

	buckets, err := countKeys(ctx, c.rdb, RateLimitKeyPattern)
	if err != nil {
		c.logger.Warn("prometheus redis collector scan failed", "err", err)
		return
	}
	emitGauge(ch, c.bucketsDesc, float64(buckets))
}

func countKeys(ctx context.Context, rdb *redis.Client, pattern string) (int64, error) {
	var (
		cursor uint64
		total  int64
	)
	for {
		keys, next, err := rdb.Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return 0, err
		}
		total += int64(len(keys))
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

func emitGauge(ch chan<- prometheus.Metric, desc *prometheus.Desc, v float64, labelValues ...string) {
	m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, v, labelValues...)
	if err != nil {
		return
	}
	ch <- m
}

var registerRedisCollectorOnce sync.Once

func RegisterRedisCollector(rdb *redis.Client, logger *slog.Logger) {
	registerRedisCollectorOnce.Do(func() {
		prometheus.MustRegister(newRedisCollector(rdb, logger))
	})
}
