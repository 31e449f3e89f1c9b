package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	analyticsPrefix   = "analytics:"
	analyticsPaths    = analyticsPrefix + "paths"
	analyticsTotal    = analyticsPrefix + "global:total"
	analyticsLatency  = analyticsPrefix + "global:latency_sum"
	analyticsStarted  = analyticsPrefix + "server:start_time"
	dailyRetention    = 30 * 24 * time.Hour
	topEndpointsLimit = 10
)

// Analytics keeps per-endpoint façade counters in Redis for the admin dashboard
type Analytics struct {
	client *redis.Client
	now    func() time.Time
}

// EndpointStats summarizes one route
type EndpointStats struct {
	Path           string  `json:"path"`
	TotalCalls     int64   `json:"total_calls"`
	SuccessCalls   int64   `json:"success_calls"`
	ClientErrors   int64   `json:"client_errors"`
	UpstreamErrors int64   `json:"upstream_errors"`
	Unconfigured   int64   `json:"unconfigured"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
	MaxLatencyMs   float64 `json:"max_latency_ms"`
	CacheHits      int64   `json:"cache_hits"`
	CacheMisses    int64   `json:"cache_misses"`
}

// DailyStats is the call volume for one day
type DailyStats struct {
	Date       string  `json:"date"`
	TotalCalls int64   `json:"total_calls"`
	AvgLatency float64 `json:"avg_latency"`
}

// OverallStats is the dashboard summary
type OverallStats struct {
	TotalAPICalls int64           `json:"total_api_calls"`
	TodayAPICalls int64           `json:"today_api_calls"`
	AvgLatencyMs  float64         `json:"avg_latency_ms"`
	CacheHitRate  float64         `json:"cache_hit_rate"`
	ErrorRate     float64         `json:"error_rate"`
	TopEndpoints  []EndpointStats `json:"top_endpoints"`
	DailyTrend    []DailyStats    `json:"daily_trend"`
	Uptime        int64           `json:"uptime_seconds"`
}

// NewAnalytics creates an Analytics sharing client
func NewAnalytics(client *redis.Client) *Analytics {
	return &Analytics{client: client, now: time.Now}
}

func pathKey(path string) string {
	return analyticsPrefix + "path:" + path
}

func (a *Analytics) dailyKey(t time.Time) string {
	return analyticsPrefix + "daily:" + t.Format("2006-01-02")
}

// RecordAPICall records one façade call. Status 502 counts as an upstream
// error and 503 as a call made while the catalog is not configured.
func (a *Analytics) RecordAPICall(ctx context.Context, path string, status int, latencyMs float64, cacheHit bool) error {
	key := pathKey(path)
	daily := a.dailyKey(a.now())

	pipe := a.client.TxPipeline()
	pipe.HIncrBy(ctx, key, "total", 1)
	pipe.HIncrByFloat(ctx, key, "latency_sum", latencyMs)

	switch {
	case status < 400:
		pipe.HIncrBy(ctx, key, "success", 1)
	case status == 502 || status == 504:
		pipe.HIncrBy(ctx, key, "upstream_error", 1)
	case status == 503:
		pipe.HIncrBy(ctx, key, "unconfigured", 1)
	default:
		pipe.HIncrBy(ctx, key, "client_error", 1)
	}

	if cacheHit {
		pipe.HIncrBy(ctx, key, "cache_hits", 1)
	} else {
		pipe.HIncrBy(ctx, key, "cache_misses", 1)
	}

	pipe.HIncrBy(ctx, daily, "total", 1)
	pipe.HIncrByFloat(ctx, daily, "latency_sum", latencyMs)
	pipe.Expire(ctx, daily, dailyRetention)

	pipe.Incr(ctx, analyticsTotal)
	pipe.IncrByFloat(ctx, analyticsLatency, latencyMs)
	pipe.SAdd(ctx, analyticsPaths, path)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record api call: %w", err)
	}

	// max latency needs a read; a lost race only under-reports the peak
	current, err := a.client.HGet(ctx, key, "max_latency").Float64()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("read max latency: %w", err)
	}
	if latencyMs > current {
		a.client.HSet(ctx, key, "max_latency", latencyMs)
	}
	return nil
}

// GetAPIStats gets statistics for a specific API path
func (a *Analytics) GetAPIStats(ctx context.Context, path string) (*EndpointStats, error) {
	fields, err := a.client.HGetAll(ctx, pathKey(path)).Result()
	if err != nil {
		return nil, err
	}

	stats := &EndpointStats{
		Path:           path,
		TotalCalls:     parseInt(fields["total"]),
		SuccessCalls:   parseInt(fields["success"]),
		ClientErrors:   parseInt(fields["client_error"]),
		UpstreamErrors: parseInt(fields["upstream_error"]),
		Unconfigured:   parseInt(fields["unconfigured"]),
		MaxLatencyMs:   parseFloat(fields["max_latency"]),
		CacheHits:      parseInt(fields["cache_hits"]),
		CacheMisses:    parseInt(fields["cache_misses"]),
	}
	if stats.TotalCalls > 0 {
		stats.AvgLatencyMs = parseFloat(fields["latency_sum"]) / float64(stats.TotalCalls)
	}
	return stats, nil
}

// GetOverallStats gets overall system statistics
func (a *Analytics) GetOverallStats(ctx context.Context) (*OverallStats, error) {
	stats := &OverallStats{}

	total, err := a.client.Get(ctx, analyticsTotal).Int64()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	latencySum, _ := a.client.Get(ctx, analyticsLatency).Float64()
	stats.TotalAPICalls = total
	if total > 0 {
		stats.AvgLatencyMs = latencySum / float64(total)
	}

	stats.TodayAPICalls, _ = a.client.HGet(ctx, a.dailyKey(a.now()), "total").Int64()

	paths, err := a.client.SMembers(ctx, analyticsPaths).Result()
	if err != nil {
		return nil, err
	}

	var endpoints []EndpointStats
	var hits, misses, failures int64
	for _, p := range paths {
		s, err := a.GetAPIStats(ctx, p)
		if err != nil || s.TotalCalls == 0 {
			continue
		}
		endpoints = append(endpoints, *s)
		hits += s.CacheHits
		misses += s.CacheMisses
		failures += s.ClientErrors + s.UpstreamErrors + s.Unconfigured
	}

	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].TotalCalls == endpoints[j].TotalCalls {
			return endpoints[i].Path < endpoints[j].Path
		}
		return endpoints[i].TotalCalls > endpoints[j].TotalCalls
	})
	if len(endpoints) > topEndpointsLimit {
		endpoints = endpoints[:topEndpointsLimit]
	}
	stats.TopEndpoints = endpoints

	if hits+misses > 0 {
		stats.CacheHitRate = float64(hits) / float64(hits+misses) * 100
	}
	if total > 0 {
		stats.ErrorRate = float64(failures) / float64(total) * 100
	}

	stats.DailyTrend = a.dailyTrend(ctx, 7)

	if started, err := a.client.Get(ctx, analyticsStarted).Int64(); err == nil && started > 0 {
		stats.Uptime = a.now().Unix() - started
	}
	return stats, nil
}

func (a *Analytics) dailyTrend(ctx context.Context, days int) []DailyStats {
	trend := make([]DailyStats, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := a.now().AddDate(0, 0, -i)
		fields, err := a.client.HGetAll(ctx, a.dailyKey(day)).Result()
		if err != nil {
			continue
		}
		d := DailyStats{Date: day.Format("2006-01-02"), TotalCalls: parseInt(fields["total"])}
		if d.TotalCalls > 0 {
			d.AvgLatency = parseFloat(fields["latency_sum"]) / float64(d.TotalCalls)
		}
		trend = append(trend, d)
	}
	return trend
}

// RecordServerStart records server start time
func (a *Analytics) RecordServerStart(ctx context.Context) {
	if err := a.client.Set(ctx, analyticsStarted, a.now().Unix(), 0).Err(); err != nil {
		log.Warn().Err(err).Msg("Failed to record server start")
	}
}

// Reset removes all analytics keys
func (a *Analytics) Reset(ctx context.Context) error {
	var keys []string
	iter := a.client.Scan(ctx, 0, analyticsPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return a.client.Del(ctx, keys...).Err()
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
