package handler

import (
	"time"

	"movie-discovery-service/internal/config"
)

// Redis key prefixes of the response cache
const (
	searchCachePrefix = "discovery:search:"
	genresCachePrefix = "discovery:genres:"
)

// CacheTTLConfig holds cache TTL configuration for different data types
type CacheTTLConfig struct {
	Search time.Duration
	Genres time.Duration
}

// DefaultCacheTTL returns default cache TTL configuration
func DefaultCacheTTL() *CacheTTLConfig {
	return &CacheTTLConfig{
		Search: 60 * time.Second,
		Genres: 24 * time.Hour,
	}
}

// CacheTTLFromConfig reads the TTLs from the service configuration
func CacheTTLFromConfig(cfg *config.Config) *CacheTTLConfig {
	ttl := DefaultCacheTTL()
	if cfg.CacheTTLSearch > 0 {
		ttl.Search = cfg.CacheTTLSearch
	}
	if cfg.CacheTTLGenres > 0 {
		ttl.Genres = cfg.CacheTTLGenres
	}
	return ttl
}
