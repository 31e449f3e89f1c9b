package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all configuration for the service
type Config struct {
	Port        string
	GinMode     string
	RedisURL    string
	AdminAPIKey string

	TMDBAPIKeys     []string // 支持多个 API Key 轮询
	TMDBBaseURL     string
	TMDBImageBase   string
	TMDBLanguage    string
	CatalogProxies  []string
	CatalogTimeout  time.Duration
	SuggestDebounce time.Duration

	CacheTTLSearch time.Duration
	CacheTTLGenres time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	FavoritesFile string
}

// Load reads configuration from the environment, after merging an optional .env file
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded .env file")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		AdminAPIKey: os.Getenv("ADMIN_API_KEY"),

		TMDBAPIKeys:     splitList(os.Getenv("TMDB_API_KEY")),
		TMDBBaseURL:     getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBImageBase:   getEnv("TMDB_IMAGE_BASE", "https://image.tmdb.org/t/p"),
		TMDBLanguage:    getEnv("TMDB_LANGUAGE", "en-US"),
		CatalogProxies:  splitList(os.Getenv("TMDB_API_PROXY")),
		CatalogTimeout:  getDuration("CATALOG_TIMEOUT", 10*time.Second),
		SuggestDebounce: getDuration("SUGGEST_DEBOUNCE", 250*time.Millisecond),

		CacheTTLSearch: getDuration("CACHE_TTL_SEARCH", 60*time.Second),
		CacheTTLGenres: getDuration("CACHE_TTL_GENRES", 24*time.Hour),

		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 40),

		FavoritesFile: getEnv("FAVORITES_FILE", defaultFavoritesFile()),
	}
}

// CatalogConfigured reports whether at least one TMDB credential is present
func (c *Config) CatalogConfigured() bool {
	return len(c.TMDBAPIKeys) > 0
}

// CatalogHost is the TMDB host whose requests are rewritten onto TMDB_API_PROXY
func (c *Config) CatalogHost() string {
	u, err := url.Parse(c.TMDBBaseURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func splitList(raw string) []string {
	items := []string{}
	for _, p := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Msg("Invalid duration, using default")
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Msg("Invalid integer, using default")
		return defaultValue
	}
	return n
}

func getFloat(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Msg("Invalid number, using default")
		return defaultValue
	}
	return f
}

func defaultFavoritesFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "favorites.json"
	}
	return dir + string(os.PathSeparator) + "movie-discovery" + string(os.PathSeparator) + "favorites.json"
}
