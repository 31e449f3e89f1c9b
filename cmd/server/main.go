package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"movie-discovery-service/internal/config"
	"movie-discovery-service/internal/handler"
	"movie-discovery-service/internal/metrics"
	"movie-discovery-service/internal/middleware"
	"movie-discovery-service/internal/repository"
	"movie-discovery-service/internal/service"
	"movie-discovery-service/pkg/httpclient"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	// Load configuration
	cfg := config.Load()
	log.Info().
		Str("port", cfg.Port).
		Str("mode", cfg.GinMode).
		Int("proxies", len(cfg.CatalogProxies)).
		Msg("🚀 Starting movie-discovery-service")

	gin.SetMode(cfg.GinMode)

	// Initialize Redis cache
	cache, err := repository.NewCache(cfg.RedisURL, cfg.CacheTTLSearch)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer cache.Close()
	cache.SetLoadTimeout(cfg.CatalogTimeout)

	// Analytics and favorites share the cache connection
	analytics := repository.NewAnalytics(cache.Client())
	analytics.RecordServerStart(context.Background())
	favoriteStores := repository.NewRedisFavorites(cache.Client())
	log.Info().Msg("📊 Analytics enabled")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)

	// Initialize HTTP client with proxy support
	httpClient := httpclient.NewClient(cfg.CatalogProxies, cfg.CatalogHost(), cfg.CatalogTimeout)
	if httpClient.HasProxy() {
		log.Info().Int("count", httpClient.ProxyCount()).Msg("🔀 Proxy enabled")
	}

	tmdbService := service.NewTMDBService(cfg.TMDBAPIKeys, cfg.TMDBBaseURL, cfg.TMDBImageBase, cfg.TMDBLanguage, httpClient)

	ttl := handler.CacheTTLFromConfig(cfg)
	searchHandler := handler.NewSearchHandler(tmdbService, cache, ttl)
	suggestionsHandler := handler.NewSuggestionsHandler(tmdbService, cache, ttl)
	genresHandler := handler.NewGenresHandler(tmdbService, cache, ttl, cfg.TMDBLanguage)
	linksHandler := handler.NewLinksHandler(tmdbService)
	favoritesHandler := handler.NewFavoritesHandler(favoriteStores)
	adminHandler := handler.NewAdminHandler(tmdbService, httpClient, analytics)

	// Setup router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logging())
	r.Use(middleware.Metrics(analytics))
	r.Use(middleware.CORS())
	r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// API routes - 公开访问
	api := r.Group("/api/v1")
	{
		api.GET("/status", adminHandler.GetStatus)
		api.GET("/search", searchHandler.Search)
		api.GET("/suggestions", suggestionsHandler.GetSuggestions)
		api.GET("/genres", genresHandler.GetGenres)
		api.GET("/download", linksHandler.GetDownload)
		api.GET("/poster", linksHandler.GetPoster)

		api.GET("/favorites", favoritesHandler.List)
		api.PUT("/favorites", favoritesHandler.Replace)
		api.POST("/favorites/:id/toggle", favoritesHandler.Toggle)
	}

	// Admin routes - 需要认证（如果配置了 ADMIN_API_KEY）
	admin := r.Group("/api/v1")
	admin.Use(middleware.AdminAuth(cfg.AdminAPIKey))
	{
		admin.GET("/analytics", adminHandler.GetAnalytics)
		admin.GET("/analytics/endpoint", adminHandler.GetEndpointStats)
		admin.DELETE("/analytics", adminHandler.ResetAnalytics)

		// 缓存管理
		admin.DELETE("/search", searchHandler.DeleteSearchCache)
		admin.DELETE("/genres", genresHandler.DeleteGenresCache)
	}

	if cfg.AdminAPIKey != "" {
		log.Info().Msg("🔐 Admin API 认证已启用")
	} else {
		log.Warn().Msg("⚠️  Admin API 未配置认证，管理接口对外开放")
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("🌐 Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("👋 Server exited")
}
