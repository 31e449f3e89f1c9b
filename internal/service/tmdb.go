package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"movie-discovery-service/internal/discovery"
	"movie-discovery-service/internal/metrics"
	"movie-discovery-service/internal/model"
	"movie-discovery-service/pkg/httpclient"

	"github.com/rs/zerolog/log"
)

const (
	searchPath   = "/search/movie"
	discoverPath = "/discover/movie"
	genresPath   = "/genre/movie/list"

	moviePageURL = "https://www.themoviedb.org/movie/"
)

// PosterSizes are the image widths the catalog serves
var PosterSizes = []string{"w92", "w154", "w185", "w342", "w500", "w780", "original"}

const defaultPosterSize = "w500"

// TMDBService handles TMDB API interactions with key rotation
type TMDBService struct {
	apiKeys   []string
	baseURL   string
	imageBase string
	language  string
	client    *httpclient.Client
	keyIndex  uint64 // 原子计数器，用于轮询
}

// NewTMDBService creates a new TMDBService with multiple API keys
func NewTMDBService(apiKeys []string, baseURL, imageBase, language string, client *httpclient.Client) *TMDBService {
	if len(apiKeys) > 0 {
		log.Info().Int("count", len(apiKeys)).Msg("🔑 TMDB API Keys 已配置，启用轮询模式")
	} else {
		log.Warn().Msg("⚠️  TMDB_API_KEY 未配置，目录接口不可用")
	}
	return &TMDBService{
		apiKeys:   apiKeys,
		baseURL:   strings.TrimRight(baseURL, "/"),
		imageBase: strings.TrimRight(imageBase, "/"),
		language:  language,
		client:    client,
	}
}

// getNextKey returns the next API key using round-robin
func (s *TMDBService) getNextKey() string {
	if len(s.apiKeys) == 0 {
		return ""
	}
	idx := atomic.AddUint64(&s.keyIndex, 1) - 1
	return s.apiKeys[idx%uint64(len(s.apiKeys))]
}

// FetchPage executes a search or discover request and returns the decoded
// page. Records missing an id or title are dropped.
func (s *TMDBService) FetchPage(ctx context.Context, req discovery.Request) (*model.PageResult, error) {
	path := discoverPath
	if req.Mode == discovery.ModeSearch {
		path = searchPath
	}

	params := url.Values{}
	for k, v := range req.Params {
		params[k] = append([]string(nil), v...)
	}
	if req.Mode == discovery.ModeSearch {
		params.Set("include_adult", "false")
	}
	if params.Get(discovery.ParamLanguage) == "" && s.language != "" {
		params.Set(discovery.ParamLanguage, s.language)
	}

	body, err := s.get(ctx, path, params)
	if err != nil {
		return nil, err
	}

	page, dropped, err := decodePage(body, req.Page)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		metrics.MalformedRecordsTotal.Add(float64(dropped))
		log.Debug().
			Str("request", req.String()).
			Int("dropped", dropped).
			Msg("TMDB: dropped malformed records")
	}
	return page, nil
}

// Genres returns the movie genre list
func (s *TMDBService) Genres(ctx context.Context, language string) ([]model.Genre, error) {
	if language == "" {
		language = s.language
	}
	params := url.Values{}
	if language != "" {
		params.Set(discovery.ParamLanguage, language)
	}

	body, err := s.get(ctx, genresPath, params)
	if err != nil {
		return nil, err
	}

	var result model.GenreList
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &model.FetchError{Reason: model.UpstreamError, Status: http.StatusOK, Err: fmt.Errorf("failed to parse genres: %w", err)}
	}
	if result.Genres == nil {
		result.Genres = []model.Genre{}
	}
	return result.Genres, nil
}

// PosterURL resolves a poster path for size; unknown sizes use w500
func (s *TMDBService) PosterURL(path, size string) string {
	if path == "" {
		return ""
	}
	if !validPosterSize(size) {
		size = defaultPosterSize
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return s.imageBase + "/" + size + path
}

// MovieURL returns the public catalog page for a movie
func (s *TMDBService) MovieURL(id int) string {
	return moviePageURL + strconv.Itoa(id)
}

// IsConfigured returns true if TMDB is configured
func (s *TMDBService) IsConfigured() bool {
	return len(s.apiKeys) > 0
}

// KeyCount returns the number of configured API keys
func (s *TMDBService) KeyCount() int {
	return len(s.apiKeys)
}

// get issues one authenticated request and classifies failures
func (s *TMDBService) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	apiKey := s.getNextKey()
	if apiKey == "" {
		return nil, model.ErrNotConfigured
	}

	header := http.Header{}
	if isBearerToken(apiKey) {
		header.Set("Authorization", "Bearer "+apiKey)
	} else {
		params.Set("api_key", apiKey)
	}

	start := time.Now()
	resp, err := s.client.Get(ctx, s.baseURL+path+"?"+params.Encode(), header)
	metrics.CatalogRequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.CatalogRequestsTotal.WithLabelValues(path, model.NetworkFailure.String()).Inc()
		return nil, &model.FetchError{Reason: model.NetworkFailure, Err: err}
	}
	if !resp.OK() {
		metrics.CatalogRequestsTotal.WithLabelValues(path, model.UpstreamError.String()).Inc()
		log.Warn().
			Str("path", path).
			Int("status", resp.StatusCode).
			Msg("TMDB returned non-2xx status")
		return nil, &model.FetchError{Reason: model.UpstreamError, Status: resp.StatusCode, Err: upstreamMessage(resp.Body)}
	}

	metrics.CatalogRequestsTotal.WithLabelValues(path, "ok").Inc()
	return resp.Body, nil
}

// rawPage is decoded leniently: results are kept raw and decoded one by one
type rawPage struct {
	Page         int               `json:"page"`
	Results      []json.RawMessage `json:"results"`
	TotalPages   int               `json:"total_pages"`
	TotalResults int               `json:"total_results"`
}

type rawMovie struct {
	ID               *int    `json:"id"`
	Title            *string `json:"title"`
	Overview         string  `json:"overview"`
	ReleaseDate      string  `json:"release_date"`
	PosterPath       string  `json:"poster_path"`
	VoteAverage      float64 `json:"vote_average"`
	Popularity       float64 `json:"popularity"`
	OriginalLanguage string  `json:"original_language"`
}

func decodePage(body []byte, requestedPage int) (*model.PageResult, int, error) {
	var raw rawPage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, 0, &model.FetchError{Reason: model.UpstreamError, Status: http.StatusOK, Err: fmt.Errorf("failed to parse TMDB response: %w", err)}
	}

	page := &model.PageResult{
		Page:         raw.Page,
		TotalPages:   raw.TotalPages,
		TotalResults: raw.TotalResults,
		Results:      make([]model.MovieRecord, 0, len(raw.Results)),
	}
	if page.Page < 1 {
		page.Page = max(requestedPage, 1)
	}
	if page.TotalPages < 1 {
		page.TotalPages = 1
	}

	dropped := 0
	for _, item := range raw.Results {
		var m rawMovie
		if err := json.Unmarshal(item, &m); err != nil || m.ID == nil || m.Title == nil || *m.Title == "" {
			dropped++
			continue
		}
		page.Results = append(page.Results, model.MovieRecord{
			ID:               *m.ID,
			Title:            *m.Title,
			Overview:         m.Overview,
			ReleaseDate:      m.ReleaseDate,
			PosterPath:       m.PosterPath,
			VoteAverage:      m.VoteAverage,
			Popularity:       m.Popularity,
			OriginalLanguage: m.OriginalLanguage,
		})
	}
	return page, dropped, nil
}

// upstreamMessage extracts TMDB's status_message when present
func upstreamMessage(body []byte) error {
	var payload struct {
		StatusMessage string `json:"status_message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.StatusMessage != "" {
		return errors.New(payload.StatusMessage)
	}
	return nil
}

// isBearerToken detects v4 read access tokens (JWTs) as opposed to v3 keys
func isBearerToken(key string) bool {
	return strings.HasPrefix(key, "eyJ") && strings.Count(key, ".") == 2
}

func validPosterSize(size string) bool {
	for _, s := range PosterSizes {
		if s == size {
			return true
		}
	}
	return false
}
