package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"movie-discovery-service/internal/repository"
	"movie-discovery-service/internal/service"
	"movie-discovery-service/pkg/httpclient"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const batmanPage = `{"page":1,"total_pages":3,"total_results":55,"results":[
	{"id":268,"title":"Batman","release_date":"1989-06-23","vote_average":7.2,"popularity":40},
	{"id":364,"title":"Batman Returns","release_date":"1992-06-19","vote_average":6.9,"popularity":22},
	{"id":414,"title":"Batman Forever","release_date":"1995-06-16","vote_average":5.4,"popularity":30},
	{"id":268,"title":"Batman","release_date":"1989-06-23","vote_average":7.2,"popularity":40}
]}`

type testEnv struct {
	router   *gin.Engine
	mr       *miniredis.Miniredis
	upstream *int32
	lastURL  *atomic.Value
}

func newTestEnv(t *testing.T, keys []string, upstream http.HandlerFunc) *testEnv {
	t.Helper()

	var hits int32
	var last atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		last.Store(r.URL.String())
		upstream(w, r)
	}))
	t.Cleanup(srv.Close)

	mr := miniredis.RunT(t)
	cache, err := repository.NewCache("redis://"+mr.Addr(), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	client := httpclient.NewClient(nil, "", 2*time.Second)
	tmdb := service.NewTMDBService(keys, srv.URL, "https://image.tmdb.org/t/p", "en-US", client)
	ttl := DefaultCacheTTL()

	search := NewSearchHandler(tmdb, cache, ttl)
	suggestions := NewSuggestionsHandler(tmdb, cache, ttl)
	genres := NewGenresHandler(tmdb, cache, ttl, "en-US")
	links := NewLinksHandler(tmdb)
	favorites := NewFavoritesHandler(repository.NewRedisFavorites(cache.Client()))
	admin := NewAdminHandler(tmdb, client, repository.NewAnalytics(cache.Client()))

	r := gin.New()
	api := r.Group("/api/v1")
	api.GET("/search", search.Search)
	api.DELETE("/search", search.DeleteSearchCache)
	api.GET("/suggestions", suggestions.GetSuggestions)
	api.GET("/genres", genres.GetGenres)
	api.DELETE("/genres", genres.DeleteGenresCache)
	api.GET("/download", links.GetDownload)
	api.GET("/poster", links.GetPoster)
	api.GET("/favorites", favorites.List)
	api.PUT("/favorites", favorites.Replace)
	api.POST("/favorites/:id/toggle", favorites.Toggle)
	api.GET("/status", admin.GetStatus)
	api.GET("/analytics", admin.GetAnalytics)

	return &testEnv{router: r, mr: mr, upstream: &hits, lastURL: &last}
}

func (e *testEnv) do(t *testing.T, method, target string, body []byte, header http.Header) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func resultIDs(t *testing.T, body map[string]interface{}) []int {
	t.Helper()
	list, ok := body["results"].([]interface{})
	require.True(t, ok)
	ids := make([]int, 0, len(list))
	for _, item := range list {
		ids = append(ids, int(item.(map[string]interface{})["id"].(float64)))
	}
	return ids
}

func serve(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}
}

func TestSearchAppliesPostFilterAndSort(t *testing.T) {
	env := newTestEnv(t, []string{"k"}, serve(batmanPage))

	w, body := env.do(t, "GET", "/api/v1/search?query=batman&vote_average.gte=6&sort_by=release_date.desc&with_genres=28", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "search", body["mode"])
	assert.Equal(t, []int{364, 268}, resultIDs(t, body))
	assert.EqualValues(t, 3, body["total_pages"])
	assert.EqualValues(t, 55, body["total_results"])
	assert.Equal(t, []interface{}{"with_genres"}, body["ignored_filters"])
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	last := env.lastURL.Load().(string)
	assert.Contains(t, last, "/search/movie")
	assert.NotContains(t, last, "vote_average")
	assert.NotContains(t, last, "with_genres")
}

func TestSearchDefaultsSortToPopularityUnderPostFilter(t *testing.T) {
	env := newTestEnv(t, []string{"k"}, serve(batmanPage))

	_, body := env.do(t, "GET", "/api/v1/search?query=batman&vote_average.gte=1", nil, nil)
	assert.Equal(t, []int{268, 414, 364}, resultIDs(t, body))
}

func TestSearchCachesRawPage(t *testing.T) {
	env := newTestEnv(t, []string{"k"}, serve(batmanPage))

	w, _ := env.do(t, "GET", "/api/v1/search?query=batman", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "ignored_filters")

	// 同一页面，不同的本地筛选：命中缓存但结果不同
	w, body := env.do(t, "GET", "/api/v1/search?query=batman&vote_average.gte=7", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, []int{268}, resultIDs(t, body))
	assert.EqualValues(t, 1, atomic.LoadInt32(env.upstream))

	w, _ = env.do(t, "DELETE", "/api/v1/search", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	env.do(t, "GET", "/api/v1/search?query=batman", nil, nil)
	assert.EqualValues(t, 2, atomic.LoadInt32(env.upstream))
}

func TestSearchDiscoverModeForwardsFilters(t *testing.T) {
	env := newTestEnv(t, []string{"k"}, serve(batmanPage))

	w, body := env.do(t, "GET", "/api/v1/search?with_genres=28,12,28&primary_release_year=1989&sort_by=vote_average.desc&page=2", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "discover", body["mode"])
	assert.Nil(t, body["ignored_filters"])
	// discover mode keeps upstream order, minus the duplicate
	assert.Equal(t, []int{268, 364, 414}, resultIDs(t, body))

	last := env.lastURL.Load().(string)
	assert.Contains(t, last, "/discover/movie")
	assert.Contains(t, last, "with_genres=12%2C28")
	assert.Contains(t, last, "primary_release_year=1989")
	assert.Contains(t, last, "page=2")
}

func TestSearchRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, []string{"k"}, serve(batmanPage))

	for _, q := range []string{
		"page=0", "page=abc", "page=501",
		"primary_release_year=89", "primary_release_year=19x9",
		"vote_average.gte=11", "vote_average.gte=-1", "vote_average.gte=x",
		"sort_by=rating", "with_genres=action",
	} {
		w, body := env.do(t, "GET", "/api/v1/search?query=x&"+q, nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.NotEmpty(t, body["error"], q)
	}
	assert.Zero(t, atomic.LoadInt32(env.upstream))
}

func TestSearchUpstreamFailure(t *testing.T) {
	env := newTestEnv(t, []string{"k"}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status_message":"Invalid API key"}`))
	})

	w, body := env.do(t, "GET", "/api/v1/search?query=batman", nil, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, body["error"], "Invalid API key")

	// 失败结果不缓存
	env.do(t, "GET", "/api/v1/search?query=batman", nil, nil)
	assert.EqualValues(t, 2, atomic.LoadInt32(env.upstream))
}

func TestSearchNotConfigured(t *testing.T) {
	env := newTestEnv(t, nil, serve(batmanPage))

	w, body := env.do(t, "GET", "/api/v1/search?query=batman", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotEmpty(t, body["error"])

	w, _ = env.do(t, "GET", "/api/v1/genres", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w, _ = env.do(t, "GET", "/api/v1/suggestions?query=bat", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	assert.Zero(t, atomic.LoadInt32(env.upstream))

	_, status := env.do(t, "GET", "/api/v1/status", nil, nil)
	assert.Equal(t, false, status["catalog_configured"])
}

func TestSuggestions(t *testing.T) {
	env := newTestEnv(t, []string{"k"}, serve(batmanPage))

	w, body := env.do(t, "GET", "/api/v1/suggestions?query=%20%20", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["results"])
	assert.Zero(t, atomic.LoadInt32(env.upstream))

	w, body = env.do(t, "GET", "/api/v1/suggestions?query=bat", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	results := body["results"].([]interface{})
	require.Len(t, results, 4)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "Batman", first["title"])
	assert.Equal(t, "1989", first["year"])
}

func TestGenresCached(t *testing.T) {
	env := newTestEnv(t, []string{"k"}, serve(`{"genres":[{"id":28,"name":"Action"}]}`))

	for i := 0; i < 3; i++ {
		w, body := env.do(t, "GET", "/api/v1/genres", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []interface{}{map[string]interface{}{"id": float64(28), "name": "Action"}}, body["genres"])
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(env.upstream))
	assert.True(t, env.mr.Exists(genresCachePrefix+"en-US"))

	env.do(t, "DELETE", "/api/v1/genres", nil, nil)
	assert.False(t, env.mr.Exists(genresCachePrefix+"en-US"))
}

func TestLinks(t *testing.T) {
	env := newTestEnv(t, nil, serve(`{}`))

	w, body := env.do(t, "GET", "/api/v1/download?id=603", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://www.themoviedb.org/movie/603", body["url"])

	w, _ = env.do(t, "GET", "/api/v1/download", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, body = env.do(t, "GET", "/api/v1/poster?path=/abc.jpg&size=w92", nil, nil)
	assert.Equal(t, "https://image.tmdb.org/t/p/w92/abc.jpg", body["url"])
}

func TestFavorites(t *testing.T) {
	env := newTestEnv(t, nil, serve(`{}`))
	alice := http.Header{"X-Client-ID": {"alice"}}

	_, body := env.do(t, "POST", "/api/v1/favorites/603/toggle", nil, alice)
	assert.Equal(t, true, body["favorite"])
	assert.EqualValues(t, 603, body["id"])

	_, body = env.do(t, "GET", "/api/v1/favorites", nil, alice)
	assert.Equal(t, []interface{}{float64(603)}, body["ids"])

	_, body = env.do(t, "GET", "/api/v1/favorites", nil, nil)
	assert.Empty(t, body["ids"])

	_, body = env.do(t, "POST", "/api/v1/favorites/603/toggle", nil, alice)
	assert.Equal(t, false, body["favorite"])

	w, body := env.do(t, "PUT", "/api/v1/favorites", []byte(`{"ids":[13,7,13]}`), alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{float64(7), float64(13)}, body["ids"])

	w, _ = env.do(t, "PUT", "/api/v1/favorites", []byte(`{"ids":[-1]}`), alice)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.do(t, "POST", "/api/v1/favorites/abc/toggle", nil, alice)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.do(t, "GET", "/api/v1/favorites", nil, http.Header{"X-Client-ID": {"bad id!"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFavoritesManyOwnersShareNothingInProcess(t *testing.T) {
	env := newTestEnv(t, nil, serve(`{}`))

	// a second handler on the same Redis sees every toggle of the first
	cache, err := repository.NewCache("redis://"+env.mr.Addr(), time.Minute)
	require.NoError(t, err)
	defer cache.Close()
	other := NewFavoritesHandler(repository.NewRedisFavorites(cache.Client()))
	r := gin.New()
	r.GET("/api/v1/favorites", other.List)

	for i := 0; i < 200; i++ {
		owner := http.Header{"X-Client-ID": {"owner-" + strconv.Itoa(i)}}
		w, _ := env.do(t, "POST", "/api/v1/favorites/"+strconv.Itoa(i+1)+"/toggle", nil, owner)
		require.Equal(t, http.StatusOK, w.Code)
	}

	req := httptest.NewRequest("GET", "/api/v1/favorites", nil)
	req.Header.Set("X-Client-ID", "owner-199")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.JSONEq(t, `{"ids":[200]}`, w.Body.String())
	assert.Len(t, env.mr.Keys(), 200)
}

func TestFavoritesStoreOutage(t *testing.T) {
	env := newTestEnv(t, nil, serve(`{}`))
	alice := http.Header{"X-Client-ID": {"alice"}}

	w, _ := env.do(t, "PUT", "/api/v1/favorites", []byte(`{"ids":[1,2]}`), alice)
	require.Equal(t, http.StatusOK, w.Code)

	env.mr.SetError("ERR simulated outage")
	w, _ = env.do(t, "POST", "/api/v1/favorites/3/toggle", nil, alice)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w, _ = env.do(t, "GET", "/api/v1/favorites", nil, alice)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	env.mr.SetError("")

	_, body := env.do(t, "GET", "/api/v1/favorites", nil, alice)
	assert.Equal(t, []interface{}{float64(1), float64(2)}, body["ids"])
}

func TestStatusAndAnalytics(t *testing.T) {
	env := newTestEnv(t, []string{"a", "b"}, serve(`{}`))

	w, body := env.do(t, "GET", "/api/v1/status", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["catalog_configured"])
	assert.EqualValues(t, 2, body["catalog_keys"])
	assert.Equal(t, false, body["proxy_enabled"])

	w, body = env.do(t, "GET", "/api/v1/analytics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 200, body["code"])
	assert.NotNil(t, body["data"])
}
