package main

import (
	"bytes"
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"movie-discovery-service/internal/discovery"
	"movie-discovery-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct {
	mu       sync.Mutex
	requests []discovery.Request
	err      error
}

func (s *stubCatalog) FetchPage(_ context.Context, req discovery.Request) (*model.PageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &model.PageResult{
		Page:         req.Page,
		TotalPages:   2,
		TotalResults: 2,
		Results: []model.MovieRecord{{
			ID:          100 + req.Page,
			Title:       "Heat part " + strconv.Itoa(req.Page),
			ReleaseDate: "1995-12-15",
			VoteAverage: 7.9,
		}},
	}, nil
}

func (s *stubCatalog) Genres(context.Context, string) ([]model.Genre, error) {
	return []model.Genre{{ID: 80, Name: "Crime"}}, nil
}

func (s *stubCatalog) last() discovery.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

func newTestREPL(catalog *stubCatalog) (*repl, *bytes.Buffer) {
	out := &bytes.Buffer{}
	r := &repl{
		out:       out,
		session:   discovery.NewSession(catalog),
		favorites: discovery.NewFavorites(discovery.NewMemoryFavorites()),
		genres:    catalog,
		movieURL:  func(id int) string { return "https://www.themoviedb.org/movie/" + strconv.Itoa(id) },
	}
	r.suggest = discovery.NewDebouncer(10*time.Millisecond, discovery.SuggestLookup(catalog, ""), r.onSuggestions)
	return r, out
}

func TestREPLSearchAndMore(t *testing.T) {
	catalog := &stubCatalog{}
	r, out := newTestREPL(catalog)
	ctx := context.Background()

	assert.True(t, r.handle(ctx, "heat"))
	assert.Equal(t, discovery.ModeSearch, catalog.last().Mode)
	assert.Contains(t, out.String(), "Heat part 1")
	assert.Contains(t, out.String(), "search · page 1/2")

	out.Reset()
	r.handle(ctx, ":more")
	assert.Contains(t, out.String(), "Heat part 2")
	assert.Contains(t, out.String(), "page 2/2")

	out.Reset()
	r.handle(ctx, ":more")
	assert.Contains(t, out.String(), "no more results")
}

func TestREPLFiltersSwitchToDiscover(t *testing.T) {
	catalog := &stubCatalog{}
	r, out := newTestREPL(catalog)
	ctx := context.Background()

	r.handle(ctx, ":genre 80,18")
	req := catalog.last()
	assert.Equal(t, discovery.ModeDiscover, req.Mode)
	assert.Equal(t, "18,80", req.Params.Get(discovery.ParamGenres))

	r.handle(ctx, "heat")
	assert.Contains(t, out.String(), "genre filter is ignored")

	out.Reset()
	r.handle(ctx, ":year 95")
	assert.Contains(t, out.String(), "four digits")
	r.handle(ctx, ":sort rating")
	assert.Contains(t, out.String(), "unknown sort key")
	r.handle(ctx, ":rating 11")
	assert.Contains(t, out.String(), "between 0 and 10")
}

func TestREPLFailureAndRetry(t *testing.T) {
	catalog := &stubCatalog{err: model.ErrNotConfigured}
	r, out := newTestREPL(catalog)
	ctx := context.Background()

	r.handle(ctx, "heat")
	assert.Contains(t, out.String(), "TMDB_API_KEY is not set")

	catalog.mu.Lock()
	catalog.err = nil
	catalog.mu.Unlock()

	out.Reset()
	r.handle(ctx, ":retry")
	assert.Contains(t, out.String(), "Heat part 1")
}

func TestREPLFavoritesAndGenres(t *testing.T) {
	catalog := &stubCatalog{}
	r, out := newTestREPL(catalog)
	ctx := context.Background()

	r.handle(ctx, ":fav 101")
	assert.Contains(t, out.String(), "101 added")

	out.Reset()
	r.handle(ctx, "heat")
	assert.Contains(t, out.String(), "★   1. Heat part 1")

	out.Reset()
	r.handle(ctx, ":favs")
	assert.Contains(t, out.String(), "https://www.themoviedb.org/movie/101")

	out.Reset()
	r.handle(ctx, ":genres")
	assert.Contains(t, out.String(), "Crime")

	assert.False(t, r.handle(ctx, ":quit"))
}

func TestREPLSuggestions(t *testing.T) {
	catalog := &stubCatalog{}
	r, out := newTestREPL(catalog)
	defer r.suggest.Close()

	r.handle(context.Background(), "?he")
	r.handle(context.Background(), "?heat")

	require.Eventually(t, func() bool {
		r.outMu.Lock()
		defer r.outMu.Unlock()
		return bytes.Contains(out.Bytes(), []byte(`suggestions for "heat"`))
	}, time.Second, 5*time.Millisecond)

	r.outMu.Lock()
	defer r.outMu.Unlock()
	assert.NotContains(t, out.String(), `suggestions for "he"`)
	assert.Contains(t, out.String(), "Heat part 1 (1995)")
}
