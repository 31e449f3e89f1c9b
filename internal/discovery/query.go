// Package discovery implements the search/discovery request pipeline: it
// decides which catalog endpoint to call, maps filters onto catalog
// parameters and folds fetched pages into one ordered, deduplicated list.
package discovery

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"movie-discovery-service/internal/model"
)

// Mode selects the catalog endpoint
type Mode int

const (
	ModeDiscover Mode = iota
	ModeSearch
)

func (m Mode) String() string {
	if m == ModeSearch {
		return "search"
	}
	return "discover"
}

// Catalog parameter names
const (
	ParamQuery     = "query"
	ParamPage      = "page"
	ParamLanguage  = "language"
	ParamGenres    = "with_genres"
	ParamYear      = "primary_release_year"
	ParamMinRating = "vote_average.gte"
	ParamSortBy    = "sort_by"
)

// Request is a fully resolved catalog request descriptor
type Request struct {
	Mode   Mode
	Query  string
	Page   int
	Params url.Values

	// Post is set in search mode when filters must be applied locally
	Post *PostFilter
}

// PostFilter holds the constraints the search endpoint cannot apply.
// Genre filtering is not supported on search results; the requested ids
// are kept in IgnoredGenres so callers can report them.
type PostFilter struct {
	Year          string
	MinRating     float64
	SortKey       model.SortKey
	IgnoredGenres []int
}

// Active reports whether any constraint that changes the result set or
// its order is present
func (p *PostFilter) Active() bool {
	if p == nil {
		return false
	}
	return p.Year != "" || p.MinRating > 0 || p.SortKey != ""
}

// Match applies the year prefix and minimum rating predicates
func (p *PostFilter) Match(m model.MovieRecord) bool {
	if p == nil {
		return true
	}
	if p.Year != "" && !strings.HasPrefix(m.ReleaseDate, p.Year) {
		return false
	}
	if p.MinRating > 0 && m.VoteAverage < p.MinRating {
		return false
	}
	return true
}

// Apply filters records and returns a new slice
func (p *PostFilter) Apply(records []model.MovieRecord) []model.MovieRecord {
	out := make([]model.MovieRecord, 0, len(records))
	for _, m := range records {
		if p.Match(m) {
			out = append(out, m)
		}
	}
	return out
}

// BuildRequest turns free text and filters into a catalog request.
// Non-empty text selects search mode, where only query, page and language
// are sent upstream and the remaining filters become a PostFilter.
// Otherwise discover mode forwards every active filter upstream.
func BuildRequest(freeText string, filters model.FilterState, page int) Request {
	if page < 1 {
		page = 1
	}
	query := strings.TrimSpace(freeText)
	params := url.Values{}
	params.Set(ParamPage, strconv.Itoa(page))
	if filters.Language != "" {
		params.Set(ParamLanguage, filters.Language)
	}

	if query != "" {
		params.Set(ParamQuery, query)
		req := Request{Mode: ModeSearch, Query: query, Page: page, Params: params}
		post := &PostFilter{
			Year:          filters.Year,
			MinRating:     filters.MinRating,
			SortKey:       filters.SortKey,
			IgnoredGenres: normalizeGenres(filters.GenreIDs),
		}
		if post.Active() || len(post.IgnoredGenres) > 0 {
			req.Post = post
		}
		return req
	}

	if genres := normalizeGenres(filters.GenreIDs); len(genres) > 0 {
		ids := make([]string, len(genres))
		for i, id := range genres {
			ids[i] = strconv.Itoa(id)
		}
		params.Set(ParamGenres, strings.Join(ids, ","))
	}
	if filters.Year != "" {
		params.Set(ParamYear, filters.Year)
	}
	if filters.MinRating > 0 {
		params.Set(ParamMinRating, strconv.FormatFloat(filters.MinRating, 'f', -1, 64))
	}
	if filters.SortKey != "" {
		params.Set(ParamSortBy, string(filters.SortKey))
	}
	return Request{Mode: ModeDiscover, Page: page, Params: params}
}

// WithPage returns a copy of r targeting another page
func (r Request) WithPage(page int) Request {
	if page < 1 {
		page = 1
	}
	out := r
	out.Page = page
	out.Params = url.Values{}
	for k, v := range r.Params {
		out.Params[k] = append([]string(nil), v...)
	}
	out.Params.Set(ParamPage, strconv.Itoa(page))
	return out
}

// String renders the upstream call, page included; it doubles as a cache key
func (r Request) String() string {
	return r.Mode.String() + "?" + r.Params.Encode()
}

func normalizeGenres(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
