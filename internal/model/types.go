package model

import "strings"

// ================== 通用响应 ==================

// APIResponse is the standard API response format
type APIResponse struct {
	Code    int         `json:"code"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Source  string      `json:"source,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ================== 影片目录 ==================

// MovieRecord is one catalog entry. Values are only produced by decoding
// catalog responses and are never mutated afterwards.
type MovieRecord struct {
	ID               int     `json:"id"`
	Title            string  `json:"title"`
	Overview         string  `json:"overview"`
	ReleaseDate      string  `json:"release_date,omitempty"`
	PosterPath       string  `json:"poster_path,omitempty"`
	VoteAverage      float64 `json:"vote_average"`
	Popularity       float64 `json:"popularity"`
	OriginalLanguage string  `json:"original_language,omitempty"`
}

// Year returns the year part of ReleaseDate, or "" when unknown
func (m MovieRecord) Year() string {
	year, _, _ := strings.Cut(m.ReleaseDate, "-")
	return year
}

// PageResult is a single successfully fetched catalog page
type PageResult struct {
	Page         int           `json:"page"`
	Results      []MovieRecord `json:"results"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
}

// Genre is an entry of the catalog genre list
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// GenreList mirrors the upstream genre list payload
type GenreList struct {
	Genres []Genre `json:"genres"`
}

// Suggestion is a lightweight search suggestion
type Suggestion struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Year  string `json:"year,omitempty"`
}

// ================== 筛选与排序 ==================

// SortKey is the sort vocabulary shared by the UI and the catalog
type SortKey string

const (
	SortPopularityDesc  SortKey = "popularity.desc"
	SortReleaseDateDesc SortKey = "release_date.desc"
	SortReleaseDateAsc  SortKey = "release_date.asc"
	SortTitleAsc        SortKey = "original_title.asc"
	SortVoteAverageDesc SortKey = "vote_average.desc"
)

// SortKeys lists the supported sort keys in display order
var SortKeys = []SortKey{
	SortPopularityDesc,
	SortReleaseDateDesc,
	SortReleaseDateAsc,
	SortTitleAsc,
	SortVoteAverageDesc,
}

// ParseSortKey validates a raw sort_by value. The empty string is accepted
// and means "no explicit sort".
func ParseSortKey(raw string) (SortKey, bool) {
	if raw == "" {
		return "", true
	}
	for _, k := range SortKeys {
		if string(k) == raw {
			return k, true
		}
	}
	return "", false
}

// FilterState is the user's current filter and sort selection
type FilterState struct {
	GenreIDs  []int   `json:"genre_ids,omitempty"`
	Year      string  `json:"year,omitempty"`
	Language  string  `json:"language,omitempty"`
	MinRating float64 `json:"min_rating,omitempty"`
	SortKey   SortKey `json:"sort_by,omitempty"`
}
