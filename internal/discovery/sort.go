package discovery

import (
	"cmp"
	"slices"
	"strings"

	"movie-discovery-service/internal/model"
)

// Comparator orders two records; negative means a sorts before b
type Comparator func(a, b model.MovieRecord) int

// ComparatorFor returns the comparator for key. Unknown and empty keys
// fall back to popularity, as the catalog does.
func ComparatorFor(key model.SortKey) Comparator {
	switch key {
	case model.SortReleaseDateDesc:
		return func(a, b model.MovieRecord) int {
			return strings.Compare(b.ReleaseDate, a.ReleaseDate)
		}
	case model.SortReleaseDateAsc:
		return func(a, b model.MovieRecord) int {
			return strings.Compare(a.ReleaseDate, b.ReleaseDate)
		}
	case model.SortTitleAsc:
		return func(a, b model.MovieRecord) int {
			return strings.Compare(a.Title, b.Title)
		}
	case model.SortVoteAverageDesc:
		return func(a, b model.MovieRecord) int {
			return cmp.Compare(b.VoteAverage, a.VoteAverage)
		}
	default:
		return func(a, b model.MovieRecord) int {
			return cmp.Compare(b.Popularity, a.Popularity)
		}
	}
}

// SortRecords returns a stably sorted copy of records
func SortRecords(records []model.MovieRecord, key model.SortKey) []model.MovieRecord {
	out := slices.Clone(records)
	slices.SortStableFunc(out, ComparatorFor(key))
	return out
}
