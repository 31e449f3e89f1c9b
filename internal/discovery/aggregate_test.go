package discovery

import (
	"testing"

	"movie-discovery-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func movie(id int, title string, rating, popularity float64, date string) model.MovieRecord {
	return model.MovieRecord{ID: id, Title: title, VoteAverage: rating, Popularity: popularity, ReleaseDate: date}
}

func ids(records []model.MovieRecord) []int {
	out := make([]int, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func pageOf(n, total int, records ...model.MovieRecord) model.PageResult {
	return model.PageResult{Page: n, TotalPages: total, Results: records}
}

func TestMergeReplaceDiscardsPriorState(t *testing.T) {
	prior := Merge(State{}, pageOf(1, 3, movie(1, "a", 0, 0, ""), movie(2, "b", 0, 0, "")), Replace, nil)
	prior = Merge(prior, pageOf(2, 3, movie(3, "c", 0, 0, "")), Append, nil)

	next := Merge(prior, pageOf(1, 9, movie(7, "x", 0, 0, ""), movie(7, "x", 0, 0, ""), movie(8, "y", 0, 0, "")), Replace, nil)

	assert.Equal(t, []int{7, 8}, ids(next.Records))
	assert.Equal(t, 1, next.CurrentPage)
	assert.Equal(t, 9, next.TotalPages)
	assert.Equal(t, StatusIdle, next.Status)
	// input state untouched
	assert.Equal(t, []int{1, 2, 3}, ids(prior.Records))
}

func TestMergeAppendDeduplicates(t *testing.T) {
	st := Merge(State{}, pageOf(1, 5, movie(1, "a", 0, 0, ""), movie(2, "b", 0, 0, ""), movie(3, "c", 0, 0, "")), Replace, nil)
	st = Merge(st, pageOf(2, 5, movie(3, "c", 0, 0, ""), movie(4, "d", 0, 0, ""), movie(1, "a", 0, 0, "")), Append, nil)

	assert.Equal(t, []int{1, 2, 3, 4}, ids(st.Records))
	assert.Equal(t, 2, st.CurrentPage)

	seen := map[int]bool{}
	for _, r := range st.Records {
		require.False(t, seen[r.ID], "duplicate id %d", r.ID)
		seen[r.ID] = true
	}
}

func TestMergeAppendOrdersByPageNumber(t *testing.T) {
	st := Merge(State{}, pageOf(1, 5, movie(1, "a", 0, 0, "")), Replace, nil)
	st = Merge(st, pageOf(3, 5, movie(30, "c", 0, 0, "")), Append, nil)
	st = Merge(st, pageOf(2, 5, movie(20, "b", 0, 0, "")), Append, nil)

	assert.Equal(t, []int{1, 20, 30}, ids(st.Records))
	assert.Equal(t, 3, st.CurrentPage)
}

func TestMergeRefetchedPageReplacesEarlierCopy(t *testing.T) {
	st := Merge(State{}, pageOf(1, 5, movie(1, "a", 0, 0, "")), Replace, nil)
	st = Merge(st, pageOf(2, 5, movie(2, "old", 0, 0, ""), movie(3, "gone", 0, 0, "")), Append, nil)
	st = Merge(st, pageOf(2, 4, movie(2, "new", 0, 0, "")), Append, nil)

	require.Equal(t, []int{1, 2}, ids(st.Records))
	assert.Equal(t, "new", st.Records[1].Title)
	assert.Equal(t, 4, st.TotalPages)
}

func TestMergeTrustsLatestTotalPages(t *testing.T) {
	st := Merge(State{}, pageOf(1, 5), Replace, nil)
	st = Merge(st, pageOf(2, 8), Append, nil)
	assert.Equal(t, 8, st.TotalPages)

	st = Merge(st, pageOf(3, 2), Append, nil)
	assert.Equal(t, 2, st.TotalPages)
	assert.LessOrEqual(t, st.CurrentPage, st.TotalPages)
}

func TestMergeNormalizesBadPageNumbers(t *testing.T) {
	st := Merge(State{}, model.PageResult{Page: 0, TotalPages: 0}, Replace, nil)
	assert.Equal(t, 1, st.CurrentPage)
	assert.Equal(t, 1, st.TotalPages)
	assert.True(t, st.Fetched())
	assert.False(t, st.HasMore())
}

func TestMergeDiscoverTrustsUpstream(t *testing.T) {
	req := BuildRequest("", model.FilterState{MinRating: 7}, 1)
	st := Merge(State{}, pageOf(1, 1,
		movie(1, "a", 8.1, 0, ""),
		movie(2, "b", 6.9, 0, ""),
		movie(3, "c", 9.0, 0, ""),
	), Replace, req.Post)

	assert.Equal(t, []int{1, 2, 3}, ids(st.Records))
}

func TestMergeSearchPostFilterAndSort(t *testing.T) {
	req := BuildRequest("alpha", model.FilterState{MinRating: 7, SortKey: model.SortVoteAverageDesc}, 1)
	st := Merge(State{}, pageOf(1, 1,
		movie(1, "a", 8.1, 0, ""),
		movie(2, "b", 6.9, 0, ""),
		movie(3, "c", 9.0, 0, ""),
	), Replace, req.Post)

	assert.Equal(t, []int{3, 1}, ids(st.Records))
}

func TestMergeSearchResortsAcrossPages(t *testing.T) {
	post := &PostFilter{SortKey: model.SortTitleAsc}
	st := Merge(State{}, pageOf(1, 2, movie(1, "delta", 0, 0, ""), movie(2, "bravo", 0, 0, "")), Replace, post)
	st = Merge(st, pageOf(2, 2, movie(3, "alpha", 0, 0, ""), movie(4, "charlie", 0, 0, "")), Append, post)

	assert.Equal(t, []int{3, 2, 4, 1}, ids(st.Records))
}

func TestMergeSearchYearPrefix(t *testing.T) {
	post := &PostFilter{Year: "1999"}
	st := Merge(State{}, pageOf(1, 1,
		movie(1, "a", 0, 5, "1999-03-31"),
		movie(2, "b", 0, 9, "2003"),
		movie(3, "c", 0, 7, "1999"),
		movie(4, "d", 0, 1, ""),
	), Replace, post)

	// empty sort key falls back to popularity
	assert.Equal(t, []int{3, 1}, ids(st.Records))
}
