package discovery

import (
	"sort"

	"movie-discovery-service/internal/model"
)

// Status of an aggregate
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// MergeMode selects how an incoming page is folded into the state
type MergeMode int

const (
	// Replace starts over from the incoming page (new query)
	Replace MergeMode = iota
	// Append adds the incoming page to what was fetched so far (load more)
	Append
)

// State is the display state built from fetched pages.
// Records holds no duplicate ids. Pages are kept by number so a page that
// arrives twice replaces its earlier copy.
type State struct {
	Records      []model.MovieRecord
	CurrentPage  int
	TotalPages   int
	TotalResults int
	Status       Status
	Err          error

	pages map[int][]model.MovieRecord
}

// Fetched reports whether at least one page has been merged
func (s State) Fetched() bool {
	return len(s.pages) > 0
}

// HasMore reports whether another page can be requested
func (s State) HasMore() bool {
	return s.Fetched() && s.CurrentPage < s.TotalPages
}

// Merge folds incoming into state and returns the new state; state itself
// is not modified. When post is active, incoming records are filtered
// before merging and the whole merged sequence is re-sorted afterwards.
func Merge(state State, incoming model.PageResult, mode MergeMode, post *PostFilter) State {
	page := incoming.Page
	if page < 1 {
		page = 1
	}
	totalPages := incoming.TotalPages
	if totalPages < 1 {
		totalPages = 1
	}

	records := incoming.Results
	if post.Active() {
		records = post.Apply(records)
	}

	next := State{
		TotalPages:   totalPages,
		TotalResults: incoming.TotalResults,
		Status:       StatusIdle,
		pages:        make(map[int][]model.MovieRecord, len(state.pages)+1),
	}

	switch mode {
	case Append:
		for n, recs := range state.pages {
			next.pages[n] = recs
		}
		next.CurrentPage = max(state.CurrentPage, page)
	default:
		next.CurrentPage = page
	}
	next.pages[page] = records
	if next.CurrentPage > next.TotalPages {
		next.CurrentPage = next.TotalPages
	}

	next.Records = flatten(next.pages)
	if post.Active() {
		next.Records = SortRecords(next.Records, post.SortKey)
	}
	return next
}

// Reset returns an empty state with the given status
func Reset(status Status) State {
	return State{Status: status}
}

// flatten concatenates pages in ascending page order keeping the first
// occurrence of every id
func flatten(pages map[int][]model.MovieRecord) []model.MovieRecord {
	numbers := make([]int, 0, len(pages))
	total := 0
	for n, recs := range pages {
		numbers = append(numbers, n)
		total += len(recs)
	}
	sort.Ints(numbers)

	seen := make(map[int]struct{}, total)
	out := make([]model.MovieRecord, 0, total)
	for _, n := range numbers {
		for _, m := range pages[n] {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}
