package discovery

import (
	"context"
	"strings"
	"sync"
	"time"

	"movie-discovery-service/internal/model"
)

// DefaultQuietPeriod is the debounce window for suggestion lookups
const DefaultQuietPeriod = 250 * time.Millisecond

// MaxSuggestions caps the number of suggestions returned for a query
const MaxSuggestions = 7

// LookupFunc resolves suggestions for a query
type LookupFunc func(ctx context.Context, query string) ([]model.Suggestion, error)

// EmitFunc receives suggestions for query. A nil slice with an empty query
// means "clear suggestions". It is called with the debouncer's lock held
// and must not call back into the Debouncer.
type EmitFunc func(query string, suggestions []model.Suggestion, err error)

// Debouncer turns raw text input into at most one lookup per quiet period.
// Each input bumps a generation counter and cancels the running lookup; a
// lookup whose generation is no longer the latest is never emitted.
// Generation checks and emits happen under one lock, so emits are ordered
// the same way as the inputs that caused them.
type Debouncer struct {
	quiet  time.Duration
	lookup LookupFunc
	emit   EmitFunc

	mu         sync.Mutex
	generation uint64
	timer      *time.Timer
	cancel     context.CancelFunc
	closed     bool
}

// NewDebouncer creates a Debouncer. A non-positive quiet period selects
// DefaultQuietPeriod.
func NewDebouncer(quiet time.Duration, lookup LookupFunc, emit EmitFunc) *Debouncer {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Debouncer{quiet: quiet, lookup: lookup, emit: emit}
}

// OnInput records the latest text value
func (d *Debouncer) OnInput(text string) {
	query := strings.TrimSpace(text)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.supersede()
	gen := d.generation
	if query == "" {
		d.emit("", nil, nil)
		return
	}
	d.timer = time.AfterFunc(d.quiet, func() { d.fire(gen, query) })
}

// Close cancels any pending or running lookup; later input is ignored
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.supersede()
}

// supersede starts a new generation. Callers hold d.mu.
func (d *Debouncer) supersede() {
	d.generation++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Debouncer) fire(gen uint64, query string) {
	d.mu.Lock()
	if gen != d.generation {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.mu.Unlock()
	defer cancel()

	suggestions, err := d.lookup(ctx, query)

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.generation {
		return
	}
	d.cancel = nil
	d.emit(query, suggestions, err)
}

// Suggestions maps the head of a page to suggestion entries
func Suggestions(page *model.PageResult) []model.Suggestion {
	if page == nil {
		return []model.Suggestion{}
	}
	n := min(len(page.Results), MaxSuggestions)
	out := make([]model.Suggestion, 0, n)
	for _, m := range page.Results[:n] {
		out = append(out, model.Suggestion{ID: m.ID, Title: m.Title, Year: m.Year()})
	}
	return out
}

// SuggestLookup adapts a Catalog into a LookupFunc using the first search page
func SuggestLookup(catalog Catalog, language string) LookupFunc {
	return func(ctx context.Context, query string) ([]model.Suggestion, error) {
		req := BuildRequest(query, model.FilterState{Language: language}, 1)
		page, err := catalog.FetchPage(ctx, req)
		if err != nil {
			return nil, err
		}
		return Suggestions(page), nil
	}
}
