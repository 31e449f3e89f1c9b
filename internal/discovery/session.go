package discovery

import (
	"context"
	"sync"

	"movie-discovery-service/internal/model"
)

// Catalog fetches one page for a resolved request
type Catalog interface {
	FetchPage(ctx context.Context, req Request) (*model.PageResult, error)
}

type attempt struct {
	req  Request
	mode MergeMode
}

// Session drives one result list: a new query resets it, load-more appends
// to it. Every fetch is tagged with the generation current when it was
// issued and its result is dropped if the query changed in the meantime.
type Session struct {
	catalog Catalog

	mu         sync.Mutex
	generation uint64
	request    Request
	state      State
	inFlight   bool
	failed     *attempt
}

// NewSession creates a Session backed by catalog
func NewSession(catalog Catalog) *Session {
	return &Session{catalog: catalog}
}

// Update starts a new query and fetches its first page
func (s *Session) Update(ctx context.Context, query string, filters model.FilterState) (State, error) {
	req := BuildRequest(query, filters, 1)

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.request = req
	s.state = Reset(StatusLoading)
	s.inFlight = true
	s.failed = nil
	s.mu.Unlock()

	return s.run(ctx, gen, req, Replace)
}

// LoadMore fetches the page after CurrentPage. It reports false without
// fetching when a fetch is already in flight, when nothing has been
// fetched yet, or when the last page was reached.
func (s *Session) LoadMore(ctx context.Context) (State, bool, error) {
	s.mu.Lock()
	if s.inFlight || !s.state.HasMore() {
		st := s.state
		s.mu.Unlock()
		return st, false, nil
	}
	req := s.request.WithPage(s.state.CurrentPage + 1)
	gen := s.generation
	s.inFlight = true
	s.failed = nil
	s.state.Status = StatusLoading
	s.state.Err = nil
	s.mu.Unlock()

	st, err := s.run(ctx, gen, req, Append)
	return st, true, err
}

// Retry re-issues the last failed request with its original merge mode.
// It is a no-op when nothing failed or a fetch is in flight.
func (s *Session) Retry(ctx context.Context) (State, error) {
	s.mu.Lock()
	if s.failed == nil || s.inFlight {
		st := s.state
		s.mu.Unlock()
		return st, nil
	}
	a := *s.failed
	gen := s.generation
	s.inFlight = true
	s.failed = nil
	s.state.Status = StatusLoading
	s.state.Err = nil
	s.mu.Unlock()

	return s.run(ctx, gen, a.req, a.mode)
}

// State returns a snapshot of the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Request returns the first-page request of the current query
func (s *Session) Request() Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.request
}

// Loading reports whether a fetch for the current query is in flight
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

func (s *Session) run(ctx context.Context, gen uint64, req Request, mode MergeMode) (State, error) {
	page, err := s.catalog.FetchPage(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()

	// superseded by a newer query
	if gen != s.generation {
		return s.state, nil
	}

	s.inFlight = false
	if err != nil {
		s.state.Status = StatusError
		s.state.Err = err
		s.failed = &attempt{req: req, mode: mode}
		return s.state, err
	}

	s.state = Merge(s.state, *page, mode, req.Post)
	return s.state, nil
}
