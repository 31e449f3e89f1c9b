package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"movie-discovery-service/internal/discovery"
	"movie-discovery-service/internal/model"
)

// genreLister is the part of the catalog client used by :genres
type genreLister interface {
	Genres(ctx context.Context, language string) ([]model.Genre, error)
}

// repl is the line-oriented front end of one discovery session
type repl struct {
	out       io.Writer
	outMu     sync.Mutex
	session   *discovery.Session
	suggest   *discovery.Debouncer
	favorites *discovery.Favorites
	genres    genreLister
	movieURL  func(id int) string

	query   string
	filters model.FilterState
}

func (r *repl) printf(format string, args ...interface{}) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// onSuggestions is the debouncer's emit callback
func (r *repl) onSuggestions(query string, suggestions []model.Suggestion, err error) {
	switch {
	case query == "":
		return
	case err != nil:
		r.printf("  suggestions for %q failed: %s\n", query, describe(err))
	case len(suggestions) == 0:
		r.printf("  no suggestions for %q\n", query)
	default:
		titles := make([]string, 0, len(suggestions))
		for _, s := range suggestions {
			if s.Year != "" {
				titles = append(titles, fmt.Sprintf("%s (%s)", s.Title, s.Year))
			} else {
				titles = append(titles, s.Title)
			}
		}
		r.printf("  suggestions for %q: %s\n", query, strings.Join(titles, " · "))
	}
}

// handle runs one input line and reports whether the loop should go on
func (r *repl) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}

	if strings.HasPrefix(line, "?") {
		r.suggest.OnInput(line[1:])
		return true
	}

	if !strings.HasPrefix(line, ":") {
		r.query = line
		r.search(ctx)
		return true
	}

	cmd, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "q", "quit", "exit":
		return false
	case "help", "h":
		r.printf("%s", helpText)
	case "discover":
		r.query = ""
		r.search(ctx)
	case "more":
		st, started, err := r.session.LoadMore(ctx)
		switch {
		case err != nil:
			r.printf("load more failed: %s (:retry to try again)\n", describe(err))
		case !started && !st.Fetched():
			r.printf("nothing loaded yet\n")
		case !started && r.session.Loading():
			r.printf("still loading\n")
		case !started:
			r.printf("no more results\n")
		default:
			r.render(ctx, st)
		}
	case "retry":
		st, err := r.session.Retry(ctx)
		if err != nil {
			r.printf("retry failed: %s\n", describe(err))
			return true
		}
		r.render(ctx, st)
	case "genre":
		ids, err := parseIDs(arg)
		if err != nil {
			r.printf("%v\n", err)
			return true
		}
		r.filters.GenreIDs = ids
		r.search(ctx)
	case "year":
		if arg != "" && (len(arg) != 4 || !isDigits(arg)) {
			r.printf("year must have four digits\n")
			return true
		}
		r.filters.Year = arg
		r.search(ctx)
	case "rating":
		if arg == "" {
			r.filters.MinRating = 0
		} else {
			f, err := strconv.ParseFloat(arg, 64)
			if err != nil || f < 0 || f > 10 {
				r.printf("rating must be between 0 and 10\n")
				return true
			}
			r.filters.MinRating = f
		}
		r.search(ctx)
	case "sort":
		key, ok := model.ParseSortKey(arg)
		if !ok {
			keys := make([]string, len(model.SortKeys))
			for i, k := range model.SortKeys {
				keys[i] = string(k)
			}
			r.printf("unknown sort key, use one of: %s\n", strings.Join(keys, ", "))
			return true
		}
		r.filters.SortKey = key
		r.search(ctx)
	case "lang":
		r.filters.Language = arg
		r.search(ctx)
	case "clear":
		r.filters = model.FilterState{Language: r.filters.Language}
		r.search(ctx)
	case "genres":
		genres, err := r.genres.Genres(ctx, r.filters.Language)
		if err != nil {
			r.printf("genres failed: %s\n", describe(err))
			return true
		}
		for _, g := range genres {
			r.printf("  %6d  %s\n", g.ID, g.Name)
		}
	case "fav":
		id, err := strconv.Atoi(arg)
		if err != nil || id <= 0 {
			r.printf("usage: :fav <id>\n")
			return true
		}
		on, err := r.favorites.Toggle(ctx, id)
		switch {
		case err != nil:
			r.printf("favorites unavailable: %v\n", err)
		case on:
			r.printf("★ %d added to favorites\n", id)
		default:
			r.printf("☆ %d removed from favorites\n", id)
		}
	case "favs":
		ids, err := r.favorites.List(ctx)
		if err != nil {
			r.printf("favorites unavailable: %v\n", err)
			return true
		}
		if len(ids) == 0 {
			r.printf("no favorites yet\n")
			return true
		}
		for _, id := range ids {
			r.printf("  %d  %s\n", id, r.movieURL(id))
		}
	case "open":
		id, err := strconv.Atoi(arg)
		if err != nil || id <= 0 {
			r.printf("usage: :open <id>\n")
			return true
		}
		r.printf("%s\n", r.movieURL(id))
	default:
		r.printf("unknown command %q, :help lists commands\n", cmd)
	}
	return true
}

func (r *repl) search(ctx context.Context) {
	st, err := r.session.Update(ctx, r.query, r.filters)
	if err != nil {
		r.printf("search failed: %s (:retry to try again)\n", describe(err))
		return
	}
	r.render(ctx, st)
}

func (r *repl) render(ctx context.Context, st discovery.State) {
	req := r.session.Request()
	if req.Post != nil && len(req.Post.IgnoredGenres) > 0 {
		r.printf("(genre filter is ignored while searching by title)\n")
	}
	if len(st.Records) == 0 {
		r.printf("no results\n")
	}

	// 收藏读取失败时只是不显示星标
	favs := make(map[int]bool)
	ids, _ := r.favorites.List(ctx)
	for _, id := range ids {
		favs[id] = true
	}

	for i, m := range st.Records {
		mark := " "
		if favs[m.ID] {
			mark = "★"
		}
		year := m.Year()
		if year == "" {
			year = "----"
		}
		r.printf("%s %3d. %-40s %s  %4.1f  #%d\n", mark, i+1, truncate(m.Title, 40), year, m.VoteAverage, m.ID)
	}

	r.printf("%s · page %d/%d · %d results\n", req.Mode, st.CurrentPage, st.TotalPages, st.TotalResults)
	if st.HasMore() {
		r.printf(":more loads the next page\n")
	}
}

func describe(err error) string {
	if errors.Is(err, model.ErrNotConfigured) {
		return "TMDB_API_KEY is not set"
	}
	if fe, ok := model.AsFetchError(err); ok {
		switch fe.Reason {
		case model.NetworkFailure:
			return "network error: " + fe.Error()
		case model.UpstreamError:
			return fe.Error()
		}
	}
	return err.Error()
}

func parseIDs(raw string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid genre id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

const helpText = `  <text>            search by title
  ?<text>           title suggestions
  :discover         browse without a title
  :more             load the next page
  :retry            repeat the last failed request
  :genre 28,12      genre filter (discover only), empty clears
  :year 1999        release year, empty clears
  :rating 7         minimum rating, empty clears
  :sort <key>       popularity.desc, release_date.desc, release_date.asc,
                    original_title.asc, vote_average.desc
  :lang fr-FR       result language
  :clear            reset filters
  :genres           list genres
  :fav <id>         toggle a favorite
  :favs             list favorites
  :open <id>        print the TMDB page
  :quit
`
