// Command discover is an interactive terminal client for the movie
// discovery pipeline. It talks to TMDB directly, without the HTTP service.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"movie-discovery-service/internal/config"
	"movie-discovery-service/internal/discovery"
	"movie-discovery-service/internal/repository"
	"movie-discovery-service/internal/service"
	"movie-discovery-service/pkg/httpclient"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// 终端界面只输出警告以上的日志，避免打断结果列表
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	cfg := config.Load()

	client := httpclient.NewClient(cfg.CatalogProxies, cfg.CatalogHost(), cfg.CatalogTimeout)
	tmdb := service.NewTMDBService(cfg.TMDBAPIKeys, cfg.TMDBBaseURL, cfg.TMDBImageBase, cfg.TMDBLanguage, client)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := &repl{
		out:       os.Stdout,
		session:   discovery.NewSession(tmdb),
		favorites: discovery.NewFavorites(repository.NewFileFavorites(cfg.FavoritesFile)),
		genres:    tmdb,
		movieURL:  tmdb.MovieURL,
	}
	r.suggest = discovery.NewDebouncer(cfg.SuggestDebounce, discovery.SuggestLookup(tmdb, cfg.TMDBLanguage), r.onSuggestions)
	defer r.suggest.Close()

	if !tmdb.IsConfigured() {
		fmt.Println("TMDB_API_KEY is not set: searches will fail until it is configured.")
	}
	fmt.Println("movie discovery · :help for commands")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case line, ok := <-lines:
			if !ok || !r.handle(ctx, line) {
				return
			}
		}
	}
}
