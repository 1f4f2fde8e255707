package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/tesso57/trendfeed/internal/application/settings"
	"github.com/tesso57/trendfeed/internal/application/usecase"
	"github.com/tesso57/trendfeed/internal/infrastructure/cache"
	"github.com/tesso57/trendfeed/internal/infrastructure/config"
	"github.com/tesso57/trendfeed/internal/infrastructure/feed"
	"github.com/tesso57/trendfeed/internal/infrastructure/history"
	"github.com/tesso57/trendfeed/internal/infrastructure/logging"
)

// app holds the wired services for one process.
type app struct {
	settings settings.Settings
	logger   *slog.Logger
	client   *feed.Client
	cache    *cache.TitleCache
	history  *history.Manager
	trending usecase.TrendingService
	archive  usecase.HistoryService
}

func loadSettings(g *Globals) (settings.Settings, error) {
	store, err := config.Load(g.Config)
	if err != nil {
		return settings.Settings{}, err
	}
	return store.Settings, nil
}

// newApp builds the fetch pipeline: cache -> snapshot recorder (optional) -> fetcher -> client.
func newApp(ctx context.Context, cfg settings.Settings, logOut io.Writer) (*app, error) {
	logger := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: logOut})

	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	client := feed.NewClient(feed.ClientOptions{
		Timeout:         cfg.HTTP.Timeout,
		MaxConnsPerHost: cfg.HTTP.MaxConnections,
		MaxIdleConns:    cfg.HTTP.MaxKeepaliveConnections,
		MaxBodyBytes:    cfg.HTTP.MaxBodyBytes,
		UserAgent:       "trendfeed/" + version,
	})
	policy := feed.RetryPolicy{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
	}
	var upstream usecase.TitleFetcher = feed.NewFetcher(client, feed.Parser{}, policy, logger)

	a := &app{settings: cfg, logger: logger, client: client}

	var repo usecase.SnapshotRepository
	if cfg.History.File != "" {
		store, err := history.Open(ctx, cfg.History.File, cfg.History.Keep)
		if err != nil {
			client.Close()
			return nil, err
		}
		a.history = store
		repo = store
		upstream = usecase.NewRecordingFetcher(upstream, store, time.Now, logger)
	}

	a.cache = cache.New(upstream, cfg.Cache.MaxSize, cfg.Cache.TTL, logger)
	a.trending = usecase.NewTrendingService(registry, a.cache, cfg.GeoDefault, cfg.LimitDefault, logger)
	a.archive = usecase.NewHistoryService(registry, repo)

	logger.InfoContext(ctx, "services initialized",
		"sources", len(registry.All()),
		"cache_ttl", cfg.Cache.TTL,
		"cache_max_size", cfg.Cache.MaxSize,
		"history", cfg.History.File != "")
	return a, nil
}

// Close releases the HTTP client and the history database.
func (a *app) Close() error {
	a.client.Close()
	var errs []error
	if a.history != nil {
		errs = append(errs, a.history.Close())
	}
	return errors.Join(errs...)
}
