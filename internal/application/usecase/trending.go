// Package usecase contains application-level services.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tesso57/trendfeed/internal/application/settings"
	"github.com/tesso57/trendfeed/internal/domain/trend"
)

// TitleFetcher fetches the titles behind one FetchKey.
type TitleFetcher interface {
	Fetch(ctx context.Context, key trend.FetchKey) ([]string, error)
	Ready() bool
}

// Query is an aggregation request as received from a caller.
type Query struct {
	Geo     string
	Limit   int
	Sources string
}

// Request is a validated Query.
type Request struct {
	Geo     string
	Limit   int
	Sources []trend.Source
}

// TrendingService aggregates titles across the registered sources.
type TrendingService struct {
	Registry     *trend.Registry
	Fetcher      TitleFetcher
	DefaultGeo   string
	DefaultLimit int
	Stats        *FetchStats
	Logger       *slog.Logger
}

// NewTrendingService constructs a TrendingService.
func NewTrendingService(registry *trend.Registry, fetcher TitleFetcher, defaultGeo string, defaultLimit int, logger *slog.Logger) TrendingService {
	if logger == nil {
		logger = slog.Default()
	}
	return TrendingService{
		Registry:     registry,
		Fetcher:      fetcher,
		DefaultGeo:   defaultGeo,
		DefaultLimit: defaultLimit,
		Stats:        &FetchStats{},
		Logger:       logger,
	}
}

// Resolve validates q and fills in defaults. It performs no I/O.
func (s TrendingService) Resolve(q Query) (Request, error) {
	geo := strings.TrimSpace(q.Geo)
	if geo == "" {
		geo = s.DefaultGeo
	}
	if !settings.ValidGeo(geo) {
		return Request{}, fmt.Errorf("%w: geo must be a two-letter country code, got %q", trend.ErrInvalidRequest, q.Geo)
	}

	limit := q.Limit
	if limit == 0 {
		limit = s.DefaultLimit
	}
	if limit < trend.MinLimit || limit > trend.MaxLimit {
		return Request{}, fmt.Errorf("%w: limit must be between %d and %d, got %d", trend.ErrInvalidRequest, trend.MinLimit, trend.MaxLimit, q.Limit)
	}

	sources, err := s.Registry.Select(q.Sources)
	if err != nil {
		return Request{}, err
	}
	return Request{Geo: strings.ToUpper(geo), Limit: limit, Sources: sources}, nil
}

// Keywords fetches titles from every selected source concurrently. One source
// failing never affects the others; its error is reported under its name.
func (s TrendingService) Keywords(ctx context.Context, q Query) (trend.Report, error) {
	req, err := s.Resolve(q)
	if err != nil {
		return trend.Report{}, err
	}
	if !s.Fetcher.Ready() {
		return trend.Report{}, trend.ErrClientUnavailable
	}

	report := trend.NewReport()
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, src := range req.Sources {
		wg.Go(func() {
			o := s.fetchSource(ctx, src, req)
			mu.Lock()
			defer mu.Unlock()
			report.Add(o)
		})
	}
	wg.Wait()

	s.Logger.InfoContext(ctx, "aggregation complete",
		"geo", req.Geo, "limit", req.Limit,
		"sources", len(req.Sources), "failed", len(report.Errors))
	return report, nil
}

func (s TrendingService) fetchSource(ctx context.Context, src trend.Source, req Request) trend.Outcome {
	key := trend.FetchKey{Source: src.Name, URL: src.Resolve(req.Geo), Limit: req.Limit}
	titles, err := s.Fetcher.Fetch(ctx, key)
	if s.Stats != nil {
		s.Stats.record(err)
	}
	if err != nil {
		s.Logger.WarnContext(ctx, "source fetch failed", "source", src.Name, "url", key.URL, "error", err)
		return trend.Outcome{Source: src.Name, Err: err}
	}
	if len(titles) > req.Limit {
		titles = titles[:req.Limit]
	}
	return trend.Outcome{Source: src.Name, Titles: titles}
}

// Hashtags runs the same aggregation as Keywords and maps every title to a hashtag.
func (s TrendingService) Hashtags(ctx context.Context, q Query) (trend.Report, error) {
	report, err := s.Keywords(ctx, q)
	if err != nil {
		return trend.Report{}, err
	}
	for name, titles := range report.Results {
		report.Results[name] = trend.Hashtags(titles)
	}
	return report, nil
}

// Sources lists the registry.
func (s TrendingService) Sources() []trend.Source {
	return s.Registry.All()
}

// Ready reports whether upstream fetching is possible.
func (s TrendingService) Ready() bool {
	return s.Fetcher.Ready()
}

// FetchStats counts per-source fetch outcomes.
type FetchStats struct {
	mu        sync.Mutex
	fetches   int64
	errors    int64
	lastFetch time.Time
}

// StatsSnapshot is a point-in-time copy of FetchStats.
type StatsSnapshot struct {
	FetchCount    int64
	ErrorCount    int64
	LastFetchTime time.Time
}

func (st *FetchStats) record(err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.fetches++
	if err != nil {
		st.errors++
	}
	st.lastFetch = time.Now()
}

// Snapshot returns the current counters.
func (st *FetchStats) Snapshot() StatsSnapshot {
	if st == nil {
		return StatsSnapshot{}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return StatsSnapshot{FetchCount: st.fetches, ErrorCount: st.errors, LastFetchTime: st.lastFetch}
}
