package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tesso57/trendfeed/internal/application/usecase"
	"github.com/tesso57/trendfeed/internal/infrastructure/telemetry"
	"github.com/tesso57/trendfeed/internal/presentation/httpapi"
)

// ServeCmd runs the HTTP API until interrupted.
type ServeCmd struct {
	Addr string `help:"Override the listen address."`
}

func (c *ServeCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := loadSettings(g)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Addr = c.Addr
	}

	shutdownTracing, err := telemetry.InitTracing(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		Endpoint:       cfg.Telemetry.Endpoint,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	a, err := newApp(ctx, cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	count, window, err := cfg.RateLimitBudget()
	if err != nil {
		return err
	}
	server := httpapi.NewServer(httpapi.Options{
		Addr:           cfg.Addr,
		Version:        version,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateCount:      count,
		RateWindow:     window,
		Tracing:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		Logger:         a.logger,
	}, a.trending, a.archive, a.cache)
	poller := usecase.NewPoller(a.trending, cfg.Poll.Interval, a.logger)

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return server.Run(egctx) })
	eg.Go(func() error { return poller.Run(egctx) })
	err = eg.Wait()
	a.logger.InfoContext(ctx, "server exited", "error", err)
	return err
}

// QueryFlags are shared by keywords and hashtags.
type QueryFlags struct {
	Geo     string `help:"Two-letter geo code (defaults to geo_default)."`
	Limit   int    `help:"Titles per source (1-50, defaults to limit_default)."`
	Sources string `help:"Comma-separated source names (defaults to all)."`
}

func (q QueryFlags) query() usecase.Query {
	return usecase.Query{Geo: q.Geo, Limit: q.Limit, Sources: q.Sources}
}

// KeywordsCmd prints one aggregation round.
type KeywordsCmd struct {
	QueryFlags
}

func (c *KeywordsCmd) Run(ctx context.Context, g *Globals) error {
	return withApp(ctx, g, func(a *app) error {
		report, err := a.trending.Keywords(ctx, c.query())
		if err != nil {
			return err
		}
		return writeJSON(g, report)
	})
}

// HashtagsCmd prints one aggregation round as hashtags.
type HashtagsCmd struct {
	QueryFlags
}

func (c *HashtagsCmd) Run(ctx context.Context, g *Globals) error {
	return withApp(ctx, g, func(a *app) error {
		report, err := a.trending.Hashtags(ctx, c.query())
		if err != nil {
			return err
		}
		return writeJSON(g, report)
	})
}

// SourcesCmd lists the registry.
type SourcesCmd struct{}

func (c *SourcesCmd) Run(g *Globals) error {
	cfg, err := loadSettings(g)
	if err != nil {
		return err
	}
	registry, err := cfg.Registry()
	if err != nil {
		return err
	}
	for _, s := range registry.All() {
		if _, err := fmt.Fprintf(g.out, "%s\t%s\n", s.Name, s.URLTemplate); err != nil {
			return err
		}
	}
	return nil
}

// HistoryCmd prints stored snapshots.
type HistoryCmd struct {
	Source string `help:"Source name." required:""`
	Limit  int    `help:"Number of snapshots (1-50)." default:"10"`
}

func (c *HistoryCmd) Run(ctx context.Context, g *Globals) error {
	return withApp(ctx, g, func(a *app) error {
		snapshots, err := a.archive.Recent(ctx, c.Source, c.Limit)
		if err != nil {
			return err
		}
		return writeJSON(g, snapshots)
	})
}

// HealthcheckCmd checks a running server, for container health checks.
type HealthcheckCmd struct {
	URL     string        `help:"Health endpoint URL (defaults to the configured listen address)."`
	Timeout time.Duration `help:"Request timeout." default:"2s"`
}

func (c *HealthcheckCmd) Run(ctx context.Context, g *Globals) error {
	target := c.URL
	if target == "" {
		cfg, err := loadSettings(g)
		if err != nil {
			return err
		}
		target = healthURL(cfg.Addr)
	}
	return checkHealth(ctx, target, c.Timeout)
}

func healthURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr + "/health"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/health"
}

func checkHealth(ctx context.Context, target string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned status: %d", resp.StatusCode)
	}
	return nil
}

func withApp(ctx context.Context, g *Globals, fn func(*app) error) error {
	cfg, err := loadSettings(g)
	if err != nil {
		return err
	}
	// Command output goes to stdout, so logs go to stderr.
	a, err := newApp(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	return errors.Join(fn(a), a.Close())
}

func writeJSON(g *Globals, v any) error {
	enc := json.NewEncoder(g.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
