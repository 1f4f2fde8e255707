package usecase

import (
	"context"
	"log/slog"
	"time"
)

// Poller refreshes every source on a fixed interval so the cache stays warm.
type Poller struct {
	Service  TrendingService
	Interval time.Duration
	Logger   *slog.Logger
}

// NewPoller constructs a Poller.
func NewPoller(service TrendingService, interval time.Duration, logger *slog.Logger) Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return Poller{Service: service, Interval: interval, Logger: logger}
}

// Run polls immediately and then once per Interval until ctx is done.
// A non-positive Interval disables polling.
func (p Poller) Run(ctx context.Context) error {
	if p.Interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p Poller) poll(ctx context.Context) {
	report, err := p.Service.Keywords(ctx, Query{})
	if err != nil {
		p.Logger.WarnContext(ctx, "poll failed", "error", err)
		return
	}
	p.Logger.InfoContext(ctx, "poll complete", "succeeded", len(report.Results), "failed", len(report.Errors))
}
