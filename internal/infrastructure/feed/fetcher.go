package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tesso57/trendfeed/internal/domain/trend"
	"github.com/tesso57/trendfeed/internal/infrastructure/telemetry"
)

const tracerName = "github.com/tesso57/trendfeed/internal/infrastructure/feed"

// RetryPolicy bounds upstream attempts and the exponential delay between them.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy makes three attempts, waiting 2s then 4s, capped at 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialDelay: 2 * time.Second, MaxDelay: 10 * time.Second}
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.Multiplier = 2
	b.MaxInterval = p.MaxDelay
	b.RandomizationFactor = 0
	b.Reset()
	return b
}

// Fetcher downloads and parses one source with retries.
type Fetcher struct {
	client *Client
	parser Parser
	policy RetryPolicy
	logger *slog.Logger
	tracer trace.Tracer
	notify func(err error, delay time.Duration)
}

// NewFetcher builds a fetcher around a shared client.
func NewFetcher(client *Client, parser Parser, policy RetryPolicy, logger *slog.Logger) *Fetcher {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client: client,
		parser: parser,
		policy: policy,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

// Ready reports whether the underlying client is open.
func (f *Fetcher) Ready() bool {
	return f.client.IsOpen()
}

// Fetch returns up to key.Limit titles from key.URL. Transient failures are
// retried; the returned error wraps trend.ErrSourceRejected for permanent
// upstream refusals and trend.ErrSourceUnavailable once attempts run out.
func (f *Fetcher) Fetch(ctx context.Context, key trend.FetchKey) ([]string, error) {
	ctx, span := f.tracer.Start(ctx, "feed.Fetch", trace.WithAttributes(
		attribute.String("feed.source", key.Source),
		attribute.String("feed.url", key.URL),
		attribute.Int("feed.limit", key.Limit),
	))
	defer span.End()

	start := time.Now()
	attempt := 0
	titles, err := backoff.Retry(ctx, func() ([]string, error) {
		attempt++
		f.logger.InfoContext(ctx, "fetch attempt",
			"source", key.Source, "url", key.URL, "attempt", attempt)

		titles, err := f.fetchOnce(ctx, key)
		if err != nil {
			telemetry.RecordFetchAttempt(key.Source, "error")
			if !retryable(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		telemetry.RecordFetchAttempt(key.Source, "success")
		return titles, nil
	},
		backoff.WithBackOff(f.policy.backOff()),
		backoff.WithMaxTries(uint(f.policy.MaxAttempts)),
		backoff.WithNotify(func(err error, delay time.Duration) {
			f.logger.WarnContext(ctx, "fetch attempt failed, retrying",
				"source", key.Source, "attempt", attempt, "delay", delay, "error", err)
			if f.notify != nil {
				f.notify(err, delay)
			}
		}),
	)
	span.SetAttributes(attribute.Int("feed.attempts", attempt))

	if err != nil {
		err = classify(err, attempt)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		telemetry.RecordFetch(key.Source, "error", time.Since(start).Seconds())
		return nil, err
	}
	telemetry.RecordFetch(key.Source, "success", time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("feed.titles", len(titles)))
	return titles, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, key trend.FetchKey) ([]string, error) {
	body, err := f.client.Get(ctx, key.URL)
	if err != nil {
		return nil, err
	}
	titles, err := f.parser.ParseTitles(body, key.Limit)
	if err != nil {
		return nil, err
	}
	if len(titles) == 0 {
		f.logger.WarnContext(ctx, "no titles found in feed",
			"source", key.Source, "url", key.URL, "snippet", snippet(body, 250))
	}
	return titles, nil
}

// retryable reports whether another attempt may succeed.
func retryable(err error) bool {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		return statusErr.Temporary()
	case errors.Is(err, ErrBodyTooLarge), errors.Is(err, trend.ErrClientUnavailable):
		return false
	case errors.Is(err, context.Canceled):
		return false
	default:
		// transport failures, timeouts and parse errors
		return true
	}
}

func classify(err error, attempts int) error {
	var statusErr *StatusError
	switch {
	case errors.Is(err, trend.ErrClientUnavailable):
		return err
	case errors.As(err, &statusErr) && !statusErr.Temporary():
		return fmt.Errorf("%w: %w", trend.ErrSourceRejected, err)
	case errors.Is(err, ErrBodyTooLarge):
		return fmt.Errorf("%w: %w", trend.ErrSourceRejected, err)
	default:
		return fmt.Errorf("%w after %d attempt(s): %w", trend.ErrSourceUnavailable, attempts, err)
	}
}
