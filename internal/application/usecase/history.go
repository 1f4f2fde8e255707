package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tesso57/trendfeed/internal/domain/trend"
)

// DefaultHistoryLimit is the number of snapshots returned when none is requested.
const DefaultHistoryLimit = 10

// SnapshotRepository abstracts snapshot persistence.
type SnapshotRepository interface {
	Save(ctx context.Context, snapshot trend.Snapshot) error
	Recent(ctx context.Context, source string, limit int) ([]trend.Snapshot, error)
}

// RecordingFetcher stores every successful upstream fetch as a snapshot.
// Persistence failures are logged and never affect the fetch result.
type RecordingFetcher struct {
	Next   TitleFetcher
	Repo   SnapshotRepository
	Now    func() time.Time
	Logger *slog.Logger
}

// NewRecordingFetcher constructs a RecordingFetcher.
func NewRecordingFetcher(next TitleFetcher, repo SnapshotRepository, now func() time.Time, logger *slog.Logger) RecordingFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return RecordingFetcher{Next: next, Repo: repo, Now: now, Logger: logger}
}

// Fetch delegates to Next and records the result on success.
func (r RecordingFetcher) Fetch(ctx context.Context, key trend.FetchKey) ([]string, error) {
	titles, err := r.Next.Fetch(ctx, key)
	if err != nil || r.Repo == nil {
		return titles, err
	}
	snapshot := trend.Snapshot{
		ID:        uuid.NewString(),
		Source:    key.Source,
		URL:       key.URL,
		Titles:    titles,
		FetchedAt: r.now(),
	}
	if err := r.Repo.Save(ctx, snapshot); err != nil {
		r.Logger.WarnContext(ctx, "snapshot save failed", "source", key.Source, "error", err)
	}
	return titles, nil
}

// Ready delegates to Next.
func (r RecordingFetcher) Ready() bool {
	return r.Next.Ready()
}

func (r RecordingFetcher) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// HistoryService reads stored snapshots.
type HistoryService struct {
	Registry *trend.Registry
	Repo     SnapshotRepository
}

// NewHistoryService constructs a HistoryService. A nil repo means history is disabled.
func NewHistoryService(registry *trend.Registry, repo SnapshotRepository) HistoryService {
	return HistoryService{Registry: registry, Repo: repo}
}

// Enabled reports whether snapshots are being stored.
func (h HistoryService) Enabled() bool {
	return h.Repo != nil
}

// Recent returns the newest snapshots for source, newest first.
func (h HistoryService) Recent(ctx context.Context, source string, limit int) ([]trend.Snapshot, error) {
	if h.Repo == nil {
		return nil, trend.ErrHistoryDisabled
	}
	src, ok := h.Registry.Lookup(source)
	if !ok {
		return nil, fmt.Errorf("%w: %w %q", trend.ErrInvalidRequest, trend.ErrUnknownSource, source)
	}
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	if limit < trend.MinLimit || limit > trend.MaxLimit {
		return nil, fmt.Errorf("%w: limit must be between %d and %d, got %d", trend.ErrInvalidRequest, trend.MinLimit, trend.MaxLimit, limit)
	}
	snapshots, err := h.Repo.Recent(ctx, src.Name, limit)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", src.Name, err)
	}
	return snapshots, nil
}
