package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitTracing_DisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), Config{})
	if err != nil {
		t.Fatalf("InitTracing() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
}

func TestInitTracing_RejectsSampleRatio(t *testing.T) {
	if _, err := InitTracing(context.Background(), Config{Enabled: true, SampleRatio: 2}); err == nil {
		t.Fatal("expected error for sample ratio above 1")
	}
}

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(FetchAttemptsTotal.WithLabelValues("metrics_test", "success"))
	RecordFetchAttempt("metrics_test", "success")
	if got := testutil.ToFloat64(FetchAttemptsTotal.WithLabelValues("metrics_test", "success")); got != before+1 {
		t.Errorf("fetch attempts = %v, want %v", got, before+1)
	}

	hits := testutil.ToFloat64(CacheRequestsTotal.WithLabelValues("hit"))
	RecordCacheHit()
	if got := testutil.ToFloat64(CacheRequestsTotal.WithLabelValues("hit")); got != hits+1 {
		t.Errorf("cache hits = %v, want %v", got, hits+1)
	}

	SetCacheEntries(7)
	if got := testutil.ToFloat64(CacheEntries); got != 7 {
		t.Errorf("cache entries = %v, want 7", got)
	}
}
