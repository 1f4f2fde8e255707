package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tesso57/trendfeed/internal/domain/trend"
	"github.com/tesso57/trendfeed/internal/infrastructure/logging"
)

var fastPolicy = RetryPolicy{MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, MaxDelay: 40 * time.Millisecond}

func newTestFetcher(t *testing.T, policy RetryPolicy, opts ClientOptions) (*Fetcher, *Client) {
	t.Helper()
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Second
	}
	client := NewClient(opts)
	t.Cleanup(client.Close)
	return NewFetcher(client, Parser{}, policy, logging.Discard()), client
}

func countingServer(t *testing.T, handler func(call int32, w http.ResponseWriter, r *http.Request)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(calls.Add(1), w, r)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func key(url string) trend.FetchKey {
	return trend.FetchKey{Source: "test", URL: url, Limit: 10}
}

func TestFetcher_Success(t *testing.T) {
	var gotAccept, gotUA string
	server, calls := countingServer(t, func(_ int32, w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(minimalRSS))
	})
	f, _ := newTestFetcher(t, fastPolicy, ClientOptions{UserAgent: "trendfeed/test"})

	titles, err := f.Fetch(context.Background(), key(server.URL))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !slices.Equal(titles, []string{"A", "B"}) {
		t.Errorf("Fetch() = %v, want [A B]", titles)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if gotUA != "trendfeed/test" {
		t.Errorf("User-Agent = %q, want trendfeed/test", gotUA)
	}
	if !strings.Contains(gotAccept, "application/rss+xml") {
		t.Errorf("Accept = %q, want rss media type", gotAccept)
	}
}

func TestFetcher_PermanentStatusNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusGone} {
		server, calls := countingServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		})
		f, _ := newTestFetcher(t, fastPolicy, ClientOptions{})

		_, err := f.Fetch(context.Background(), key(server.URL))
		if !errors.Is(err, trend.ErrSourceRejected) {
			t.Fatalf("status %d: error = %v, want ErrSourceRejected", status, err)
		}
		var statusErr *StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != status {
			t.Errorf("status %d: error = %v, want StatusError", status, err)
		}
		if calls.Load() != 1 {
			t.Errorf("status %d: calls = %d, want exactly 1", status, calls.Load())
		}
	}
}

func TestFetcher_ServerErrorExhaustsAttempts(t *testing.T) {
	server, calls := countingServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	f, _ := newTestFetcher(t, fastPolicy, ClientOptions{})

	var mu sync.Mutex
	var delays []time.Duration
	f.notify = func(_ error, d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		delays = append(delays, d)
	}

	_, err := f.Fetch(context.Background(), key(server.URL))
	if !errors.Is(err, trend.ErrSourceUnavailable) {
		t.Fatalf("error = %v, want ErrSourceUnavailable", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want exactly 3", calls.Load())
	}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}
	if !slices.Equal(delays, want) {
		t.Errorf("delays = %v, want %v", delays, want)
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error %q should mention the upstream status", err)
	}
}

func TestFetcher_TransientThenSuccess(t *testing.T) {
	for _, status := range []int{http.StatusServiceUnavailable, http.StatusTooManyRequests, http.StatusRequestTimeout} {
		server, calls := countingServer(t, func(call int32, w http.ResponseWriter, _ *http.Request) {
			if call == 1 {
				w.WriteHeader(status)
				return
			}
			_, _ = w.Write([]byte(minimalRSS))
		})
		f, _ := newTestFetcher(t, fastPolicy, ClientOptions{})

		titles, err := f.Fetch(context.Background(), key(server.URL))
		if err != nil {
			t.Fatalf("status %d: Fetch() error = %v", status, err)
		}
		if len(titles) != 2 {
			t.Errorf("status %d: titles = %v", status, titles)
		}
		if calls.Load() != 2 {
			t.Errorf("status %d: calls = %d, want 2", status, calls.Load())
		}
	}
}

func TestFetcher_ParseFailureRetried(t *testing.T) {
	server, calls := countingServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	})
	f, _ := newTestFetcher(t, fastPolicy, ClientOptions{})

	_, err := f.Fetch(context.Background(), key(server.URL))
	if !errors.Is(err, trend.ErrSourceUnavailable) || !errors.Is(err, trend.ErrParse) {
		t.Fatalf("error = %v, want ErrSourceUnavailable wrapping ErrParse", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestFetcher_BodyTooLarge(t *testing.T) {
	server, calls := countingServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(minimalRSS))
	})
	f, _ := newTestFetcher(t, fastPolicy, ClientOptions{MaxBodyBytes: 16})

	_, err := f.Fetch(context.Background(), key(server.URL))
	if !errors.Is(err, ErrBodyTooLarge) || !errors.Is(err, trend.ErrSourceRejected) {
		t.Fatalf("error = %v, want ErrBodyTooLarge", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestFetcher_ClosedClient(t *testing.T) {
	server, calls := countingServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(minimalRSS))
	})
	f, client := newTestFetcher(t, fastPolicy, ClientOptions{})
	client.Close()

	if f.Ready() {
		t.Error("Ready() = true after Close")
	}
	_, err := f.Fetch(context.Background(), key(server.URL))
	if !errors.Is(err, trend.ErrClientUnavailable) {
		t.Fatalf("error = %v, want ErrClientUnavailable", err)
	}
	if calls.Load() != 0 {
		t.Errorf("calls = %d, want 0", calls.Load())
	}
}

func TestFetcher_RespectsContext(t *testing.T) {
	server, _ := countingServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	f, _ := newTestFetcher(t, RetryPolicy{MaxAttempts: 5, InitialDelay: time.Second, MaxDelay: time.Second}, ClientOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := f.Fetch(ctx, key(server.URL))
	if err == nil {
		t.Fatal("expected error")
	}
	if elapsed := time.Since(start); elapsed > 900*time.Millisecond {
		t.Errorf("Fetch ignored cancellation, took %v", elapsed)
	}
}

func TestRetryPolicy_DefaultSchedule(t *testing.T) {
	b := DefaultRetryPolicy().backOff()
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	for i, w := range want {
		if got := b.NextBackOff(); got != w {
			t.Errorf("delay before retry %d = %v, want %v", i+1, got, w)
		}
	}
}

func TestStatusError_Temporary(t *testing.T) {
	tests := map[int]bool{
		400: false, 401: false, 403: false, 404: false,
		408: true, 429: true, 500: true, 502: true, 503: true,
	}
	for code, want := range tests {
		if got := (&StatusError{StatusCode: code}).Temporary(); got != want {
			t.Errorf("Temporary(%d) = %v, want %v", code, got, want)
		}
	}
}
