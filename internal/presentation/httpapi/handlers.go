package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tesso57/trendfeed/internal/application/usecase"
	"github.com/tesso57/trendfeed/internal/domain/trend"
)

// CacheInfo exposes result cache occupancy for the health endpoint.
type CacheInfo interface {
	Len() int
	Cap() int
}

type handler struct {
	trending  usecase.TrendingService
	history   usecase.HistoryService
	cache     CacheInfo
	version   string
	startedAt time.Time
}

func (h *handler) keywords(c echo.Context) error {
	q, err := parseQuery(c)
	if err != nil {
		return mapError(err)
	}
	report, err := h.trending.Keywords(c.Request().Context(), q)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *handler) hashtags(c echo.Context) error {
	q, err := parseQuery(c)
	if err != nil {
		return mapError(err)
	}
	report, err := h.trending.Hashtags(c.Request().Context(), q)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, report)
}

type sourceView struct {
	Name        string `json:"name"`
	URLTemplate string `json:"url_template"`
}

func (h *handler) sources(c echo.Context) error {
	all := h.trending.Sources()
	views := make([]sourceView, 0, len(all))
	for _, s := range all {
		views = append(views, sourceView{Name: s.Name, URLTemplate: s.URLTemplate})
	}
	return c.JSON(http.StatusOK, views)
}

type historyResponse struct {
	Source    string           `json:"source"`
	Snapshots []trend.Snapshot `json:"snapshots"`
}

func (h *handler) historyList(c echo.Context) error {
	limit, err := parseLimit(c.QueryParam("limit"))
	if err != nil {
		return mapError(err)
	}
	source := strings.TrimSpace(c.QueryParam("source"))
	if source == "" && h.history.Enabled() {
		return mapError(fmt.Errorf("%w: source is required", trend.ErrInvalidRequest))
	}
	snapshots, err := h.history.Recent(c.Request().Context(), source, limit)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, historyResponse{Source: source, Snapshots: snapshots})
}

type cacheHealth struct {
	Status  string `json:"status"`
	Size    int    `json:"size"`
	MaxSize int    `json:"max_size"`
}

type serviceHealth struct {
	HTTPClient string      `json:"http_client"`
	Cache      cacheHealth `json:"cache"`
	XMLParser  string      `json:"xml_parser"`
}

type fetchStats struct {
	FetchCount    int64   `json:"fetch_count"`
	ErrorCount    int64   `json:"error_count"`
	LastFetchTime *string `json:"last_fetch_time"`
}

type healthResponse struct {
	Status        string        `json:"status"`
	Message       string        `json:"message"`
	Timestamp     string        `json:"timestamp"`
	Version       string        `json:"version"`
	UptimeSeconds float64       `json:"uptime_seconds"`
	Services      serviceHealth `json:"services"`
	Stats         fetchStats    `json:"stats"`
}

func (h *handler) health(c echo.Context) error {
	ready := h.trending.Ready()
	resp := healthResponse{
		Status:        "healthy",
		Message:       "Trending service is running",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       h.version,
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
		Services: serviceHealth{
			HTTPClient: "healthy",
			Cache:      cacheHealth{Status: "healthy"},
			XMLParser:  "gofeed",
		},
	}
	if h.cache != nil {
		resp.Services.Cache.Size = h.cache.Len()
		resp.Services.Cache.MaxSize = h.cache.Cap()
	}
	stats := h.trending.Stats.Snapshot()
	resp.Stats = fetchStats{FetchCount: stats.FetchCount, ErrorCount: stats.ErrorCount}
	if !stats.LastFetchTime.IsZero() {
		resp.Stats.LastFetchTime = new(stats.LastFetchTime.UTC().Format(time.RFC3339))
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
		resp.Status = "unhealthy"
		resp.Message = "HTTP client not initialized"
		resp.Services.HTTPClient = "unhealthy"
	}
	return c.JSON(status, resp)
}

func parseQuery(c echo.Context) (usecase.Query, error) {
	limit, err := parseLimit(c.QueryParam("limit"))
	if err != nil {
		return usecase.Query{}, err
	}
	return usecase.Query{
		Geo:     c.QueryParam("geo"),
		Limit:   limit,
		Sources: c.QueryParam("sources"),
	}, nil
}

// parseLimit treats an absent limit as 0 so the service default applies.
func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: limit must be an integer, got %q", trend.ErrInvalidRequest, raw)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: limit must be between %d and %d, got 0", trend.ErrInvalidRequest, trend.MinLimit, trend.MaxLimit)
	}
	return n, nil
}
