// Package httpapi exposes the trending service over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"golang.org/x/sync/errgroup"

	"github.com/tesso57/trendfeed/internal/application/usecase"
	"github.com/tesso57/trendfeed/internal/infrastructure/telemetry"
)

const shutdownTimeout = 10 * time.Second

// Options configures the HTTP server.
type Options struct {
	Addr           string
	Version        string
	AllowedOrigins []string
	RateCount      int
	RateWindow     time.Duration
	Tracing        bool
	ServiceName    string
	Logger         *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	echo    *echo.Echo
	addr    string
	limiter *RateLimiter
	logger  *slog.Logger
}

// NewServer wires routes and middleware.
func NewServer(opts Options, trending usecase.TrendingService, history usecase.HistoryService, cache CacheInfo) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limiter := NewRateLimiter(opts.RateCount, opts.RateWindow)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	// Rate limits key on the peer address; forwarding headers are client-controlled.
	e.IPExtractor = echo.ExtractIPDirect()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))
	if opts.Tracing {
		e.Use(otelecho.Middleware(opts.ServiceName))
	}
	e.Use(metricsMiddleware())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: opts.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	h := &handler{
		trending:  trending,
		history:   history,
		cache:     cache,
		version:   opts.Version,
		startedAt: time.Now(),
	}
	limit := limiter.Middleware()
	e.GET("/health", h.health)
	e.GET("/keywords", h.keywords, limit)
	e.GET("/hashtags", h.hashtags, limit)
	e.GET("/history", h.historyList, limit)
	e.GET("/sources", h.sources)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return &Server{echo: e, addr: opts.Addr, limiter: limiter, logger: logger}
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.InfoContext(ctx, "starting server", "address", s.addr)
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		s.limiter.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogError:     true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ctx := c.Request().Context()
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
			}
			if v.Error == nil {
				logger.InfoContext(ctx, "request completed", attrs...)
			} else {
				logger.ErrorContext(ctx, "request failed", append(attrs, "error", v.Error.Error())...)
			}
			return nil
		},
	})
}

func metricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if err != nil {
				status = http.StatusInternalServerError
				var httpErr *echo.HTTPError
				if errors.As(err, &httpErr) {
					status = httpErr.Code
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			telemetry.RecordHTTPRequest(c.Request().Method, route, strconv.Itoa(status), time.Since(start).Seconds())
			return err
		}
	}
}
