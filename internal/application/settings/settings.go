// Package settings defines application-level configuration data.
package settings

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tesso57/trendfeed/internal/domain/trend"
)

// CacheConfig configures the result cache.
type CacheConfig struct {
	TTL     time.Duration `yaml:"ttl" kong:"name='ttl',help='Result cache TTL',default='5m',env='CACHE_TTL'"`
	MaxSize int           `yaml:"max_size" kong:"help='Result cache capacity',default='500',env='CACHE_MAXSIZE'"`
}

// HTTPConfig configures the outbound feed client.
type HTTPConfig struct {
	Timeout                 time.Duration `yaml:"timeout" kong:"help='Per-request upstream timeout',default='15s',env='HTTP_TIMEOUT'"`
	MaxConnections          int           `yaml:"max_connections" kong:"help='Max upstream connections per host',default='100',env='HTTP_MAX_CONNECTIONS'"`
	MaxKeepaliveConnections int           `yaml:"max_keepalive_connections" kong:"help='Max idle keep-alive connections',default='20',env='HTTP_MAX_KEEPALIVE_CONNECTIONS'"`
	MaxBodyBytes            int64         `yaml:"max_body_bytes" kong:"help='Max feed body size in bytes',default='10485760',env='HTTP_MAX_BODY_BYTES'"`
}

// RetryConfig configures upstream retries.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" kong:"help='Attempts per source fetch',default='3',env='RETRY_MAX_ATTEMPTS'"`
	InitialDelay time.Duration `yaml:"initial_delay" kong:"help='First backoff delay',default='2s',env='RETRY_INITIAL_DELAY'"`
	MaxDelay     time.Duration `yaml:"max_delay" kong:"help='Backoff delay cap',default='10s',env='RETRY_MAX_DELAY'"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level" kong:"help='Log level (debug/info/warn/error)',default='info',env='LOG_LEVEL'"`
	Format string `yaml:"format" kong:"help='Log format (json/text)',default='json',env='LOG_FORMAT'"`
}

// HistoryConfig configures snapshot persistence.
type HistoryConfig struct {
	File string `yaml:"file" kong:"help='SQLite snapshot file (empty disables history)',env='HISTORY_FILE'"`
	Keep int    `yaml:"keep" kong:"help='Snapshots kept per source',default='50',env='HISTORY_KEEP'"`
}

// PollConfig configures background refreshes.
type PollConfig struct {
	Interval time.Duration `yaml:"interval" kong:"help='Background refresh interval (0 disables)',default='0s',env='POLL_INTERVAL'"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled" kong:"help='Export traces over OTLP/HTTP',default='false',env='OTEL_ENABLED'"`
	Endpoint    string  `yaml:"endpoint" kong:"help='OTLP endpoint',default='http://localhost:4318',env='OTEL_EXPORTER_OTLP_ENDPOINT'"`
	ServiceName string  `yaml:"service_name" kong:"help='Service name',default='trendfeed',env='OTEL_SERVICE_NAME'"`
	Environment string  `yaml:"environment" kong:"help='Deployment environment',default='development',env='DEPLOYMENT_ENV'"`
	SampleRatio float64 `yaml:"sample_ratio" kong:"help='Trace sample ratio',default='0.1',env='OTEL_TRACE_SAMPLE_RATIO'"`
}

// Settings represents the application configuration.
type Settings struct {
	Addr               string          `yaml:"addr" kong:"help='HTTP listen address',default=':8000',env='TRENDFEED_ADDR'"`
	GeoDefault         string          `yaml:"geo_default" kong:"help='Default two-letter geo code',default='US',env='GEO_DEFAULT'"`
	LimitDefault       int             `yaml:"limit_default" kong:"help='Default titles per source',default='20',env='LIMIT_DEFAULT'"`
	Sources            []string        `yaml:"sources" kong:"help='Feed sources as name=url',env='TRENDFEED_SOURCES'"`
	RateLimit          string          `yaml:"rate_limit" kong:"help='Per-client request budget (N/second|minute|hour)',default='60/minute',env='RATE_LIMIT_SETTINGS'"`
	CORSAllowedOrigins []string        `yaml:"cors_allowed_origins" kong:"name='cors-allowed-origins',help='Allowed CORS origins',default='http://localhost,http://localhost:5678',env='CORS_ALLOWED_ORIGINS'"`
	Cache              CacheConfig     `yaml:"cache" kong:"embed,prefix='cache.'"`
	HTTP               HTTPConfig      `yaml:"http" kong:"embed,prefix='http.'"`
	Retry              RetryConfig     `yaml:"retry" kong:"embed,prefix='retry.'"`
	Log                LogConfig       `yaml:"log" kong:"embed,prefix='log.'"`
	History            HistoryConfig   `yaml:"history" kong:"embed,prefix='history.'"`
	Poll               PollConfig      `yaml:"poll" kong:"embed,prefix='poll.'"`
	Telemetry          TelemetryConfig `yaml:"telemetry" kong:"embed,prefix='telemetry.'"`
}

var geoPattern = regexp.MustCompile(`^[A-Za-z]{2}$`)

// ValidGeo reports whether geo is a two-letter code.
func ValidGeo(geo string) bool {
	return geoPattern.MatchString(geo)
}

// Registry builds the source registry, falling back to the built-in sources.
func (s Settings) Registry() (*trend.Registry, error) {
	if len(s.Sources) == 0 {
		return trend.NewRegistry(trend.DefaultSources)
	}
	sources := make([]trend.Source, 0, len(s.Sources))
	for _, spec := range s.Sources {
		src, err := trend.ParseSourceSpec(spec)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return trend.NewRegistry(sources)
}

// RateLimitBudget parses RateLimit ("60/minute") into a request count and its window.
func (s Settings) RateLimitBudget() (int, time.Duration, error) {
	countText, unit, ok := strings.Cut(strings.TrimSpace(s.RateLimit), "/")
	if !ok {
		return 0, 0, fmt.Errorf("invalid rate limit %q: want N/unit", s.RateLimit)
	}
	count, err := strconv.Atoi(strings.TrimSpace(countText))
	if err != nil || count <= 0 {
		return 0, 0, fmt.Errorf("invalid rate limit %q: count must be a positive integer", s.RateLimit)
	}
	var window time.Duration
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "second", "s":
		window = time.Second
	case "minute", "m":
		window = time.Minute
	case "hour", "h":
		window = time.Hour
	case "day", "d":
		window = 24 * time.Hour
	default:
		return 0, 0, fmt.Errorf("invalid rate limit %q: unknown unit %q", s.RateLimit, unit)
	}
	return count, window, nil
}

// Validate checks cross-field constraints kong cannot express.
func (s Settings) Validate() error {
	var errs []error
	if !ValidGeo(s.GeoDefault) {
		errs = append(errs, fmt.Errorf("geo_default %q must be two letters", s.GeoDefault))
	}
	if s.LimitDefault < trend.MinLimit || s.LimitDefault > trend.MaxLimit {
		errs = append(errs, fmt.Errorf("limit_default must be within %d..%d", trend.MinLimit, trend.MaxLimit))
	}
	if s.Cache.MaxSize <= 0 {
		errs = append(errs, errors.New("cache.max_size must be positive"))
	}
	if s.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}
	if s.HTTP.Timeout <= 0 {
		errs = append(errs, errors.New("http.timeout must be positive"))
	}
	if s.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry.max_attempts must be positive"))
	}
	if s.Retry.MaxDelay < s.Retry.InitialDelay {
		errs = append(errs, errors.New("retry.max_delay must not be smaller than retry.initial_delay"))
	}
	if s.Poll.Interval < 0 {
		errs = append(errs, errors.New("poll.interval must not be negative"))
	}
	if _, _, err := s.RateLimitBudget(); err != nil {
		errs = append(errs, err)
	}
	if _, err := s.Registry(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
