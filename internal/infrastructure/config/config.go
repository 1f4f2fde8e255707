// Package config handles configuration loading.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/tesso57/trendfeed/internal/application/settings"
	"gopkg.in/yaml.v3"
)

// Store holds the resolved settings and where they were read from.
type Store struct {
	Settings   settings.Settings
	configPath string
}

// Load resolves settings from defaults, the YAML file at the given path (or the
// default location) and environment variables. A missing file is not an error.
func Load(customPath ...string) (*Store, error) {
	configPath := ""
	if len(customPath) > 0 && customPath[0] != "" {
		configPath = customPath[0]
	} else {
		configPath = filepath.Join(defaultConfigHome(), "trendfeed", "config.yaml")
	}

	cfg := settings.Settings{}
	var options []kong.Option

	// Only add configuration loader if file exists
	if _, err := os.Stat(configPath); err == nil {
		options = append(options, kong.Configuration(yamlKongLoader, configPath))
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat config %s: %w", configPath, err)
	}

	parser, err := kong.New(&cfg, options...)
	if err != nil {
		return nil, err
	}
	if _, err := parser.Parse([]string{}); err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}

	cfg.Sources = normalizeSources(cfg.Sources)
	cfg.CORSAllowedOrigins = normalizeSources(cfg.CORSAllowedOrigins)
	cfg.GeoDefault = strings.ToUpper(strings.TrimSpace(cfg.GeoDefault))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return &Store{Settings: cfg, configPath: configPath}, nil
}

// Path returns the config file location that was consulted.
func (s *Store) Path() string {
	return s.configPath
}

// normalizeSources trims entries and splits whitespace-separated values.
func normalizeSources(values []string) []string {
	if len(values) == 0 {
		return values
	}
	normalized := make([]string, 0, len(values))
	for _, value := range values {
		for item := range strings.FieldsSeq(value) {
			if item != "" {
				normalized = append(normalized, item)
			}
		}
	}
	return normalized
}

func defaultConfigHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config")
}

func yamlKongLoader(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}

	var f kong.ResolverFunc = func(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
		names := []string{flag.Name, strings.ReplaceAll(flag.Name, "-", "_")}
		for _, name := range names {
			if v, ok := lookup(values, name); ok {
				return v, nil
			}
		}
		return nil, nil
	}
	return f, nil
}

// lookup resolves a flat key first, then walks dot-separated sections.
func lookup(values map[string]any, name string) (any, bool) {
	if v, ok := values[name]; ok {
		return v, true
	}
	parts := strings.Split(name, ".")
	if len(parts) < 2 {
		return nil, false
	}
	curr := values
	for _, part := range parts[:len(parts)-1] {
		next, ok := curr[part].(map[string]any)
		if !ok {
			return nil, false
		}
		curr = next
	}
	v, ok := curr[parts[len(parts)-1]]
	return v, ok
}
