// Package trend defines the core trending-feed models.
package trend

import (
	"fmt"
	"slices"
	"strings"
)

// GeoPlaceholder is substituted with the requested geo code in a source URL template.
const GeoPlaceholder = "{geo}"

// Limit bounds accepted for a single aggregation.
const (
	MinLimit = 1
	MaxLimit = 50
)

// Source is one named, configured feed.
type Source struct {
	Name        string
	URLTemplate string
}

// Resolve returns the feed URL for the given geo code.
func (s Source) Resolve(geo string) string {
	if !strings.Contains(s.URLTemplate, GeoPlaceholder) {
		return s.URLTemplate
	}
	return strings.ReplaceAll(s.URLTemplate, GeoPlaceholder, geo)
}

// FetchKey identifies one cache entry.
type FetchKey struct {
	Source string
	URL    string
	Limit  int
}

// String renders the key for logging and request coalescing.
func (k FetchKey) String() string {
	return fmt.Sprintf("%s|%s|%d", k.Source, k.URL, k.Limit)
}

// DefaultSources is the built-in registry.
var DefaultSources = []Source{
	{Name: "google_trends", URLTemplate: "https://trends.google.com/trends/trendingsearches/daily/rss?geo={geo}"},
	{Name: "techcrunch", URLTemplate: "https://techcrunch.com/feed/"},
	{Name: "the_verge", URLTemplate: "https://www.theverge.com/rss/index.xml"},
	{Name: "wired", URLTemplate: "https://www.wired.com/feed/rss"},
	{Name: "ars_technica", URLTemplate: "https://feeds.arstechnica.com/arstechnica/index/"},
	{Name: "cnet_news", URLTemplate: "https://www.cnet.com/rss/news/"},
	{Name: "bbc_technology", URLTemplate: "http://feeds.bbci.co.uk/news/technology/rss.xml"},
}

// ParseSourceSpec parses a "name=url" entry.
func ParseSourceSpec(spec string) (Source, error) {
	name, url, ok := strings.Cut(strings.TrimSpace(spec), "=")
	name = strings.TrimSpace(name)
	url = strings.TrimSpace(url)
	if !ok || name == "" || url == "" {
		return Source{}, fmt.Errorf("invalid source %q: want name=url", spec)
	}
	return Source{Name: name, URLTemplate: url}, nil
}

// Registry is the immutable set of known sources, in registration order.
type Registry struct {
	sources []Source
	byName  map[string]int
}

// NewRegistry builds a registry. Names are matched case-insensitively and must be unique.
func NewRegistry(sources []Source) (*Registry, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("registry needs at least one source")
	}
	r := &Registry{
		sources: make([]Source, 0, len(sources)),
		byName:  make(map[string]int, len(sources)),
	}
	for _, s := range sources {
		key := strings.ToLower(strings.TrimSpace(s.Name))
		if key == "" || strings.TrimSpace(s.URLTemplate) == "" {
			return nil, fmt.Errorf("source %q: name and url are required", s.Name)
		}
		if _, dup := r.byName[key]; dup {
			return nil, fmt.Errorf("duplicate source %q", s.Name)
		}
		r.byName[key] = len(r.sources)
		r.sources = append(r.sources, Source{Name: strings.TrimSpace(s.Name), URLTemplate: strings.TrimSpace(s.URLTemplate)})
	}
	return r, nil
}

// All returns every registered source.
func (r *Registry) All() []Source {
	return slices.Clone(r.sources)
}

// Lookup finds a source by name.
func (r *Registry) Lookup(name string) (Source, bool) {
	i, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Source{}, false
	}
	return r.sources[i], true
}

// Select resolves a comma-separated source filter. An empty filter selects all sources;
// a filter matching nothing is an invalid request.
func (r *Registry) Select(filter string) ([]Source, error) {
	if strings.TrimSpace(filter) == "" {
		return r.All(), nil
	}
	wanted := make(map[string]struct{})
	for name := range strings.SplitSeq(filter, ",") {
		wanted[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	var selected []Source
	for _, s := range r.sources {
		if _, ok := wanted[strings.ToLower(s.Name)]; ok {
			selected = append(selected, s)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: no valid sources selected", ErrInvalidRequest)
	}
	return selected, nil
}
