package collector

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cie-hub/cambridge-innovation-events/internal/config"
)

// Collector kinds accepted in the source registry.
const (
	KindTribe = "tribe"
	KindLuma  = "luma"
	KindRSS   = "rss"
	KindHTML  = "html"
	KindICS   = "ics"
)

// Deps are the shared dependencies handed to every collector.
type Deps struct {
	Fetcher           *Fetcher
	DetailConcurrency int
	Location          *time.Location
	Logger            *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Fetcher == nil {
		d.Fetcher = NewFetcher(DefaultTimeout, DefaultUserAgent)
	}
	if d.DetailConcurrency <= 0 {
		d.DetailConcurrency = 4
	}
	if d.Location == nil {
		d.Location = LocalTime()
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	return d
}

// LocalTime is the zone event listings are published in.
func LocalTime() *time.Location {
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		return time.UTC
	}
	return loc
}

// NewFromConfig builds the collector for one registered source.
func NewFromConfig(src config.SourceConfig, deps Deps) (Collector, error) {
	deps = deps.withDefaults()
	log := deps.Logger.With("source", src.ID)

	switch src.Collector {
	case KindTribe:
		return newTribe(src, deps.Fetcher, deps.Location), nil
	case KindLuma:
		return newLuma(src, deps.Fetcher, deps.DetailConcurrency, deps.Location, log), nil
	case KindRSS:
		return newRSS(src, deps.Fetcher, deps.Location), nil
	case KindICS:
		return newICS(src, deps.Fetcher, deps.Location), nil
	case KindHTML:
		if src.Selectors.Item == "" || src.Selectors.Title == "" {
			return nil, fmt.Errorf("source %s: html collector needs item and title selectors", src.ID)
		}
		return newHTML(src, deps.Fetcher), nil
	default:
		return nil, fmt.Errorf("source %s: unknown collector kind %q", src.ID, src.Collector)
	}
}

// Registry maps source slugs to collectors.
type Registry struct {
	collectors map[string]Collector
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{collectors: make(map[string]Collector)}
}

// Build creates a collector for every source in reg.
func Build(reg *config.Registry, deps Deps) (*Registry, error) {
	r := NewRegistry()
	for _, src := range reg.Sources {
		c, err := NewFromConfig(src, deps)
		if err != nil {
			return nil, err
		}
		r.Register(src.ID, c)
	}
	return r, nil
}

// Register binds c to id, replacing any previous binding.
func (r *Registry) Register(id string, c Collector) {
	r.collectors[id] = c
}

// Lookup returns the collector for id.
func (r *Registry) Lookup(id string) (Collector, bool) {
	c, ok := r.collectors[id]
	return c, ok
}
