package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Selectors locate fields inside an HTML listing page.
type Selectors struct {
	Item        string `yaml:"item"`
	Title       string `yaml:"title"`
	Link        string `yaml:"link"`
	Date        string `yaml:"date"`
	DateAttr    string `yaml:"date_attr"`
	Time        string `yaml:"time"`
	Location    string `yaml:"location"`
	Description string `yaml:"description"`
	Image       string `yaml:"image"`
}

// SourceConfig registers one scrapeable source.
type SourceConfig struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	URL         string    `yaml:"url"`
	Description string    `yaml:"description"`
	Platform    bool      `yaml:"platform"`
	Collector   string    `yaml:"collector"` // tribe | luma | rss | ics | html
	Endpoint    string    `yaml:"endpoint"`
	DetailBase  string    `yaml:"detail_base"`
	Calendar    string    `yaml:"calendar"` // luma calendar api id
	Selectors   Selectors `yaml:"selectors"`
	MaxItems    int       `yaml:"max_items"`
}

// Registry is the operator-controlled list of sources and batches.
type Registry struct {
	BannedLocations []string            `yaml:"banned_locations"`
	Batches         map[string][]string `yaml:"batches"`
	Sources         []SourceConfig      `yaml:"sources"`
}

// LoadRegistry reads and validates the YAML registry at path.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry decodes and validates a registry document.
func ParseRegistry(data []byte) (*Registry, error) {
	var r Registry
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Registry) validate() error {
	if len(r.Sources) == 0 {
		return errors.New("registry has no sources")
	}
	seen := make(map[string]struct{}, len(r.Sources))
	for i, s := range r.Sources {
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("source %d: id is required", i)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("source %q registered twice", s.ID)
		}
		seen[s.ID] = struct{}{}
		if s.Collector == "" {
			return fmt.Errorf("source %q: collector is required", s.ID)
		}
	}
	for batch, ids := range r.Batches {
		for _, id := range ids {
			if _, ok := seen[id]; !ok {
				return fmt.Errorf("batch %q references unknown source %q", batch, id)
			}
		}
	}
	return nil
}

// SourceIDs lists every registered source in file order.
func (r *Registry) SourceIDs() []string {
	out := make([]string, 0, len(r.Sources))
	for _, s := range r.Sources {
		out = append(out, s.ID)
	}
	return out
}

// Source looks up a source by slug.
func (r *Registry) Source(id string) (SourceConfig, bool) {
	for _, s := range r.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return SourceConfig{}, false
}

// PlatformSources lists the slugs flagged as platforms.
func (r *Registry) PlatformSources() []string {
	var out []string
	for _, s := range r.Sources {
		if s.Platform {
			out = append(out, s.ID)
		}
	}
	return out
}

// Batch resolves a batch selector. An empty or unknown selector selects
// every registered source; ok reports whether a batch matched.
func (r *Registry) Batch(selector string) ([]string, bool) {
	selector = strings.TrimSpace(selector)
	if ids, found := r.Batches[selector]; selector != "" && found {
		out := make([]string, len(ids))
		copy(out, ids)
		return out, true
	}
	return r.SourceIDs(), false
}

// BatchNames returns batch keys, numeric keys in numeric order.
func (r *Registry) BatchNames() []string {
	names := make([]string, 0, len(r.Batches))
	for name := range r.Batches {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, errA := strconv.Atoi(names[i])
		b, errB := strconv.Atoi(names[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return names[i] < names[j]
	})
	return names
}
