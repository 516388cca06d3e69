// Package catalog maps news categories to the sources they are fetched from
// and describes how article bodies are extracted from each source.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	yaml "go.yaml.in/yaml/v3"

	"newsbot/internal/filter"
)

//go:embed sources.toml
var defaultCatalog []byte

// Source kinds.
const (
	KindNewsdata = "newsdata"
	KindRSS      = "rss"
)

// Source is a single news origin.
type Source struct {
	Key          string   `toml:"key" yaml:"key"`
	Domain       string   `toml:"domain" yaml:"domain"`
	Name         string   `toml:"name" yaml:"name"`
	Kind         string   `toml:"kind" yaml:"kind"`
	FeedURL      string   `toml:"feed_url" yaml:"feed_url"`
	Container    string   `toml:"container" yaml:"container"`
	StripClasses []string `toml:"strip_classes" yaml:"strip_classes"`
	Include      []string `toml:"include" yaml:"include"`
	Exclude      []string `toml:"exclude" yaml:"exclude"`

	rules *filter.Rules
}

// Rules returns the compiled title rules of the source.
func (s Source) Rules() *filter.Rules {
	return s.rules
}

// NewsdataDomain is the domain filter sent to the newsdata API.
func (s Source) NewsdataDomain() string {
	if s.Domain != "" {
		return s.Domain
	}
	return s.Key
}

// Category groups sources under a subscribable name.
type Category struct {
	Name        string   `toml:"name" yaml:"name"`
	Emoji       string   `toml:"emoji" yaml:"emoji"`
	Description string   `toml:"description" yaml:"description"`
	Sources     []Source `toml:"source" yaml:"source"`
}

// Catalog is the full category and source configuration.
type Catalog struct {
	StripTags  []string   `toml:"strip_tags" yaml:"strip_tags"`
	Categories []Category `toml:"category" yaml:"category"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse("sources.toml", defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("built-in catalog: %v", err))
	}
	return c
}

// Load reads a catalog file. An empty path returns the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(path, data)
}

// Parse decodes a catalog, choosing YAML or TOML by the file extension of name.
func Parse(name string, data []byte) (*Catalog, error) {
	var c Catalog
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("decode yaml catalog: %w", err)
		}
	default:
		if err := toml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("decode toml catalog: %w", err)
		}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Categories) == 0 {
		return fmt.Errorf("catalog has no categories")
	}
	names := make(map[string]bool)
	keys := make(map[string]bool)
	for i := range c.Categories {
		cat := &c.Categories[i]
		cat.Name = strings.ToLower(strings.TrimSpace(cat.Name))
		if cat.Name == "" {
			return fmt.Errorf("category %d has no name", i)
		}
		if names[cat.Name] {
			return fmt.Errorf("duplicate category %q", cat.Name)
		}
		names[cat.Name] = true

		for j := range cat.Sources {
			src := &cat.Sources[j]
			if src.Key == "" {
				return fmt.Errorf("category %q: source %d has no key", cat.Name, j)
			}
			if keys[src.Key] {
				return fmt.Errorf("duplicate source key %q", src.Key)
			}
			keys[src.Key] = true
			if src.Name == "" {
				src.Name = src.Key
			}
			switch src.Kind {
			case "", KindNewsdata:
				src.Kind = KindNewsdata
			case KindRSS:
				if src.FeedURL == "" {
					return fmt.Errorf("source %q: rss source needs feed_url", src.Key)
				}
			default:
				return fmt.Errorf("source %q: unknown kind %q", src.Key, src.Kind)
			}
			rules, err := filter.Compile(src.Include, src.Exclude)
			if err != nil {
				return fmt.Errorf("source %q: %w", src.Key, err)
			}
			src.rules = rules
		}
	}
	return nil
}

// Names returns category names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.Categories))
	for _, cat := range c.Categories {
		out = append(out, cat.Name)
	}
	return out
}

// Category looks up a category by name.
func (c *Catalog) Category(name string) (Category, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, cat := range c.Categories {
		if cat.Name == name {
			return cat, true
		}
	}
	return Category{}, false
}

// Source looks up a source by key across all categories.
func (c *Catalog) Source(key string) (Source, bool) {
	for _, cat := range c.Categories {
		for _, src := range cat.Sources {
			if src.Key == key {
				return src, true
			}
		}
	}
	return Source{}, false
}

// Emoji returns the category emoji, or a generic one for unknown names.
func (c *Catalog) Emoji(name string) string {
	if cat, ok := c.Category(name); ok && cat.Emoji != "" {
		return cat.Emoji
	}
	return "📰"
}
