// CLAUDE:SUMMARY Keeper configuration (index, ledger, sources, render, serve) with defaults, validation and YAML loader.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/surfacekeeper/extract"
	"github.com/hazyhaar/surfacekeeper/record"
	"github.com/hazyhaar/surfacekeeper/render"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("catalog: invalid config")

// Source kinds.
const (
	KindJSONL  = "jsonl"
	KindJSON   = "json"
	KindHTML   = "html"
	KindDetail = "detail"
	KindRender = "render"
)

// Config holds all keeper configuration.
type Config struct {
	IndexPath     string         `yaml:"index_path"`
	LedgerPath    string         `yaml:"ledger_path"`
	DisableLedger bool           `yaml:"disable_ledger"`
	SurfaceGroup  string         `yaml:"surface_group"`
	FlushEvery    int            `yaml:"flush_every"`
	Sources       []SourceConfig `yaml:"sources"`
	Render        render.Config  `yaml:"render"`
	Serve         ServeConfig    `yaml:"serve"`
}

// SourceConfig describes one fragment producer.
type SourceConfig struct {
	Name         string        `yaml:"name"`
	Kind         string        `yaml:"kind"`
	Path         string        `yaml:"path"`
	URL          string        `yaml:"url"`
	Page         string        `yaml:"page"` // render only: "listing" (default) or "detail"
	BaseURL      string        `yaml:"base_url"`
	TileSelector string        `yaml:"tile_selector"`
	NameSelector string        `yaml:"name_selector"`
	Facet        extract.Facet `yaml:"facet"`
}

// ServeConfig controls the read-only HTTP API.
type ServeConfig struct {
	Addr string `yaml:"addr"`
}

func (c *Config) defaults() {
	if c.IndexPath == "" {
		c.IndexPath = "products.json"
	}
	if c.LedgerPath == "" {
		c.LedgerPath = "surfacekeeper.db"
	}
	if c.SurfaceGroup == "" {
		c.SurfaceGroup = record.DefaultSurfaceGroup
	}
	if c.FlushEvery <= 0 {
		c.FlushEvery = 50
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = ":8080"
	}
	for i := range c.Sources {
		s := &c.Sources[i]
		s.Kind = strings.ToLower(strings.TrimSpace(s.Kind))
		if s.Name == "" {
			s.Name = fmt.Sprintf("%s-%d", s.Kind, i+1)
		}
		if s.Kind == KindRender && s.Page == "" {
			s.Page = "listing"
		}
		if s.BaseURL == "" && s.URL != "" {
			s.BaseURL = s.URL
		}
	}
}

// Validate applies defaults and checks every source.
func (c *Config) Validate() error {
	c.defaults()
	for _, s := range c.Sources {
		switch s.Kind {
		case KindJSONL, KindJSON, KindHTML, KindDetail:
			if s.Path == "" {
				return fmt.Errorf("%w: source %s: %s needs path", ErrInvalidConfig, s.Name, s.Kind)
			}
		case KindRender:
			if s.URL == "" {
				return fmt.Errorf("%w: source %s: render needs url", ErrInvalidConfig, s.Name)
			}
			if s.Page != "listing" && s.Page != "detail" {
				return fmt.Errorf("%w: source %s: unknown page %q", ErrInvalidConfig, s.Name, s.Page)
			}
		default:
			return fmt.Errorf("%w: source %s: unknown kind %q", ErrInvalidConfig, s.Name, s.Kind)
		}
	}
	return nil
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}
