package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/poiesic/phrasebook/ai"
	"github.com/poiesic/phrasebook/lang"
	"github.com/poiesic/phrasebook/search"
	"github.com/poiesic/phrasebook/storage/badger"
	"gopkg.in/yaml.v3"
)

// DefaultStorePath is where the store lives when no path is configured.
const DefaultStorePath = "phrasebook.db"

// Config is the on-disk configuration of a phrasebook installation.
type Config struct {
	Store     StoreConfig    `yaml:"store"`
	Embedding *ai.Config     `yaml:"embedding"` // nil means lexical-only
	Search    SearchConfig   `yaml:"search"`
	Languages []lang.Profile `yaml:"languages"`
}

// StoreConfig locates the database.
type StoreConfig struct {
	Path string `yaml:"path"`

	// GraphThreshold is the corpus size above which builds persist an HNSW graph.
	// Default: 1000
	GraphThreshold int `yaml:"graph_threshold"`
}

// SearchConfig tunes retrieval and re-ranking. Zero values keep the searcher defaults.
type SearchConfig struct {
	LexicalLimit  int     `yaml:"lexical_limit"`
	SemanticK     int     `yaml:"semantic_k"`
	SearchRadius  int     `yaml:"search_radius"`
	ShortListSize int     `yaml:"short_list_size"`
	Alpha         float64 `yaml:"alpha"`
	Beta          float64 `yaml:"beta"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Path:           DefaultStorePath,
			GraphThreshold: badger.DefaultGraphThreshold,
		},
		Search: SearchConfig{
			LexicalLimit:  search.DefaultLexicalLimit,
			SemanticK:     search.DefaultSemanticK,
			SearchRadius:  search.DefaultSearchRadius,
			ShortListSize: search.DefaultShortListSize,
			Alpha:         search.DefaultAlpha,
			Beta:          search.DefaultBeta,
		},
	}
}

// Load reads the YAML file at path. Environment variables in the file are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Read(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Read decodes a YAML configuration over the defaults. Unknown keys are rejected.
func Read(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section and canonicalizes the embedding configuration.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return errors.New("config: store.path is required")
	}
	if c.Store.GraphThreshold < 0 {
		return errors.New("config: store.graph_threshold cannot be negative")
	}
	if c.Embedding != nil {
		if err := c.Embedding.Validate(); err != nil {
			return err
		}
	}
	for i := range c.Languages {
		if err := c.Languages[i].Validate(); err != nil {
			return fmt.Errorf("config: languages[%d]: %w", i, err)
		}
	}
	return c.Search.validate()
}

func (s SearchConfig) validate() error {
	switch {
	case s.LexicalLimit < 0:
		return errors.New("config: search.lexical_limit cannot be negative")
	case s.SemanticK < 0:
		return errors.New("config: search.semantic_k cannot be negative")
	case s.SearchRadius < 0:
		return errors.New("config: search.search_radius cannot be negative")
	case s.ShortListSize < 0:
		return errors.New("config: search.short_list_size cannot be negative")
	case s.Alpha < 0:
		return errors.New("config: search.alpha cannot be negative")
	case s.Beta < 0 || s.Beta > 1:
		return errors.New("config: search.beta must be in (0, 1]")
	}
	return nil
}

// Options converts the non-zero settings into searcher options.
func (s SearchConfig) Options() []search.Option {
	var opts []search.Option
	if s.LexicalLimit != 0 {
		opts = append(opts, search.WithLexicalLimit(s.LexicalLimit))
	}
	if s.SemanticK != 0 {
		opts = append(opts, search.WithSemanticK(s.SemanticK))
	}
	if s.SearchRadius != 0 {
		opts = append(opts, search.WithSearchRadius(s.SearchRadius))
	}
	if s.ShortListSize != 0 {
		opts = append(opts, search.WithShortListSize(s.ShortListSize))
	}
	if s.Alpha != 0 || s.Beta != 0 {
		alpha, beta := s.Alpha, s.Beta
		if beta == 0 {
			beta = search.DefaultBeta
		}
		opts = append(opts, search.WithScoring(alpha, beta))
	}
	return opts
}

// Registry returns the built-in language profiles with the configured overrides applied.
func (c *Config) Registry() (*lang.Registry, error) {
	registry := lang.NewRegistry()
	for _, p := range c.Languages {
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
