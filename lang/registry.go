package lang

import (
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"github.com/poiesic/phrasebook/core"
	"gopkg.in/yaml.v3"
)

// Registry holds language profiles. Unknown languages resolve to a
// conservative profile with no evidence tables.
// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	profiles map[core.Language]*Profile
}

// NewRegistry returns a registry seeded with the built-in profiles.
func NewRegistry() *Registry {
	r := &Registry{profiles: make(map[core.Language]*Profile)}
	for _, p := range builtinProfiles {
		r.profiles[p.Code] = p.clone()
	}
	return r
}

// Register validates p and adds it, replacing any profile for the same language.
func (r *Registry) Register(p Profile) error {
	p.StopWords = slices.Clone(p.StopWords)
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.Code] = &p
	return nil
}

// Profile returns a copy of the profile for language.
func (r *Registry) Profile(language core.Language) *Profile {
	r.mu.RLock()
	p, ok := r.profiles[language]
	r.mu.RUnlock()
	if !ok {
		return &Profile{Code: language, Mode: Conservative}
	}
	return p.clone()
}

// Known reports whether a profile is registered for language.
func (r *Registry) Known(language core.Language) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.profiles[language]
	return ok
}

// Languages returns the registered language codes in sorted order.
func (r *Registry) Languages() []core.Language {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Language, 0, len(r.profiles))
	for code := range r.profiles {
		out = append(out, code)
	}
	slices.Sort(out)
	return out
}

type profileFile struct {
	Languages []Profile `yaml:"languages"`
}

// ReadProfiles decodes a YAML document with a top-level "languages" list.
func ReadProfiles(rd io.Reader) ([]Profile, error) {
	dec := yaml.NewDecoder(rd)
	dec.KnownFields(true)
	var f profileFile
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode language profiles: %w", err)
	}
	return f.Languages, nil
}

// LoadFile registers every profile in the YAML file at path.
func (r *Registry) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open language profiles: %w", err)
	}
	defer f.Close()

	profiles, err := ReadProfiles(f)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}
