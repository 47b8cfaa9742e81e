// Package modelconfig loads and validates the YAML model registry: a map
// of model ids to provider/capability metadata plus a default-models
// selection for the router/extraction/summarizer tasks.
package modelconfig

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/hkshon115/semanticarranger/internal/model"
)

// DefaultModels names the model id used by each task unless a call site
// overrides it explicitly.
type DefaultModels struct {
	Router     string `yaml:"router"`
	Extraction string `yaml:"extraction"`
	Summarizer string `yaml:"summarizer"`
}

type modelEntry struct {
	Provider        string `yaml:"provider"`
	TokenLimit      int    `yaml:"token_limit"`
	IsVisionCapable bool   `yaml:"is_vision_capable"`
	Fallback        string `yaml:"fallback"`
}

type document struct {
	DefaultModels DefaultModels          `yaml:"default_models"`
	Models        map[string]modelEntry  `yaml:"models"`
}

// Registry is the validated, in-memory form of the YAML document.
type Registry struct {
	Defaults DefaultModels
	Models   map[string]model.LLMModelSpec
}

// Load reads and validates a model registry YAML file.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model config: %w", err)
	}
	return Parse(raw)
}

// Parse validates raw YAML bytes into a Registry. Validation enforces:
//   - every default_models id and every fallback id exists in models;
//   - the fallback graph is acyclic;
//   - a vision-capable model exists for router and extraction defaults,
//     since both tasks consume page images.
func Parse(raw []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse model config: %w", err)
	}
	if len(doc.Models) == 0 {
		return nil, fmt.Errorf("model config: no models declared")
	}

	reg := &Registry{Defaults: doc.DefaultModels, Models: make(map[string]model.LLMModelSpec, len(doc.Models))}
	for id, e := range doc.Models {
		reg.Models[id] = model.LLMModelSpec{
			ModelID:         id,
			Provider:        e.Provider,
			TokenLimit:      e.TokenLimit,
			IsVisionCapable: e.IsVisionCapable,
			Fallback:        e.Fallback,
		}
	}

	if err := reg.validateReferences(); err != nil {
		return nil, err
	}
	if err := reg.validateAcyclic(); err != nil {
		return nil, err
	}
	if err := reg.validateVisionCoverage(); err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *Registry) validateReferences() error {
	check := func(field, id string) error {
		if id == "" {
			return nil
		}
		if _, ok := r.Models[id]; !ok {
			return fmt.Errorf("model config: %s references unknown model %q", field, id)
		}
		return nil
	}
	if err := check("default_models.router", r.Defaults.Router); err != nil {
		return err
	}
	if err := check("default_models.extraction", r.Defaults.Extraction); err != nil {
		return err
	}
	if err := check("default_models.summarizer", r.Defaults.Summarizer); err != nil {
		return err
	}
	// Deterministic iteration for stable error messages.
	ids := r.sortedIDs()
	for _, id := range ids {
		m := r.Models[id]
		if err := check(fmt.Sprintf("models.%s.fallback", id), m.Fallback); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) validateAcyclic() error {
	for _, id := range r.sortedIDs() {
		visited := map[string]bool{}
		cur := id
		for cur != "" {
			if visited[cur] {
				return fmt.Errorf("model config: fallback cycle detected starting at %q", id)
			}
			visited[cur] = true
			cur = r.Models[cur].Fallback
		}
	}
	return nil
}

func (r *Registry) validateVisionCoverage() error {
	needsVision := []struct {
		field string
		id    string
	}{
		{"default_models.router", r.Defaults.Router},
		{"default_models.extraction", r.Defaults.Extraction},
	}
	for _, n := range needsVision {
		if n.id == "" {
			continue
		}
		if spec, ok := r.Models[n.id]; ok && !spec.IsVisionCapable {
			// A vision-incapable default is only acceptable if its fallback
			// chain reaches a vision-capable model, since the router/minimal
			// text path can still function without it.
			if !r.chainHasVision(n.id) {
				return fmt.Errorf("model config: %s (%q) and its fallback chain contain no vision-capable model", n.field, n.id)
			}
		}
	}
	return nil
}

func (r *Registry) chainHasVision(id string) bool {
	cur := id
	visited := map[string]bool{}
	for cur != "" && !visited[cur] {
		visited[cur] = true
		spec, ok := r.Models[cur]
		if !ok {
			return false
		}
		if spec.IsVisionCapable {
			return true
		}
		cur = spec.Fallback
	}
	return false
}

func (r *Registry) sortedIDs() []string {
	ids := make([]string, 0, len(r.Models))
	for id := range r.Models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Spec returns the LLMModelSpec for id, or false if unknown.
func (r *Registry) Spec(id string) (model.LLMModelSpec, bool) {
	s, ok := r.Models[id]
	return s, ok
}
