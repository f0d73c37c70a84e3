// Package config implements the layered model-parameter store: global
// defaults merged with per-model overrides, plus the top-level scalar
// settings read from the mount-time configuration file.
package config

import "sync"

// ModelParameters holds the optional, mergeable knobs for an LLM call.
// Every field is a pointer so an unset field can be distinguished from a
// zero value, which is what makes the merge rule well defined.
type ModelParameters struct {
	Temperature  *float64
	SystemPrompt *string
}

// Merge combines p (the base layer) with override (the higher layer),
// producing a new ModelParameters whose fields come from override where
// set and from p otherwise. Merge is associative and right-biased:
// fields present in the right operand always win.
func (p ModelParameters) Merge(override ModelParameters) ModelParameters {
	out := p
	if override.Temperature != nil {
		out.Temperature = override.Temperature
	}
	if override.SystemPrompt != nil {
		out.SystemPrompt = override.SystemPrompt
	}
	return out
}

// Store holds the mount-time scalars, the global parameter defaults, and
// the per-model overrides. It has no on-disk backing: state lives only
// for the lifetime of the mounted process.
type Store struct {
	mu sync.Mutex

	DefaultModel    string
	APIKey          string
	BaseURL         string
	SearchEndpoint  string
	GlobalParams    ModelParameters
	ModelSpecific   map[string]ModelParameters
}

// NewStore returns an empty Store ready for use.
func NewStore() *Store {
	return &Store{ModelSpecific: make(map[string]ModelParameters)}
}

// Effective returns global_params ⊕ model_specific[model]; a model with no
// override simply returns the global defaults (merge with the identity).
func (s *Store) Effective(model string) ModelParameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.GlobalParams.Merge(s.ModelSpecific[model])
}

// SetModelParams merges newParams into the stored override for model,
// atomically under the store lock.
func (s *Store) SetModelParams(model string, newParams ModelParameters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ModelSpecific[model] = s.ModelSpecific[model].Merge(newParams)
}

// SetGlobalParams merges newParams into the global defaults.
func (s *Store) SetGlobalParams(newParams ModelParameters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GlobalParams = s.GlobalParams.Merge(newParams)
}

// ResolveModel turns the "default" alias into the configured default
// model name; any other name passes through unchanged.
func (s *Store) ResolveModel(name string) string {
	if name != "default" {
		return name
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.DefaultModel
}
