package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// MountConfig mirrors the mount-time configuration file's recognised
// keys. Unknown top-level keys are ignored by go-toml/v2's default
// decoding, which matches this tool's generally lenient handling of
// unrecognised configuration.
type MountConfig struct {
	DefaultModel string `toml:"default_model"`
	APIKey       string `toml:"api_key"`
	BaseURL      string `toml:"base_url"`

	SemanticSearch struct {
		ServiceURL string `toml:"service_url"`
	} `toml:"semantic_search"`

	DefaultConfig struct {
		Temperature  *float64 `toml:"temperature"`
		SystemPrompt *string  `toml:"system_prompt"`
	} `toml:"default_config"`
}

// LoadMountConfig reads and parses the TOML mount-time configuration
// file at path. A malformed file is a startup error, not a warning.
func LoadMountConfig(path string) (*MountConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var mc MountConfig
	if err := toml.Unmarshal(data, &mc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	mc.BaseURL = normalizeBaseURL(mc.BaseURL)
	return &mc, nil
}

// normalizeBaseURL appends a trailing "/" if one is absent.
func normalizeBaseURL(u string) string {
	if u == "" || strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}

// ApplyTo copies the mount config's scalars and default parameters into
// a Store. Invalid [default_config] values emit a warning and are
// ignored rather than failing the mount.
func (mc *MountConfig) ApplyTo(store *Store) {
	store.DefaultModel = mc.DefaultModel
	store.APIKey = mc.APIKey
	store.BaseURL = mc.BaseURL
	store.SearchEndpoint = mc.SemanticSearch.ServiceURL

	params := ModelParameters{}
	if mc.DefaultConfig.Temperature != nil {
		t := *mc.DefaultConfig.Temperature
		if t < 0.0 || t > 2.0 {
			log.Printf("config: [default_config].temperature %v out of range [0.0, 2.0], ignoring", t)
		} else {
			params.Temperature = &t
		}
	}
	if mc.DefaultConfig.SystemPrompt != nil {
		s := *mc.DefaultConfig.SystemPrompt
		params.SystemPrompt = &s
	}
	store.GlobalParams = params
}

// settingsDoc is the on-the-wire shape for settings.toml, both read and
// write. Unset fields are omitted entirely rather than emitted with
// zero values.
type settingsDoc struct {
	Temperature  *float64 `toml:"temperature,omitempty"`
	SystemPrompt *string  `toml:"system_prompt,omitempty"`
}

// SerializeSettings re-serialises the given parameters as a settings.toml
// document from the live, merged values, never from a cached raw
// string, so the output always reflects the current effective state.
func SerializeSettings(p ModelParameters) []byte {
	doc := settingsDoc{Temperature: p.Temperature, SystemPrompt: p.SystemPrompt}
	out, err := toml.Marshal(doc)
	if err != nil {
		// Marshal of a plain struct of *float64/*string cannot fail.
		return nil
	}
	return out
}

// ParseSettings parses a settings.toml document, validating the two
// recognised keys. Unknown keys are warnings, not errors, so a
// settings.toml written by a newer version of this tool still loads.
func ParseSettings(data []byte) (ModelParameters, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return ModelParameters{}, fmt.Errorf("parse settings: %w", err)
	}

	var out ModelParameters
	for key, val := range raw {
		switch key {
		case "temperature":
			t, ok := toFloat(val)
			if !ok {
				return ModelParameters{}, fmt.Errorf("temperature must be numeric")
			}
			if t < 0.0 || t > 2.0 {
				return ModelParameters{}, fmt.Errorf("temperature %v out of range [0.0, 2.0]", t)
			}
			out.Temperature = &t
		case "system_prompt":
			s, ok := val.(string)
			if !ok {
				return ModelParameters{}, fmt.Errorf("system_prompt must be a string")
			}
			out.SystemPrompt = &s
		default:
			log.Printf("config: unknown settings key %q ignored", key)
		}
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
