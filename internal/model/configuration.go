package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrConfigurationNotObject is returned when a configuration document is not a JSON object.
	ErrConfigurationNotObject = errors.New("configuration must be a JSON object")

	// ErrThresholdNotNumber is returned when the threshold key holds a non-numeric value.
	ErrThresholdNotNumber = errors.New("threshold must be a number")
)

// ConfigKeyThreshold is the only configuration key the backend interprets.
const ConfigKeyThreshold = "threshold"

// Configuration holds device-specific settings. Threshold is recognized and
// typed; any other keys are carried in Extra and written back unchanged.
type Configuration struct {
	Threshold *float64
	Extra     map[string]any
}

// ParseConfiguration decodes a raw configuration document. An empty or null
// document yields the zero Configuration.
func ParseConfiguration(raw []byte) (Configuration, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Configuration{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return Configuration{}, fmt.Errorf("decode configuration: %w", err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return Configuration{}, ErrConfigurationNotObject
	}

	var cfg Configuration
	for k, v := range obj {
		if k == ConfigKeyThreshold {
			n, ok := v.(json.Number)
			if !ok {
				return Configuration{}, ErrThresholdNotNumber
			}
			f, err := n.Float64()
			if err != nil {
				return Configuration{}, ErrThresholdNotNumber
			}
			cfg.Threshold = &f
			continue
		}
		if cfg.Extra == nil {
			cfg.Extra = make(map[string]any)
		}
		cfg.Extra[k] = v
	}
	return cfg, nil
}

// MarshalJSON renders the configuration as a flat JSON object.
func (c Configuration) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Extra)+1)
	for k, v := range c.Extra {
		out[k] = v
	}
	if c.Threshold != nil {
		out[ConfigKeyThreshold] = *c.Threshold
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler using ParseConfiguration rules.
func (c *Configuration) UnmarshalJSON(data []byte) error {
	parsed, err := ParseConfiguration(data)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
