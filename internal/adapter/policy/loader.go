package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFromFile reads a YAML policy file and returns a validated Policy.
func LoadFromFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML policy document.
func Parse(data []byte) (*Policy, error) {
	var pol Policy
	if err := yaml.Unmarshal(data, &pol); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}

	if err := validate(&pol); err != nil {
		return nil, fmt.Errorf("validating policy: %w", err)
	}

	return &pol, nil
}

func validate(pol *Policy) error {
	for name, sp := range pol.Sinks {
		if name == "" {
			return fmt.Errorf("sinks contains an empty key")
		}
		if sp.MinLevel != "" {
			if _, err := parseLevel(sp.MinLevel); err != nil {
				return fmt.Errorf("sinks[%q].min_level: %w", name, err)
			}
		}
		if sp.QueueCapacity < 0 {
			return fmt.Errorf("sinks[%q].queue_capacity: must not be negative", name)
		}
	}
	for name, bp := range pol.Binds {
		if name == "" {
			return fmt.Errorf("binds contains an empty key")
		}
		if bp.Mask == "" || !bp.Mask.Valid() {
			return fmt.Errorf("binds[%q].mask: invalid value %q (allowed: redact, hash, partial, null)", name, bp.Mask)
		}
	}
	return nil
}
