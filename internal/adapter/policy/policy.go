package policy

import (
	"fmt"

	"github.com/guillermoBallester/querytap/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// Policy holds operator-controlled telemetry settings loaded from a YAML file:
// per-sink delivery rules and name-based bind masks.
type Policy struct {
	Sinks map[string]SinkPolicy `yaml:"sinks"`
	Binds map[string]BindPolicy `yaml:"binds"`
}

// SinkPolicy tunes delivery to one sink. Zero fields keep the defaults.
type SinkPolicy struct {
	MinLevel string `yaml:"min_level"`
	// Ignore replaces the default ignore list. Absent keeps SCHEMA and
	// EXPLAIN; an empty list ignores nothing.
	Ignore        *[]string `yaml:"ignore"`
	QueueCapacity int       `yaml:"queue_capacity"`
}

// BindPolicy masks the display value of every bind with a given name.
type BindPolicy struct {
	Description string          `yaml:"description"`
	Mask        domain.MaskType `yaml:"mask"`
}

// UnmarshalYAML supports both the struct format and the short plain-string
// format.
//
//	binds:
//	  password: redact              # short: plain string → BindPolicy{Mask: "redact"}
//	  email:                        # struct with optional description
//	    description: "Customer email"
//	    mask: partial
func (bp *BindPolicy) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		bp.Mask = domain.MaskType(value.Value)
		return nil
	}
	// Decode as struct (avoid infinite recursion by using an alias type).
	type alias BindPolicy
	var a alias
	if err := value.Decode(&a); err != nil {
		return fmt.Errorf("decoding bind policy: %w", err)
	}
	*bp = BindPolicy(a)
	return nil
}
