package policy

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/guillermoBallester/querytap/internal/core/domain"
	"github.com/guillermoBallester/querytap/internal/core/service"
)

// SinkConfig resolves the delivery rules for the named sink. Settings the
// policy leaves unset fall back to the given ignore list and capacity. A nil
// Policy yields the fallbacks.
func (p *Policy) SinkConfig(name string, ignore []string, capacity int) service.SinkConfig {
	cfg := service.SinkConfig{
		Ignore:        slices.Clone(ignore),
		QueueCapacity: capacity,
	}
	if p == nil {
		return cfg
	}
	sp, ok := p.Sinks[name]
	if !ok {
		return cfg
	}
	if sp.MinLevel != "" {
		// validate has already rejected unknown levels.
		level, _ := parseLevel(sp.MinLevel)
		cfg.MinLevel = level
	}
	if sp.Ignore != nil {
		cfg.Ignore = append([]string{}, (*sp.Ignore)...)
	}
	if sp.QueueCapacity > 0 {
		cfg.QueueCapacity = sp.QueueCapacity
	}
	return cfg
}

// MaskSpec extracts a bind-name → mask-type map for the Redactor.
func (p *Policy) MaskSpec() map[string]domain.MaskType {
	if p == nil || len(p.Binds) == 0 {
		return nil
	}
	spec := make(map[string]domain.MaskType, len(p.Binds))
	for name, bp := range p.Binds {
		spec[name] = bp.Mask
	}
	return spec
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid level %q: must be debug, info, warn, or error", s)
	}
	return level, nil
}
