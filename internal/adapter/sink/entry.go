package sink

import (
	"time"

	"github.com/guillermoBallester/querytap/internal/core/domain"
	"github.com/guillermoBallester/querytap/internal/core/port"
)

// entry is the serializable form of a record shared by the file and Redis
// sinks. It leaves out the formatted line, which may carry color escapes.
type entry struct {
	Timestamp   string                `json:"ts"`
	Label       string                `json:"label"`
	Name        string                `json:"name,omitempty"`
	SQL         string                `json:"sql"`
	Category    domain.Category       `json:"category"`
	DurationMS  float64               `json:"duration_ms"`
	Cached      bool                  `json:"cached"`
	Binds       []domain.RedactedBind `json:"binds,omitempty"`
	Scope       string                `json:"scope,omitempty"`
	Fingerprint string                `json:"fingerprint,omitempty"`
}

func newEntry(rec port.Record, now time.Time) entry {
	return entry{
		Timestamp:   now.UTC().Format(time.RFC3339Nano),
		Label:       domain.Label(rec.Event, ""),
		Name:        rec.Event.Name,
		SQL:         rec.Event.SQL,
		Category:    rec.Category,
		DurationMS:  rec.Event.DurationMillis,
		Cached:      rec.Event.Cached,
		Binds:       rec.Binds,
		Scope:       rec.ScopeKey,
		Fingerprint: rec.Fingerprint,
	}
}
