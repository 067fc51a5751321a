package domain

// GlobalScope is the scope key used when a producer does not group events
// by unit of work.
const GlobalScope = ""

// Names of events that carry internal or metadata queries.
const (
	NameSQL         = "SQL"
	NameSchema      = "SCHEMA"
	NameExplain     = "EXPLAIN"
	NameTransaction = "TRANSACTION"
)

// DefaultIgnoreNames lists event names not worth showing to an operator.
var DefaultIgnoreNames = []string{NameSchema, NameExplain}

// EventRecord describes one completed (or cache-hit) query execution.
// Producers build it once and must not mutate it after handing it over.
type EventRecord struct {
	Name           string  `json:"name"`
	SQL            string  `json:"sql"`
	DurationMillis float64 `json:"duration_ms"`
	Cached         bool    `json:"cached"`
	Binds          []Bind  `json:"-"`
}

// Bind is a parameter sent alongside a parameterized query.
//
// Cast holds the producer's display form of Value. When nil the Redactor
// falls back to its injected CastFunc.
type Bind struct {
	Name       string
	Value      any
	Binary     bool
	ByteLength int
	Cast       *string
}

// RedactedBind is the display-safe form of a Bind.
type RedactedBind struct {
	Name         string `json:"name"`
	DisplayValue string `json:"value"`
}

// CastedBind returns a Bind whose display value is already known.
func CastedBind(name string, value any, cast string) Bind {
	return Bind{Name: name, Value: value, Cast: &cast}
}

// BinaryBind returns a Bind for a binary payload of n bytes.
func BinaryBind(name string, value any, n int) Bind {
	return Bind{Name: name, Value: value, Binary: true, ByteLength: n}
}
