package domain

import (
	"math"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

// Formatter renders one query event as a human-readable debug line:
//
//	  User Load (2.3ms)  SELECT * FROM users WHERE id = $1  [("id","1")]
type Formatter struct {
	sqlName   *color.Color
	modelName *color.Color
	sql       map[Category]*color.Color
}

// NewFormatter returns a Formatter. Color output is forced on or off;
// deciding whether the destination is a terminal is the caller's job.
func NewFormatter(colorize bool) *Formatter {
	f := &Formatter{
		sqlName:   color.New(color.FgMagenta, color.Bold),
		modelName: color.New(color.FgCyan, color.Bold),
		sql: map[Category]*color.Color{
			CategoryRollback:    color.New(color.FgRed, color.Bold),
			CategoryLock:        color.New(color.FgWhite, color.Bold),
			CategorySelect:      color.New(color.FgBlue, color.Bold),
			CategoryInsert:      color.New(color.FgGreen, color.Bold),
			CategoryUpdate:      color.New(color.FgYellow, color.Bold),
			CategoryDelete:      color.New(color.FgRed, color.Bold),
			CategoryTransaction: color.New(color.FgCyan, color.Bold),
			CategoryOther:       color.New(color.FgMagenta, color.Bold),
		},
	}
	for _, c := range f.colors() {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return f
}

func (f *Formatter) colors() []*color.Color {
	out := []*color.Color{f.sqlName, f.modelName}
	for _, c := range f.sql {
		out = append(out, c)
	}
	return out
}

// Label returns the uncolored name part of the line, e.g. "CACHE User Load (2.3ms)".
func Label(event EventRecord, nameOverride string) string {
	name := nameOverride
	if name == "" {
		name = event.Name
	}
	if name == "" {
		name = NameSQL
	}
	label := name + " (" + strconv.FormatFloat(math.Round(event.DurationMillis*10)/10, 'f', 1, 64) + "ms)"
	if event.Cached {
		label = "CACHE " + label
	}
	return label
}

// RenderBinds renders binds as [("name","value"), ...]. It returns "" when
// there are none.
func RenderBinds(binds []RedactedBind) string {
	if len(binds) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, rb := range binds {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		b.WriteString(strconv.Quote(rb.Name))
		b.WriteByte(',')
		b.WriteString(strconv.Quote(rb.DisplayValue))
		b.WriteByte(')')
	}
	b.WriteByte(']')
	return b.String()
}

// Render builds the full line. Empty SQL, names and binds are all valid.
func (f *Formatter) Render(event EventRecord, category Category, binds []RedactedBind, nameOverride string) string {
	// Raw SQL events and named ORM-level events are styled differently.
	nameColor := f.modelName
	if event.Name == "" || event.Name == NameSQL {
		nameColor = f.sqlName
	}

	sqlColor, ok := f.sql[category]
	if !ok {
		sqlColor = f.sql[CategoryOther]
	}

	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(nameColor.Sprint(Label(event, nameOverride)))
	b.WriteString("  ")
	b.WriteString(sqlColor.Sprint(event.SQL))
	if suffix := RenderBinds(binds); suffix != "" {
		b.WriteString("  ")
		b.WriteString(suffix)
	}
	return b.String()
}
