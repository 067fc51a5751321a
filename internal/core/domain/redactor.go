package domain

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrMissingCastValue is returned when a bind carries no pre-cast display
// value and no CastFunc is available to produce one.
var ErrMissingCastValue = errors.New("missing cast value")

// MissingCastPlaceholder stands in for a bind that could not be rendered.
const MissingCastPlaceholder = "<missing cast value>"

// CastFunc renders a raw bind value for display. It is supplied by the
// data-access layer, which knows its own type system; ok=false means the
// value cannot be rendered.
type CastFunc func(value any) (display string, ok bool)

// Redactor turns binds into display-safe values. Binary payloads are never
// rendered, and binds named in the mask set are masked after casting.
type Redactor struct {
	cast  CastFunc
	masks map[string]MaskType // bind-name → mask-type (nil = no masking)
}

func NewRedactor(cast CastFunc, masks map[string]MaskType) *Redactor {
	return &Redactor{cast: cast, masks: masks}
}

// Render produces the display form of one bind.
func (r *Redactor) Render(b Bind) (RedactedBind, error) {
	if b.Binary && !isEmptyValue(b.Value) {
		return RedactedBind{
			Name:         b.Name,
			DisplayValue: fmt.Sprintf("<%d bytes of binary data>", b.ByteLength),
		}, nil
	}

	var display string
	switch {
	case b.Cast != nil:
		display = *b.Cast
	case r != nil && r.cast != nil:
		s, ok := r.safeCast(b.Value)
		if !ok {
			return RedactedBind{Name: b.Name, DisplayValue: MissingCastPlaceholder},
				fmt.Errorf("bind %q: %w", b.Name, ErrMissingCastValue)
		}
		display = s
	default:
		return RedactedBind{Name: b.Name, DisplayValue: MissingCastPlaceholder},
			fmt.Errorf("bind %q: %w", b.Name, ErrMissingCastValue)
	}

	if r != nil {
		if mask, ok := r.masks[b.Name]; ok {
			display = ApplyMask(display, mask)
		}
	}
	return RedactedBind{Name: b.Name, DisplayValue: display}, nil
}

// safeCast treats a panicking CastFunc as a value it cannot render.
func (r *Redactor) safeCast(v any) (s string, ok bool) {
	defer func() {
		if recover() != nil {
			s, ok = "", false
		}
	}()
	return r.cast(v)
}

// RenderAll renders binds in order. A bind that fails renders as
// MissingCastPlaceholder; the failures are joined into the returned error.
func (r *Redactor) RenderAll(binds []Bind) ([]RedactedBind, error) {
	if len(binds) == 0 {
		return nil, nil
	}
	out := make([]RedactedBind, 0, len(binds))
	var errs []error
	for _, b := range binds {
		rb, err := r.Render(b)
		if err != nil {
			errs = append(errs, err)
		}
		out = append(out, rb)
	}
	return out, errors.Join(errs...)
}

// isEmptyValue reports whether v is nil, a nil pointer/slice, or a
// zero-length byte slice or string.
func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case []byte:
		return len(t) == 0
	case string:
		return t == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
