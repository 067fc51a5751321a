package postgres

import (
	"context"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/guillermoBallester/querytap/internal/core/domain"
	"github.com/jackc/pgx/v5"
)

// Recorder receives one event per traced statement. *service.Collector
// implements it.
type Recorder interface {
	Record(ctx context.Context, event domain.EventRecord, scopeKey string)
}

type traceStartKey struct{}

type traceStart struct {
	at   time.Time
	sql  string
	args []any
}

// QueryTracer is a pgx.QueryTracer that turns every statement run on a
// connection into an EventRecord. The event name and scope come from the
// statement's context (domain.WithQueryName, domain.WithScope).
type QueryTracer struct {
	recorder Recorder
	now      func() time.Time
}

var _ pgx.QueryTracer = (*QueryTracer)(nil)

func NewQueryTracer(recorder Recorder) *QueryTracer {
	return &QueryTracer{recorder: recorder, now: time.Now}
}

func (t *QueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceStartKey{}, &traceStart{
		at:   t.now(),
		sql:  data.SQL,
		args: data.Args,
	})
}

func (t *QueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, _ pgx.TraceQueryEndData) {
	st, ok := ctx.Value(traceStartKey{}).(*traceStart)
	if !ok || t.recorder == nil {
		return
	}

	event := domain.EventRecord{
		Name:           domain.QueryNameFromContext(ctx),
		SQL:            st.sql,
		DurationMillis: float64(t.now().Sub(st.at)) / float64(time.Millisecond),
		Binds:          ArgsToBinds(st.args),
	}
	t.recorder.Record(ctx, event, domain.ScopeFromContext(ctx))
}

// ArgsToBinds converts the arguments pgx was given into positional binds
// named $1, $2, ... Query options such as pgx.QueryExecMode are skipped and
// do not consume a position.
func ArgsToBinds(args []any) []domain.Bind {
	if len(args) == 0 {
		return nil
	}
	binds := make([]domain.Bind, 0, len(args))
	for _, arg := range args {
		if isQueryOption(arg) {
			continue
		}
		name := "$" + strconv.Itoa(len(binds)+1)
		if b, ok := arg.([]byte); ok {
			binds = append(binds, domain.BinaryBind(name, b, len(b)))
			continue
		}
		binds = append(binds, domain.Bind{Name: name, Value: arg})
	}
	if len(binds) == 0 {
		return nil
	}
	return binds
}

func isQueryOption(arg any) bool {
	switch arg.(type) {
	case pgx.QueryExecMode, pgx.QueryResultFormats, pgx.QueryResultFormatsByOID, pgx.QueryRewriter:
		return true
	}
	return false
}

// CastForDisplay renders a pgx argument the way an operator would want to
// read it. It is the Redactor's CastFunc for traced statements.
func CastForDisplay(v any) (string, bool) {
	// A typed nil must not reach driver.Valuer or fmt.Stringer: value
	// receivers panic when called through a nil pointer.
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return "NULL", true
	}
	switch x := v.(type) {
	case nil:
		return "NULL", true
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), true
	case time.Time:
		return x.Format(time.RFC3339Nano), true
	case driver.Valuer:
		val, err := x.Value()
		if err != nil {
			return "", false
		}
		return CastForDisplay(val)
	case fmt.Stringer:
		return x.String(), true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return "", false
	case reflect.Pointer:
		if rv.IsNil() {
			return "NULL", true
		}
		return CastForDisplay(rv.Elem().Interface())
	}
	return fmt.Sprint(v), true
}
