// Package gateway is the single entry point for calling stored procedures on the backend.
//
// Mutations go through Call and are issued exactly once. Reads go through
// Query, which retries transport failures and may serve from a short lived
// request cache. Every failure is returned as an *Error tagged with a Kind.
package gateway

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/cache"
	"github.com/hoopdesk/hoopdesk/core/retry"
)

// Param is one named argument of a procedure call.
type Param struct {
	Name  string
	Value interface{}
}

func P(name string, value interface{}) Param {
	return Param{Name: name, Value: value}
}

// Gateway calls remote procedures. dest, when non-nil, receives the JSON result.
type Gateway interface {
	Call(ctx context.Context, proc string, params []Param, dest interface{}) error
	Query(ctx context.Context, proc string, params []Param, dest interface{}) error
}

var identRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ErrInvalidProc is returned when a procedure or parameter name is not a plain identifier.
var ErrInvalidProc = errors.New("invalid procedure or parameter name")

// queryFunc runs one statement returning a single jsonb value.
type queryFunc func(ctx context.Context, query string, args ...interface{}) ([]byte, error)

type Postgres struct {
	query  queryFunc
	retry  retry.Options
	cache  *cache.Cache[[]byte]
	calls  *prometheus.CounterVec
	logger core.Logger
}

var _ Gateway = (*Postgres)(nil)

type Option func(*Postgres)

// WithRetry overrides the retry options used by Query. ShouldRetry defaults to IsRetryable.
func WithRetry(opts retry.Options) Option {
	return func(g *Postgres) { g.retry = opts }
}

// WithRequestCache serves repeated reads with identical arguments from c.
func WithRequestCache(c *cache.Cache[[]byte]) Option {
	return func(g *Postgres) { g.cache = c }
}

// WithCallCounter counts calls by procedure and outcome kind.
func WithCallCounter(c *prometheus.CounterVec) Option {
	return func(g *Postgres) { g.calls = c }
}

func WithLogger(l core.Logger) Option {
	return func(g *Postgres) { g.logger = l }
}

func NewPostgres(db core.DBExecutor, opts ...Option) *Postgres {
	g := &Postgres{logger: core.NopLogger{}}
	g.query = func(ctx context.Context, query string, args ...interface{}) ([]byte, error) {
		var raw []byte
		err := db.QueryRowxContext(ctx, query, args...).Scan(&raw)
		return raw, err
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.retry.ShouldRetry == nil {
		g.retry.ShouldRetry = IsRetryable
	}
	if g.retry.OnRetry == nil {
		g.retry.OnRetry = func(attempt, max int, err error) {
			g.logger.Warn(fmt.Sprintf("retrying read (%d/%d): %v", attempt, max, err))
		}
	}
	return g
}

// Call issues a mutating procedure exactly once.
func (g *Postgres) Call(ctx context.Context, proc string, params []Param, dest interface{}) error {
	raw, err := g.invoke(ctx, proc, params)
	if err != nil {
		return err
	}
	return decode(proc, raw, dest)
}

// Query issues a read-only procedure, retrying transport failures.
func (g *Postgres) Query(ctx context.Context, proc string, params []Param, dest interface{}) error {
	var key string
	if g.cache != nil {
		key = cacheKey(ctx, proc, params)
		if raw, ok := g.cache.Get(key); ok {
			return decode(proc, raw, dest)
		}
	}

	var raw []byte
	err := retry.Do(ctx, g.retry, func(ctx context.Context) error {
		var err error
		raw, err = g.invoke(ctx, proc, params)
		return err
	})
	if err != nil {
		return err
	}
	if g.cache != nil {
		g.cache.Set(key, raw)
	}
	return decode(proc, raw, dest)
}

// InvalidateCache drops cached reads whose key contains pattern.
func (g *Postgres) InvalidateCache(pattern string) int {
	if g.cache == nil {
		return 0
	}
	return g.cache.Invalidate(pattern)
}

func (g *Postgres) invoke(ctx context.Context, proc string, params []Param) ([]byte, error) {
	query, args, err := buildQuery(ActorFrom(ctx), proc, params)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Proc: proc, Detail: err.Error(), Err: err}
	}

	raw, err := g.query(ctx, query, args...)
	err = Classify(proc, err)
	g.count(proc, err)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (g *Postgres) count(proc string, err error) {
	if g.calls == nil {
		return
	}
	kind := "ok"
	if err != nil {
		if k := KindOf(err); k != "" {
			kind = string(k)
		} else {
			kind = "canceled"
		}
	}
	g.calls.WithLabelValues(proc, kind).Inc()
}

// buildQuery renders `SELECT to_jsonb(proc(name => $2, ...))`, with the acting user
// bound for the duration of the statement.
func buildQuery(actor, proc string, params []Param) (string, []interface{}, error) {
	if !identRegex.MatchString(proc) {
		return "", nil, ErrInvalidProc
	}

	args := make([]interface{}, 0, len(params)+1)
	args = append(args, actor)

	named := make([]string, 0, len(params))
	for _, p := range params {
		if !identRegex.MatchString(p.Name) {
			return "", nil, ErrInvalidProc
		}
		v, cast, err := encodeValue(p.Value)
		if err != nil {
			return "", nil, errors.Wrapf(err, "encoding %s", p.Name)
		}
		args = append(args, v)
		named = append(named, fmt.Sprintf("%s => $%d%s", p.Name, len(args), cast))
	}

	q := fmt.Sprintf(
		"SELECT to_jsonb(%s(%s)) FROM (SELECT set_config('app.user_id', $1, true)) AS _actor",
		proc, strings.Join(named, ", "),
	)
	return q, args, nil
}

// encodeValue turns structured values into jsonb; scalars are passed as is.
// Times are sent as calendar dates.
func encodeValue(v interface{}) (interface{}, string, error) {
	if valuer, ok := v.(driver.Valuer); ok {
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr && rv.IsNil() {
			return nil, "", nil
		}
		dv, err := valuer.Value()
		if err != nil {
			return nil, "", err
		}
		v = dv
	}

	switch val := v.(type) {
	case nil:
		return nil, "", nil
	case time.Time:
		return val.UTC().Format(core.DateLayout), "::date", nil
	case *time.Time:
		if val == nil {
			return nil, "::date", nil
		}
		return val.UTC().Format(core.DateLayout), "::date", nil
	case json.RawMessage:
		return string(val), "::jsonb", nil
	case []byte:
		return val, "", nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, "", nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return string(b), "::jsonb", nil
	}
	return rv.Interface(), "", nil
}

func decode(proc string, raw []byte, dest interface{}) error {
	if dest == nil || raw == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return &Error{Kind: KindUnknown, Proc: proc, Detail: "decoding result: " + err.Error(), Err: err}
	}
	return nil
}

func cacheKey(ctx context.Context, proc string, params []Param) string {
	var b strings.Builder
	b.WriteString(proc)
	b.WriteByte('|')
	b.WriteString(ActorFrom(ctx))
	for _, p := range params {
		b.WriteByte('|')
		b.WriteString(p.Name)
		b.WriteByte('=')
		if enc, err := json.Marshal(p.Value); err == nil {
			b.Write(enc)
		}
	}
	return b.String()
}

// Read runs a direct table read under the same retry policy as Query.
// fn is expected to return errors already passed through Classify.
func Read(ctx context.Context, opts retry.Options, fn func(ctx context.Context) error) error {
	if opts.ShouldRetry == nil {
		opts.ShouldRetry = IsRetryable
	}
	return retry.Do(ctx, opts, fn)
}
