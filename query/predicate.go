// Package query builds SQL for filtered, joined, and paginated reads
// and writes over a schema-bound table.
//
// Predicates are either basic (column, operator, value, optional value
// cast) or groups (AND/OR over nested predicates), which gives
// compound expressions such as BETWEEN correct operator precedence.
// Field names are camelCase and resolved through the schema; unknown
// names are a hard error. Malformed operator arguments fail when the
// statement is built, before any SQL executes.
package query

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/folio-db/folio/schema"
)

type opKind uint8

const (
	opEQ opKind = iota
	opCmp
	opAny
	opJSONContains
	opArrayContains
	opOverlap
	opIsNot
	opGroup
)

// A Predicate is one node of a filter tree: a single comparison or an
// AND/OR group of nested predicates.
type Predicate struct {
	field   string
	op      opKind
	cmp     string // comparison operator for opCmp
	value   any
	cast    string // placeholder cast, e.g. "uuid[]"
	groupOp string // "AND" or "OR"
	preds   []*Predicate
	err     error
}

// EQ matches rows whose field equals v. A nil v matches NULL.
func EQ(field string, v any) *Predicate {
	return &Predicate{field: field, op: opEQ, value: v}
}

// In matches rows whose field equals any of the given values, emitted
// as `col = ANY($n)`. An empty value list is an error, raised before
// any SQL executes.
func In(field string, values ...any) *Predicate {
	return InCast(field, "", values...)
}

// InCast is In with an explicit placeholder cast, e.g. "uuid[]".
func InCast(field, cast string, values ...any) *Predicate {
	p := &Predicate{field: field, op: opAny, cast: cast}
	if len(values) == 0 {
		p.err = fmt.Errorf("folio/query: empty IN list for field %q", field)
		return p
	}
	p.value = arrayArg(values)
	return p
}

// BoundOption controls whether a Between bound is open (exclusive).
type BoundOption func(*boundSpec)

type boundSpec struct {
	lowerOpen bool
	upperOpen bool
}

// OpenLower makes the lower bound exclusive.
func OpenLower() BoundOption {
	return func(b *boundSpec) { b.lowerOpen = true }
}

// OpenUpper makes the upper bound exclusive.
func OpenUpper() BoundOption {
	return func(b *boundSpec) { b.upperOpen = true }
}

// Between matches rows whose field lies between lo and hi: two ANDed
// comparisons. Bounds are closed unless opened with OpenLower or
// OpenUpper. Inverted or incomparable bounds are an error, raised
// before any SQL executes.
func Between(field string, lo, hi any, opts ...BoundOption) *Predicate {
	var b boundSpec
	for _, opt := range opts {
		opt(&b)
	}
	lower, upper := ">=", "<="
	if b.lowerOpen {
		lower = ">"
	}
	if b.upperOpen {
		upper = "<"
	}
	p := And(cmp(field, lower, lo), cmp(field, upper, hi))
	p.err = checkBounds(field, lo, hi)
	return p
}

// NotBetween matches rows whose field lies outside the range: two ORed
// comparisons, the exact negation of Between with the same bounds.
func NotBetween(field string, lo, hi any, opts ...BoundOption) *Predicate {
	var b boundSpec
	for _, opt := range opts {
		opt(&b)
	}
	lower, upper := "<", ">"
	if b.lowerOpen {
		lower = "<="
	}
	if b.upperOpen {
		upper = ">="
	}
	p := Or(cmp(field, lower, lo), cmp(field, upper, hi))
	p.err = checkBounds(field, lo, hi)
	return p
}

// checkBounds rejects range bounds that cannot match any row: lo and
// hi must be a comparable pair (numeric, string, or time) with
// lo <= hi.
func checkBounds(field string, lo, hi any) error {
	c, ok := compareBounds(lo, hi)
	if !ok {
		return fmt.Errorf("folio/query: incomparable bounds (%T, %T) for field %q", lo, hi, field)
	}
	if c > 0 {
		return fmt.Errorf("folio/query: inverted bounds for field %q", field)
	}
	return nil
}

func compareBounds(lo, hi any) (int, bool) {
	if a, ok := lo.(time.Time); ok {
		b, ok := hi.(time.Time)
		if !ok {
			return 0, false
		}
		return a.Compare(b), true
	}
	if a, ok := asFloat(lo); ok {
		b, ok := asFloat(hi)
		if !ok {
			return 0, false
		}
		switch {
		case a < b:
			return -1, true
		case a > b:
			return 1, true
		}
		return 0, true
	}
	if a, ok := lo.(string); ok {
		b, ok := hi.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(a, b), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// ContainsJSON matches rows whose jsonb field contains doc, emitted as
// `col @> $n::jsonb`.
func ContainsJSON(field string, doc any) *Predicate {
	p := &Predicate{field: field, op: opJSONContains}
	raw, err := json.Marshal(doc)
	if err != nil {
		p.err = fmt.Errorf("folio/query: encode jsonb for field %q: %w", field, err)
		return p
	}
	p.value = string(raw)
	return p
}

// ArrayContains matches rows whose text[] field contains every given
// value, emitted as `col @> $n::text[]`.
func ArrayContains(field string, values ...string) *Predicate {
	return &Predicate{field: field, op: opArrayContains, value: pq.Array(values)}
}

// TagsOverlap matches rows whose text[] field shares at least one value
// with the given set, emitted as `col && $n::text[]`.
func TagsOverlap(field string, values ...string) *Predicate {
	return &Predicate{field: field, op: opOverlap, value: pq.Array(values)}
}

// NotBool negates a boolean field with IS NOT, which also matches NULL.
func NotBool(field string, v bool) *Predicate {
	return &Predicate{field: field, op: opIsNot, value: v}
}

// And groups predicates so they all must match.
func And(preds ...*Predicate) *Predicate {
	return group("AND", preds)
}

// Or groups predicates so any may match.
func Or(preds ...*Predicate) *Predicate {
	return group("OR", preds)
}

func group(op string, preds []*Predicate) *Predicate {
	p := &Predicate{op: opGroup, groupOp: op, preds: preds}
	if len(preds) == 0 {
		p.err = fmt.Errorf("folio/query: empty %s group", op)
	}
	return p
}

func cmp(field, operator string, v any) *Predicate {
	return &Predicate{field: field, op: opCmp, cmp: operator, value: v}
}

// arrayArg converts a value list to a driver-bindable array, keeping
// the element type when the list is homogeneous.
func arrayArg(values []any) any {
	if ss, ok := toStrings(values); ok {
		return pq.Array(ss)
	}
	if ns, ok := toInt64s(values); ok {
		return pq.Array(ns)
	}
	if fs, ok := toFloat64s(values); ok {
		return pq.Array(fs)
	}
	return pq.Array(values)
}

func toStrings(values []any) ([]string, bool) {
	out := make([]string, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

func toInt64s(values []any) ([]int64, bool) {
	out := make([]int64, len(values))
	for i, v := range values {
		switch n := v.(type) {
		case int:
			out[i] = int64(n)
		case int64:
			out[i] = n
		default:
			return nil, false
		}
	}
	return out, true
}

func toFloat64s(values []any) ([]float64, bool) {
	out := make([]float64, len(values))
	for i, v := range values {
		f, ok := v.(float64)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

// buildState accumulates placeholder arguments while rendering a
// predicate tree.
type buildState struct {
	schema  *schema.Schema
	qualify string // column prefix, e.g. "users."
	args    []any
}

func (st *buildState) placeholder(v any) string {
	st.args = append(st.args, v)
	return fmt.Sprintf("$%d", len(st.args))
}

func (p *Predicate) build(st *buildState) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	if p.op == opGroup {
		parts := make([]string, 0, len(p.preds))
		for _, sub := range p.preds {
			part, err := sub.build(st)
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		}
		return "(" + strings.Join(parts, " "+p.groupOp+" ") + ")", nil
	}
	col, err := st.schema.Column(p.field)
	if err != nil {
		return "", err
	}
	col = st.qualify + col
	switch p.op {
	case opEQ:
		if p.value == nil {
			return col + " IS NULL", nil
		}
		return fmt.Sprintf("%s = %s", col, st.placeholder(p.value)), nil
	case opCmp:
		return fmt.Sprintf("%s %s %s", col, p.cmp, st.placeholder(p.value)), nil
	case opAny:
		ph := st.placeholder(p.value)
		if p.cast != "" {
			ph += "::" + p.cast
		}
		return fmt.Sprintf("%s = ANY(%s)", col, ph), nil
	case opJSONContains:
		return fmt.Sprintf("%s @> %s::jsonb", col, st.placeholder(p.value)), nil
	case opArrayContains:
		return fmt.Sprintf("%s @> %s::text[]", col, st.placeholder(p.value)), nil
	case opOverlap:
		return fmt.Sprintf("%s && %s::text[]", col, st.placeholder(p.value)), nil
	case opIsNot:
		lit := "TRUE"
		if v, _ := p.value.(bool); !v {
			lit = "FALSE"
		}
		return fmt.Sprintf("%s IS NOT %s", col, lit), nil
	}
	return "", fmt.Errorf("folio/query: unsupported predicate on field %q", p.field)
}

// Err surfaces a constructor error, e.g. an empty IN list.
func (p *Predicate) Err() error {
	if p.err != nil {
		return p.err
	}
	for _, sub := range p.preds {
		if err := sub.Err(); err != nil {
			return err
		}
	}
	return nil
}
