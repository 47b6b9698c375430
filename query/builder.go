package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/folio-db/folio"
	"github.com/folio-db/folio/dal"
	"github.com/folio-db/folio/schema"
)

// Row is one scanned result row, keyed by column name. Joined columns
// are keyed as "<relation>__<column>".
type Row map[string]any

// Join customizes how a relation is joined.
type Join struct {
	Alias          string // alias for the joined table; defaults to the relation name
	IncludeStale   bool   // keep old revisions of the joined side
	IncludeDeleted bool   // keep deleted revisions of the joined side
}

// JoinSpec selects between the default join and a customized one. It
// is a tagged variant: build one with DefaultJoin or CustomJoin.
type JoinSpec struct {
	customized bool
	apply      func(*Join)
}

// DefaultJoin joins the relation with its default alias and guards.
func DefaultJoin() JoinSpec {
	return JoinSpec{}
}

// CustomJoin joins the relation after applying fn to the join settings.
func CustomJoin(fn func(*Join)) JoinSpec {
	return JoinSpec{customized: true, apply: fn}
}

type order struct {
	field string
	desc  bool
}

type joinPart struct {
	relation string
	spec     JoinSpec
}

// Builder composes and executes one SELECT or DELETE over a
// schema-bound table. Builders are created by model.Filter or New and
// are not safe for concurrent use.
type Builder struct {
	conn           dal.Conn
	schema         *schema.Schema
	preds          []*Predicate
	joins          []joinPart
	orders         []order
	limit          int
	offset         int
	includeStale   bool
	includeDeleted bool
	sensitive      map[string]bool
	err            error
}

// New returns a builder over the given schema, executing on conn.
func New(conn dal.Conn, s *schema.Schema) *Builder {
	return &Builder{conn: conn, schema: s, limit: -1, offset: -1, sensitive: map[string]bool{}}
}

// Where appends predicates; all must match.
func (b *Builder) Where(preds ...*Predicate) *Builder {
	b.preds = append(b.preds, preds...)
	return b
}

// Filter appends equality predicates for every entry of criteria, keys
// being camelCase field names. Keys are applied in sorted order so the
// generated SQL is deterministic.
func (b *Builder) Filter(criteria map[string]any) *Builder {
	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.preds = append(b.preds, EQ(k, criteria[k]))
	}
	return b
}

// OrderBy appends an ordering on the given camelCase field.
func (b *Builder) OrderBy(field string, desc bool) *Builder {
	b.orders = append(b.orders, order{field: field, desc: desc})
	return b
}

// Limit caps the number of returned rows.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Offset skips the first n rows.
func (b *Builder) Offset(n int) *Builder {
	b.offset = n
	return b
}

// IncludeStale disables the `old_rev_of IS NULL` guard, returning old
// revisions too.
func (b *Builder) IncludeStale() *Builder {
	b.includeStale = true
	return b
}

// IncludeDeleted disables the `rev_deleted = false` guard, returning
// deleted revisions too.
func (b *Builder) IncludeDeleted() *Builder {
	b.includeDeleted = true
	return b
}

// IncludeSensitive adds the named sensitive fields to the projection,
// which excludes them by default.
func (b *Builder) IncludeSensitive(fields ...string) *Builder {
	for _, f := range fields {
		b.sensitive[f] = true
	}
	return b
}

// Join joins the named relation declared on the schema. Revision
// guards are ANDed into the join condition when the joined side is
// revisioned, unless the spec lifts them.
func (b *Builder) Join(relation string, spec JoinSpec) *Builder {
	b.joins = append(b.joins, joinPart{relation: relation, spec: spec})
	return b
}

func (b *Builder) qualify() string {
	if len(b.joins) > 0 {
		return b.schema.Table() + "."
	}
	return ""
}

// selectColumns returns the projection in schema order: safe columns
// plus explicitly included sensitive ones. Unknown sensitive names are
// a hard error.
func (b *Builder) selectColumns() ([]string, error) {
	for name := range b.sensitive {
		if _, ok := b.schema.Field(name); !ok {
			return nil, fmt.Errorf("folio/query: unknown field %q on %s", name, b.schema.Name())
		}
	}
	cols := make([]string, 0, len(b.schema.Fields()))
	for _, fd := range b.schema.Fields() {
		if !fd.Type.Persisted() {
			continue
		}
		if fd.Sensitive && !b.sensitive[fd.Name] {
			continue
		}
		col, err := b.schema.Column(fd.Name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// buildJoins renders the JOIN clauses and the joined-side projection.
func (b *Builder) buildJoins() (joinSQL string, projection []string, err error) {
	var parts []string
	for _, jp := range b.joins {
		rel, ok := b.schema.Relation(jp.relation)
		if !ok {
			return "", nil, fmt.Errorf("folio/query: unknown relation %q on %s", jp.relation, b.schema.Name())
		}
		j := Join{Alias: rel.Name}
		if jp.spec.customized && jp.spec.apply != nil {
			jp.spec.apply(&j)
		}
		if j.Alias == "" {
			j.Alias = rel.Name
		}
		src := b.schema.Table()
		target := rel.Target.Table()
		var on string
		switch {
		case rel.Through != nil:
			via := j.Alias + "__via"
			parts = append(parts, fmt.Sprintf("LEFT JOIN %s AS %s ON %s.%s = %s.%s",
				rel.Through.Table, via, via, rel.Through.SourceFK, src, schema.IDColumn))
			on = fmt.Sprintf("LEFT JOIN %s AS %s ON %s.%s = %s.%s",
				target, j.Alias, j.Alias, schema.IDColumn, via, rel.Through.TargetFK)
		case rel.OnTarget:
			on = fmt.Sprintf("LEFT JOIN %s AS %s ON %s.%s = %s.%s",
				target, j.Alias, j.Alias, rel.ForeignKey, src, schema.IDColumn)
		default:
			on = fmt.Sprintf("LEFT JOIN %s AS %s ON %s.%s = %s.%s",
				target, j.Alias, j.Alias, schema.IDColumn, src, rel.ForeignKey)
		}
		if rel.Target.Revisioned() {
			if !j.IncludeStale {
				on += fmt.Sprintf(" AND %s.%s IS NULL", j.Alias, schema.ColOldRevOf)
			}
			if !j.IncludeDeleted {
				on += fmt.Sprintf(" AND %s.%s = false", j.Alias, schema.ColRevDeleted)
			}
		}
		parts = append(parts, on)
		for _, col := range rel.Target.SafeColumns() {
			projection = append(projection, fmt.Sprintf("%s.%s AS %s__%s", j.Alias, col, j.Alias, col))
		}
	}
	return strings.Join(parts, " "), projection, nil
}

// buildWhere renders the WHERE clause: user predicates first, then the
// injected revision guards.
func (b *Builder) buildWhere(st *buildState) (string, error) {
	var parts []string
	for _, p := range b.preds {
		part, err := p.build(st)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	if b.schema.Revisioned() {
		if !b.includeStale {
			parts = append(parts, st.qualify+schema.ColOldRevOf+" IS NULL")
		}
		if !b.includeDeleted {
			parts = append(parts, st.qualify+schema.ColRevDeleted+" = false")
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

func (b *Builder) buildOrder(qualify string) (string, error) {
	if len(b.orders) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(b.orders))
	for _, o := range b.orders {
		col, err := b.schema.Column(o.field)
		if err != nil {
			return "", err
		}
		dir := "ASC"
		if o.desc {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("%s%s %s", qualify, col, dir))
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

// BuildSelect renders the SELECT statement and its arguments without
// executing it.
func (b *Builder) BuildSelect() (string, []any, error) {
	return b.buildSelect(false, 0)
}

func (b *Builder) buildSelect(sample bool, sampleN int) (string, []any, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	qualify := b.qualify()
	cols, err := b.selectColumns()
	if err != nil {
		return "", nil, err
	}
	projection := make([]string, 0, len(cols))
	for _, col := range cols {
		projection = append(projection, qualify+col)
	}
	joinSQL, joinCols, err := b.buildJoins()
	if err != nil {
		return "", nil, err
	}
	projection = append(projection, joinCols...)

	st := &buildState{schema: b.schema, qualify: qualify}
	where, err := b.buildWhere(st)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + strings.Join(projection, ", ") + " FROM " + b.schema.Table())
	if joinSQL != "" {
		sb.WriteString(" " + joinSQL)
	}
	sb.WriteString(where)
	if sample {
		fmt.Fprintf(&sb, " ORDER BY random() LIMIT %d", sampleN)
		return sb.String(), st.args, nil
	}
	orderSQL, err := b.buildOrder(qualify)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(orderSQL)
	if b.limit >= 0 {
		fmt.Fprintf(&sb, " LIMIT %d", b.limit)
	}
	if b.offset >= 0 {
		fmt.Fprintf(&sb, " OFFSET %d", b.offset)
	}
	return sb.String(), st.args, nil
}

func (b *Builder) buildCount() (string, []any, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	qualify := b.qualify()
	joinSQL, _, err := b.buildJoins()
	if err != nil {
		return "", nil, err
	}
	st := &buildState{schema: b.schema, qualify: qualify}
	where, err := b.buildWhere(st)
	if err != nil {
		return "", nil, err
	}
	q := "SELECT count(*) FROM " + b.schema.Table()
	if joinSQL != "" {
		q += " " + joinSQL
	}
	return q + where, st.args, nil
}

func (b *Builder) buildDelete() (string, []any, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	if len(b.joins) > 0 {
		return "", nil, fmt.Errorf("folio/query: delete does not support joins")
	}
	st := &buildState{schema: b.schema}
	where, err := b.buildWhere(st)
	if err != nil {
		return "", nil, err
	}
	return "DELETE FROM " + b.schema.Table() + where, st.args, nil
}

// Run executes the SELECT and returns all matching rows.
func (b *Builder) Run(ctx context.Context) ([]Row, error) {
	q, args, err := b.buildSelect(false, 0)
	if err != nil {
		return nil, err
	}
	rows, err := b.conn.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanRows(rows)
}

// RunWithCount returns the matching rows together with the total count
// disregarding limit and offset. The two statements run concurrently.
func (b *Builder) RunWithCount(ctx context.Context) ([]Row, int, error) {
	selectSQL, selectArgs, err := b.buildSelect(false, 0)
	if err != nil {
		return nil, 0, err
	}
	countSQL, countArgs, err := b.buildCount()
	if err != nil {
		return nil, 0, err
	}
	var (
		out   []Row
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := b.conn.Query(gctx, selectSQL, selectArgs...)
		if err != nil {
			return err
		}
		out, err = scanRows(rows)
		return err
	})
	g.Go(func() error {
		rows, err := b.conn.Query(gctx, countSQL, countArgs...)
		if err != nil {
			return err
		}
		defer rows.Close()
		if !rows.Next() {
			return rows.Err()
		}
		if err := rows.Scan(&total); err != nil {
			return err
		}
		return rows.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// First returns the first matching row, or NotFoundError.
func (b *Builder) First(ctx context.Context) (Row, error) {
	limited := *b
	limited.limit = 1
	rows, err := limited.Run(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, folio.NewNotFoundError(b.schema.Name())
	}
	return rows[0], nil
}

// Count returns the number of matching rows.
func (b *Builder) Count(ctx context.Context) (int, error) {
	q, args, err := b.buildCount()
	if err != nil {
		return 0, err
	}
	rows, err := b.conn.Query(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var n int
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, errors.New("folio/query: count returned no rows")
	}
	if err := rows.Scan(&n); err != nil {
		return 0, err
	}
	return n, rows.Err()
}

// Sample returns up to n matching rows in random order. Any explicit
// ordering is ignored.
func (b *Builder) Sample(ctx context.Context, n int) ([]Row, error) {
	q, args, err := b.buildSelect(true, n)
	if err != nil {
		return nil, err
	}
	rows, err := b.conn.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanRows(rows)
}

// Delete removes the matching rows and returns how many were affected.
// The revision guards still apply, so stale and deleted revisions are
// untouched unless explicitly included.
func (b *Builder) Delete(ctx context.Context) (int64, error) {
	q, args, err := b.buildDelete()
	if err != nil {
		return 0, err
	}
	res, err := b.conn.Exec(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
