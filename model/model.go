// Package model maps schema-described documents onto table rows. A
// Model binds one schema to a database handle and is the entry point
// for creating, loading, querying, and deleting instances.
//
// Reads go through the query builder and therefore carry the revision
// guards of revisioned schemas. Writes are instance-scoped: INSERT with
// a RETURNING clause for new documents so database-assigned defaults
// flow back, UPDATE of the dirty columns otherwise.
package model

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/folio-db/folio"
	"github.com/folio-db/folio/dal"
	"github.com/folio-db/folio/query"
	"github.com/folio-db/folio/schema"
)

// Model binds a schema to a database handle.
type Model struct {
	db       *dal.DB
	schema   *schema.Schema
	cache    folio.Cache
	cacheTTL time.Duration
}

// Option configures a model.
type Option func(*Model)

// WithCache enables read-through caching of Get by primary key. Saves
// and deletes invalidate the cached entry.
func WithCache(c folio.Cache, ttl time.Duration) Option {
	return func(m *Model) {
		m.cache = c
		m.cacheTTL = ttl
	}
}

// New binds the schema to db.
func New(db *dal.DB, s *schema.Schema, opts ...Option) *Model {
	m := &Model{db: db, schema: s}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Schema returns the bound schema.
func (m *Model) Schema() *schema.Schema { return m.schema }

// DB returns the bound database handle.
func (m *Model) DB() *dal.DB { return m.db }

// ColumnNames returns all persisted columns in schema order.
func (m *Model) ColumnNames() []string { return m.schema.Columns() }

// SafeColumnNames returns the persisted columns excluding sensitive
// ones; this is the default SELECT projection.
func (m *Model) SafeColumnNames() []string { return m.schema.SafeColumns() }

// ExecOption configures a single model operation.
type ExecOption func(*execOptions)

type execOptions struct {
	conn dal.Conn
}

// OnConn runs the operation on the given connection instead of the
// pool, typically a transaction.
func OnConn(c dal.Conn) ExecOption {
	return func(o *execOptions) { o.conn = c }
}

func execConn(m *Model, opts []ExecOption) dal.Conn {
	var o execOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.conn != nil {
		return o.conn
	}
	return m.db
}

// NewInstance builds a new, unsaved instance from camelCase-keyed data.
// Every value is validated against its descriptor; unknown keys and
// assignments to virtual fields are rejected. Fields absent from data
// receive their declared defaults.
func (m *Model) NewInstance(data map[string]any) (*Instance, error) {
	inst := &Instance{
		model:     m,
		values:    make(map[string]any, len(m.schema.Fields())),
		dirty:     make(map[string]bool),
		relations: make(map[string][]*Instance),
		isNew:     true,
	}
	for name, v := range data {
		fd, ok := m.schema.Field(name)
		if !ok {
			return nil, folio.NewValidationError(name, fmt.Errorf("unknown field on %s", m.schema.Name()))
		}
		if err := fd.Validate(v, name); err != nil {
			return nil, err
		}
		col, err := m.schema.Column(name)
		if err != nil {
			return nil, err
		}
		inst.values[col] = v
	}
	for _, fd := range m.schema.Fields() {
		if !fd.Type.Persisted() {
			continue
		}
		col, err := m.schema.Column(fd.Name)
		if err != nil {
			return nil, err
		}
		if _, set := inst.values[col]; set {
			continue
		}
		if dv, ok := fd.DefaultValue(); ok {
			inst.values[col] = dv
		}
	}
	return inst, nil
}

// NewFromRow hydrates an instance from a scanned query row. Joined
// columns, keyed "<relation>__<column>", hydrate related instances
// reachable through Instance.Relations. Columns that do not belong to
// the schema are ignored.
func (m *Model) NewFromRow(row query.Row) (*Instance, error) {
	inst := &Instance{
		model:     m,
		values:    make(map[string]any, len(row)),
		dirty:     make(map[string]bool),
		relations: make(map[string][]*Instance),
	}
	groups := make(map[string]query.Row)
	for col, raw := range row {
		if alias, sub, joined := strings.Cut(col, "__"); joined {
			g := groups[alias]
			if g == nil {
				g = make(query.Row)
				groups[alias] = g
			}
			g[sub] = raw
			continue
		}
		fd, ok := m.schema.FieldByColumn(col)
		if !ok {
			continue
		}
		v, err := fromDriverValue(fd, raw)
		if err != nil {
			return nil, err
		}
		inst.values[col] = v
	}
	for alias, g := range groups {
		rel, ok := m.schema.Relation(alias)
		if !ok {
			continue
		}
		if allNil(g) {
			// LEFT JOIN matched nothing.
			continue
		}
		sub, err := New(m.db, rel.Target).NewFromRow(g)
		if err != nil {
			return nil, err
		}
		inst.relations[rel.Name] = append(inst.relations[rel.Name], sub)
	}
	return inst, nil
}

func allNil(row query.Row) bool {
	for _, v := range row {
		if v != nil {
			return false
		}
	}
	return true
}

// Get loads a document by primary key. Sensitive fields are excluded;
// on revisioned models stale and deleted revisions are invisible, so a
// missing current revision is NotFoundError. When a cache is configured
// the snapshot is served from it if present; cache failures fall back
// to the database.
func (m *Model) Get(ctx context.Context, id string, opts ...ExecOption) (*Instance, error) {
	var o execOptions
	for _, opt := range opts {
		opt(&o)
	}
	useCache := m.cache != nil && o.conn == nil
	if useCache {
		if inst, ok := m.fromCache(ctx, id); ok {
			return inst, nil
		}
	}
	conn := dal.Conn(m.db)
	if o.conn != nil {
		conn = o.conn
	}
	rows, err := query.New(conn, m.schema).Where(query.EQ("id", id)).Limit(1).Run(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, folio.NewNotFoundErrorWithID(m.schema.Name(), id)
	}
	inst, err := m.NewFromRow(rows[0])
	if err != nil {
		return nil, err
	}
	if useCache {
		m.toCache(ctx, id, inst)
	}
	return inst, nil
}

// Filter starts an instance-returning query with equality criteria,
// keyed by camelCase field name.
func (m *Model) Filter(criteria map[string]any) *Query {
	return m.Query().Filter(criteria)
}

// Query starts an empty instance-returning query.
func (m *Model) Query(opts ...ExecOption) *Query {
	return &Query{m: m, b: query.New(execConn(m, opts), m.schema)}
}

func (m *Model) save(ctx context.Context, inst *Instance, conn dal.Conn) error {
	if inst.isNew {
		return m.insert(ctx, inst, conn)
	}
	return m.update(ctx, inst, conn)
}

func (m *Model) insert(ctx context.Context, inst *Instance, conn dal.Conn) error {
	var (
		cols []string
		args []any
	)
	for _, fd := range m.schema.Fields() {
		if !fd.Type.Persisted() {
			continue
		}
		col, err := m.schema.Column(fd.Name)
		if err != nil {
			return err
		}
		v := inst.values[col]
		if v == nil {
			if fd.Required {
				return folio.NewValidationError(fd.Name, fmt.Errorf("value is required"))
			}
			continue
		}
		dv, err := toDriverValue(fd, v)
		if err != nil {
			return err
		}
		cols = append(cols, col)
		args = append(args, dv)
	}
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	returning := m.schema.Columns()
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		m.schema.Table(),
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(returning, ", "))
	rows, err := conn.Query(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return fmt.Errorf("folio/model: insert into %s returned no row", m.schema.Table())
	}
	vals := make([]any, len(returning))
	ptrs := make([]any, len(returning))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return err
	}
	for i, col := range returning {
		fd, ok := m.schema.FieldByColumn(col)
		if !ok {
			continue
		}
		v, err := fromDriverValue(fd, vals[i])
		if err != nil {
			return err
		}
		inst.values[col] = v
	}
	if err := rows.Err(); err != nil {
		return err
	}
	inst.isNew = false
	inst.dirty = make(map[string]bool)
	m.invalidate(ctx, inst.ID())
	return nil
}

func (m *Model) update(ctx context.Context, inst *Instance, conn dal.Conn) error {
	var (
		sets []string
		args []any
	)
	for _, fd := range m.schema.Fields() {
		if !fd.Type.Persisted() {
			continue
		}
		col, err := m.schema.Column(fd.Name)
		if err != nil {
			return err
		}
		if !inst.dirty[col] {
			continue
		}
		dv, err := toDriverValue(fd, inst.values[col])
		if err != nil {
			return err
		}
		args = append(args, dv)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, inst.ID())
	where := fmt.Sprintf("%s = $%d", schema.IDColumn, len(args))
	if m.schema.Revisioned() {
		where += fmt.Sprintf(" AND %s IS NULL AND %s = false", schema.ColOldRevOf, schema.ColRevDeleted)
	}
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s", m.schema.Table(), strings.Join(sets, ", "), where)
	res, err := conn.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return folio.NewNotFoundErrorWithID(m.schema.Name(), inst.ID())
	}
	inst.dirty = make(map[string]bool)
	m.invalidate(ctx, inst.ID())
	return nil
}

func (m *Model) delete(ctx context.Context, inst *Instance, conn dal.Conn) error {
	var q string
	if m.schema.Revisioned() {
		q = fmt.Sprintf("UPDATE %s SET %s = true WHERE %s = $1 AND %s IS NULL AND %s = false",
			m.schema.Table(), schema.ColRevDeleted, schema.IDColumn, schema.ColOldRevOf, schema.ColRevDeleted)
	} else {
		q = fmt.Sprintf("DELETE FROM %s WHERE %s = $1", m.schema.Table(), schema.IDColumn)
	}
	res, err := conn.Exec(ctx, q, inst.ID())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return folio.NewNotFoundErrorWithID(m.schema.Name(), inst.ID())
	}
	if m.schema.Revisioned() {
		inst.values[schema.ColRevDeleted] = true
	}
	m.invalidate(ctx, inst.ID())
	return nil
}

func (m *Model) cacheKey(id string) string {
	return m.schema.Table() + ":" + id
}

func (m *Model) fromCache(ctx context.Context, id string) (*Instance, bool) {
	raw, err := m.cache.Get(ctx, m.cacheKey(id))
	if err != nil || raw == nil {
		return nil, false
	}
	var values map[string]any
	if err := msgpack.Unmarshal(raw, &values); err != nil {
		return nil, false
	}
	inst := &Instance{
		model:     m,
		values:    make(map[string]any, len(values)),
		dirty:     make(map[string]bool),
		relations: make(map[string][]*Instance),
	}
	for col, v := range values {
		fd, ok := m.schema.FieldByColumn(col)
		if !ok {
			continue
		}
		inst.values[col] = normalizeCached(fd, v)
	}
	return inst, true
}

func (m *Model) toCache(ctx context.Context, id string, inst *Instance) {
	raw, err := msgpack.Marshal(inst.values)
	if err != nil {
		return
	}
	_ = m.cache.Set(ctx, m.cacheKey(id), raw, m.cacheTTL)
}

// Invalidate drops the cached snapshot for the given primary key. It
// is a no-op when no cache is configured. Callers that mutate rows
// outside the model, e.g. inside a transaction, use it to keep the
// cache honest.
func (m *Model) Invalidate(ctx context.Context, id string) {
	m.invalidate(ctx, id)
}

func (m *Model) invalidate(ctx context.Context, id string) {
	if m.cache == nil || id == "" {
		return
	}
	_ = m.cache.Delete(ctx, m.cacheKey(id))
}
