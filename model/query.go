package model

import (
	"context"

	"github.com/folio-db/folio/query"
)

// Query is an instance-returning wrapper around the SQL query builder.
// The chain methods mirror query.Builder; the terminals hydrate rows
// into instances. Not safe for concurrent use.
type Query struct {
	m *Model
	b *query.Builder
}

// Builder exposes the underlying SQL builder.
func (q *Query) Builder() *query.Builder { return q.b }

// Where appends predicates; all must match.
func (q *Query) Where(preds ...*query.Predicate) *Query {
	q.b.Where(preds...)
	return q
}

// Filter appends equality predicates keyed by camelCase field name.
func (q *Query) Filter(criteria map[string]any) *Query {
	q.b.Filter(criteria)
	return q
}

// OrderBy appends an ordering on the given field.
func (q *Query) OrderBy(field string, desc bool) *Query {
	q.b.OrderBy(field, desc)
	return q
}

// Limit caps the number of returned instances.
func (q *Query) Limit(n int) *Query {
	q.b.Limit(n)
	return q
}

// Offset skips the first n instances.
func (q *Query) Offset(n int) *Query {
	q.b.Offset(n)
	return q
}

// IncludeStale returns old revisions too.
func (q *Query) IncludeStale() *Query {
	q.b.IncludeStale()
	return q
}

// IncludeDeleted returns deleted revisions too.
func (q *Query) IncludeDeleted() *Query {
	q.b.IncludeDeleted()
	return q
}

// IncludeSensitive adds the named sensitive fields to the projection.
func (q *Query) IncludeSensitive(fields ...string) *Query {
	q.b.IncludeSensitive(fields...)
	return q
}

// Join joins the named relation; matching related rows hydrate under
// Instance.Relations.
func (q *Query) Join(relation string, spec query.JoinSpec) *Query {
	q.b.Join(relation, spec)
	return q
}

// Run executes the query and hydrates all matching instances.
func (q *Query) Run(ctx context.Context) ([]*Instance, error) {
	rows, err := q.b.Run(ctx)
	if err != nil {
		return nil, err
	}
	return q.hydrate(rows)
}

// RunWithCount returns the matching instances together with the total
// count disregarding limit and offset.
func (q *Query) RunWithCount(ctx context.Context) ([]*Instance, int, error) {
	rows, total, err := q.b.RunWithCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	out, err := q.hydrate(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// First returns the first matching instance, or NotFoundError.
func (q *Query) First(ctx context.Context) (*Instance, error) {
	row, err := q.b.First(ctx)
	if err != nil {
		return nil, err
	}
	return q.m.NewFromRow(row)
}

// Count returns the number of matching rows.
func (q *Query) Count(ctx context.Context) (int, error) {
	return q.b.Count(ctx)
}

// Sample returns up to n matching instances in random order.
func (q *Query) Sample(ctx context.Context, n int) ([]*Instance, error) {
	rows, err := q.b.Sample(ctx, n)
	if err != nil {
		return nil, err
	}
	return q.hydrate(rows)
}

// Delete removes the matching rows and returns how many were affected.
// Cached snapshots of this model are dropped wholesale, since the
// affected primary keys are unknown.
func (q *Query) Delete(ctx context.Context) (int64, error) {
	n, err := q.b.Delete(ctx)
	if err != nil {
		return 0, err
	}
	if q.m.cache != nil && n > 0 {
		_ = q.m.cache.DeletePrefix(ctx, q.m.schema.Table()+":")
	}
	return n, nil
}

func (q *Query) hydrate(rows []query.Row) ([]*Instance, error) {
	out := make([]*Instance, 0, len(rows))
	for _, row := range rows {
		inst, err := q.m.NewFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}
