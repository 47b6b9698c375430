// Package revision keeps an append-only edit history for revisioned
// models. Every edit becomes a new row carrying fresh revision
// metadata; the superseded row is retained and marked stale by pointing
// its old_rev_of column at the row that replaced it. Deletion flags the
// whole chain instead of removing rows.
//
// Concurrent edits of the same document are serialized with a
// transaction-scoped advisory lock keyed on the current row's primary
// key, so exactly one of two racing edits wins and the other fails
// with NotFoundError.
package revision

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/folio-db/folio"
	"github.com/folio-db/folio/dal"
	"github.com/folio-db/folio/model"
	"github.com/folio-db/folio/query"
	"github.com/folio-db/folio/schema"
)

// Meta carries the audit metadata of one revision.
type Meta struct {
	Actor string    // who made the edit; required
	Tags  []string  // free-form labels, e.g. "minor" or "revert"
	Date  time.Time // defaults to now
}

func (m Meta) date() time.Time {
	if m.Date.IsZero() {
		return time.Now()
	}
	return m.Date
}

// Engine runs revision operations for one model.
type Engine struct {
	m *model.Model
}

// NewEngine returns an engine over m. The model's schema must be
// revisioned.
func NewEngine(m *model.Model) (*Engine, error) {
	if !m.Schema().Revisioned() {
		return nil, fmt.Errorf("folio/revision: schema %s is not revisioned", m.Schema().Name())
	}
	return &Engine{m: m}, nil
}

// MustNewEngine is like NewEngine but panics on error.
func MustNewEngine(m *model.Model) *Engine {
	e, err := NewEngine(m)
	if err != nil {
		panic(err)
	}
	return e
}

// Model returns the underlying model.
func (e *Engine) Model() *model.Model { return e.m }

// CreateFirst creates a document with its first revision: the given
// data plus the revision metadata from meta. The returned instance is
// the current revision.
func (e *Engine) CreateFirst(ctx context.Context, data map[string]any, meta Meta, opts ...model.ExecOption) (*model.Instance, error) {
	if meta.Actor == "" {
		return nil, folio.NewValidationError("revUser", fmt.Errorf("value is required"))
	}
	payload := make(map[string]any, len(data)+3)
	for k, v := range data {
		payload[k] = v
	}
	payload["revUser"] = meta.Actor
	payload["revDate"] = meta.date()
	if len(meta.Tags) > 0 {
		payload["revTags"] = meta.Tags
	}
	inst, err := e.m.NewInstance(payload)
	if err != nil {
		return nil, err
	}
	if err := inst.Save(ctx, opts...); err != nil {
		return nil, err
	}
	return inst, nil
}

// NewRevision supersedes the current revision with the values held by
// inst, including unsaved mutations. A new row is inserted with a
// fresh primary key and revision metadata, and the superseded row is
// pointed at it. Both writes happen in one transaction under an
// advisory lock, so a concurrent edit of the same document fails with
// NotFoundError instead of silently forking the chain.
func (e *Engine) NewRevision(ctx context.Context, inst *model.Instance, meta Meta) (*model.Instance, error) {
	if meta.Actor == "" {
		return nil, folio.NewValidationError("revUser", fmt.Errorf("value is required"))
	}
	if inst.IsNew() {
		return nil, fmt.Errorf("folio/revision: document has no revision yet, use CreateFirst")
	}
	oldID := inst.ID()
	data := inst.Values()
	data["id"] = uuid.NewString()
	data["revId"] = uuid.NewString()
	data["revUser"] = meta.Actor
	data["revDate"] = meta.date()
	if len(meta.Tags) > 0 {
		data["revTags"] = meta.Tags
	} else {
		delete(data, "revTags")
	}
	delete(data, "oldRevOf")
	data["revDeleted"] = false

	var out *model.Instance
	err := e.m.DB().Transaction(ctx, func(tx *dal.Tx) error {
		if err := lockDocument(ctx, tx, oldID); err != nil {
			return err
		}
		next, err := e.m.NewInstance(data)
		if err != nil {
			return err
		}
		if err := next.Save(ctx, model.OnConn(tx)); err != nil {
			return err
		}
		q := fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s = $2 AND %s IS NULL AND %s = false",
			e.m.Schema().Table(), schema.ColOldRevOf, schema.IDColumn, schema.ColOldRevOf, schema.ColRevDeleted)
		res, err := tx.Exec(ctx, q, next.ID(), oldID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n != 1 {
			return folio.NewNotFoundErrorWithID(e.m.Schema().Name(), oldID)
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.m.Invalidate(ctx, oldID)
	return out, nil
}

// DeleteAll soft-deletes the current revision and its entire history
// by walking the old_rev_of chain backwards from the current row. It
// returns the number of flagged rows; a document with no visible
// current revision yields NotFoundError.
//
// The actor in meta is required but not written to the flagged rows:
// historical rows stay immutable apart from the chain pointer and the
// deleted flag. Callers needing a deletion audit record write one at a
// higher layer.
func (e *Engine) DeleteAll(ctx context.Context, id string, meta Meta) (int64, error) {
	if meta.Actor == "" {
		return 0, folio.NewValidationError("revUser", fmt.Errorf("value is required"))
	}
	t := e.m.Schema().Table()
	q := fmt.Sprintf(
		"WITH RECURSIVE chain AS (SELECT %[2]s FROM %[1]s WHERE %[2]s = $1 UNION ALL SELECT r.%[2]s FROM %[1]s r JOIN chain c ON r.%[3]s = c.%[2]s) UPDATE %[1]s SET %[4]s = true WHERE %[2]s IN (SELECT %[2]s FROM chain)",
		t, schema.IDColumn, schema.ColOldRevOf, schema.ColRevDeleted)
	res, err := e.m.DB().Exec(ctx, q, id)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, folio.NewNotFoundErrorWithID(e.m.Schema().Name(), id)
	}
	e.m.Invalidate(ctx, id)
	return n, nil
}

// Current loads the current revision by primary key. Stale and deleted
// revisions are invisible.
func (e *Engine) Current(ctx context.Context, id string, opts ...model.ExecOption) (*model.Instance, error) {
	return e.m.Get(ctx, id, opts...)
}

// Filter starts a query over current revisions only; the stale and
// deleted guards are in force unless lifted on the returned query.
func (e *Engine) Filter(criteria map[string]any) *model.Query {
	return e.m.Filter(criteria)
}

// History returns the full revision chain of the document with the
// given current id, newest first. Stale and deleted revisions are
// included.
func (e *Engine) History(ctx context.Context, id string) ([]*model.Instance, error) {
	ids, err := e.chainIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, folio.NewNotFoundErrorWithID(e.m.Schema().Name(), id)
	}
	return e.m.Query().
		Where(idIn(ids)).
		IncludeStale().
		IncludeDeleted().
		OrderBy("revDate", true).
		Run(ctx)
}

func (e *Engine) chainIDs(ctx context.Context, id string) ([]string, error) {
	t := e.m.Schema().Table()
	q := fmt.Sprintf(
		"WITH RECURSIVE chain AS (SELECT %[2]s FROM %[1]s WHERE %[2]s = $1 UNION ALL SELECT r.%[2]s FROM %[1]s r JOIN chain c ON r.%[3]s = c.%[2]s) SELECT %[2]s FROM chain",
		t, schema.IDColumn, schema.ColOldRevOf)
	rows, err := e.m.DB().Query(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var rid string
		if err := rows.Scan(&rid); err != nil {
			return nil, err
		}
		ids = append(ids, rid)
	}
	return ids, rows.Err()
}

func idIn(ids []string) *query.Predicate {
	vals := make([]any, len(ids))
	for i, id := range ids {
		vals[i] = id
	}
	return query.InCast("id", "uuid[]", vals...)
}

// HasTag reports whether the instance's revision carries the tag.
func HasTag(inst *model.Instance, tag string) bool {
	tags, _ := inst.Get("revTags").([]string)
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// lockDocument takes a transaction-scoped advisory lock keyed on the
// document's current primary key. Released automatically at commit or
// rollback.
func lockDocument(ctx context.Context, tx *dal.Tx, id string) error {
	rows, err := tx.Query(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", id)
	if err != nil {
		return err
	}
	return rows.Close()
}
