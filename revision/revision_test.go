package revision

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio-db/folio"
	"github.com/folio-db/folio/dal"
	"github.com/folio-db/folio/model"
	"github.com/folio-db/folio/query"
	"github.com/folio-db/folio/schema"
	"github.com/folio-db/folio/schema/field"
)

const (
	thingInsert = "INSERT INTO things (id, label, rev_id, rev_user, rev_date, rev_deleted) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, label, rev_id, rev_user, rev_date, rev_tags, old_rev_of, rev_deleted"
	thingFlip   = "UPDATE things SET old_rev_of = $1 WHERE id = $2 AND old_rev_of IS NULL AND rev_deleted = false"
	thingChain  = "WITH RECURSIVE chain AS (SELECT id FROM things WHERE id = $1 UNION ALL SELECT r.id FROM things r JOIN chain c ON r.old_rev_of = c.id) UPDATE things SET rev_deleted = true WHERE id IN (SELECT id FROM chain)"
)

var revCols = []string{"id", "label", "rev_id", "rev_user", "rev_date", "rev_tags", "old_rev_of", "rev_deleted"}

func newEngine(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	things := schema.MustNewRevisioned("thing", "things", field.String("label").Required().Descriptor())
	return MustNewEngine(model.New(dal.OpenDB(db), things)), mock
}

func TestNewEngineRequiresRevisionedSchema(t *testing.T) {
	plain := schema.MustNew("tag", "tags", field.String("label").Descriptor())
	_, err := NewEngine(model.New(nil, plain))
	assert.ErrorContains(t, err, "not revisioned")
}

func TestCreateFirst(t *testing.T) {
	e, mock := newEngine(t)
	when := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO things (id, label, rev_id, rev_user, rev_date, rev_tags, rev_deleted) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, label, rev_id, rev_user, rev_date, rev_tags, old_rev_of, rev_deleted").
		WithArgs(sqlmock.AnyArg(), "first", sqlmock.AnyArg(), "ada", when, pq.Array([]string{"create"}), false).
		WillReturnRows(sqlmock.NewRows(revCols).
			AddRow("t1", "first", "r1", "ada", when, []byte("{create}"), nil, false))

	inst, err := e.CreateFirst(context.Background(),
		map[string]any{"label": "first"},
		Meta{Actor: "ada", Tags: []string{"create"}, Date: when})
	require.NoError(t, err)

	assert.Equal(t, "t1", inst.ID())
	assert.Equal(t, "ada", inst.Get("revUser"))
	assert.True(t, HasTag(inst, "create"))
	assert.False(t, HasTag(inst, "delete"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateFirstRequiresActor(t *testing.T) {
	e, _ := newEngine(t)
	_, err := e.CreateFirst(context.Background(), map[string]any{"label": "x"}, Meta{})
	assert.True(t, folio.IsValidationError(err))
}

func TestNewRevisionInsertsAndFlips(t *testing.T) {
	e, mock := newEngine(t)
	when := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	current, err := e.Model().NewFromRow(query.Row{
		"id": "t1", "label": "old", "rev_id": "r1", "rev_user": "ada",
		"rev_date": when.Add(-time.Hour), "rev_tags": nil, "old_rev_of": nil, "rev_deleted": false,
	})
	require.NoError(t, err)
	require.NoError(t, current.Set("label", "new"))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT pg_advisory_xact_lock(hashtext($1))").
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"pg_advisory_xact_lock"}).AddRow(nil))
	mock.ExpectQuery(thingInsert).
		WithArgs(sqlmock.AnyArg(), "new", sqlmock.AnyArg(), "eve", when, false).
		WillReturnRows(sqlmock.NewRows(revCols).
			AddRow("t2", "new", "r2", "eve", when, nil, nil, false))
	mock.ExpectExec(thingFlip).
		WithArgs("t2", "t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	next, err := e.NewRevision(context.Background(), current, Meta{Actor: "eve", Date: when})
	require.NoError(t, err)

	assert.Equal(t, "t2", next.ID())
	assert.Equal(t, "new", next.Get("label"))
	assert.Equal(t, "eve", next.Get("revUser"))
	assert.Nil(t, next.Get("oldRevOf"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRevisionLoserRollsBack(t *testing.T) {
	e, mock := newEngine(t)
	when := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	current, err := e.Model().NewFromRow(query.Row{"id": "t1", "label": "old"})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT pg_advisory_xact_lock(hashtext($1))").
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"pg_advisory_xact_lock"}).AddRow(nil))
	mock.ExpectQuery(thingInsert).
		WithArgs(sqlmock.AnyArg(), "old", sqlmock.AnyArg(), "eve", when, false).
		WillReturnRows(sqlmock.NewRows(revCols).
			AddRow("t2", "old", "r2", "eve", when, nil, nil, false))
	// The current row was superseded by a concurrent edit.
	mock.ExpectExec(thingFlip).
		WithArgs("t2", "t1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err = e.NewRevision(context.Background(), current, Meta{Actor: "eve", Date: when})
	assert.True(t, folio.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRevisionRejectsUnsavedInstance(t *testing.T) {
	e, _ := newEngine(t)
	inst, err := e.Model().NewInstance(map[string]any{"label": "x", "revUser": "ada"})
	require.NoError(t, err)

	_, err = e.NewRevision(context.Background(), inst, Meta{Actor: "ada"})
	assert.ErrorContains(t, err, "no revision yet")
}

func TestDeleteAllFlagsWholeChain(t *testing.T) {
	e, mock := newEngine(t)

	mock.ExpectExec(thingChain).
		WithArgs("t2").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := e.DeleteAll(context.Background(), "t2", Meta{Actor: "ada"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAllRequiresActor(t *testing.T) {
	e, _ := newEngine(t)
	_, err := e.DeleteAll(context.Background(), "t2", Meta{})
	assert.True(t, folio.IsValidationError(err))
}

func TestDeleteAllMissingIsNotFound(t *testing.T) {
	e, mock := newEngine(t)

	mock.ExpectExec(thingChain).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := e.DeleteAll(context.Background(), "gone", Meta{Actor: "ada"})
	assert.True(t, folio.IsNotFound(err))
}

func TestHistoryWalksChainNewestFirst(t *testing.T) {
	e, mock := newEngine(t)
	when := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("WITH RECURSIVE chain AS (SELECT id FROM things WHERE id = $1 UNION ALL SELECT r.id FROM things r JOIN chain c ON r.old_rev_of = c.id) SELECT id FROM chain").
		WithArgs("t2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("t2").AddRow("t1"))
	mock.ExpectQuery("SELECT id, label, rev_id, rev_user, rev_date, rev_tags, old_rev_of, rev_deleted FROM things WHERE id = ANY($1::uuid[]) ORDER BY rev_date DESC").
		WithArgs(pq.Array([]string{"t2", "t1"})).
		WillReturnRows(sqlmock.NewRows(revCols).
			AddRow("t2", "new", "r2", "eve", when, nil, nil, false).
			AddRow("t1", "old", "r1", "ada", when.Add(-time.Hour), nil, "t2", false))

	history, err := e.History(context.Background(), "t2")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "new", history[0].Get("label"))
	assert.Equal(t, "t2", history[1].Get("oldRevOf"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryMissingIsNotFound(t *testing.T) {
	e, mock := newEngine(t)

	mock.ExpectQuery("WITH RECURSIVE chain AS (SELECT id FROM things WHERE id = $1 UNION ALL SELECT r.id FROM things r JOIN chain c ON r.old_rev_of = c.id) SELECT id FROM chain").
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := e.History(context.Background(), "gone")
	assert.True(t, folio.IsNotFound(err))
}
