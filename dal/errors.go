package dal

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"

	"github.com/folio-db/folio"
)

// Translate maps raw driver errors into the folio taxonomy without
// reinterpreting their meaning. Constraint violations (SQLSTATE class
// 23) become ConstraintError naming the violated constraint;
// connection, resource, and cancellation failures become
// ConnectionError. Everything else, including sql.ErrNoRows, passes
// through unchanged.
func Translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return err
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "23": // integrity_constraint_violation
			return folio.NewConstraintError(pqErr.Constraint, err)
		case "08", "53", "57": // connection, insufficient resources, operator intervention
			return folio.NewConnectionError(op, err)
		}
		return err
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return folio.NewConnectionError(op, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return folio.NewConnectionError(op, err)
	}
	return err
}
