// Package dal is the connection and transaction manager. It wraps a
// database/sql pool over lib/pq, translates driver errors into the
// folio taxonomy, and owns transactions and migrations.
//
// Execution is request-scoped: each call borrows a pooled connection
// and releases it when done. The pool bounds concurrency; excess
// callers queue. A transaction is the unit of isolation.
package dal

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"time"

	// Registers the "postgres" driver.
	_ "github.com/lib/pq"

	"github.com/folio-db/folio"
)

// Conn is the executor shared by the pool and transactions. Model and
// query operations accept a Conn so they run either standalone or
// inside an explicit transaction.
type Conn interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DB is a pooled database handle.
type DB struct {
	db     *sql.DB
	logger *slog.Logger
	debug  bool
}

// Option configures a DB handle.
type Option func(*DB)

// WithLogger sets the logger used for statement logging.
func WithLogger(l *slog.Logger) Option {
	return func(d *DB) { d.logger = l }
}

// Debug logs every statement with its duration at debug level.
func Debug() Option {
	return func(d *DB) { d.debug = true }
}

// Open opens a Postgres pool for the given configuration.
func Open(cfg *Config, opts ...Option) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, folio.NewConnectionError("open", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if lt := cfg.Lifetime(); lt > 0 {
		db.SetConnMaxLifetime(lt)
	}
	return OpenDB(db, opts...), nil
}

// OpenDB wraps an existing pool. Useful for tests.
func OpenDB(db *sql.DB, opts ...Option) *DB {
	d := &DB{db: db, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DB returns the underlying *sql.DB.
func (d *DB) DB() *sql.DB { return d.db }

// Close closes the pool.
func (d *DB) Close() error { return d.db.Close() }

// Query executes a statement returning rows against the pool.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := d.db.QueryContext(ctx, query, args...)
	d.log(ctx, "query", query, start, err)
	if err != nil {
		return nil, Translate("query", err)
	}
	return rows, nil
}

// Exec executes a statement against the pool.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := d.db.ExecContext(ctx, query, args...)
	d.log(ctx, "exec", query, start, err)
	if err != nil {
		return nil, Translate("exec", err)
	}
	return res, nil
}

func (d *DB) log(ctx context.Context, op, query string, start time.Time, err error) {
	if !d.debug && err == nil {
		return
	}
	level := slog.LevelDebug
	attrs := []slog.Attr{
		slog.String("sql", query),
		slog.Duration("took", time.Since(start)),
	}
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.Any("error", err))
	}
	d.logger.LogAttrs(ctx, level, op, attrs...)
}

// Tx is a dedicated transaction connection.
type Tx struct {
	tx *sql.Tx
	d  *DB
}

// Tx begins a transaction on a dedicated connection.
func (d *DB) Tx(ctx context.Context) (*Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, Translate("begin", err)
	}
	return &Tx{tx: tx, d: d}, nil
}

// Query executes a statement returning rows within the transaction.
func (t *Tx) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := t.tx.QueryContext(ctx, query, args...)
	t.d.log(ctx, "tx.query", query, start, err)
	if err != nil {
		return nil, Translate("query", err)
	}
	return rows, nil
}

// Exec executes a statement within the transaction.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := t.tx.ExecContext(ctx, query, args...)
	t.d.log(ctx, "tx.exec", query, start, err)
	if err != nil {
		return nil, Translate("exec", err)
	}
	return res, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return Translate("commit", err)
	}
	return nil
}

// Rollback aborts the transaction.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return Translate("rollback", err)
	}
	return nil
}

// Transaction runs fn inside a transaction. Any error from fn triggers
// a rollback before it is re-raised; no partial writes from fn are ever
// observable. The dedicated connection is always released.
func (d *DB) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := d.Tx(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return errors.Join(err, &folio.RollbackError{Err: rerr})
		}
		return err
	}
	return tx.Commit()
}

var (
	_ Conn = (*DB)(nil)
	_ Conn = (*Tx)(nil)
)
