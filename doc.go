// Package folio is a schema-driven persistence engine for multiuser
// content platforms. It maps typed, camelCase domain fields onto
// relational columns, keeps an append-only revision history for
// auditable documents, and resolves per-language text stored in JSONB
// columns.
//
// The root package defines the error taxonomy shared by all
// subpackages and the Cache interface used for optional read-through
// caching of document snapshots.
//
// Subpackages:
//
//   - schema/field: fluent field descriptor builders and validation
//   - schema: table schemas, camelCase to column mapping, relations
//   - dal: connection pool, transactions, migrations, configuration
//   - query: composable predicates, joins, and revision guards
//   - model: schema-to-table binding and the document lifecycle
//   - revision: the append-only revision engine
//   - mlstring: multilingual string schemas and fallback resolution
package folio
