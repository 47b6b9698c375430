// Package schema binds ordered field descriptors to a relational table.
//
// A Schema owns the camelCase-to-column mapping (derived with inflect
// unless a field overrides its column), the relation declarations used
// by the query builder's joins, and the revisioned flag that drives
// automatic guard injection.
package schema

import (
	"fmt"
	"time"

	"github.com/go-openapi/inflect"
	"github.com/google/uuid"

	"github.com/folio-db/folio/schema/field"
)

// Revision metadata columns, present on every revisioned table.
const (
	ColRevID      = "rev_id"
	ColRevUser    = "rev_user"
	ColRevDate    = "rev_date"
	ColRevTags    = "rev_tags"
	ColOldRevOf   = "old_rev_of"
	ColRevDeleted = "rev_deleted"
)

// IDColumn is the primary key column of every table.
const IDColumn = "id"

// Schema is an ordered field-name to descriptor mapping bound to a
// table. The zero value is not usable; construct with New,
// NewRevisioned, or their Must variants.
type Schema struct {
	name       string
	table      string
	fields     []*field.Descriptor
	byName     map[string]*field.Descriptor
	byColumn   map[string]*field.Descriptor
	columnOf   map[string]string
	relations  map[string]*Relation
	revisioned bool
}

// New builds a schema for the given logical name (used in error labels)
// and table. A UUID primary key field named "id" is prepended if the
// caller did not declare one. New fails on duplicate field names,
// builder errors, and column collisions: camelCase-to-column must be a
// bijection.
func New(name, table string, fields ...*field.Descriptor) (*Schema, error) {
	if name == "" || table == "" {
		return nil, fmt.Errorf("folio/schema: name and table are required")
	}
	if !hasField(fields, "id") {
		id := field.UUID("id", 0).Required().DefaultFunc(uuid.NewString).Descriptor()
		fields = append([]*field.Descriptor{id}, fields...)
	}
	s := &Schema{
		name:      name,
		table:     table,
		byName:    make(map[string]*field.Descriptor, len(fields)),
		byColumn:  make(map[string]*field.Descriptor, len(fields)),
		columnOf:  make(map[string]string, len(fields)),
		relations: make(map[string]*Relation),
	}
	for _, fd := range fields {
		if fd == nil {
			return nil, fmt.Errorf("folio/schema: %s: nil field descriptor", name)
		}
		if fd.Err != nil {
			return nil, fmt.Errorf("folio/schema: %s: %w", name, fd.Err)
		}
		if _, dup := s.byName[fd.Name]; dup {
			return nil, fmt.Errorf("folio/schema: %s: duplicate field %q", name, fd.Name)
		}
		s.byName[fd.Name] = fd
		s.fields = append(s.fields, fd)
		if !fd.Type.Persisted() {
			continue
		}
		col := fd.Column
		if col == "" {
			col = inflect.Underscore(fd.Name)
		}
		if prev, taken := s.byColumn[col]; taken {
			return nil, fmt.Errorf("folio/schema: %s: fields %q and %q collide on column %q", name, prev.Name, fd.Name, col)
		}
		s.byColumn[col] = fd
		s.columnOf[fd.Name] = col
	}
	return s, nil
}

// MustNew is like New but panics on error. Intended for package-level
// schema declarations.
func MustNew(name, table string, fields ...*field.Descriptor) *Schema {
	s, err := New(name, table, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// RevisionFields returns the revision metadata descriptors appended to
// every revisioned schema.
func RevisionFields() []*field.Descriptor {
	return []*field.Descriptor{
		field.UUID("revId", 0).Required().DefaultFunc(uuid.NewString).Descriptor(),
		field.String("revUser").Required().Descriptor(),
		field.Date("revDate").Required().DefaultFunc(time.Now).Descriptor(),
		field.Array("revTags", field.String("tag").MaxLen(64).Descriptor()).Text().Descriptor(),
		field.UUID("oldRevOf", 0).Descriptor(),
		field.Boolean("revDeleted").Required().Default(false).Descriptor(),
	}
}

// NewRevisioned builds a schema carrying the revision metadata fields
// and flags it as revisioned, enabling automatic stale/deleted guards.
func NewRevisioned(name, table string, fields ...*field.Descriptor) (*Schema, error) {
	s, err := New(name, table, append(fields, RevisionFields()...)...)
	if err != nil {
		return nil, err
	}
	s.revisioned = true
	return s, nil
}

// MustNewRevisioned is like NewRevisioned but panics on error.
func MustNewRevisioned(name, table string, fields ...*field.Descriptor) *Schema {
	s, err := NewRevisioned(name, table, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the logical name, e.g. "user".
func (s *Schema) Name() string { return s.name }

// Table returns the table name.
func (s *Schema) Table() string { return s.table }

// Revisioned reports whether the table keeps an append-only revision
// history.
func (s *Schema) Revisioned() bool { return s.revisioned }

// Fields returns the descriptors in declaration order.
func (s *Schema) Fields() []*field.Descriptor { return s.fields }

// Field returns the descriptor for the given camelCase name.
func (s *Schema) Field(name string) (*field.Descriptor, bool) {
	fd, ok := s.byName[name]
	return fd, ok
}

// FieldByColumn returns the descriptor owning the given column.
func (s *Schema) FieldByColumn(col string) (*field.Descriptor, bool) {
	fd, ok := s.byColumn[col]
	return fd, ok
}

// Column resolves a camelCase field name to its column. Unresolved
// names are a hard error, never silently dropped.
func (s *Schema) Column(name string) (string, error) {
	col, ok := s.columnOf[name]
	if !ok {
		return "", fmt.Errorf("folio/schema: unknown field %q on %s", name, s.name)
	}
	return col, nil
}

// FieldName resolves a column back to its camelCase field name.
func (s *Schema) FieldName(col string) (string, error) {
	fd, ok := s.byColumn[col]
	if !ok {
		return "", fmt.Errorf("folio/schema: unknown column %q on %s", col, s.name)
	}
	return fd.Name, nil
}

// Columns returns all persisted columns in declaration order.
func (s *Schema) Columns() []string {
	cols := make([]string, 0, len(s.fields))
	for _, fd := range s.fields {
		if fd.Type.Persisted() {
			cols = append(cols, s.columnOf[fd.Name])
		}
	}
	return cols
}

// SafeColumns returns the persisted columns excluding sensitive ones.
// This is the default SELECT projection.
func (s *Schema) SafeColumns() []string {
	cols := make([]string, 0, len(s.fields))
	for _, fd := range s.fields {
		if fd.Type.Persisted() && !fd.Sensitive {
			cols = append(cols, s.columnOf[fd.Name])
		}
	}
	return cols
}

func hasField(fields []*field.Descriptor, name string) bool {
	for _, fd := range fields {
		if fd != nil && fd.Name == name {
			return true
		}
	}
	return false
}
