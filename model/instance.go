package model

import (
	"context"
	"fmt"

	"github.com/folio-db/folio"
	"github.com/folio-db/folio/schema/field"
)

// An Instance is one document of a model: a mutable set of field values
// bound to a row. Instances are created through Model.NewInstance (for
// documents that do not exist yet) or hydrated from query results, and
// are not safe for concurrent use.
type Instance struct {
	model     *Model
	values    map[string]any // keyed by column
	dirty     map[string]bool
	isNew     bool
	relations map[string][]*Instance
}

// Model returns the owning model.
func (i *Instance) Model() *Model { return i.model }

// ID returns the primary key, or "" if unset.
func (i *Instance) ID() string {
	if v, ok := i.values["id"].(string); ok {
		return v
	}
	return ""
}

// IsNew reports whether the instance has not been inserted yet.
func (i *Instance) IsNew() bool { return i.isNew }

// Get returns the value of the named field. Virtual fields are computed
// on the fly from a snapshot of the persisted values. Unknown names
// return nil.
func (i *Instance) Get(name string) any {
	fd, ok := i.model.schema.Field(name)
	if !ok {
		return nil
	}
	if fd.Type == field.TypeVirtual {
		return fd.Compute(i.Values())
	}
	col, err := i.model.schema.Column(name)
	if err != nil {
		return nil
	}
	return i.values[col]
}

// GetString returns the named field as a string, or "" if it is unset
// or not a string.
func (i *Instance) GetString(name string) string {
	s, _ := i.Get(name).(string)
	return s
}

// GetBool returns the named field as a bool, or false if it is unset or
// not a bool.
func (i *Instance) GetBool(name string) bool {
	b, _ := i.Get(name).(bool)
	return b
}

// Set validates and assigns a field value, marking it dirty. Assigning
// a virtual field or an invalid value fails without mutating the
// instance.
func (i *Instance) Set(name string, v any) error {
	fd, ok := i.model.schema.Field(name)
	if !ok {
		return folio.NewValidationError(name, fmt.Errorf("unknown field on %s", i.model.schema.Name()))
	}
	if err := fd.Validate(v, name); err != nil {
		return err
	}
	col, err := i.model.schema.Column(name)
	if err != nil {
		return err
	}
	i.values[col] = v
	i.dirty[col] = true
	return nil
}

// SetMany applies Set for every entry of data. The first failure aborts;
// entries already applied stay applied.
func (i *Instance) SetMany(data map[string]any) error {
	for name, v := range data {
		if err := i.Set(name, v); err != nil {
			return err
		}
	}
	return nil
}

// Values returns a snapshot of the persisted values keyed by camelCase
// field name. Mutating the snapshot does not affect the instance.
func (i *Instance) Values() map[string]any {
	out := make(map[string]any, len(i.values))
	for _, fd := range i.model.schema.Fields() {
		if !fd.Type.Persisted() {
			continue
		}
		col, err := i.model.schema.Column(fd.Name)
		if err != nil {
			continue
		}
		if v, ok := i.values[col]; ok {
			out[fd.Name] = v
		}
	}
	return out
}

// Dirty returns the camelCase names of fields modified since the last
// save, in schema declaration order.
func (i *Instance) Dirty() []string {
	var out []string
	for _, fd := range i.model.schema.Fields() {
		if !fd.Type.Persisted() {
			continue
		}
		col, err := i.model.schema.Column(fd.Name)
		if err != nil {
			continue
		}
		if i.dirty[col] {
			out = append(out, fd.Name)
		}
	}
	return out
}

// Relations returns the related instances hydrated under the given
// relation name by a joined query. Empty when the query did not join
// the relation or the joined side matched nothing.
func (i *Instance) Relations(name string) []*Instance {
	return i.relations[name]
}

// Relation returns the single related instance for a to-one relation,
// or nil.
func (i *Instance) Relation(name string) *Instance {
	rs := i.relations[name]
	if len(rs) == 0 {
		return nil
	}
	return rs[0]
}

// Save persists the instance: an INSERT returning the stored row for
// new instances, an UPDATE of the dirty columns otherwise. Updating a
// document that is gone, stale, or deleted fails with NotFoundError.
func (i *Instance) Save(ctx context.Context, opts ...ExecOption) error {
	return i.model.save(ctx, i, execConn(i.model, opts))
}

// Delete removes the document. On revisioned models this is a soft
// delete flagging the current revision; otherwise the row is removed.
func (i *Instance) Delete(ctx context.Context, opts ...ExecOption) error {
	return i.model.delete(ctx, i, execConn(i.model, opts))
}
