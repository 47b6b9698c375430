package schema

import "fmt"

// Cardinality of a relation: one related row or many.
type Cardinality uint8

// Relation cardinalities.
const (
	One Cardinality = iota + 1
	Many
)

// String returns the name of the cardinality.
func (c Cardinality) String() string {
	switch c {
	case One:
		return "one"
	case Many:
		return "many"
	}
	return fmt.Sprintf("invalid(%d)", uint8(c))
}

// Through describes the join table of a many-to-many relation. It
// names exactly two foreign keys: one pointing at the source table,
// one at the target.
type Through struct {
	Table    string
	SourceFK string
	TargetFK string
}

// Relation declares a join target for a schema. Direct relations name
// exactly one foreign key; through relations name exactly two on the
// join table. The target's revisioned flag drives the guards the query
// builder ANDs into the join condition.
type Relation struct {
	Name        string
	Target      *Schema
	ForeignKey  string // direct relations only
	OnTarget    bool   // the foreign key column lives on the target table
	Cardinality Cardinality
	Through     *Through
}

// BelongsTo declares a direct relation where the source table holds a
// foreign key to the target's primary key.
func BelongsTo(name string, target *Schema, fk string) *Relation {
	return &Relation{Name: name, Target: target, ForeignKey: fk, Cardinality: One}
}

// HasMany declares a direct relation where the target table holds a
// foreign key back to the source's primary key.
func HasMany(name string, target *Schema, fk string) *Relation {
	return &Relation{Name: name, Target: target, ForeignKey: fk, OnTarget: true, Cardinality: Many}
}

// ManyToMany declares a through-table relation.
func ManyToMany(name string, target *Schema, table, sourceFK, targetFK string) *Relation {
	return &Relation{
		Name:        name,
		Target:      target,
		Cardinality: Many,
		Through:     &Through{Table: table, SourceFK: sourceFK, TargetFK: targetFK},
	}
}

func (r *Relation) validate() error {
	if r.Name == "" || r.Target == nil {
		return fmt.Errorf("folio/schema: relation requires a name and a target")
	}
	if r.Cardinality != One && r.Cardinality != Many {
		return fmt.Errorf("folio/schema: relation %q: invalid cardinality", r.Name)
	}
	if r.Through != nil {
		if r.ForeignKey != "" {
			return fmt.Errorf("folio/schema: relation %q: through relations must not name a direct foreign key", r.Name)
		}
		if r.Through.Table == "" || r.Through.SourceFK == "" || r.Through.TargetFK == "" {
			return fmt.Errorf("folio/schema: relation %q: through relations name a table and exactly two foreign keys", r.Name)
		}
		return nil
	}
	if r.ForeignKey == "" {
		return fmt.Errorf("folio/schema: relation %q: direct relations name exactly one foreign key", r.Name)
	}
	return nil
}

// AddRelation registers a relation on the schema.
func (s *Schema) AddRelation(r *Relation) error {
	if r == nil {
		return fmt.Errorf("folio/schema: nil relation")
	}
	if err := r.validate(); err != nil {
		return err
	}
	if _, dup := s.relations[r.Name]; dup {
		return fmt.Errorf("folio/schema: %s: duplicate relation %q", s.name, r.Name)
	}
	s.relations[r.Name] = r
	return nil
}

// MustAddRelation is like AddRelation but panics on error.
func (s *Schema) MustAddRelation(r *Relation) *Schema {
	if err := s.AddRelation(r); err != nil {
		panic(err)
	}
	return s
}

// Relation returns the relation registered under the given name.
func (s *Schema) Relation(name string) (*Relation, bool) {
	r, ok := s.relations[name]
	return r, ok
}
