// Package field provides fluent builders for typed field descriptors.
//
// A descriptor declares the semantic type of a domain field, its
// constraints, defaults, and custom validators. Descriptors are
// composed into a schema.Schema, which binds them to table columns.
//
// Example:
//
//	field.String("displayName").MaxLen(128).Required()
//	field.Bool("isTrusted").Default(false)
//	field.UUID("id", 4).DefaultFunc(uuid.NewString)
//	field.Virtual("urlName", computeURLName)
package field

import (
	"fmt"
	"reflect"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/folio-db/folio"
)

// A Type is the semantic type of a field.
type Type uint8

// Field types.
const (
	TypeInvalid Type = iota
	TypeString
	TypeNumber
	TypeBool
	TypeDate
	TypeUUID
	TypeArray
	TypeObject
	TypeVirtual
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeString:  "string",
	TypeNumber:  "number",
	TypeBool:    "boolean",
	TypeDate:    "date",
	TypeUUID:    "uuid",
	TypeArray:   "array",
	TypeObject:  "object",
	TypeVirtual: "virtual",
}

// String returns the name of the type.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("invalid(%d)", t)
}

// Persisted reports whether values of this type are stored in a column.
func (t Type) Persisted() bool {
	return t != TypeVirtual && t != TypeInvalid
}

// ComputeFunc computes a virtual field value. It receives a snapshot of
// the owning instance's values keyed by camelCase field name.
type ComputeFunc func(values map[string]any) any

// A Descriptor holds the metadata of a single field. Descriptors are
// built with the fluent constructors in this package and consumed by
// the schema package.
type Descriptor struct {
	Name        string             // camelCase field name
	Type        Type               // semantic type
	Column      string             // column name override; derived from Name if empty
	Elem        *Descriptor        // element descriptor for array fields
	MaxLen      int                // max string length / max array items (0 = unlimited)
	MinValue    *float64           // numeric lower bound
	MaxValue    *float64           // numeric upper bound
	Required    bool               // nil values are rejected
	Sensitive   bool               // excluded from default projections
	TextArray   bool               // stored as text[] instead of jsonb
	Email       bool               // string must look like an email address
	Enum        []string           // allowed string values
	UUIDVersion int                // required UUID version (0 = any)
	Default     any                // static default value
	DefaultFunc func() any         // default value factory
	Validators  []func(any) error  // custom validators, run after built-in checks
	Compute     ComputeFunc        // virtual compute function
	Err         error              // builder error, surfaced by schema.New
}

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// DefaultValue returns the default for this field, invoking the factory
// if one was registered. The second return is false if the field has no
// default.
func (d *Descriptor) DefaultValue() (any, bool) {
	if d.DefaultFunc != nil {
		return d.DefaultFunc(), true
	}
	if d.Default != nil {
		return d.Default, true
	}
	return nil, false
}

// Validate checks v against the descriptor's built-in constraints and
// then runs any custom validators. The path names the field in the
// returned ValidationError.
func (d *Descriptor) Validate(v any, path string) error {
	if d.Type == TypeVirtual {
		return folio.NewValidationError(path, fmt.Errorf("virtual field cannot be assigned"))
	}
	if v == nil {
		if d.Required {
			return folio.NewValidationError(path, fmt.Errorf("value is required"))
		}
		return nil
	}
	if err := d.validateTyped(v, path); err != nil {
		return err
	}
	for _, fn := range d.Validators {
		if err := fn(v); err != nil {
			return folio.NewValidationError(path, err)
		}
	}
	return nil
}

func (d *Descriptor) validateTyped(v any, path string) error {
	switch d.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return typeMismatch(path, "string", v)
		}
		if d.MaxLen > 0 && utf8.RuneCountInString(s) > d.MaxLen {
			return folio.NewValidationError(path, fmt.Errorf("value exceeds maximum length of %d", d.MaxLen))
		}
		if len(d.Enum) > 0 && !contains(d.Enum, s) {
			return folio.NewValidationError(path, fmt.Errorf("value %q is not one of %v", s, d.Enum))
		}
		if d.Email && !emailRe.MatchString(s) {
			return folio.NewValidationError(path, fmt.Errorf("value %q is not a valid email address", s))
		}
	case TypeUUID:
		s, ok := v.(string)
		if !ok {
			return typeMismatch(path, "uuid string", v)
		}
		u, err := uuid.Parse(s)
		if err != nil {
			return folio.NewValidationError(path, fmt.Errorf("value %q is not a valid UUID", s))
		}
		if d.UUIDVersion > 0 && int(u.Version()) != d.UUIDVersion {
			return folio.NewValidationError(path, fmt.Errorf("UUID version %d required, got %d", d.UUIDVersion, u.Version()))
		}
	case TypeNumber:
		f, ok := toFloat(v)
		if !ok {
			return typeMismatch(path, "number", v)
		}
		if d.MinValue != nil && f < *d.MinValue {
			return folio.NewValidationError(path, fmt.Errorf("value %v is below minimum %v", f, *d.MinValue))
		}
		if d.MaxValue != nil && f > *d.MaxValue {
			return folio.NewValidationError(path, fmt.Errorf("value %v is above maximum %v", f, *d.MaxValue))
		}
	case TypeBool:
		if _, ok := v.(bool); !ok {
			return typeMismatch(path, "boolean", v)
		}
	case TypeDate:
		if _, ok := v.(time.Time); !ok {
			return typeMismatch(path, "date", v)
		}
	case TypeArray:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice {
			return typeMismatch(path, "array", v)
		}
		if d.MaxLen > 0 && rv.Len() > d.MaxLen {
			return folio.NewValidationError(path, fmt.Errorf("array exceeds maximum of %d items", d.MaxLen))
		}
		if d.Elem != nil {
			for i := 0; i < rv.Len(); i++ {
				elem := rv.Index(i).Interface()
				if err := d.Elem.Validate(elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
					return err
				}
			}
		}
	case TypeObject:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
			return typeMismatch(path, "object", v)
		}
	default:
		return folio.NewValidationError(path, fmt.Errorf("unsupported field type %s", d.Type))
	}
	return nil
}

func typeMismatch(path, want string, got any) error {
	return folio.NewValidationError(path, fmt.Errorf("expected %s, got %T", want, got))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func contains(vs []string, s string) bool {
	for _, v := range vs {
		if v == s {
			return true
		}
	}
	return false
}
