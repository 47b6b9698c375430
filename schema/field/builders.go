package field

import (
	"fmt"
	"time"
)

// StringBuilder builds string field descriptors.
type StringBuilder struct {
	desc *Descriptor
}

// String returns a new string field with the given camelCase name.
func String(name string) *StringBuilder {
	return &StringBuilder{desc: &Descriptor{Name: name, Type: TypeString}}
}

// MaxLen limits the string length, counted in runes.
func (b *StringBuilder) MaxLen(n int) *StringBuilder {
	b.desc.MaxLen = n
	return b
}

// Required rejects nil values at construction and on Set.
func (b *StringBuilder) Required() *StringBuilder {
	b.desc.Required = true
	return b
}

// Enum restricts the value to one of the given strings.
func (b *StringBuilder) Enum(vs ...string) *StringBuilder {
	b.desc.Enum = vs
	return b
}

// Email requires the value to look like an email address.
func (b *StringBuilder) Email() *StringBuilder {
	b.desc.Email = true
	return b
}

// Sensitive excludes the column from default projections.
func (b *StringBuilder) Sensitive() *StringBuilder {
	b.desc.Sensitive = true
	return b
}

// Default sets a static default value.
func (b *StringBuilder) Default(v string) *StringBuilder {
	b.desc.Default = v
	return b
}

// DefaultFunc sets a default value factory.
func (b *StringBuilder) DefaultFunc(fn func() string) *StringBuilder {
	b.desc.DefaultFunc = func() any { return fn() }
	return b
}

// Validate appends a custom validator, run after the built-in checks.
func (b *StringBuilder) Validate(fn func(string) error) *StringBuilder {
	b.desc.Validators = append(b.desc.Validators, func(v any) error {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
		return fn(s)
	})
	return b
}

// Column overrides the derived column name.
func (b *StringBuilder) Column(name string) *StringBuilder {
	b.desc.Column = name
	return b
}

// Descriptor returns the built descriptor.
func (b *StringBuilder) Descriptor() *Descriptor { return b.desc }

// UUIDBuilder builds UUID field descriptors.
type UUIDBuilder struct {
	desc *Descriptor
}

// UUID returns a new UUID field. A version of 0 accepts any UUID version.
func UUID(name string, version int) *UUIDBuilder {
	return &UUIDBuilder{desc: &Descriptor{Name: name, Type: TypeUUID, UUIDVersion: version}}
}

// Required rejects nil values.
func (b *UUIDBuilder) Required() *UUIDBuilder {
	b.desc.Required = true
	return b
}

// DefaultFunc sets a default value factory, typically uuid.NewString.
func (b *UUIDBuilder) DefaultFunc(fn func() string) *UUIDBuilder {
	b.desc.DefaultFunc = func() any { return fn() }
	return b
}

// Column overrides the derived column name.
func (b *UUIDBuilder) Column(name string) *UUIDBuilder {
	b.desc.Column = name
	return b
}

// Descriptor returns the built descriptor.
func (b *UUIDBuilder) Descriptor() *Descriptor { return b.desc }

// NumberBuilder builds numeric field descriptors.
type NumberBuilder struct {
	desc *Descriptor
}

// Number returns a new numeric field with the given camelCase name.
func Number(name string) *NumberBuilder {
	return &NumberBuilder{desc: &Descriptor{Name: name, Type: TypeNumber}}
}

// Min sets the lower bound.
func (b *NumberBuilder) Min(v float64) *NumberBuilder {
	b.desc.MinValue = &v
	return b
}

// Max sets the upper bound.
func (b *NumberBuilder) Max(v float64) *NumberBuilder {
	b.desc.MaxValue = &v
	return b
}

// Required rejects nil values.
func (b *NumberBuilder) Required() *NumberBuilder {
	b.desc.Required = true
	return b
}

// Sensitive excludes the column from default projections.
func (b *NumberBuilder) Sensitive() *NumberBuilder {
	b.desc.Sensitive = true
	return b
}

// Default sets a static default value.
func (b *NumberBuilder) Default(v float64) *NumberBuilder {
	b.desc.Default = v
	return b
}

// Validate appends a custom validator.
func (b *NumberBuilder) Validate(fn func(float64) error) *NumberBuilder {
	b.desc.Validators = append(b.desc.Validators, func(v any) error {
		f, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("expected number, got %T", v)
		}
		return fn(f)
	})
	return b
}

// Column overrides the derived column name.
func (b *NumberBuilder) Column(name string) *NumberBuilder {
	b.desc.Column = name
	return b
}

// Descriptor returns the built descriptor.
func (b *NumberBuilder) Descriptor() *Descriptor { return b.desc }

// BoolBuilder builds boolean field descriptors.
type BoolBuilder struct {
	desc *Descriptor
}

// Boolean returns a new boolean field with the given camelCase name.
func Boolean(name string) *BoolBuilder {
	return &BoolBuilder{desc: &Descriptor{Name: name, Type: TypeBool}}
}

// Required rejects nil values.
func (b *BoolBuilder) Required() *BoolBuilder {
	b.desc.Required = true
	return b
}

// Default sets a static default value.
func (b *BoolBuilder) Default(v bool) *BoolBuilder {
	b.desc.Default = v
	return b
}

// Column overrides the derived column name.
func (b *BoolBuilder) Column(name string) *BoolBuilder {
	b.desc.Column = name
	return b
}

// Descriptor returns the built descriptor.
func (b *BoolBuilder) Descriptor() *Descriptor { return b.desc }

// DateBuilder builds date field descriptors.
type DateBuilder struct {
	desc *Descriptor
}

// Date returns a new date field with the given camelCase name.
func Date(name string) *DateBuilder {
	return &DateBuilder{desc: &Descriptor{Name: name, Type: TypeDate}}
}

// Required rejects nil values.
func (b *DateBuilder) Required() *DateBuilder {
	b.desc.Required = true
	return b
}

// DefaultFunc sets a default value factory, typically time.Now.
func (b *DateBuilder) DefaultFunc(fn func() time.Time) *DateBuilder {
	b.desc.DefaultFunc = func() any { return fn() }
	return b
}

// Column overrides the derived column name.
func (b *DateBuilder) Column(name string) *DateBuilder {
	b.desc.Column = name
	return b
}

// Descriptor returns the built descriptor.
func (b *DateBuilder) Descriptor() *Descriptor { return b.desc }

// ArrayBuilder builds array field descriptors.
type ArrayBuilder struct {
	desc *Descriptor
}

// Array returns a new array field whose elements are validated against
// the given element descriptor. Arrays are stored as jsonb unless Text
// is called.
func Array(name string, elem *Descriptor) *ArrayBuilder {
	b := &ArrayBuilder{desc: &Descriptor{Name: name, Type: TypeArray, Elem: elem}}
	if elem == nil {
		b.desc.Err = fmt.Errorf("field %q: array requires an element descriptor", name)
	}
	return b
}

// MaxItems limits the number of elements.
func (b *ArrayBuilder) MaxItems(n int) *ArrayBuilder {
	b.desc.MaxLen = n
	return b
}

// Required rejects nil values.
func (b *ArrayBuilder) Required() *ArrayBuilder {
	b.desc.Required = true
	return b
}

// Text stores the array in a text[] column instead of jsonb. Only
// string-element arrays can be stored this way.
func (b *ArrayBuilder) Text() *ArrayBuilder {
	if b.desc.Elem != nil && b.desc.Elem.Type != TypeString {
		b.desc.Err = fmt.Errorf("field %q: text[] storage requires string elements", b.desc.Name)
		return b
	}
	b.desc.TextArray = true
	return b
}

// Default sets a static default value.
func (b *ArrayBuilder) Default(v []string) *ArrayBuilder {
	b.desc.Default = v
	return b
}

// Validate appends a custom validator over the whole array value.
func (b *ArrayBuilder) Validate(fn func(any) error) *ArrayBuilder {
	b.desc.Validators = append(b.desc.Validators, fn)
	return b
}

// Column overrides the derived column name.
func (b *ArrayBuilder) Column(name string) *ArrayBuilder {
	b.desc.Column = name
	return b
}

// Descriptor returns the built descriptor.
func (b *ArrayBuilder) Descriptor() *Descriptor { return b.desc }

// ObjectBuilder builds object (jsonb) field descriptors.
type ObjectBuilder struct {
	desc *Descriptor
}

// Object returns a new object field, stored as a jsonb column.
func Object(name string) *ObjectBuilder {
	return &ObjectBuilder{desc: &Descriptor{Name: name, Type: TypeObject}}
}

// Required rejects nil values.
func (b *ObjectBuilder) Required() *ObjectBuilder {
	b.desc.Required = true
	return b
}

// Sensitive excludes the column from default projections.
func (b *ObjectBuilder) Sensitive() *ObjectBuilder {
	b.desc.Sensitive = true
	return b
}

// Validate appends a custom validator over the whole object value.
func (b *ObjectBuilder) Validate(fn func(any) error) *ObjectBuilder {
	b.desc.Validators = append(b.desc.Validators, fn)
	return b
}

// Column overrides the derived column name.
func (b *ObjectBuilder) Column(name string) *ObjectBuilder {
	b.desc.Column = name
	return b
}

// Descriptor returns the built descriptor.
func (b *ObjectBuilder) Descriptor() *Descriptor { return b.desc }

// VirtualBuilder builds virtual field descriptors.
type VirtualBuilder struct {
	desc *Descriptor
}

// Virtual returns a new virtual field computed by fn. Virtual fields
// are never persisted and never appear in generated SQL. The compute
// function receives the owning instance's values keyed by camelCase
// field name.
func Virtual(name string, fn ComputeFunc) *VirtualBuilder {
	b := &VirtualBuilder{desc: &Descriptor{Name: name, Type: TypeVirtual, Compute: fn}}
	if fn == nil {
		b.desc.Err = fmt.Errorf("field %q: virtual requires a compute function", name)
	}
	return b
}

// Descriptor returns the built descriptor.
func (b *VirtualBuilder) Descriptor() *Descriptor { return b.desc }
