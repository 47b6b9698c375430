package field

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio-db/folio"
)

func TestStringValidate(t *testing.T) {
	fd := String("displayName").MaxLen(5).Descriptor()

	assert.NoError(t, fd.Validate("Ada", "displayName"))
	assert.NoError(t, fd.Validate(nil, "displayName"))

	err := fd.Validate("too long for sure", "displayName")
	require.Error(t, err)
	assert.True(t, folio.IsValidationError(err))
	assert.ErrorContains(t, err, "maximum length")

	err = fd.Validate(42, "displayName")
	assert.ErrorContains(t, err, "expected string")
}

func TestStringMaxLenCountsRunes(t *testing.T) {
	fd := String("title").MaxLen(4).Descriptor()
	// 4 runes, more than 4 bytes.
	assert.NoError(t, fd.Validate("日本語で", "title"))
	assert.Error(t, fd.Validate("日本語です", "title"))
}

func TestStringEnum(t *testing.T) {
	fd := String("role").Enum("member", "moderator").Descriptor()
	assert.NoError(t, fd.Validate("member", "role"))
	assert.ErrorContains(t, fd.Validate("admin", "role"), "not one of")
}

func TestStringEmail(t *testing.T) {
	fd := String("email").Email().Descriptor()
	assert.NoError(t, fd.Validate("ada@example.com", "email"))
	assert.Error(t, fd.Validate("not-an-email", "email"))
	assert.Error(t, fd.Validate("a@b", "email"))
}

func TestRequired(t *testing.T) {
	fd := String("displayName").Required().Descriptor()
	err := fd.Validate(nil, "displayName")
	require.Error(t, err)
	assert.True(t, folio.IsValidationError(err))
	assert.ErrorContains(t, err, "required")
}

func TestUUIDValidate(t *testing.T) {
	anyVersion := UUID("id", 0).Descriptor()
	assert.NoError(t, anyVersion.Validate(uuid.NewString(), "id"))
	assert.Error(t, anyVersion.Validate("not-a-uuid", "id"))

	v4 := UUID("id", 4).Descriptor()
	assert.NoError(t, v4.Validate(uuid.NewString(), "id"))
	// A v1-style UUID fails the version check.
	assert.ErrorContains(t, v4.Validate("6ba7b810-9dad-11d1-80b4-00c04fd430c8", "id"), "version")
}

func TestNumberBounds(t *testing.T) {
	fd := Number("starRating").Min(1).Max(5).Descriptor()

	assert.NoError(t, fd.Validate(3, "starRating"))
	assert.NoError(t, fd.Validate(5.0, "starRating"))
	assert.ErrorContains(t, fd.Validate(0, "starRating"), "below minimum")
	assert.ErrorContains(t, fd.Validate(5.5, "starRating"), "above maximum")
	assert.ErrorContains(t, fd.Validate("3", "starRating"), "expected number")
}

func TestBoolAndDate(t *testing.T) {
	b := Boolean("isTrusted").Descriptor()
	assert.NoError(t, b.Validate(true, "isTrusted"))
	assert.Error(t, b.Validate("yes", "isTrusted"))

	d := Date("registrationDate").Descriptor()
	assert.NoError(t, d.Validate(time.Now(), "registrationDate"))
	assert.Error(t, d.Validate("2026-08-25", "registrationDate"))
}

func TestArrayValidate(t *testing.T) {
	fd := Array("tags", String("tag").MaxLen(3).Descriptor()).MaxItems(2).Descriptor()

	assert.NoError(t, fd.Validate([]string{"ab", "cd"}, "tags"))
	assert.ErrorContains(t, fd.Validate([]string{"a", "b", "c"}, "tags"), "maximum of 2 items")
	assert.Error(t, fd.Validate("ab", "tags"))

	err := fd.Validate([]string{"ab", "toolong"}, "tags")
	require.Error(t, err)
	var ve *folio.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "tags[1]", ve.Path)
}

func TestTextArrayRequiresStringElements(t *testing.T) {
	ok := Array("tags", String("tag").Descriptor()).Text().Descriptor()
	assert.NoError(t, ok.Err)
	assert.True(t, ok.TextArray)

	bad := Array("scores", Number("score").Descriptor()).Text().Descriptor()
	assert.ErrorContains(t, bad.Err, "string elements")
}

func TestObjectValidate(t *testing.T) {
	fd := Object("settings").Descriptor()
	assert.NoError(t, fd.Validate(map[string]any{"theme": "dark"}, "settings"))
	assert.NoError(t, fd.Validate(map[string]string{"en": "hi"}, "settings"))
	assert.Error(t, fd.Validate([]string{"nope"}, "settings"))
}

func TestVirtualRejectsAssignment(t *testing.T) {
	fd := Virtual("urlName", func(values map[string]any) any {
		return values["displayName"]
	}).Descriptor()

	assert.False(t, fd.Type.Persisted())
	err := fd.Validate("anything", "urlName")
	assert.ErrorContains(t, err, "virtual field cannot be assigned")

	assert.Error(t, Virtual("broken", nil).Descriptor().Err)
}

func TestCustomValidator(t *testing.T) {
	fd := String("handle").Validate(func(s string) error {
		if s == "root" {
			return errors.New("reserved handle")
		}
		return nil
	}).Descriptor()

	assert.NoError(t, fd.Validate("ada", "handle"))
	err := fd.Validate("root", "handle")
	assert.True(t, folio.IsValidationError(err))
	assert.ErrorContains(t, err, "reserved handle")
}

func TestDefaultValue(t *testing.T) {
	static := Boolean("isTrusted").Default(false).Descriptor()
	v, ok := static.DefaultValue()
	require.True(t, ok)
	assert.Equal(t, false, v)

	dynamic := UUID("id", 0).DefaultFunc(uuid.NewString).Descriptor()
	v, ok = dynamic.DefaultValue()
	require.True(t, ok)
	assert.NoError(t, dynamic.Validate(v, "id"))

	none := String("bio").Descriptor()
	_, ok = none.DefaultValue()
	assert.False(t, ok)
}
