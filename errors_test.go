package folio

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	cause := fmt.Errorf("value exceeds maximum length of 128")
	err := NewValidationError("displayName", cause)

	assert.True(t, IsValidationError(err))
	assert.ErrorContains(t, err, `"displayName"`)
	assert.Equal(t, cause, errors.Unwrap(err))

	wrapped := fmt.Errorf("saving user: %w", err)
	assert.True(t, IsValidationError(wrapped))
	var ve *ValidationError
	require.ErrorAs(t, wrapped, &ve)
	assert.Equal(t, "displayName", ve.Path)
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundErrorWithID("user", "b3d9")

	assert.True(t, IsNotFound(err))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "user", err.Label())
	assert.Equal(t, "b3d9", err.ID())
	assert.ErrorContains(t, err, "user not found (id=b3d9)")

	plain := NewNotFoundError("team")
	assert.ErrorContains(t, plain, "team not found")
	assert.Nil(t, plain.ID())

	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(errors.New("boom")))
}

func TestConstraintError(t *testing.T) {
	cause := errors.New("duplicate key value")
	err := NewConstraintError("users_email_key", cause)

	assert.True(t, IsConstraintError(err))
	assert.Equal(t, "users_email_key", err.Constraint())
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.ErrorContains(t, err, `constraint "users_email_key" violated`)

	anon := NewConstraintError("", cause)
	assert.ErrorContains(t, anon, "constraint violated")
}

func TestConnectionError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewConnectionError("query", cause)

	assert.True(t, IsConnectionError(err))
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.ErrorContains(t, err, "connection failed (query)")

	assert.False(t, IsConnectionError(NewNotFoundError("user")))
}

func TestRollbackError(t *testing.T) {
	cause := errors.New("broken pipe")
	err := &RollbackError{Err: cause}
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.ErrorContains(t, err, "rollback failed")
}
