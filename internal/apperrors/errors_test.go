package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorFormatting(t *testing.T) {
	assert.Equal(t, "not_found: recipe not found", New(CodeNotFound, "recipe not found").Error())

	cause := errors.New("connection reset")
	err := Wrap(cause, CodeInternal, "load recipe failed")
	assert.Equal(t, "internal: load recipe failed: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)

	var nilErr *AppError
	assert.Equal(t, "<nil>", nilErr.Error())
}

func TestWrapNilCause(t *testing.T) {
	err := Wrap(nil, CodeConflict, "slug taken")
	assert.Nil(t, err.Err)
	assert.Equal(t, CodeConflict, err.Code)
}

func TestCodeOfThroughWrapping(t *testing.T) {
	base := New(CodeConflict, "slug taken").WithMeta("slug", "pancakes")
	wrapped := fmt.Errorf("create recipe: %w", base)

	assert.Equal(t, CodeConflict, CodeOf(wrapped))
	assert.True(t, IsCode(wrapped, CodeConflict))
	assert.False(t, IsCode(wrapped, CodeNotFound))
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("plain")))
	assert.Equal(t, "pancakes", base.Meta["slug"])
}
