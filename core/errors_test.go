package core

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsValidation(t *testing.T) {
	vErr := NewValidationError(errors.New("blank query"), FieldError{Field: "messages", Error: "blank query"})

	assert.True(t, IsValidation(vErr))
	assert.True(t, IsValidation(errors.Wrap(vErr, "binding request")))
	assert.False(t, IsValidation(errors.New("blank query")))
	assert.False(t, IsValidation(nil))
	assert.Equal(t, "blank query", vErr.Error())
}
