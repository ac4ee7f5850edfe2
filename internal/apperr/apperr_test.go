package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorUnwrapsToKind(t *testing.T) {
	err := fmt.Errorf("confirm appointment: %w", New(ErrConflict, "slot taken"))

	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, "confirm appointment: slot taken", err.Error())
}

func TestFieldsOf(t *testing.T) {
	err := fmt.Errorf("request: %w", Validation(map[string]string{"provider_id": "provider_id is required"}))

	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "provider_id is required", FieldsOf(err)["provider_id"])
	assert.Nil(t, FieldsOf(errors.New("plain")))
}

func TestNewf(t *testing.T) {
	err := Newf(ErrInvalidState, "cannot %s an appointment in state %s", "complete", "cancelled")
	assert.Equal(t, "cannot complete an appointment in state cancelled", err.Error())
	assert.ErrorIs(t, err, ErrInvalidState)
}
