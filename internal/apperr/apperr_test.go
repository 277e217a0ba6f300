package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelMatchesByKind(t *testing.T) {
	err := NotFound("order %s not found", "order-1")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("start shift: %w", New(KindShiftConflict, "user 7 already has an open shift"))

	assert.True(t, errors.Is(err, ErrShiftConflict))
	assert.Equal(t, KindShiftConflict, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestErrorMessageListsViolations(t *testing.T) {
	err := &Error{
		Kind:    KindValidation,
		Message: "invalid item",
		Violations: []Violation{
			{Field: "quantity", Message: "must be positive"},
			{Field: "unit_price", Message: "must not be negative"},
		},
	}

	assert.Equal(t, "invalid item (quantity: must be positive; unit_price: must not be negative)", err.Error())
	assert.Len(t, ViolationsOf(err), 2)
}

func TestPersistenceUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := Persistence(cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrPersistence))
}
