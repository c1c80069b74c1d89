package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsCodeAndMatches(t *testing.T) {
	clone := Clone(ErrInvalidStateTransition, "transfer request already APPROVED")

	assert.Equal(t, "INVALID_STATE_TRANSITION", clone.Code)
	assert.Equal(t, http.StatusConflict, clone.Status)
	assert.True(t, stdErrors.Is(clone, ErrInvalidStateTransition))
	assert.False(t, stdErrors.Is(clone, ErrConflict))
}

func TestHasCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("create assignment: %w", Clone(ErrOverlappingAssignment, ""))

	assert.True(t, HasCode(err, ErrOverlappingAssignment))
	assert.False(t, HasCode(err, ErrNotFound))
	assert.False(t, HasCode(nil, ErrNotFound))
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	cause := stdErrors.New("boom")
	appErr := FromError(cause)

	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.ErrorIs(t, appErr, cause)
	assert.Nil(t, FromError(nil))
}
