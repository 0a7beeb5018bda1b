package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(NotFound("teacher", "T1")))
	assert.Equal(t, CodeValidation, CodeOf(InvalidInput("status", "unknown")))
	assert.Equal(t, CodeDuplicate, CodeOf(Duplicate("already pending")))
	assert.Equal(t, CodeInvalidState, CodeOf(InvalidState("already APPROVED")))
	assert.Equal(t, CodeApplyFailed, CodeOf(ApplyFailed(errors.New("boom"), "apply failed")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestCodeOfWrappedChain(t *testing.T) {
	inner := Duplicate("already pending")
	wrapped := fmt.Errorf("propose: %w", inner)
	assert.Equal(t, CodeDuplicate, CodeOf(wrapped))
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("row missing")
	err := ApplyFailed(cause, "failed to remove entity")
	assert.ErrorIs(t, err, cause)
}

func TestMessage(t *testing.T) {
	assert.Equal(t, `teacher "T1" not found`, Message(NotFound("teacher", "T1")))
	assert.Equal(t, "plain", Message(errors.New("plain")))
}
