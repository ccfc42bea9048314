package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantCode    string
		wantRetries int
	}{
		{
			name:        "collaborator failure is retryable",
			err:         NewCollaboratorFailureError("calendar", errors.New("502")),
			wantCode:    "BOOKING_COLLABORATOR_FAILED",
			wantRetries: 2,
		},
		{
			name:        "invalid transition is fatal",
			err:         NewInvalidTransitionError("collecting", "confirm"),
			wantCode:    "BOOKING_INVALID_TRANSITION",
			wantRetries: 0,
		},
		{
			name:        "unmapped code falls back to raw code",
			err:         NewExtractionFailureError("email"),
			wantCode:    "EXTRACTION_FAILURE",
			wantRetries: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmn.Code)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)
			assert.Equal(t, string(tt.err.Code), bpmn.ToErrorVariables()["originalErrorCode"])
		})
	}
}

func TestAsStandardError(t *testing.T) {
	assert.Nil(t, AsStandardError(nil))

	cause := context.DeadlineExceeded
	wrapped := fmt.Errorf("classify: %w", NewClassifierTimeoutError(cause))

	stdErr := AsStandardError(wrapped)
	require.NotNil(t, stdErr)
	assert.Equal(t, ErrCodeClassifierTimeout, stdErr.Code)
	assert.True(t, errors.Is(wrapped, context.DeadlineExceeded))
	assert.True(t, IsCode(wrapped, ErrCodeClassifierTimeout))

	plain := AsStandardError(errors.New("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.False(t, plain.Retryable)
}

func TestUserMessage_NeverLeaksDetails(t *testing.T) {
	err := NewCollaboratorFailureError("persistence", errors.New("pq: duplicate key value violates unique constraint"))
	msg := UserMessage(err.Code)
	assert.NotContains(t, msg, "pq:")
	assert.Contains(t, msg, "try again")
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "UNDERSTANDING", GetErrorCategory(ErrCodeClassifierTimeout))
	assert.Equal(t, "INTEGRATION", GetErrorCategory(ErrCodeCollaboratorFailure))
	assert.Equal(t, "STORAGE", GetErrorCategory(ErrCodeStateStoreFailure))
	assert.Equal(t, "INVARIANT", GetErrorCategory(ErrCodeInvalidTransition))
	assert.Equal(t, "UNKNOWN", GetErrorCategory(ErrorCode("SOMETHING")))
	assert.True(t, IsRetryableErrorCode(ErrCodeLockTimeout))
}
