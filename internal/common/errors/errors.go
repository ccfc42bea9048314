package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type ErrorCode string

const (
	// Turn level conditions, recovered inside the conversation
	ErrCodeExtractionFailure     ErrorCode = "EXTRACTION_FAILURE"
	ErrCodeUnresolvedDateTime    ErrorCode = "UNRESOLVED_DATETIME"
	ErrCodeClassifierTimeout     ErrorCode = "CLASSIFIER_TIMEOUT"
	ErrCodeClassifierUnavailable ErrorCode = "CLASSIFIER_UNAVAILABLE"
	ErrCodeCollaboratorFailure   ErrorCode = "COLLABORATOR_FAILURE"
	ErrCodeRAGUnavailable        ErrorCode = "RAG_UNAVAILABLE"

	// Internal faults
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeStateStoreFailure ErrorCode = "STATE_STORE_FAILURE"
	ErrCodeLockTimeout       ErrorCode = "LOCK_TIMEOUT"

	// Job level
	ErrCodeInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrCodeDatabaseQueryFailed ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodeExternalService     ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout             ErrorCode = "TIMEOUT"
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotificationFailed  ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeResourceNotFound    ErrorCode = "RESOURCE_NOT_FOUND"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func NewExtractionFailureError(slot string) *StandardError {
	e := newError(ErrCodeExtractionFailure, "Extracted value failed validation", nil, false)
	e.Details = fmt.Sprintf("slot: %s", slot)
	return e
}

func NewUnresolvedDateTimeError(phrase string) *StandardError {
	e := newError(ErrCodeUnresolvedDateTime, "Date or time could not be resolved", nil, false)
	e.Details = fmt.Sprintf("phrase length: %d", len(phrase))
	return e
}

func NewClassifierTimeoutError(err error) *StandardError {
	return newError(ErrCodeClassifierTimeout, "Intent classification timed out", err, true)
}

func NewClassifierUnavailableError(err error) *StandardError {
	return newError(ErrCodeClassifierUnavailable, "Intent classification unavailable", err, true)
}

func NewCollaboratorFailureError(collaborator string, err error) *StandardError {
	e := newError(ErrCodeCollaboratorFailure, "Booking collaborator call failed", err, true)
	e.Metadata = map[string]interface{}{"collaborator": collaborator}
	return e
}

func NewRAGUnavailableError(err error) *StandardError {
	return newError(ErrCodeRAGUnavailable, "Answer engine unavailable", err, true)
}

func NewInvalidTransitionError(from, action string) *StandardError {
	e := newError(ErrCodeInvalidTransition, "Invalid booking state transition", nil, false)
	e.Details = fmt.Sprintf("phase %s does not allow %s", from, action)
	return e
}

func NewStateStoreFailureError(err error) *StandardError {
	return newError(ErrCodeStateStoreFailure, "Conversation state store error", err, true)
}

func NewLockTimeoutError(conversationID string, err error) *StandardError {
	e := newError(ErrCodeLockTimeout, "Conversation is busy", err, true)
	e.Metadata = map[string]interface{}{"conversationId": conversationID}
	return e
}

func NewInvalidInputError(details string) *StandardError {
	e := newError(ErrCodeInvalidInput, "Invalid job input", nil, false)
	e.Details = details
	return e
}

func NewDatabaseQueryFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseQueryFailed, "Database query failed", err, true)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service %s failed", service), err, true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Timeout calling %s", service), err, true)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	e := newError(ErrCodeResourceNotFound, fmt.Sprintf("Resource not found in %s", service), nil, false)
	e.Details = details
	return e
}

func NewNotificationFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationFailed, fmt.Sprintf("Failed to send %s notification", channel), err, true)
}

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeClassifierTimeout:     "CLASSIFIER_TIMEOUT",
	ErrCodeClassifierUnavailable: "CLASSIFIER_UNAVAILABLE",
	ErrCodeCollaboratorFailure:   "BOOKING_COLLABORATOR_FAILED",
	ErrCodeInvalidTransition:     "BOOKING_INVALID_TRANSITION",
	ErrCodeStateStoreFailure:     "STATE_STORE_FAILED",
	ErrCodeLockTimeout:           "CONVERSATION_BUSY",
	ErrCodeInvalidInput:          "INVALID_INPUT",
	ErrCodeDatabaseQueryFailed:   "DATABASE_QUERY_FAILED",
	ErrCodeExternalService:       "EXTERNAL_SERVICE_ERROR",
	ErrCodeTimeout:               "TIMEOUT",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStateStoreFailure, ErrCodeDatabaseQueryFailed, ErrCodeExternalService:
		return 3
	case ErrCodeLockTimeout, ErrCodeTimeout, ErrCodeClassifierTimeout, ErrCodeCollaboratorFailure:
		return 2
	case ErrCodeClassifierUnavailable, ErrCodeRAGUnavailable, ErrCodeNotificationFailed:
		return 1
	}
	return 0
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// AsStandardError finds a StandardError in the chain or wraps err as an internal error
func AsStandardError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err, false)
}

func IsCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return errors.As(err, &stdErr) && stdErr.Code == code
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CLASSIFIER") || strings.Contains(codeStr, "EXTRACTION") || strings.Contains(codeStr, "DATETIME"):
		return "UNDERSTANDING"
	case strings.Contains(codeStr, "COLLABORATOR") || strings.Contains(codeStr, "RAG") || strings.Contains(codeStr, "EXTERNAL"):
		return "INTEGRATION"
	case strings.Contains(codeStr, "STATE") || strings.Contains(codeStr, "LOCK") || strings.Contains(codeStr, "DATABASE"):
		return "STORAGE"
	case strings.Contains(codeStr, "TRANSITION"):
		return "INVARIANT"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INPUT"):
		return "VALIDATION"
	}
	return "UNKNOWN"
}

// UserMessage is the only text about a failure that may reach the end user
func UserMessage(code ErrorCode) string {
	switch code {
	case ErrCodeClassifierTimeout, ErrCodeClassifierUnavailable:
		return "Sorry, I didn't quite catch that. Could you say it again?"
	case ErrCodeCollaboratorFailure:
		return "I couldn't finish the booking just now. Please reply \"yes\" to try again."
	case ErrCodeRAGUnavailable:
		return "I couldn't look that up right now. Please try asking again in a moment."
	case ErrCodeLockTimeout:
		return "I'm still working on your previous message. Please try again in a moment."
	}
	return "Something went wrong on my side. Please try again."
}
