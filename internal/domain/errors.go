package domain

import "fmt"

// Error is the single error type the plan execution core raises. It
// mirrors the teacher's DomainError: a stable code plus a human message
// plus an optional wrapped cause, so callers can switch on Code without
// parsing strings.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an *Error with the given code/message/cause.
func NewError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// Error codes. Grouped by the taxonomy of spec.md §7.
const (
	// Parse-time / finalize-time errors (unwind the parser or abort
	// finalizeConditions; never seen by the scheduler).
	ErrCodeParseError            = "PARSE_ERROR"
	ErrCodeDuplicateName         = "DUPLICATE_NAME"
	ErrCodeMissingInVariable     = "MISSING_IN_VARIABLE"
	ErrCodeMissingInOutVariable  = "MISSING_INOUT_VARIABLE"
	ErrCodeInOutNotAssignable    = "INOUT_NOT_ASSIGNABLE"
	ErrCodeTypeMismatch          = "TYPE_MISMATCH"
	ErrCodeUnresolvedLibraryCall = "UNRESOLVED_LIBRARY_CALL"

	// Runtime errors: recorded on the offending node, never thrown across
	// the scheduler boundary.
	ErrCodeRuntimeInvariant  = "RUNTIME_INVARIANT_VIOLATION"
	ErrCodeAssignmentConflict = "ASSIGNMENT_CONFLICT"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInvalidState      = "INVALID_STATE"
)
