package ledger

import (
	"errors"
	"fmt"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/mutation"
)

// Code classifies a ledger failure for callers.
type Code string

const (
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeNotAMember       Code = "NOT_A_MEMBER"
	CodeNotCreator       Code = "NOT_CREATOR"
	CodeNotAuthorized    Code = "NOT_AUTHORIZED"
	CodeNotFound         Code = "NOT_FOUND"
	CodeAlreadyDeleted   Code = "ALREADY_DELETED"
	CodeConcurrentUpdate Code = "CONCURRENT_UPDATE"
	CodeFatalData        Code = "FATAL_DATA_ERROR"
	CodeService          Code = "SERVICE_ERROR"
)

// Error is the typed failure returned by every Service operation.
type Error struct {
	Code Code

	// Field names the offending input for validation and membership
	// failures, using the request's snake_case field names.
	Field string

	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the code carried by err, or CodeService for anything that
// is not a *Error.
func CodeOf(err error) Code {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return CodeService
}

func invalid(field, format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func notAMember(field, userID, groupID string) *Error {
	return &Error{
		Code:    CodeNotAMember,
		Field:   field,
		Message: fmt.Sprintf("user %q is not a member of group %q", userID, groupID),
	}
}

// classify turns protocol, calculator and storage errors into a *Error.
func classify(err error) *Error {
	if err == nil {
		return nil
	}

	var le *Error
	if errors.As(err, &le) {
		return le
	}

	var splitErr *calculator.SplitError
	var dataErr *calculator.DataError
	switch {
	case errors.As(err, &splitErr):
		return &Error{Code: CodeValidation, Field: splitErr.Field, Message: splitErr.Reason, Err: err}
	case errors.As(err, &dataErr):
		// Fatal data errors are not actionable by the caller
		return &Error{Code: CodeFatalData, Message: "ledger data is corrupt", Err: err}
	case errors.Is(err, mutation.ErrNotFound):
		return &Error{Code: CodeNotFound, Message: err.Error(), Err: err}
	case errors.Is(err, mutation.ErrAlreadyDeleted):
		return &Error{Code: CodeAlreadyDeleted, Message: err.Error(), Err: err}
	case errors.Is(err, mutation.ErrConcurrentUpdate):
		return &Error{Code: CodeConcurrentUpdate, Message: err.Error(), Err: err}
	default:
		return &Error{Code: CodeService, Message: "storage unavailable, try again", Err: err}
	}
}
