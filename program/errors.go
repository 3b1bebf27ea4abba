package program

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Transition errors
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeAlreadyVoted  Code = "ALREADY_VOTED"
	CodeNotOwner      Code = "NOT_OWNER"
	CodeTallyOverflow Code = "TALLY_OVERFLOW"

	// Envelope and account errors
	CodeMissingSignature      Code = "MISSING_SIGNATURE"
	CodeInvalidSignature      Code = "INVALID_SIGNATURE"
	CodeAccountNotInitialized Code = "ACCOUNT_NOT_INITIALIZED"
	CodeAccountKindMismatch   Code = "ACCOUNT_KIND_MISMATCH"
	CodeAddressMismatch       Code = "ADDRESS_MISMATCH"
	CodeInvalidInstruction    Code = "INVALID_INSTRUCTION"
)

// HTTPStatus maps a code to the status the API answers with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeAlreadyExists, CodeAlreadyVoted, CodeTallyOverflow:
		return http.StatusConflict
	case CodeNotOwner:
		return http.StatusForbidden
	case CodeMissingSignature, CodeInvalidSignature:
		return http.StatusUnauthorized
	case CodeAccountNotInitialized:
		return http.StatusNotFound
	case CodeAccountKindMismatch, CodeAddressMismatch, CodeInvalidInstruction:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a rejection carrying a Code. Two errors match under errors.Is
// when their codes are equal.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

var (
	ErrAlreadyExists = newError(CodeAlreadyExists, "account already exists")
	ErrAlreadyVoted  = newError(CodeAlreadyVoted, "Voter has already voted")
	ErrNotOwner      = newError(CodeNotOwner, "Voter is not the owner")
	ErrTallyOverflow = newError(CodeTallyOverflow, "candidate tally is at its maximum")
)

// Reject builds a coded error with a custom message.
func Reject(code Code, message string) *Error {
	return newError(code, message)
}

// CodeOf extracts the code of err, or CodeUnknown.
func CodeOf(err error) Code {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Code
	}
	return CodeUnknown
}
