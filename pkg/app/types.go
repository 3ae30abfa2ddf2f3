package app

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// SlotTarget represents slot selection across commands
type SlotTarget struct {
	Suffix string
}

// Validate ensures the slot suffix can be appended to partition names
func (st *SlotTarget) Validate() error {
	if !utf8.ValidString(st.Suffix) || strings.ContainsRune(st.Suffix, 0) {
		return fmt.Errorf("slot suffix %q is not a valid string", st.Suffix)
	}
	if strings.ContainsAny(st.Suffix, `/\`) {
		return fmt.Errorf("slot suffix %q contains a path separator", st.Suffix)
	}
	return nil
}

// IsEmpty returns true for devices without A/B slots
func (st *SlotTarget) IsEmpty() bool {
	return st.Suffix == ""
}

// String returns a string representation of the slot target
func (st *SlotTarget) String() string {
	if st.IsEmpty() {
		return "no slot suffix"
	}
	return "slot " + st.Suffix
}

// CommonError represents application-level errors
type CommonError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CommonError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CommonError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeDeviceAccess       = "DEVICE_ACCESS"
	ErrCodeImageAccess        = "IMAGE_ACCESS"
	ErrCodeVerificationFailed = "VERIFICATION_FAILED"
	ErrCodeNotFound           = "NOT_FOUND"
)

// NewError creates a new CommonError
func NewError(code, message string, cause error) *CommonError {
	return &CommonError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
