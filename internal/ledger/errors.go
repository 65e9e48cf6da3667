package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrEntryUnbalanced indicates an entry whose credit and debit legs differ.
	ErrEntryUnbalanced = errors.New("ledger: entry does not balance")
	// ErrChargeNotFound indicates a missing charge.
	ErrChargeNotFound = errors.New("ledger: charge not found")
	// ErrUnsupportedChargeType indicates no generator is registered for the charge type.
	ErrUnsupportedChargeType = errors.New("ledger: unsupported charge type")
)

// CommonError is a domain failure rendered to callers as data rather than a crash.
type CommonError struct {
	Message string `json:"message"`
}

// Error implements error.
func (e *CommonError) Error() string {
	return e.Message
}

// MarshalJSON tags the payload the way resolvers expect it.
func (e *CommonError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Typename string `json:"__typename"`
		Message  string `json:"message"`
	}{Typename: "CommonError", Message: e.Message})
}

// NewCommonError formats a CommonError.
func NewCommonError(format string, args ...any) *CommonError {
	return &CommonError{Message: fmt.Sprintf(format, args...)}
}

// AsCommonError unwraps a CommonError from err.
func AsCommonError(err error) (*CommonError, bool) {
	var ce *CommonError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
