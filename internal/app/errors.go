package app

import (
	"errors"
	"strings"
)

var (
	// ErrUnauthenticated gates every mutation behind a signed-in identity.
	ErrUnauthenticated = errors.New("sign in required")

	// ErrAlreadySubmitted marks the benign one-review-per-identity outcome,
	// including the two-tab race resolved by the store constraint.
	ErrAlreadySubmitted = errors.New("review already submitted")
)

// ValidationError is a field-level input failure. It is produced before any
// store interaction.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors aggregates one error per offending field.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Error())
	}
	return strings.Join(msgs, "; ")
}

// AsValidationErrors unwraps err into field-level errors, if it is one.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return verrs, true
	}
	return nil, false
}
