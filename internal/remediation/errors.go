package remediation

import "errors"

// Error is a fatal finding raised by a reader or validator.
//
// Validator names the check that failed (for example "necessary_column");
// Message is meant for humans.
type Error struct {
	Validator string
	Message   string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return "ERROR in " + e.Validator + " validator: " + e.Message
}

// ValidatorOf returns the failing validator name of err, or "" when err is
// not (and does not wrap) a *Error.
func ValidatorOf(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Validator
}
