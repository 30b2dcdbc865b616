package charts

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest is matched by every ValidationError
var ErrInvalidRequest = errors.New("invalid chart request")

// ValidationError reports a chart request that cannot be resolved against
// the current dataset. Nothing has been transformed when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrInvalidRequest) true for validation errors
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
