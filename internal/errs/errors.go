// Package errs defines the error taxonomy shared across the pipeline.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound signals a lookup by id or pid with no match.
	ErrNotFound = errors.New("not found")

	// ErrDuplicatePID signals a registration conflict on an already
	// registered external pid.
	ErrDuplicatePID = errors.New("pid already registered")
)

// ValidationError reports a malformed ingest payload, naming the offending
// fields. Surfaced as a 400 on the request path; logged and dropped on the
// real-time inbound path.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Fields, ", "))
}

// AsValidation unwraps err into a *ValidationError if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
