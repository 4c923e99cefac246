package chain

import "fmt"

// ParseError reports a provider or upload document that cannot be mapped to
// the snapshot model. Field names the offending field.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("chain parse: field %q: %s", e.Field, e.Reason)
}

func parseErrorf(field, format string, args ...any) *ParseError {
	return &ParseError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
