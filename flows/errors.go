package flows

import "fmt"

// ParseError reports a malformed key, value, or filter expression. Parse
// errors surface at specification registration; the specification is
// rejected wholesale.
type ParseError struct {
	What string // "key", "value", or "filter"
	Expr string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("bad %s expression %q: %s", e.What, e.Expr, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError reports a semantically invalid specification (disallowed
// IPFIX field, bad numeric range, missing required field).
type ValidationError struct {
	Name string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid specification %q: %s", e.Name, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
