package kernel

import (
	"errors"
	"fmt"
	"go/token"
)

// Transformation errors. They are reported at generation time: a kernel that
// triggers any of them cannot be mapped onto the host/device model.
var (
	ErrMalformedSignature     = errors.New("malformed signature")
	ErrMissingReturnStatement = errors.New("missing return statement")
	ErrBindingNameCollision   = errors.New("binding name collision")
	ErrAlreadyRebound         = errors.New("declaration is already rebound")
	ErrUnsupportedReturn      = errors.New("unsupported return statement")
)

// Error locates a transformation error in the authored source.
type Error struct {
	Pos  token.Position // Position of the offending node
	Func string         // Name of the declaration being transformed
	Err  error          // Underlying error, matches one of the Err* sentinels
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Func != "" {
		return fmt.Sprintf("%s: %s: %v", e.Pos, e.Func, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Pos, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}
