package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrParse marks a malformed label line or an out-of-range class id.
	ErrParse = errors.New("label parse error")
	// ErrNotFound marks a missing label file, image file or split directory.
	ErrNotFound = errors.New("not found")
	// ErrDecode marks an image that could not be decoded.
	ErrDecode = errors.New("image decode error")
)

// ParseError describes why a label line was rejected. It matches ErrParse
// under errors.Is.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %q: %s", ErrParse, e.Line, e.Reason)
}

// Unwrap returns ErrParse.
func (e *ParseError) Unwrap() error {
	return ErrParse
}
