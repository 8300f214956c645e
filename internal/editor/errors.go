package editor

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid readiness transition")
	ErrNotReady          = errors.New("editor not ready")
)

// InsertionError reports that the surface refused a structured mutation.
type InsertionError struct {
	Offset int
	Err    error
}

func (e *InsertionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("insert at %d rejected: %v", e.Offset, e.Err)
}

func (e *InsertionError) Unwrap() error { return e.Err }
