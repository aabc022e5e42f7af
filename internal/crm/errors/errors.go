package errors

import (
	"fmt"
)

var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrDuplicateName = fmt.Errorf("duplicate name")
	ErrInvalidInput  = fmt.Errorf("invalid input")
	// ErrInUse is returned when deleting a company or status that contacts still reference.
	ErrInUse = fmt.Errorf("still referenced")
)
