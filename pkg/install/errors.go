package install

import "fmt"

// ConflictError reports a target path that already exists while
// force is off. Planning stops at the first one; nothing has
// been written when it surfaces.
type ConflictError struct {
	Path string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"conflict: %s already exists (use force to overwrite)",
		e.Path,
	)
}

// IOError reports a failed filesystem operation during plan
// application. By the time it surfaces, rollback has already
// removed whatever this operation created.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
