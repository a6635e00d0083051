// errors.go - descriptive errors for fsinfo, in the style of go-fio's
// own errors.go (CopyError: Op/Src/Dst/Err with Unwrap).
//
// (c) 2024- pwalktools authors
//
// Licensing Terms: GPLv2

package fsinfo

import "fmt"

// Error represents a single failed file-system operation, either
// directory-relative or path-based.
type Error struct {
	Op   string
	Name string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fsinfo: %s '%s': %s", e.Op, e.Name, e.Err.Error())
}

func (e *Error) Unwrap() error { return e.Err }

var _ error = &Error{}
