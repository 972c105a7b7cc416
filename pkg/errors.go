package fiberconv

import "fmt"

// ErrConfiguration represents a missing or ambiguous required parameter.
type ErrConfiguration struct {
	Parameter string
	Reason    string
}

func (e *ErrConfiguration) Error() string {
	return fmt.Sprintf("invalid configuration for %q: %s", e.Parameter, e.Reason)
}

// ErrMissingMetadata represents a referenced record that is absent from the
// metadata tables or a required field absent from a source file.
type ErrMissingMetadata struct {
	Name  string
	Table string
}

func (e *ErrMissingMetadata) Error() string {
	return fmt.Sprintf("metadata for %q not found in %s", e.Name, e.Table)
}

// ErrShapeMismatch represents arrays whose lengths do not agree.
type ErrShapeMismatch struct {
	What string
	Want int
	Got  int
}

func (e *ErrShapeMismatch) Error() string {
	return fmt.Sprintf("shape mismatch for %s: expected %d, got %d", e.What, e.Want, e.Got)
}

// ErrNotFound represents an expected file that is absent.
type ErrNotFound struct {
	Path string
	Err  error
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("file %q not found: %v", e.Path, e.Err)
}

func (e *ErrNotFound) Unwrap() error {
	return e.Err
}

// ErrUnsupportedFormat represents a file suffix the imaging readers do not
// recognize.
type ErrUnsupportedFormat struct {
	Path   string
	Suffix string
}

func (e *ErrUnsupportedFormat) Error() string {
	return fmt.Sprintf("file %q has unsupported format %q", e.Path, e.Suffix)
}
