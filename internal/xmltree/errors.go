package xmltree

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedDocument is returned when input bytes are not well-formed XML.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrNotFound is returned when a requested id is not present.
	ErrNotFound = errors.New("not found")
	// ErrWrongType is returned when an id resolves to an element of another kind.
	ErrWrongType = errors.New("wrong element type")
	// ErrDuplicateID is returned when an id repeats and the conflict policy rejects it.
	ErrDuplicateID = errors.New("duplicate id")
)

// LookupError reports a structural lookup failure for a specific id.
type LookupError struct {
	Kind string // what was looked up: "definition", "rule", ...
	ID   string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Kind, e.ID, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// NotFound builds a LookupError wrapping ErrNotFound.
func NotFound(kind, id string) error {
	return &LookupError{Kind: kind, ID: id, Err: ErrNotFound}
}

// WrongType builds a LookupError wrapping ErrWrongType.
func WrongType(kind, id string) error {
	return &LookupError{Kind: kind, ID: id, Err: ErrWrongType}
}
