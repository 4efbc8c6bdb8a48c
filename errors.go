package wikisnip

import (
	"errors"
	"fmt"
)

// ErrMalformedTag is returned when a line looks like a tag line but the
// tag cannot be extracted.
var ErrMalformedTag = errors.New("malformed tag")

// LineError locates an error in the input of a filter run.
type LineError struct {
	Line   int
	Offset int64
	err    error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d (offset %d): %s", e.Line, e.Offset, e.err)
}

func (e LineError) Unwrap() error { return e.err }

// EOFTag is reported as the tag of a StructureError when the input ends
// before the dump is complete.
const EOFTag = "EOF"

// StructureError reports a tag, content line or end of input that has no
// transition in the filter's current state.
type StructureError struct {
	State State
	// Tag is the classified tag name, "" for a content line or EOFTag.
	Tag string
}

func (e StructureError) Error() string {
	switch e.Tag {
	case "":
		return fmt.Sprintf("unexpected content line in state %s", e.State)
	case EOFTag:
		return fmt.Sprintf("unexpected end of input in state %s", e.State)
	}
	return fmt.Sprintf("unexpected tag <%s> in state %s", e.Tag, e.State)
}

// IDError reports a page <id> that is not an unsigned 64-bit integer.
type IDError struct {
	Text string
	err  error
}

func (e IDError) Error() string {
	return fmt.Sprintf("invalid page id '%s': %s", e.Text, e.err)
}

func (e IDError) Unwrap() error { return e.err }

// IDListError reports an unusable record in an identifier list.
type IDListError struct {
	Line  int
	Field string
	err   error
}

func (e IDListError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("id list %d: %s", e.Line, e.err)
	}
	return fmt.Sprintf("id list %d: invalid id '%s': %s", e.Line, e.Field, e.err)
}

func (e IDListError) Unwrap() error { return e.err }
