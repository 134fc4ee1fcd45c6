package metadata

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every failure surfaced by the readers and the generator wraps
// exactly one of these so callers can branch with errors.Is.
var (
	ErrInputNotFound     = errors.New("input not found")
	ErrMalformedMetadata = errors.New("malformed metadata")
	ErrRPUEncoding       = errors.New("rpu encoding failure")
	ErrOutputWrite       = errors.New("output write failure")
)

// Input source names used in Error.Source.
const (
	SourceConfig    = "config"
	SourceHDR10Plus = "hdr10plus"
	SourceXML       = "xml"
	SourceOutput    = "output"
	SourceManifest  = "manifest"
)

// Error carries the context of a failed run: which source, which file and
// which frame or shot triggered it. Frame and Shot are -1 when not
// applicable.
type Error struct {
	Kind   error
	Source string
	Path   string
	Frame  int
	Shot   int
	Field  string
	Err    error
}

// NewError returns an Error with no frame or shot position.
func NewError(kind error, source, path string, err error) *Error {
	return &Error{Kind: kind, Source: source, Path: path, Frame: -1, Shot: -1, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	b.WriteString(": ")
	b.WriteString(e.Source)
	if e.Path != "" {
		fmt.Fprintf(&b, " %q", e.Path)
	}
	if e.Shot >= 0 {
		fmt.Fprintf(&b, " shot %d", e.Shot)
	}
	if e.Frame >= 0 {
		fmt.Fprintf(&b, " frame %d", e.Frame)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field %s", e.Field)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
