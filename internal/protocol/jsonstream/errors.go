package jsonstream

import (
	"errors"
	"fmt"
)

var (
	ErrSyntax        = errors.New("jsonstream: syntax error")
	ErrValueTooLarge = errors.New("jsonstream: value too large")
	ErrTruncated     = errors.New("jsonstream: truncated value")
)

const snippetLen = 32

// FramingError reports one discarded value or garbage run.
type FramingError struct {
	// Offset is the stream offset of the first discarded byte.
	Offset  int64
	Snippet string
	Err     error
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("%v (offset=%d snippet=%q)", e.Err, e.Offset, e.Snippet)
}

func (e *FramingError) Unwrap() error {
	return e.Err
}

func newFramingError(offset int64, raw []byte, err error) *FramingError {
	if len(raw) > snippetLen {
		raw = raw[:snippetLen]
	}
	return &FramingError{Offset: offset, Snippet: string(raw), Err: err}
}

func syntaxError(c byte, context string) error {
	return fmt.Errorf("%w: invalid character %s %s", ErrSyntax, quoteChar(c), context)
}

func quoteChar(c byte) string {
	if c == '\'' {
		return `'\''`
	}
	if c == '"' {
		return `'"'`
	}
	s := fmt.Sprintf("%q", string(rune(c)))
	return "'" + s[1:len(s)-1] + "'"
}
