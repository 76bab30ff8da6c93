package bcf2

import (
	"errors"
	"fmt"
)

var (
	// ErrNotBCF2 is returned when the magic bytes are missing.
	ErrNotBCF2 = errors.New("input stream does not contain a BCF encoded file; BCF magic header info not found")
	// ErrUnrecognizedType is wrapped when a descriptor names an unknown type id.
	ErrUnrecognizedType = errors.New("unrecognized type descriptor")
	// ErrTruncatedBlock is wrapped when a read runs past the end of a block.
	ErrTruncatedBlock = errors.New("read past end of block")
)

// FormatError is a fatal decoding error. Record is the 1-based number of the
// record being decoded and Position its 1-based start, both zero while the
// header is processed.
type FormatError struct {
	Record   int
	Position int
	Msg      string
	Err      error
}

func (e *FormatError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	return fmt.Sprintf("bcf2: %s, at record %d with position %d", msg, e.Record, e.Position)
}

func (e *FormatError) Unwrap() error { return e.Err }

// TypeMismatchError reports a genotype field whose per-sample encoding does
// not match what its decoder handles. It signals encoder/decoder skew rather
// than a truncated file.
type TypeMismatchError struct {
	Field    string
	Type     Type
	Expected string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("bcf2 internal consistency: field %s encoded as %s, expected %s", e.Field, e.Type, e.Expected)
}

// IsInternalError reports whether err carries a TypeMismatchError.
func IsInternalError(err error) bool {
	var tm *TypeMismatchError
	return errors.As(err, &tm)
}
