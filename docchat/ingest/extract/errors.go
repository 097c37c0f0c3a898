package extract

import (
	"errors"
	"fmt"
)

// Kind classifies why an extraction produced no text.
type Kind string

const (
	KindNotSupported         Kind = "not_supported"
	KindMalformedInput       Kind = "malformed_input"
	KindDecodeError          Kind = "decode_error"
	KindNoExtractableContent Kind = "no_extractable_content"
	KindInputTooLarge        Kind = "input_too_large"
	KindUnavailable          Kind = "unavailable"
)

// Error is the typed failure returned by extractors and the registry.
type Error struct {
	Kind Kind
	Type DocumentType // empty when the type could not be resolved
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Type != "" && e.Err != nil:
		return fmt.Sprintf("extract %s: %s: %v", e.Type, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("extract: %s: %v", e.Kind, e.Err)
	case e.Type != "":
		return fmt.Sprintf("extract %s: %s", e.Type, e.Kind)
	default:
		return fmt.Sprintf("extract: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the package sentinels by kind, so errors.Is(err, ErrDecodeError) works on any
// wrapped *Error of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrNotSupported         = &Error{Kind: KindNotSupported}
	ErrMalformedInput       = &Error{Kind: KindMalformedInput}
	ErrDecodeError          = &Error{Kind: KindDecodeError}
	ErrNoExtractableContent = &Error{Kind: KindNoExtractableContent}
	ErrInputTooLarge        = &Error{Kind: KindInputTooLarge}
	ErrUnavailable          = &Error{Kind: KindUnavailable}
)

func newError(kind Kind, typ DocumentType, err error) *Error {
	return &Error{Kind: kind, Type: typ, Err: err}
}

// KindOf returns the kind of an extraction error, or "" if err is not one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
