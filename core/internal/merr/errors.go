// Package merr defines the typed, recoverable errors returned by the
// catalog binder, the value converter and the statement translator.
package merr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFeatureNotSupported is matched by every error that reports a type,
// shape or operation MongoDB cannot represent.
var ErrFeatureNotSupported = errors.New("feature not supported")

// UnsupportedTypeError reports a value that has no mapping to a
// document value kind.
type UnsupportedTypeError struct {
	// Path is the attribute path of the offending value, if known.
	Path string
	// Value is the domain value that failed to convert.
	Value any
	// Type is the declared type of the attribute.
	Type string
	// Reason optionally narrows down the failure.
	Reason string
}

func (e *UnsupportedTypeError) Error() string {
	var sb strings.Builder
	sb.WriteString("value [")
	sb.WriteString(fmt.Sprintf("%v", e.Value))
	sb.WriteString("]")
	if e.Path != "" {
		sb.WriteString(" of persistent attribute [")
		sb.WriteString(e.Path)
		sb.WriteString("]")
	}
	sb.WriteString(" with declared type [")
	sb.WriteString(e.Type)
	sb.WriteString("] is not supported")
	if e.Reason != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Reason)
	}
	return sb.String()
}

func (e *UnsupportedTypeError) Is(target error) bool {
	return target == ErrFeatureNotSupported
}

// MappingViolation aborts catalog binding. It is reported once, before
// any statement can be translated.
type MappingViolation struct {
	Entity string
	Path   string
	Reason string
	Err    error
}

func (e *MappingViolation) Error() string {
	var sb strings.Builder
	sb.WriteString("mapping violation")
	if e.Entity != "" {
		sb.WriteString(" in entity [")
		sb.WriteString(e.Entity)
		sb.WriteString("]")
	}
	if e.Path != "" {
		sb.WriteString(" at [")
		sb.WriteString(e.Path)
		sb.WriteString("]")
	}
	sb.WriteString(": ")
	sb.WriteString(e.Reason)
	return sb.String()
}

func (e *MappingViolation) Unwrap() error {
	return e.Err
}

// NotSupported builds the violation raised for a persistent attribute whose
// type has no document mapping.
func NotSupported(entity, path, typ string) *MappingViolation {
	return &MappingViolation{
		Entity: entity,
		Path:   path,
		Reason: fmt.Sprintf("persistent attribute [%s] has type [%s] that is not supported", path, typ),
		Err:    ErrFeatureNotSupported,
	}
}

// TranslationError reports a statement that cannot be expressed as a
// MongoDB command.
type TranslationError struct {
	Statement string
	Path      string
	Reason    string
	Err       error
}

func (e *TranslationError) Error() string {
	var sb strings.Builder
	sb.WriteString("cannot translate")
	if e.Statement != "" {
		sb.WriteString(" ")
		sb.WriteString(e.Statement)
	}
	if e.Path != "" {
		sb.WriteString(" at [")
		sb.WriteString(e.Path)
		sb.WriteString("]")
	}
	sb.WriteString(": ")
	sb.WriteString(e.Reason)
	return sb.String()
}

func (e *TranslationError) Unwrap() error {
	return e.Err
}
