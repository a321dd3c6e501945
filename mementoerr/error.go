// Package mementoerr defines the single error type threaded through the
// coordinator and knowledge graph service.
package mementoerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and retry purposes.
type Kind string

const (
	KindParse Kind = "parse"
	KindDatabase Kind = "database"
	KindConflict Kind = "conflict"
	KindValidation Kind = "validation"
	KindCancellation Kind = "cancellation"
	KindTimeout Kind = "timeout"
	KindUnknown Kind = "unknown"
)

// recoverableKinds mirrors spec §7's per-kind recoverability table.
var recoverableKinds = map[Kind]bool{
	KindParse: true,
	KindDatabase: true,
	KindConflict: true,
}

// Error is Memento's structured error: a kind, an optional file/item context,
// and whether the operation that produced it may be retried.
type Error struct {
	Kind Kind
	File string
	Message string
	Recoverable bool
	Cause error
}

// New constructs an Error, setting Recoverable from the kind's default.
func New(kind Kind, file, message string, cause error) *Error {
	return &Error{
		Kind: kind,
		File: file,
		Message: message,
		Recoverable: recoverableKinds[kind],
		Cause: cause,
	}
}

func (e *Error) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.File, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// IsRecoverable reports whether err (a *mementoerr.Error or not) should be
// treated as recoverable. Non-mementoerr errors are treated as non-recoverable.
func IsRecoverable(err error) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Recoverable
	}
	return false
}
