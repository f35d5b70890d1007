// Package faults tags processing errors as terminal or transient so the bus
// retry middleware can decide whether to re-invoke a handler without looking
// at error text.
package faults

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// Transient failures (store or bus I/O) are retried.
	Transient Kind = iota
	// Terminal failures can never succeed and go straight to the fault stream.
	Terminal
)

func (k Kind) String() string {
	switch k {
	case Terminal:
		return "terminal"
	default:
		return "transient"
	}
}

// Fault codes
const (
	CodeUnknownAccount    = "unknown_account"
	CodeInsufficientFunds = "insufficient_funds"
	CodeInvalidCommand    = "invalid_command"
	CodeMalformedMessage  = "malformed_message"

	CodeConflict      = "conflict"
	CodeUnavailable   = "unavailable"
	CodePublishFailed = "publish_failed"
)

// Error is a processing error tagged with its retry kind and a stable code.
type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s fault: %s", e.Kind, e.Code)
	}
	return fmt.Sprintf("%s fault (%s): %v", e.Kind, e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewTerminal(code string, err error) *Error {
	return &Error{Kind: Terminal, Code: code, Err: err}
}

func NewTransient(code string, err error) *Error {
	return &Error{Kind: Transient, Code: code, Err: err}
}

// KindOf reports the retry kind of err. Untagged errors are treated as
// transient I/O failures.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Transient
}

// CodeOf returns the fault code of err, or CodeUnavailable for untagged errors.
func CodeOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return CodeUnavailable
}

func IsTerminal(err error) bool {
	return err != nil && KindOf(err) == Terminal
}
