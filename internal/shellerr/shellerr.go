// Package shellerr defines the error taxonomy used across krusty's core
// components (spec §7). Every kind maps to a Go error type rather than a
// panic; the executor is responsible for turning these into exit codes
// and stderr text.
package shellerr

import "fmt"

// Kind identifies one of the taxonomy entries from spec §7.
type Kind string

const (
	KindParse       Kind = "parse"
	KindExpansion   Kind = "expansion"
	KindSpawn       Kind = "spawn"
	KindRedirection Kind = "redirection"
	KindTimeout     Kind = "timeout"
	KindJob         Kind = "job"
	KindHook        Kind = "hook"
	KindHistory     Kind = "history"
)

// Error wraps an underlying cause with a taxonomy kind, an optional
// command text for context, and the exit code the executor should use
// when this error terminates a command.
type Error struct {
	Kind     Kind
	Message  string
	Command  string
	ExitCode int
	Cause    error
}

func (e *Error) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("%s: %s", e.Command, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind Kind, exitCode int, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), ExitCode: exitCode}
}

// Parse builds a ParseError (spec: exit 2, no execution).
func Parse(format string, args ...any) *Error {
	return newErr(KindParse, 2, format, args...)
}

// Expansion builds an ExpansionError (unbound variable, bad arithmetic,
// sandbox-forbidden substitution). Callers set ExitCode explicitly when
// it differs from the generic 1.
func Expansion(format string, args ...any) *Error {
	return newErr(KindExpansion, 1, format, args...)
}

// UnboundVariable is the specific ExpansionError spec §4.B's nounset
// mode requires, with the literal substring "unbound variable" tests
// rely on.
func UnboundVariable(name string) *Error {
	return Expansion("%s: unbound variable", name)
}

// SpawnNotFound builds the 127 "command not found" SpawnError.
func SpawnNotFound(command string) *Error {
	e := newErr(KindSpawn, 127, "command not found")
	e.Command = command
	return e
}

// SpawnPermissionDenied builds the 126 permission-denied SpawnError.
func SpawnPermissionDenied(command string) *Error {
	e := newErr(KindSpawn, 126, "permission denied")
	e.Command = command
	return e
}

// Redirection builds a RedirectionError (nonzero exit, process never
// spawned).
func Redirection(format string, args ...any) *Error {
	return newErr(KindRedirection, 1, format, args...)
}

// Timeout builds a TimeoutError whose ExitCode already encodes
// 128+signal per spec §7.
func Timeout(signal int) *Error {
	return newErr(KindTimeout, 128+signal, "command timed out")
}

// Job builds a JobError. Job operations normally just return false
// rather than raise this, but the type exists for callers that need to
// surface a reason string.
func Job(format string, args ...any) *Error {
	return newErr(KindJob, 0, format, args...)
}

// Hook builds a HookError; dispatch never aborts because of it.
func Hook(format string, args ...any) *Error {
	return newErr(KindHook, 0, format, args...)
}

// History builds a HistoryError; always non-fatal, logged by the caller.
func History(format string, args ...any) *Error {
	return newErr(KindHistory, 0, format, args...)
}

// Wrap attaches a cause to an existing Error, preserving its kind and
// exit code.
func Wrap(err *Error, cause error) *Error {
	err.Cause = cause
	return err
}
