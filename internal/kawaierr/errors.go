// Package kawaierr defines the error kinds used across the ingest bridge.
//
// Each kind wraps an underlying cause with fmt.Errorf's %w verb so callers
// can use errors.Is/errors.As against the sentinel Kind values below while
// still seeing the original error text.
package kawaierr

import (
	"errors"
	"fmt"
)

// Kind identifies which of the seven error categories a failure belongs to.
type Kind int

const (
	// KindConfig covers a missing or malformed configuration option.
	// Returned by Engine.Configure, which then leaves the engine unable to
	// Init.
	KindConfig Kind = iota
	// KindBadSchema covers a translation that produced an impossible column
	// (recursion, empty struct, invalid decimal bounds). Returned when the
	// topic's worker is built, which fails Engine.Init as a whole; the topic
	// is not marked degraded.
	KindBadSchema
	// KindResolve covers a registry that is unreachable or returned an
	// unparseable schema. Recovered locally by falling back to binary.
	KindResolve
	// KindDecode covers a magic byte mismatch, truncated payload, or
	// unknown union tag. Per-record, skipped, counted.
	KindDecode
	// KindBadRow covers a decoded value tree that doesn't fit the column
	// shape. Per-record, skipped, counted.
	KindBadRow
	// KindSink covers the analytic engine rejecting an insert or DDL
	// statement. Worker-fatal; the topic is marked degraded.
	KindSink
	// KindLifecycle covers an engine operation attempted from the wrong
	// facade state.
	KindLifecycle
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindBadSchema:
		return "BadSchema"
	case KindResolve:
		return "ResolveError"
	case KindDecode:
		return "DecodeError"
	case KindBadRow:
		return "BadRow"
	case KindSink:
		return "SinkError"
	case KindLifecycle:
		return "LifecycleError"
	default:
		return "UnknownError"
	}
}

// Error is a typed error carrying one of the Kind values plus a wrapped
// cause. It implements Unwrap so errors.Is/errors.As see through to cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so callers can
// do errors.Is(err, kawaierr.New(kawaierr.KindDecode, "", nil)) or more
// conveniently use the Is* helpers below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs an *Error of the given kind wrapping cause.
func New(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

func sentinel(kind Kind) *Error { return &Error{Kind: kind} }

var (
	sentinelConfig    = sentinel(KindConfig)
	sentinelBadSchema = sentinel(KindBadSchema)
	sentinelResolve   = sentinel(KindResolve)
	sentinelDecode    = sentinel(KindDecode)
	sentinelBadRow    = sentinel(KindBadRow)
	sentinelSink      = sentinel(KindSink)
	sentinelLifecycle = sentinel(KindLifecycle)
)

// IsConfig reports whether err is (or wraps) a ConfigError.
func IsConfig(err error) bool { return errors.Is(err, sentinelConfig) }

// IsBadSchema reports whether err is (or wraps) a BadSchema error.
func IsBadSchema(err error) bool { return errors.Is(err, sentinelBadSchema) }

// IsResolve reports whether err is (or wraps) a ResolveError.
func IsResolve(err error) bool { return errors.Is(err, sentinelResolve) }

// IsDecode reports whether err is (or wraps) a DecodeError.
func IsDecode(err error) bool { return errors.Is(err, sentinelDecode) }

// IsBadRow reports whether err is (or wraps) a BadRow error.
func IsBadRow(err error) bool { return errors.Is(err, sentinelBadRow) }

// IsSink reports whether err is (or wraps) a SinkError.
func IsSink(err error) bool { return errors.Is(err, sentinelSink) }

// IsLifecycle reports whether err is (or wraps) a LifecycleError.
func IsLifecycle(err error) bool { return errors.Is(err, sentinelLifecycle) }
