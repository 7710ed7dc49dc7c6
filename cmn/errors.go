// Package cmn provides common low-level types, errors, and utilities shared
// by every package in the simulation core.
/*
 * Copyright (c) 2024, Josh Project. All rights reserved.
 */
package cmn

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind is a coarse classification of core errors, per the error table
// in the specification's error-handling design. Kinds, not Go types: every
// error constructed by the core wraps one of these.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindParseError
	KindCircularDependency
	KindUnknownAttribute
	KindTypeMismatch
	KindUnitMismatch
	KindIoError
	KindAssertionFailed
	KindCancelled
	KindEmptyInput
	KindUnknownMetric
	KindRangeMismatch
	KindUnknownTemplate
	KindIncompatible
)

func (k ErrorKind) String() string {
	switch k {
	case KindParseError:
		return "ParseError"
	case KindCircularDependency:
		return "CircularDependency"
	case KindUnknownAttribute:
		return "UnknownAttribute"
	case KindTypeMismatch:
		return "TypeMismatch"
	case KindUnitMismatch:
		return "UnitMismatch"
	case KindIoError:
		return "IoError"
	case KindAssertionFailed:
		return "AssertionFailed"
	case KindCancelled:
		return "Cancelled"
	case KindEmptyInput:
		return "EmptyInput"
	case KindUnknownMetric:
		return "UnknownMetric"
	case KindRangeMismatch:
		return "RangeMismatch"
	case KindUnknownTemplate:
		return "UnknownTemplate"
	case KindIncompatible:
		return "Incompatible"
	default:
		return "Unknown"
	}
}

// kindedErr carries an ErrorKind through a pkg/errors wrap chain.
type kindedErr struct {
	kind ErrorKind
	err  error
}

func (e *kindedErr) Error() string { return e.err.Error() }
func (e *kindedErr) Unwrap() error { return e.err }
func (e *kindedErr) Cause() error  { return e.err } // pkg/errors compatibility

// Wrap attaches kind to cause (which may be nil, in which case a bare
// message error is created) and adds the formatted context via
// github.com/pkg/errors so a full stack trace is preserved.
func Wrap(kind ErrorKind, cause error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	var wrapped error
	if cause == nil {
		wrapped = errors.New(msg)
	} else {
		wrapped = errors.Wrap(cause, msg)
	}
	return &kindedErr{kind: kind, err: wrapped}
}

// New is Wrap with no underlying cause.
func New(kind ErrorKind, format string, args ...interface{}) error {
	return Wrap(kind, nil, format, args...)
}

// KindOf recovers the ErrorKind from an error produced by Wrap/New,
// unwrapping through any intermediate wrap layers. Returns KindUnknown for
// errors the core did not construct.
func KindOf(err error) ErrorKind {
	for err != nil {
		if ke, ok := err.(*kindedErr); ok {
			return ke.kind
		}
		cause := errors.Unwrap(err)
		if cause == nil {
			break
		}
		err = cause
	}
	return KindUnknown
}

// Is reports whether err was constructed with the given kind anywhere in
// its wrap chain.
func Is(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
