//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of GoQuery.
//
// GoQuery is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// GoQuery is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with GoQuery. If not, see https://www.gnu.org/licenses/.

package core

import (
	"errors"
	"fmt"
)

// Package core defines the error handling types for the GoQuery library.
//
// This file contains the execution error type shared by all operators.

// ErrorKind classifies the ways a relational operator can fail. The set is
// closed: every failure surfaced by an operator's Next belongs to exactly
// one kind, so callers can dispatch on it with IsKind.
type ErrorKind int

const (
	// ErrUnsupportedFunction indicates an aggregate function kind that is
	// not implemented for the given type.
	ErrUnsupportedFunction ErrorKind = iota
	// ErrUnsupportedType indicates a scalar type encountered in a group key
	// or aggregate argument that has no dispatch branch.
	ErrUnsupportedType
	// ErrEvaluation indicates a column evaluator itself failed.
	ErrEvaluation
	// ErrSchemaMismatch indicates a declared output schema that does not
	// match the types actually produced.
	ErrSchemaMismatch
)

// String returns the canonical name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrUnsupportedFunction:
		return "unsupported_function"
	case ErrUnsupportedType:
		return "unsupported_type"
	case ErrEvaluation:
		return "evaluation_failure"
	case ErrSchemaMismatch:
		return "schema_mismatch"
	default:
		return "unknown"
	}
}

// ExecutionError provides structured error information for operator
// failures. Operators return it from Next rather than panicking; the first
// error on any row or column short-circuits the rest of that call.
type ExecutionError struct {
	Kind ErrorKind // Classification of the failure
	Op   string    // Operation that failed (e.g., "group_key", "accumulate")
	Err  error     // Underlying error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution %s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NewError creates an ExecutionError of the given kind.
func NewError(kind ErrorKind, op string, err error) *ExecutionError {
	return &ExecutionError{Kind: kind, Op: op, Err: err}
}

// Errorf creates an ExecutionError of the given kind from a format string.
func Errorf(kind ErrorKind, op, format string, args ...interface{}) *ExecutionError {
	return &ExecutionError{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// IsKind reports whether err is (or wraps) an ExecutionError of the given
// kind.
func IsKind(err error, kind ErrorKind) bool {
	var ee *ExecutionError
	return errors.As(err, &ee) && ee.Kind == kind
}
