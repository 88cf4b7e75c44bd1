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

package expr

import (
	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"

	"github.com/aaronlmathis/goquery/core"
)

// literalExpr produces a column holding one constant value per input row.
type literalExpr struct {
	value core.ScalarValue
	name  string
}

// Literal returns an evaluator producing the given constant for every row
// of the input batch. Null literals are not supported; the column type
// would be undefined.
func Literal(value core.ScalarValue, name string) (core.Evaluator, error) {
	if value.IsNull() {
		return nil, core.Errorf(core.ErrUnsupportedType, "literal",
			"null literal has no column type")
	}
	if name == "" {
		name = value.String()
	}
	return &literalExpr{value: value, name: name}, nil
}

func (l *literalExpr) Name() string { return l.name }

func (l *literalExpr) DataType() arrow.DataType { return l.value.DataType() }

func (l *literalExpr) Evaluate(batch arrow.Record) (arrow.Array, error) {
	b := array.NewBuilder(memory.NewGoAllocator(), l.value.DataType())
	defer b.Release()

	rows := int(batch.NumRows())
	for i := 0; i < rows; i++ {
		if err := core.AppendScalar(b, l.value); err != nil {
			return nil, err
		}
	}
	return b.NewArray(), nil
}

// aliasExpr renames another evaluator's output column.
type aliasExpr struct {
	inner core.Evaluator
	name  string
}

// Alias wraps an evaluator under a new output column name. Evaluation is
// delegated unchanged.
func Alias(inner core.Evaluator, name string) core.Evaluator {
	return &aliasExpr{inner: inner, name: name}
}

func (a *aliasExpr) Name() string             { return a.name }
func (a *aliasExpr) DataType() arrow.DataType { return a.inner.DataType() }

func (a *aliasExpr) Evaluate(batch arrow.Record) (arrow.Array, error) {
	return a.inner.Evaluate(batch)
}
