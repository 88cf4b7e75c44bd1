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

package filter

import (
	"fmt"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"

	"github.com/aaronlmathis/goquery/core"
)

// Package filter provides the filter operator and reusable, composable
// predicate evaluators for GoQuery pipelines.
//
// Predicates are ordinary column evaluators with a boolean output type;
// this file contains the comparison predicates built on top of any column
// evaluator. A null predicate value means the row is not selected.

// predicate builds a boolean column by applying test to each row's scalar.
type predicate struct {
	name string
	arg  core.Evaluator
	test func(v core.ScalarValue) (bool, bool, error) // value, null, error
}

func (p *predicate) Name() string             { return p.name }
func (p *predicate) DataType() arrow.DataType { return arrow.FixedWidthTypes.Boolean }

func (p *predicate) Evaluate(batch arrow.Record) (arrow.Array, error) {
	col, err := p.arg.Evaluate(batch)
	if err != nil {
		return nil, err
	}
	defer col.Release()

	b := array.NewBooleanBuilder(memory.NewGoAllocator())
	defer b.Release()
	for i := 0; i < col.Len(); i++ {
		v, err := core.ScalarAt(col, i)
		if err != nil {
			return nil, err
		}
		keep, null, err := p.test(v)
		if err != nil {
			return nil, err
		}
		if null {
			b.AppendNull()
			continue
		}
		b.Append(keep)
	}
	return b.NewArray(), nil
}

// NotNull selects rows where the column has a value.
func NotNull(arg core.Evaluator) core.Evaluator {
	return &predicate{
		name: fmt.Sprintf("%s IS NOT NULL", arg.Name()),
		arg:  arg,
		test: func(v core.ScalarValue) (bool, bool, error) {
			return !v.IsNull(), false, nil
		},
	}
}

// Equals selects rows where the column structurally equals the given
// scalar. Null column values yield a null predicate.
func Equals(arg core.Evaluator, value core.ScalarValue) core.Evaluator {
	return &predicate{
		name: fmt.Sprintf("%s = %s", arg.Name(), value),
		arg:  arg,
		test: func(v core.ScalarValue) (bool, bool, error) {
			if v.IsNull() {
				return false, true, nil
			}
			return v == value, false, nil
		},
	}
}

// GreaterThan selects rows where the column orders strictly after the given
// scalar.
func GreaterThan(arg core.Evaluator, value core.ScalarValue) core.Evaluator {
	return compared(fmt.Sprintf("%s > %s", arg.Name(), value), arg, value, func(cmp int) bool { return cmp > 0 })
}

// LessThan selects rows where the column orders strictly before the given
// scalar.
func LessThan(arg core.Evaluator, value core.ScalarValue) core.Evaluator {
	return compared(fmt.Sprintf("%s < %s", arg.Name(), value), arg, value, func(cmp int) bool { return cmp < 0 })
}

func compared(name string, arg core.Evaluator, value core.ScalarValue, keep func(int) bool) core.Evaluator {
	return &predicate{
		name: name,
		arg:  arg,
		test: func(v core.ScalarValue) (bool, bool, error) {
			if v.IsNull() {
				return false, true, nil
			}
			cmp, err := core.CompareScalars(v, value)
			if err != nil {
				return false, false, err
			}
			return keep(cmp), false, nil
		},
	}
}
